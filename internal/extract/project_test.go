package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coverly/internal/domain"
)

func fieldByName(t *testing.T, fields []domain.ExtractedField, name string) domain.ExtractedField {
	t.Helper()
	for _, f := range fields {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("field %q not in projection", name)
	return domain.ExtractedField{}
}

func TestProjectCoversSchema(t *testing.T) {
	schema := domain.FieldCatalog()
	fields := Project(schema, nil)

	require.Len(t, fields, len(schema), "every schema field appears exactly once")
	for i, name := range schema {
		assert.Equal(t, name, fields[i].Name, "schema order preserved")
		assert.Equal(t, domain.FieldAbsent, fields[i].Status)
	}
}

func TestProjectDropsGarbage(t *testing.T) {
	schema := []string{domain.FieldGLEachOccurrence}
	fields := Project(schema, []wireObservation{
		{Name: "hallucinated_field", Value: "$9,000,000"},
		{Name: domain.FieldGLEachOccurrence, Value: "   "},
		{Name: "", Value: "1000000"},
	})

	require.Len(t, fields, 1)
	assert.Equal(t, domain.FieldAbsent, fields[0].Status,
		"unrecognized names and blank values default to absent, never a guessed value")
	assert.Empty(t, fields[0].Value)
}

func TestProjectSingleSighting(t *testing.T) {
	schema := []string{domain.FieldGLEachOccurrence}
	fields := Project(schema, []wireObservation{
		{Name: domain.FieldGLEachOccurrence, Value: " $1,000,000 ", Page: 0, Evidence: "EACH OCCURRENCE $1,000,000"},
	})

	f := fields[0]
	assert.Equal(t, domain.FieldPresent, f.Status)
	assert.Equal(t, "$1,000,000", f.Value)
	assert.Equal(t, 0, f.Page)
	assert.Equal(t, "EACH OCCURRENCE $1,000,000", f.Evidence)
}

func TestProjectCrossPageRestatement(t *testing.T) {
	schema := []string{domain.FieldGLEachOccurrence}
	fields := Project(schema, []wireObservation{
		{Name: domain.FieldGLEachOccurrence, Value: "$1,000,000", Page: 0},
		{Name: domain.FieldGLEachOccurrence, Value: "1,000,000", Page: 1},
	})

	f := fields[0]
	assert.Equal(t, domain.FieldPresent, f.Status, "same amount restated is not a conflict")
	assert.Equal(t, "1,000,000", f.Value, "later page's reading wins")
	assert.Equal(t, 1, f.Page)
}

func TestProjectConflictIsAmbiguous(t *testing.T) {
	schema := []string{domain.FieldGLEachOccurrence}
	fields := Project(schema, []wireObservation{
		{Name: domain.FieldGLEachOccurrence, Value: "$1,000,000", Page: 0},
		{Name: domain.FieldGLEachOccurrence, Value: "$2,000,000", Page: 1},
	})

	f := fields[0]
	assert.Equal(t, domain.FieldAmbiguous, f.Status)
	assert.Empty(t, f.Value, "no value is fabricated for a conflicted field")
	assert.Equal(t, []string{"$1,000,000", "$2,000,000"}, f.Candidates)
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, canonical("$1,000,000"), canonical("1000000"))
	assert.Equal(t, canonical(" ACME LLC "), canonical("acme llc"))
	assert.NotEqual(t, canonical("1000000"), canonical("2000000"))
}
