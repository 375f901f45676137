package extract

import (
	"sort"
	"strings"

	"coverly/internal/domain"
)

// Project imposes the schema on raw observations. Every schema name yields
// exactly one field, in schema order. Observations with names outside the
// schema are dropped; blank values count as nothing seen. A field observed
// with two genuinely different values on different pages comes back
// ambiguous with the candidate list; a value merely restated on a later
// page resolves to the later page's reading.
func Project(schema []string, observed []wireObservation) []domain.ExtractedField {
	byName := make(map[string][]wireObservation, len(schema))
	allowed := make(map[string]bool, len(schema))
	for _, name := range schema {
		allowed[name] = true
	}
	for _, obs := range observed {
		name := strings.TrimSpace(obs.Name)
		if !allowed[name] || strings.TrimSpace(obs.Value) == "" {
			continue
		}
		obs.Name = name
		byName[name] = append(byName[name], obs)
	}

	fields := make([]domain.ExtractedField, 0, len(schema))
	for _, name := range schema {
		fields = append(fields, reconcile(name, byName[name]))
	}
	return fields
}

// reconcile folds multi-page sightings of one field into a single tagged
// value. Page order decides ties: the later sighting of an equivalent
// value wins (certificates restate limits on continuation pages).
func reconcile(name string, sightings []wireObservation) domain.ExtractedField {
	if len(sightings) == 0 {
		return domain.ExtractedField{Name: name, Status: domain.FieldAbsent}
	}

	sort.SliceStable(sightings, func(i, j int) bool { return sightings[i].Page < sightings[j].Page })

	distinct := map[string]string{} // canonical -> last raw value seen
	var order []string
	for _, s := range sightings {
		key := canonical(s.Value)
		if _, seen := distinct[key]; !seen {
			order = append(order, key)
		}
		distinct[key] = strings.TrimSpace(s.Value)
	}

	if len(order) > 1 {
		cands := make([]string, 0, len(order))
		for _, key := range order {
			cands = append(cands, distinct[key])
		}
		return domain.ExtractedField{Name: name, Status: domain.FieldAmbiguous, Candidates: cands}
	}

	last := sightings[len(sightings)-1]
	return domain.ExtractedField{
		Name:     name,
		Value:    strings.TrimSpace(last.Value),
		Status:   domain.FieldPresent,
		Page:     last.Page,
		Evidence: last.Evidence,
	}
}

// canonical collapses formatting noise so "$1,000,000" and "1000000" are
// one value, not a conflict.
func canonical(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, cut := range []string{"$", ",", " "} {
		v = strings.ReplaceAll(v, cut, "")
	}
	return v
}
