package history

import (
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coverly/internal/domain"
	"coverly/internal/ports"
)

type fakeSnapshotRepo struct {
	gotVendor string
	gotFrom   *time.Time
	gotTo     *time.Time
	gotLimit  int
	snaps     []domain.Snapshot
}

func (f *fakeSnapshotRepo) Insert(_ context.Context, _ domain.Snapshot) error { return nil }

func (f *fakeSnapshotRepo) List(_ context.Context, _ string, vendorID string, from, to *time.Time, limit int) ([]domain.Snapshot, error) {
	f.gotVendor = vendorID
	f.gotFrom = from
	f.gotTo = to
	f.gotLimit = limit
	return f.snaps, nil
}

func strPtr(s string) *string { return &s }

func TestQueryPassesFiltersConjunctively(t *testing.T) {
	repo := &fakeSnapshotRepo{snaps: []domain.Snapshot{{ID: "s1"}}}
	svc := New(repo)

	snaps, err := svc.Query(context.Background(), "org-1", ports.HistoryFilter{
		VendorID: strPtr("vendor-7"),
		From:     strPtr("2026-01-01"),
		To:       strPtr("2026-06-30"),
	})
	require.NoError(t, err)
	assert.Len(t, snaps, 1)

	assert.Equal(t, "vendor-7", repo.gotVendor)
	require.NotNil(t, repo.gotFrom)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), *repo.gotFrom)
	require.NotNil(t, repo.gotTo)
	assert.Equal(t, MaxPageSize, repo.gotLimit, "page size always capped")
}

func TestQueryOmittedFiltersAreNoOps(t *testing.T) {
	repo := &fakeSnapshotRepo{}
	svc := New(repo)

	_, err := svc.Query(context.Background(), "org-1", ports.HistoryFilter{})
	require.NoError(t, err)
	assert.Empty(t, repo.gotVendor)
	assert.Nil(t, repo.gotFrom)
	assert.Nil(t, repo.gotTo)
}

// memSnapshotRepo is an append-only store that hands out copies, the way
// row scans do.
type memSnapshotRepo struct {
	snaps []domain.Snapshot
}

func (m *memSnapshotRepo) Insert(_ context.Context, snap domain.Snapshot) error {
	m.snaps = append(m.snaps, snap)
	return nil
}

func (m *memSnapshotRepo) List(_ context.Context, orgID, vendorID string, _, _ *time.Time, limit int) ([]domain.Snapshot, error) {
	out := make([]domain.Snapshot, 0, len(m.snaps))
	for _, s := range m.snaps {
		if s.OrgID != orgID {
			continue
		}
		if vendorID != "" && s.VendorID != vendorID {
			continue
		}
		cp := s
		cp.Checks = append([]domain.CheckResult(nil), s.Checks...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SnapshotDate.After(out[j].SnapshotDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func TestQueryHistoryIsImmutable(t *testing.T) {
	repo := &memSnapshotRepo{}
	svc := New(repo)
	ctx := context.Background()

	recorded := domain.Snapshot{
		ID:           "snap-1",
		OrgID:        "org-1",
		VendorID:     "vendor-7",
		SnapshotDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Checks:       []domain.CheckResult{{ID: "gl", Status: domain.CheckPass, RequirementID: "gl"}},
		Score:        100,
		CreatedBy:    "user-3",
		CreatedAt:    time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Insert(ctx, recorded))

	first, err := svc.Query(ctx, "org-1", ports.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, first, 1)
	want, err := json.Marshal(first[0])
	require.NoError(t, err)

	// Neither mutating a returned entry nor recording a newer snapshot may
	// change what a later read sees for the original entry.
	first[0].Checks[0].Status = domain.CheckFail
	first[0].Score = 0
	require.NoError(t, repo.Insert(ctx, domain.Snapshot{
		ID:           "snap-2",
		OrgID:        "org-1",
		VendorID:     "vendor-7",
		SnapshotDate: time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
		Score:        50,
	}))

	second, err := svc.Query(ctx, "org-1", ports.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, "snap-2", second[0].ID, "most recent first")
	got, err := json.Marshal(second[1])
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got), "recorded entries read back identical over time")
}

func TestQueryRejectsBadDates(t *testing.T) {
	svc := New(&fakeSnapshotRepo{})

	_, err := svc.Query(context.Background(), "org-1", ports.HistoryFilter{From: strPtr("last tuesday")})
	assert.ErrorIs(t, err, ErrBadFilter)

	_, err = svc.Query(context.Background(), "org-1", ports.HistoryFilter{To: strPtr("31-08-2026")})
	assert.ErrorIs(t, err, ErrBadFilter)
}
