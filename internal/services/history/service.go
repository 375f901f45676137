// Package history serves recorded compliance snapshots.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coverly/internal/domain"
	"coverly/internal/ports"
)

// ErrBadFilter marks a user-correctable filter value.
var ErrBadFilter = errors.New("invalid history filter")

// MaxPageSize caps one history query; protects both the caller and the
// store from unbounded result sets.
const MaxPageSize = 100

type Service struct {
	snapshots ports.SnapshotRepository
}

func New(snapshots ports.SnapshotRepository) *Service { return &Service{snapshots: snapshots} }

// Query returns up to MaxPageSize snapshots for the org, newest first.
// Filters are a conjunction; omitted filters are no-ops.
func (s *Service) Query(ctx context.Context, orgID string, filter ports.HistoryFilter) ([]domain.Snapshot, error) {
	var vendorID string
	if filter.VendorID != nil {
		vendorID = *filter.VendorID
	}
	from, err := parseDate(filter.From)
	if err != nil {
		return nil, err
	}
	to, err := parseDate(filter.To)
	if err != nil {
		return nil, err
	}
	return s.snapshots.List(ctx, orgID, vendorID, from, to, MaxPageSize)
}

func parseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return nil, fmt.Errorf("%w: bad date %q, want YYYY-MM-DD", ErrBadFilter, *s)
	}
	return &t, nil
}
