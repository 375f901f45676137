package ports

import (
	"context"
	"time"

	"coverly/internal/domain"
)

// RateLimitRepository records allowed submissions per identity key and
// reports window usage. Consume must be atomic: two racing calls with one
// slot left may, at worst, both succeed (overcount toward availability),
// but a caller with slots remaining must never be denied.
type RateLimitRepository interface {
	// Consume counts allowed hits for key since windowStart and, if the
	// count is below max, records a new hit. used is the count before this
	// call.
	Consume(ctx context.Context, key string, windowStart time.Time, max int) (allowed bool, used int, err error)
}

// SnapshotRepository is the append-only store of compliance snapshots.
type SnapshotRepository interface {
	Insert(ctx context.Context, snap domain.Snapshot) error
	// List returns snapshots for an org, newest first, capped at limit.
	// Zero-value filter fields are ignored.
	List(ctx context.Context, orgID string, vendorID string, from, to *time.Time, limit int) ([]domain.Snapshot, error)
}

// AuditRepository persists audit entries. Callers treat failures as
// best-effort; the recorder swallows them.
type AuditRepository interface {
	InsertAudit(ctx context.Context, entry domain.AuditEntry) error
}

// PolicyRepository loads an org's requirement policy. Implementations
// return domain.ErrPolicyNotFound when the org has none configured.
type PolicyRepository interface {
	GetByOrg(ctx context.Context, orgID string) (domain.RequirementPolicy, error)
}
