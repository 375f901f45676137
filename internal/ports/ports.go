package ports

import (
	"context"

	"coverly/internal/domain"
)

// Grader runs the full certificate pipeline.
type Grader interface {
	// Grade runs the anonymous flow: rate limit, normalize, extract,
	// evaluate. Nothing is persisted.
	Grade(ctx context.Context, rawIP, userAgent string, source []byte, mimeType string) (domain.Scorecard, error)
	// VendorCheck runs the org-scoped flow and records a Snapshot plus an
	// audit entry.
	VendorCheck(ctx context.Context, orgID, vendorID, userID string, source []byte, mimeType string) (domain.Snapshot, error)
}

// History serves recorded snapshots, most recent first.
type History interface {
	Query(ctx context.Context, orgID string, filter HistoryFilter) ([]domain.Snapshot, error)
}

// HistoryFilter narrows a history query. Nil fields are no-ops; provided
// fields are combined conjunctively.
type HistoryFilter struct {
	VendorID *string
	From     *string
	To       *string
}

// Extractor turns page images into the schema field set.
type Extractor interface {
	Extract(ctx context.Context, pages []domain.PageImage) ([]domain.ExtractedField, error)
}

// Normalizer converts one accepted document into ordered page images.
type Normalizer interface {
	Normalize(ctx context.Context, source []byte, mimeType string) ([]domain.PageImage, error)
}

// SubscriptionChecker reports whether an org's subscription is active.
// Implemented against the external billing/authorization provider.
type SubscriptionChecker interface {
	Active(ctx context.Context, orgID string) (bool, error)
}
