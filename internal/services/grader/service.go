// Package grader orchestrates the certificate pipeline: rate limit,
// normalize, extract, evaluate, and for the org-scoped flow, snapshot and
// audit writes.
package grader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"coverly/internal/audit"
	"coverly/internal/domain"
	"coverly/internal/ports"
	"coverly/internal/ratelimit"
	"coverly/internal/services/evaluator"
)

// RateLimitedError carries the retry hint for a quota-exhausted caller.
type RateLimitedError struct {
	RetryAfterSeconds int
}

func (e *RateLimitedError) Error() string { return "submission quota exhausted" }

var (
	// ErrSubscriptionRequired rejects vendor-scoped calls from orgs without
	// an active subscription.
	ErrSubscriptionRequired = errors.New("active subscription required")
	// ErrSnapshotWrite wraps snapshot persistence failures. The snapshot is
	// the product of the vendor flow, so these surface to the caller.
	ErrSnapshotWrite = errors.New("snapshot write failed")
)

type Service struct {
	limiter    *ratelimit.Limiter
	publicNorm ports.Normalizer
	vendorNorm ports.Normalizer
	extractor  ports.Extractor
	snapshots  ports.SnapshotRepository
	policies   ports.PolicyRepository
	subs       ports.SubscriptionChecker
	audit      *audit.Recorder
	log        *slog.Logger
	now        func() time.Time
}

func New(
	limiter *ratelimit.Limiter,
	publicNorm, vendorNorm ports.Normalizer,
	extractor ports.Extractor,
	snapshots ports.SnapshotRepository,
	policies ports.PolicyRepository,
	subs ports.SubscriptionChecker,
	rec *audit.Recorder,
	log *slog.Logger,
) *Service {
	return &Service{
		limiter:    limiter,
		publicNorm: publicNorm,
		vendorNorm: vendorNorm,
		extractor:  extractor,
		snapshots:  snapshots,
		policies:   policies,
		subs:       subs,
		audit:      rec,
		log:        log,
		now:        time.Now,
	}
}

// Grade runs the anonymous flow. The quota check happens before any
// normalizer or extractor work so abusive traffic never spends AI budget,
// and a consumed slot stays consumed even if the caller disconnects.
func (s *Service) Grade(ctx context.Context, rawIP, userAgent string, source []byte, mimeType string) (domain.Scorecard, error) {
	decision := s.limiter.CheckAndConsume(ctx, rawIP, userAgent)
	if !decision.Allowed {
		return domain.Scorecard{}, &RateLimitedError{RetryAfterSeconds: s.limiter.RetryAfterSeconds()}
	}

	sub := domain.Submission{
		IdentityKey: ratelimit.IdentityKey(rawIP, userAgent),
		SubmittedAt: s.now().UTC(),
		Source:      source,
		MIMEType:    mimeType,
	}
	checks, err := s.run(ctx, s.publicNorm, sub, domain.DefaultPublicPolicy())
	if err != nil {
		return domain.Scorecard{}, err
	}
	card := evaluator.Score(checks)
	// The hashed identity is the only caller trace this flow leaves.
	s.log.Info("anonymous submission graded",
		"identity_key", sub.IdentityKey,
		"submitted_at", sub.SubmittedAt,
		"insufficient_data", card.InsufficientData)
	return card, nil
}

// VendorCheck runs the org-scoped flow and appends a Snapshot. The audit
// entry is attempted regardless of how the snapshot write goes, and vice
// versa: the two final writes are independent.
func (s *Service) VendorCheck(ctx context.Context, orgID, vendorID, userID string, source []byte, mimeType string) (domain.Snapshot, error) {
	active, err := s.subs.Active(ctx, orgID)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("subscription check: %w", err)
	}
	if !active {
		return domain.Snapshot{}, ErrSubscriptionRequired
	}

	policy, err := s.policies.GetByOrg(ctx, orgID)
	if errors.Is(err, domain.ErrPolicyNotFound) {
		policy = domain.DefaultPublicPolicy()
	} else if err != nil {
		return domain.Snapshot{}, fmt.Errorf("load policy: %w", err)
	}

	sub := domain.Submission{SubmittedAt: s.now().UTC(), Source: source, MIMEType: mimeType}
	checks, err := s.run(ctx, s.vendorNorm, sub, policy)
	if err != nil {
		return domain.Snapshot{}, err
	}
	card := evaluator.Score(checks)

	now := sub.SubmittedAt
	snap := domain.Snapshot{
		ID:               uuid.NewString(),
		OrgID:            orgID,
		VendorID:         vendorID,
		SnapshotDate:     now.Truncate(24 * time.Hour),
		Checks:           card.Checks,
		Score:            card.Score,
		InsufficientData: card.InsufficientData,
		CreatedBy:        userID,
		CreatedAt:        now,
	}

	s.audit.Record("vendor_compliance_check", orgID, userID, map[string]string{
		"vendor_id":   vendorID,
		"snapshot_id": snap.ID,
	})

	if err := s.snapshots.Insert(ctx, snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: %v", ErrSnapshotWrite, err)
	}
	return snap, nil
}

// run is the shared middle of both flows: normalize, extract, evaluate.
// The submission and its page images die with this call; only checks
// survive.
func (s *Service) run(ctx context.Context, norm ports.Normalizer, sub domain.Submission, policy domain.RequirementPolicy) ([]domain.CheckResult, error) {
	pages, err := norm.Normalize(ctx, sub.Source, sub.MIMEType)
	if err != nil {
		return nil, err
	}
	s.log.Debug("document normalized", "pages", len(pages), "mime", sub.MIMEType)

	fields, err := s.extractor.Extract(ctx, pages)
	if err != nil {
		return nil, err
	}
	return evaluator.Evaluate(fields, policy), nil
}
