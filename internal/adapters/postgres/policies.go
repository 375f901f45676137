package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"coverly/internal/domain"
)

// PolicyRepository

// policyRow is the stored requirement shape. Kept separate from the
// domain type so schema drift shows up here, not in the evaluator.
type policyRow struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	CoverageType string `json:"coverage_type"`
	FieldName    string `json:"field_name"`
	Comparison   string `json:"comparison"`
	Threshold    string `json:"threshold,omitempty"`
	Mandatory    bool   `json:"mandatory"`
}

func (db *DB) GetByOrg(ctx context.Context, orgID string) (domain.RequirementPolicy, error) {
	var policyID string
	var raw []byte
	err := db.Pool.QueryRow(ctx, `
        SELECT id, requirements FROM requirement_policies WHERE org_id = $1
    `, orgID).Scan(&policyID, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RequirementPolicy{}, domain.ErrPolicyNotFound
	}
	if err != nil {
		return domain.RequirementPolicy{}, err
	}

	var rows []policyRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return domain.RequirementPolicy{}, fmt.Errorf("decode policy %s: %w", policyID, err)
	}
	policy := domain.RequirementPolicy{ID: policyID, OrgID: orgID}
	for _, r := range rows {
		policy.Requirements = append(policy.Requirements, domain.Requirement{
			ID:           r.ID,
			Label:        r.Label,
			CoverageType: r.CoverageType,
			FieldName:    r.FieldName,
			Comparison:   domain.Comparison(r.Comparison),
			Threshold:    r.Threshold,
			Mandatory:    r.Mandatory,
		})
	}
	return policy, nil
}
