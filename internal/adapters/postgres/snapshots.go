package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"coverly/internal/domain"
)

// SnapshotRepository

// Insert appends one snapshot. A single-row insert: either the whole
// snapshot lands or nothing does. Rows are never updated afterward.
func (db *DB) Insert(ctx context.Context, snap domain.Snapshot) error {
	checks, err := json.Marshal(snap.Checks)
	if err != nil {
		return fmt.Errorf("encode checks: %w", err)
	}
	_, err = db.Pool.Exec(ctx, `
        INSERT INTO compliance_snapshots
            (id, org_id, vendor_id, snapshot_date, checks, score, insufficient_data, created_by, created_at)
        VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9)
    `, snap.ID, snap.OrgID, snap.VendorID, snap.SnapshotDate, string(checks),
		snap.Score, snap.InsufficientData, snap.CreatedBy, snap.CreatedAt)
	return err
}

// List returns snapshots for an org, newest first. Zero-value filters are
// skipped; provided ones apply conjunctively.
func (db *DB) List(ctx context.Context, orgID string, vendorID string, from, to *time.Time, limit int) ([]domain.Snapshot, error) {
	q := `
        SELECT id, org_id, vendor_id, snapshot_date, checks, score, insufficient_data, created_by, created_at
        FROM compliance_snapshots
        WHERE org_id = $1`
	args := []any{orgID}
	if vendorID != "" {
		args = append(args, vendorID)
		q += fmt.Sprintf(" AND vendor_id = $%d", len(args))
	}
	if from != nil {
		args = append(args, *from)
		q += fmt.Sprintf(" AND snapshot_date >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		q += fmt.Sprintf(" AND snapshot_date <= $%d", len(args))
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY snapshot_date DESC, created_at DESC LIMIT $%d", len(args))

	rows, err := db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Snapshot
	for rows.Next() {
		var snap domain.Snapshot
		var checks []byte
		if err := rows.Scan(&snap.ID, &snap.OrgID, &snap.VendorID, &snap.SnapshotDate,
			&checks, &snap.Score, &snap.InsufficientData, &snap.CreatedBy, &snap.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(checks, &snap.Checks); err != nil {
			return nil, fmt.Errorf("decode checks for %s: %w", snap.ID, err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}
