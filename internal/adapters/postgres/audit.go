package postgres

import (
	"context"
	"encoding/json"

	"coverly/internal/domain"
)

// AuditRepository

func (db *DB) InsertAudit(ctx context.Context, entry domain.AuditEntry) error {
	var metadata []byte
	if entry.Metadata != nil {
		metadata, _ = json.Marshal(entry.Metadata)
	}
	_, err := db.Pool.Exec(ctx, `
        INSERT INTO audit_entries (action, org_id, user_id, metadata, created_at)
        VALUES ($1, $2, $3, $4::jsonb, $5)
    `, entry.Action, entry.OrgID, entry.UserID, metadata, entry.At)
	return err
}
