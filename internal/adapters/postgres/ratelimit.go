package postgres

import (
	"context"
	"time"
)

// RateLimitRepository

// Consume counts allowed hits in the window and records a new one when a
// slot is free, in a single statement so the check and the increment
// cannot be split by a concurrent caller. Under an extreme race two
// callers may both land the last slot (the count each sees excludes the
// other's uncommitted insert); that overcounts toward availability, which
// is the acceptable direction. Denied attempts insert nothing, so a
// blocked caller's retries never extend their own block.
func (db *DB) Consume(ctx context.Context, key string, windowStart time.Time, max int) (bool, int, error) {
	var used int
	var allowed bool
	err := db.Pool.QueryRow(ctx, `
        WITH w AS (
            SELECT count(*)::int AS used
            FROM rate_limit_hits
            WHERE identity_key = $1 AND hit_at >= $2
        ), ins AS (
            INSERT INTO rate_limit_hits (identity_key)
            SELECT $1 WHERE (SELECT used FROM w) < $3
            RETURNING 1
        )
        SELECT (SELECT used FROM w), EXISTS (SELECT 1 FROM ins)
    `, key, windowStart, max).Scan(&used, &allowed)
	if err != nil {
		return false, 0, err
	}
	return allowed, used, nil
}
