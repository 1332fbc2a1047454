package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const (
	getMarkerSQL = `SELECT v FROM kv_markers WHERE k = $1;`

	setMarkerSQL = `INSERT INTO kv_markers (k, v, updated_ts)
    VALUES ($1, $2, now())
    ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v, updated_ts = now();`
)

// MarkerStore is a tiny key-value table used for once-daily idempotency
// gates (cleanup/report date markers).
type MarkerStore interface {
	GetMarker(ctx context.Context, key string) (string, error)
	SetMarker(ctx context.Context, key, value string) error
}

// GetMarker returns the stored value for key, or "" when the key has never
// been written.
func (s *Store) GetMarker(ctx context.Context, key string) (string, error) {
	pool, err := s.getPool()
	if err != nil {
		return "", err
	}

	var value string
	scanErr := pool.QueryRow(ctx, getMarkerSQL, key).Scan(&value)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get marker %s: %w", key, scanErr)
	}
	return value, nil
}

// SetMarker upserts the value for key.
func (s *Store) SetMarker(ctx context.Context, key, value string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, setMarkerSQL, key, value); execErr != nil {
		return fmt.Errorf("set marker %s: %w", key, execErr)
	}
	return nil
}
