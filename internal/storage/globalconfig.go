package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const (
	getGlobalConfigSQL = `SELECT symbol, market_status, rise_1, rise_2, rise_3, fall_1, fall_2, fall_3, updated_ts
    FROM global_configs
    WHERE symbol = $1;`

	upsertGlobalConfigSQL = `INSERT INTO global_configs (symbol, market_status, rise_1, rise_2, rise_3, fall_1, fall_2, fall_3, updated_ts)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
    ON CONFLICT (symbol) DO UPDATE
    SET market_status = EXCLUDED.market_status,
        rise_1 = EXCLUDED.rise_1,
        rise_2 = EXCLUDED.rise_2,
        rise_3 = EXCLUDED.rise_3,
        fall_1 = EXCLUDED.fall_1,
        fall_2 = EXCLUDED.fall_2,
        fall_3 = EXCLUDED.fall_3,
        updated_ts = now();`
)

// GlobalConfigStore defines operations on per-symbol market state.
type GlobalConfigStore interface {
	GetGlobalConfig(ctx context.Context, symbol string) (*GlobalConfig, error)
	UpsertGlobalConfig(ctx context.Context, cfg GlobalConfig) error
}

// GetGlobalConfig loads the market-status row for a symbol. Returns nil
// without error when no row exists; callers treat that as market closed.
func (s *Store) GetGlobalConfig(ctx context.Context, symbol string) (*GlobalConfig, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var (
		cfg   GlobalConfig
		slots [6]sql.NullString
	)
	scanErr := pool.QueryRow(ctx, getGlobalConfigSQL, symbol).Scan(
		&cfg.Symbol, &cfg.MarketStatus,
		&slots[0], &slots[1], &slots[2], &slots[3], &slots[4], &slots[5],
		&cfg.UpdatedTS,
	)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get global config: %w", scanErr)
	}

	for i := 0; i < 3; i++ {
		rise, parseErr := decimalPtr(slots[i])
		if parseErr != nil {
			return nil, fmt.Errorf("parse rise_%d: %w", i+1, parseErr)
		}
		cfg.Rise[i] = rise

		fall, parseErr := decimalPtr(slots[i+3])
		if parseErr != nil {
			return nil, fmt.Errorf("parse fall_%d: %w", i+1, parseErr)
		}
		cfg.Fall[i] = fall
	}
	return &cfg, nil
}

// UpsertGlobalConfig writes the market-status row for a symbol.
func (s *Store) UpsertGlobalConfig(ctx context.Context, cfg GlobalConfig) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	if _, execErr := pool.Exec(ctx, upsertGlobalConfigSQL,
		cfg.Symbol,
		cfg.MarketStatus,
		decimalArg(cfg.Rise[0]), decimalArg(cfg.Rise[1]), decimalArg(cfg.Rise[2]),
		decimalArg(cfg.Fall[0]), decimalArg(cfg.Fall[1]), decimalArg(cfg.Fall[2]),
	); execErr != nil {
		return fmt.Errorf("upsert global config: %w", execErr)
	}
	return nil
}
