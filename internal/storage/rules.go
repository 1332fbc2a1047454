package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	listRuleConfigsSQL = `SELECT id, symbol, created_by, rise_1, rise_2, rise_3, fall_1, fall_2, fall_3
    FROM user_configs
    WHERE symbol = $1
    ORDER BY created_by;`

	upsertRuleConfigSQL = `INSERT INTO user_configs (symbol, created_by, rise_1, rise_2, rise_3, fall_1, fall_2, fall_3)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    ON CONFLICT (symbol, created_by) DO UPDATE
    SET rise_1 = EXCLUDED.rise_1,
        rise_2 = EXCLUDED.rise_2,
        rise_3 = EXCLUDED.rise_3,
        fall_1 = EXCLUDED.fall_1,
        fall_2 = EXCLUDED.fall_2,
        fall_3 = EXCLUDED.fall_3;`
)

// RuleConfigStore defines operations on subscriber threshold configs.
type RuleConfigStore interface {
	ListRuleConfigs(ctx context.Context, symbol string) ([]RuleConfig, error)
	UpsertRuleConfig(ctx context.Context, cfg RuleConfig) error
}

// ListRuleConfigs loads every subscriber config for a symbol.
func (s *Store) ListRuleConfigs(ctx context.Context, symbol string) ([]RuleConfig, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRuleConfigsSQL, symbol)
	if queryErr != nil {
		return nil, fmt.Errorf("list rule configs: %w", queryErr)
	}
	defer rows.Close()

	configs := make([]RuleConfig, 0)
	for rows.Next() {
		cfg, scanErr := scanRuleConfig(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		configs = append(configs, cfg)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return configs, nil
}

// UpsertRuleConfig writes one (symbol, owner) config row. Threshold ordering
// between slots is the caller's responsibility; only nil/positive values are
// expected here.
func (s *Store) UpsertRuleConfig(ctx context.Context, cfg RuleConfig) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	if _, execErr := pool.Exec(ctx, upsertRuleConfigSQL,
		cfg.Symbol,
		cfg.CreatedBy,
		decimalArg(cfg.Rise[0]), decimalArg(cfg.Rise[1]), decimalArg(cfg.Rise[2]),
		decimalArg(cfg.Fall[0]), decimalArg(cfg.Fall[1]), decimalArg(cfg.Fall[2]),
	); execErr != nil {
		return fmt.Errorf("upsert rule config: %w", execErr)
	}
	return nil
}

func scanRuleConfig(row pgx.Row) (RuleConfig, error) {
	var (
		cfg   RuleConfig
		slots [6]sql.NullString
	)
	if err := row.Scan(&cfg.ID, &cfg.Symbol, &cfg.CreatedBy,
		&slots[0], &slots[1], &slots[2], &slots[3], &slots[4], &slots[5]); err != nil {
		return RuleConfig{}, err
	}

	for i := 0; i < 3; i++ {
		rise, err := decimalPtr(slots[i])
		if err != nil {
			return RuleConfig{}, fmt.Errorf("parse rise_%d: %w", i+1, err)
		}
		cfg.Rise[i] = rise

		fall, err := decimalPtr(slots[i+3])
		if err != nil {
			return RuleConfig{}, fmt.Errorf("parse fall_%d: %w", i+1, err)
		}
		cfg.Fall[i] = fall
	}
	return cfg, nil
}

func decimalPtr(v sql.NullString) (*decimal.Decimal, error) {
	if !v.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func decimalArg(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

func parseDecimal(v, field string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse %s: %w", field, err)
	}
	return d, nil
}
