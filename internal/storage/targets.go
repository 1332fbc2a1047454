package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	listArmedTargetsSQL = `SELECT id, symbol, target_price, target_cmp, target_alert, created_ts, updated_ts
    FROM user_targets
    WHERE symbol = $1 AND target_alert = TRUE
    ORDER BY id;`

	listTargetsSQL = `SELECT id, symbol, target_price, target_cmp, target_alert, created_ts, updated_ts
    FROM user_targets
    WHERE symbol = $1
    ORDER BY created_ts DESC;`

	insertTargetSQL = `INSERT INTO user_targets (symbol, target_price, target_cmp, target_alert, created_ts, updated_ts)
    VALUES ($1,$2,$3,TRUE,$4,$4)
    RETURNING id;`

	updateTargetSQL = `UPDATE user_targets
    SET target_price = $2, target_cmp = $3, target_alert = $4, updated_ts = $5
    WHERE id = $1;`

	deleteTargetSQL = `DELETE FROM user_targets WHERE id = $1;`

	disarmTargetSQL = `UPDATE user_targets SET target_alert = FALSE, updated_ts = $2 WHERE id = $1;`
)

// TargetStore defines operations on absolute target-price configs.
type TargetStore interface {
	ListArmedTargets(ctx context.Context, symbol string) ([]TargetConfig, error)
	ListTargets(ctx context.Context, symbol string) ([]TargetConfig, error)
	InsertTarget(ctx context.Context, target TargetConfig) (int64, error)
	UpdateTarget(ctx context.Context, target TargetConfig) error
	DeleteTarget(ctx context.Context, id int64) error
	FireTarget(ctx context.Context, targetID int64, alert AlertRecord) error
}

// ListArmedTargets loads configs still eligible to fire.
func (s *Store) ListArmedTargets(ctx context.Context, symbol string) ([]TargetConfig, error) {
	return s.queryTargets(ctx, listArmedTargetsSQL, symbol)
}

// ListTargets loads every config for a symbol, newest first.
func (s *Store) ListTargets(ctx context.Context, symbol string) ([]TargetConfig, error) {
	return s.queryTargets(ctx, listTargetsSQL, symbol)
}

// InsertTarget creates a new armed config.
func (s *Store) InsertTarget(ctx context.Context, target TargetConfig) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	var id int64
	if scanErr := pool.QueryRow(ctx, insertTargetSQL,
		target.Symbol, target.TargetPrice.String(), target.Cmp, now,
	).Scan(&id); scanErr != nil {
		return 0, fmt.Errorf("insert target: %w", scanErr)
	}
	return id, nil
}

// UpdateTarget rewrites price/comparator/armed state. Re-arming a fired
// target happens through this path.
func (s *Store) UpdateTarget(ctx context.Context, target TargetConfig) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tag, execErr := pool.Exec(ctx, updateTargetSQL,
		target.ID, target.TargetPrice.String(), target.Cmp, target.Armed, time.Now().UTC())
	if execErr != nil {
		return fmt.Errorf("update target: %w", execErr)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteTarget removes a config.
func (s *Store) DeleteTarget(ctx context.Context, id int64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteTargetSQL, id); execErr != nil {
		return fmt.Errorf("delete target: %w", execErr)
	}
	return nil
}

// FireTarget atomically writes the audit row and disarms the config in one
// transaction. 事务失败时配置保持 armed，下个周期自然重试，
// 保证单次武装至多触发一次。
func (s *Store) FireTarget(ctx context.Context, targetID int64, alert AlertRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tx, txErr := pool.Begin(ctx)
	if txErr != nil {
		return fmt.Errorf("begin fire target: %w", txErr)
	}
	defer tx.Rollback(ctx)

	var id int64
	if scanErr := tx.QueryRow(ctx, insertAlertSQL, alertArgs(alert)...).Scan(&id); scanErr != nil {
		return fmt.Errorf("fire target insert alert: %w", scanErr)
	}
	if _, execErr := tx.Exec(ctx, disarmTargetSQL, targetID, alert.TS); execErr != nil {
		return fmt.Errorf("fire target disarm: %w", execErr)
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return fmt.Errorf("commit fire target: %w", commitErr)
	}
	return nil
}

func (s *Store) queryTargets(ctx context.Context, query, symbol string) ([]TargetConfig, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, query, symbol)
	if queryErr != nil {
		return nil, fmt.Errorf("list targets: %w", queryErr)
	}
	defer rows.Close()

	targets := make([]TargetConfig, 0)
	for rows.Next() {
		var (
			target   TargetConfig
			priceStr string
		)
		if scanErr := rows.Scan(&target.ID, &target.Symbol, &priceStr, &target.Cmp,
			&target.Armed, &target.CreatedTS, &target.UpdatedTS); scanErr != nil {
			return nil, scanErr
		}
		price, convErr := parseDecimal(priceStr, "target price")
		if convErr != nil {
			return nil, convErr
		}
		target.TargetPrice = price
		targets = append(targets, target)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return targets, nil
}
