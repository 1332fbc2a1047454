package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"goldwatcher/internal/aggregate"
)

const (
	getDailySQL = `SELECT symbol, day_ts, max_price, min_price, max_ts, min_ts, last_updated
    FROM daily_prices
    WHERE symbol = $1 AND day_ts = $2;`

	insertDailySQL = `INSERT INTO daily_prices (symbol, day_ts, max_price, min_price, max_ts, min_ts, last_updated)
    VALUES ($1,$2,$3,$4,$5,$6,$7);`

	updateDailyMaxSQL = `UPDATE daily_prices
    SET max_price = $3, max_ts = $4, last_updated = $5
    WHERE symbol = $1 AND day_ts = $2;`

	updateDailyMinSQL = `UPDATE daily_prices
    SET min_price = $3, min_ts = $4, last_updated = $5
    WHERE symbol = $1 AND day_ts = $2;`

	updateDailyBothSQL = `UPDATE daily_prices
    SET max_price = $3, max_ts = $4, min_price = $5, min_ts = $6, last_updated = $7
    WHERE symbol = $1 AND day_ts = $2;`

	listRecentDailySQL = `SELECT symbol, day_ts, max_price, min_price, max_ts, min_ts, last_updated
    FROM daily_prices
    WHERE symbol = $1
    ORDER BY day_ts DESC
    LIMIT $2;`

	listDailyBetweenSQL = `SELECT symbol, day_ts, max_price, min_price, max_ts, min_ts, last_updated
    FROM daily_prices
    WHERE symbol = $1 AND day_ts >= $2 AND day_ts <= $3
    ORDER BY day_ts DESC;`

	deleteDailyBeforeSQL = `DELETE FROM daily_prices WHERE day_ts < $1;`
)

// DailyStore defines operations on per-day high/low aggregates.
type DailyStore interface {
	GetDaily(ctx context.Context, symbol string, dayTS time.Time) (*aggregate.Daily, error)
	InsertDaily(ctx context.Context, row aggregate.Daily) error
	ApplyDailyChange(ctx context.Context, symbol string, dayTS time.Time, change aggregate.Change, updated time.Time) error
	ListRecentDaily(ctx context.Context, symbol string, limit int) ([]aggregate.Daily, error)
	ListDailyBetween(ctx context.Context, symbol string, from, to time.Time) ([]aggregate.Daily, error)
	DeleteDailyBefore(ctx context.Context, olderThan time.Time) (int64, error)
}

// GetDaily fetches the aggregate row for one local day, or nil if absent.
func (s *Store) GetDaily(ctx context.Context, symbol string, dayTS time.Time) (*aggregate.Daily, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	row, scanErr := scanDaily(pool.QueryRow(ctx, getDailySQL, symbol, dayTS))
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get daily aggregate: %w", scanErr)
	}
	return &row, nil
}

// InsertDaily creates the aggregate row for the first sample of a day.
func (s *Store) InsertDaily(ctx context.Context, row aggregate.Daily) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	if _, execErr := pool.Exec(ctx, insertDailySQL,
		row.Symbol,
		row.DayTS,
		row.MaxPrice.String(),
		row.MinPrice.String(),
		row.MaxTS,
		row.MinTS,
		row.LastUpdated,
	); execErr != nil {
		return fmt.Errorf("insert daily aggregate: %w", execErr)
	}
	return nil
}

// ApplyDailyChange updates only the columns the change variant names.
// NoChange 不发任何 SQL。
func (s *Store) ApplyDailyChange(ctx context.Context, symbol string, dayTS time.Time, change aggregate.Change, updated time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var execErr error
	switch change.Kind {
	case aggregate.NoChange:
		return nil
	case aggregate.NewMax:
		_, execErr = pool.Exec(ctx, updateDailyMaxSQL, symbol, dayTS, change.MaxPrice.String(), change.MaxTS, updated)
	case aggregate.NewMin:
		_, execErr = pool.Exec(ctx, updateDailyMinSQL, symbol, dayTS, change.MinPrice.String(), change.MinTS, updated)
	case aggregate.NewBoth:
		_, execErr = pool.Exec(ctx, updateDailyBothSQL, symbol, dayTS,
			change.MaxPrice.String(), change.MaxTS, change.MinPrice.String(), change.MinTS, updated)
	default:
		return fmt.Errorf("unknown aggregate change kind %d", change.Kind)
	}
	if execErr != nil {
		return fmt.Errorf("apply daily change: %w", execErr)
	}
	return nil
}

// ListRecentDaily lists the most recent day rows, newest first.
func (s *Store) ListRecentDaily(ctx context.Context, symbol string, limit int) ([]aggregate.Daily, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentDailySQL, symbol, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent daily: %w", queryErr)
	}
	defer rows.Close()

	return collectDaily(rows)
}

// ListDailyBetween lists day rows within [from, to], newest first.
func (s *Store) ListDailyBetween(ctx context.Context, symbol string, from, to time.Time) ([]aggregate.Daily, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listDailyBetweenSQL, symbol, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list daily between: %w", queryErr)
	}
	defer rows.Close()

	return collectDaily(rows)
}

// DeleteDailyBefore removes aggregates whose day bucket precedes the cutoff.
func (s *Store) DeleteDailyBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	tag, execErr := pool.Exec(ctx, deleteDailyBeforeSQL, olderThan)
	if execErr != nil {
		return 0, fmt.Errorf("delete daily before: %w", execErr)
	}
	return tag.RowsAffected(), nil
}

func collectDaily(rows pgx.Rows) ([]aggregate.Daily, error) {
	result := make([]aggregate.Daily, 0)
	for rows.Next() {
		row, scanErr := scanDaily(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		result = append(result, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return result, nil
}

func scanDaily(row pgx.Row) (aggregate.Daily, error) {
	var (
		daily  aggregate.Daily
		maxStr string
		minStr string
	)
	if err := row.Scan(&daily.Symbol, &daily.DayTS, &maxStr, &minStr, &daily.MaxTS, &daily.MinTS, &daily.LastUpdated); err != nil {
		return aggregate.Daily{}, err
	}

	var convErr error
	daily.MaxPrice, convErr = decimal.NewFromString(maxStr)
	if convErr != nil {
		return aggregate.Daily{}, fmt.Errorf("parse max price: %w", convErr)
	}
	daily.MinPrice, convErr = decimal.NewFromString(minStr)
	if convErr != nil {
		return aggregate.Daily{}, fmt.Errorf("parse min price: %w", convErr)
	}
	return daily, nil
}
