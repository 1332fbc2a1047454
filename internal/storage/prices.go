package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	insertPriceSQL = `INSERT INTO prices (symbol, ts, price, xau_price, source)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING id;`

	listPricesBetweenSQL = `SELECT id, symbol, ts, price, xau_price, source
    FROM prices
    WHERE symbol = $1 AND ts >= $2 AND ts <= $3
    ORDER BY ts DESC;`

	listRecentPricesSQL = `SELECT id, symbol, ts, price, xau_price, source
    FROM prices
    WHERE symbol = $1
    ORDER BY ts DESC
    LIMIT $2;`

	latestPriceSQL = `SELECT id, symbol, ts, price, xau_price, source
    FROM prices
    WHERE symbol = $1
    ORDER BY ts DESC
    LIMIT 1;`

	lastPriceInRangeSQL = `SELECT id, symbol, ts, price, xau_price, source
    FROM prices
    WHERE symbol = $1 AND ts >= $2 AND ts < $3
    ORDER BY ts DESC
    LIMIT 1;`

	lastPriceAtOrBeforeSQL = `SELECT id, symbol, ts, price, xau_price, source
    FROM prices
    WHERE symbol = $1 AND ts <= $2
    ORDER BY ts DESC
    LIMIT 1;`

	deletePricesBeforeSQL = `DELETE FROM prices WHERE ts < $1;`
)

// PriceStore defines operations on the minute price log.
type PriceStore interface {
	InsertPrice(ctx context.Context, sample PriceSample) error
	ListPricesBetween(ctx context.Context, symbol string, from, to time.Time) ([]PriceSample, error)
	ListRecentPrices(ctx context.Context, symbol string, limit int) ([]PriceSample, error)
	LatestPrice(ctx context.Context, symbol string) (*PriceSample, error)
	LastPriceInRange(ctx context.Context, symbol string, from, before time.Time) (*PriceSample, error)
	LastPriceAtOrBefore(ctx context.Context, symbol string, at time.Time) (*PriceSample, error)
	DeletePricesBefore(ctx context.Context, olderThan time.Time) (int64, error)
}

// InsertPrice appends a minute sample. Samples are immutable once written.
func (s *Store) InsertPrice(ctx context.Context, sample PriceSample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var id int64
	if scanErr := pool.QueryRow(ctx, insertPriceSQL,
		sample.Symbol,
		sample.TS,
		sample.Price.String(),
		sample.XAUPrice.String(),
		sample.Source,
	).Scan(&id); scanErr != nil {
		return fmt.Errorf("insert price: %w", scanErr)
	}
	return nil
}

// ListPricesBetween lists samples within [from, to], newest first.
func (s *Store) ListPricesBetween(ctx context.Context, symbol string, from, to time.Time) ([]PriceSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listPricesBetweenSQL, symbol, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list prices between: %w", queryErr)
	}
	defer rows.Close()

	return collectPrices(rows)
}

// ListRecentPrices lists the most recent samples, newest first.
func (s *Store) ListRecentPrices(ctx context.Context, symbol string, limit int) ([]PriceSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentPricesSQL, symbol, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent prices: %w", queryErr)
	}
	defer rows.Close()

	return collectPrices(rows)
}

// LatestPrice returns the newest sample, or nil when none exist.
func (s *Store) LatestPrice(ctx context.Context, symbol string) (*PriceSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	return scanOptionalPrice(pool.QueryRow(ctx, latestPriceSQL, symbol))
}

// LastPriceInRange returns the newest sample with from <= ts < before, or nil.
// 用于取“昨日收盘价”：窗口为昨日零点到今日零点。
func (s *Store) LastPriceInRange(ctx context.Context, symbol string, from, before time.Time) (*PriceSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	return scanOptionalPrice(pool.QueryRow(ctx, lastPriceInRangeSQL, symbol, from, before))
}

// LastPriceAtOrBefore returns the newest sample with ts <= at, or nil.
func (s *Store) LastPriceAtOrBefore(ctx context.Context, symbol string, at time.Time) (*PriceSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	return scanOptionalPrice(pool.QueryRow(ctx, lastPriceAtOrBeforeSQL, symbol, at))
}

// DeletePricesBefore removes samples older than the retention cutoff.
func (s *Store) DeletePricesBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	tag, execErr := pool.Exec(ctx, deletePricesBeforeSQL, olderThan)
	if execErr != nil {
		return 0, fmt.Errorf("delete prices before: %w", execErr)
	}
	return tag.RowsAffected(), nil
}

func collectPrices(rows pgx.Rows) ([]PriceSample, error) {
	samples := make([]PriceSample, 0)
	for rows.Next() {
		sample, scanErr := scanPrice(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

func scanPrice(row pgx.Row) (PriceSample, error) {
	var (
		sample   PriceSample
		priceStr string
		xauStr   string
	)
	if err := row.Scan(&sample.ID, &sample.Symbol, &sample.TS, &priceStr, &xauStr, &sample.Source); err != nil {
		return PriceSample{}, err
	}

	var convErr error
	sample.Price, convErr = decimal.NewFromString(priceStr)
	if convErr != nil {
		return PriceSample{}, fmt.Errorf("parse price: %w", convErr)
	}
	sample.XAUPrice, convErr = decimal.NewFromString(xauStr)
	if convErr != nil {
		return PriceSample{}, fmt.Errorf("parse xau price: %w", convErr)
	}
	return sample, nil
}

func scanOptionalPrice(row pgx.Row) (*PriceSample, error) {
	sample, err := scanPrice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query price: %w", err)
	}
	return &sample, nil
}
