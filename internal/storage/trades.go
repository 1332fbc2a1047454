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
	insertTradeSQL = `INSERT INTO trades (ts, symbol, side, price, qty, note)
    VALUES ($1,$2,$3,$4,$5,$6)
    RETURNING id;`

	listTradesBetweenSQL = `SELECT id, ts, symbol, side, price, qty, note
    FROM trades
    WHERE symbol = $1 AND ts >= $2 AND ts <= $3
    ORDER BY ts ASC;`

	activeBuyPriceSQL = `SELECT price FROM trades
    WHERE symbol = $1 AND side = 'BUY'
      AND ts > COALESCE(
        (SELECT MAX(ts) FROM trades WHERE symbol = $1 AND side = 'SELL'),
        'epoch'::timestamptz
      )
    ORDER BY ts DESC
    LIMIT 1;`

	deleteTradesBeforeSQL = `DELETE FROM trades WHERE ts < $1;`

	getHoldingSQL = `SELECT symbol, total_qty, total_cost, avg_price, realized_profit, updated_ts
    FROM holdings
    WHERE symbol = $1;`

	upsertHoldingSQL = `INSERT INTO holdings (symbol, total_qty, total_cost, avg_price, realized_profit, updated_ts)
    VALUES ($1,$2,$3,$4,$5,$6)
    ON CONFLICT (symbol) DO UPDATE
    SET total_qty       = EXCLUDED.total_qty,
        total_cost      = EXCLUDED.total_cost,
        avg_price       = EXCLUDED.avg_price,
        realized_profit = EXCLUDED.realized_profit,
        updated_ts      = EXCLUDED.updated_ts;`
)

// TradeStore defines operations on the buy/sell ledger. The alert engine
// only ever reads from it (ActiveBuyPrice).
type TradeStore interface {
	RecordTrade(ctx context.Context, trade Trade) (int64, error)
	ListTradesBetween(ctx context.Context, symbol string, from, to time.Time) ([]Trade, error)
	ActiveBuyPrice(ctx context.Context, symbol string) (*decimal.Decimal, error)
	GetHolding(ctx context.Context, symbol string) (*Holding, error)
	DeleteTradesBefore(ctx context.Context, olderThan time.Time) (int64, error)
}

// RecordTrade inserts a ledger row and folds it into the holdings summary in
// one transaction. Selling more than the current holding is rejected with
// ErrInsufficientHolding.
func (s *Store) RecordTrade(ctx context.Context, trade Trade) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	if trade.Side != SideBuy && trade.Side != SideSell {
		return 0, fmt.Errorf("invalid trade side %q", trade.Side)
	}

	tx, txErr := pool.Begin(ctx)
	if txErr != nil {
		return 0, fmt.Errorf("begin record trade: %w", txErr)
	}
	defer tx.Rollback(ctx)

	holding, holdErr := scanHolding(tx.QueryRow(ctx, getHoldingSQL, trade.Symbol))
	if holdErr != nil && !errors.Is(holdErr, pgx.ErrNoRows) {
		return 0, fmt.Errorf("load holding: %w", holdErr)
	}
	if errors.Is(holdErr, pgx.ErrNoRows) {
		holding = Holding{Symbol: trade.Symbol}
	}

	folded, foldErr := foldTrade(holding, trade)
	if foldErr != nil {
		return 0, foldErr
	}
	folded.UpdatedTS = trade.TS

	var id int64
	if scanErr := tx.QueryRow(ctx, insertTradeSQL,
		trade.TS, trade.Symbol, trade.Side, trade.Price.String(), trade.Qty.String(), trade.Note,
	).Scan(&id); scanErr != nil {
		return 0, fmt.Errorf("insert trade: %w", scanErr)
	}

	if _, execErr := tx.Exec(ctx, upsertHoldingSQL,
		folded.Symbol,
		folded.TotalQty.String(),
		folded.TotalCost.String(),
		folded.AvgPrice.String(),
		folded.RealizedProfit.String(),
		folded.UpdatedTS,
	); execErr != nil {
		return 0, fmt.Errorf("upsert holding: %w", execErr)
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return 0, fmt.Errorf("commit record trade: %w", commitErr)
	}
	return id, nil
}

// foldTrade applies one ledger row to the holdings summary.
// 卖出按平均成本扣减，已实现盈亏 = (卖出价 - 平均成本) × 数量。
func foldTrade(holding Holding, trade Trade) (Holding, error) {
	switch trade.Side {
	case SideBuy:
		holding.TotalQty = holding.TotalQty.Add(trade.Qty)
		holding.TotalCost = holding.TotalCost.Add(trade.Price.Mul(trade.Qty))
	case SideSell:
		if holding.TotalQty.LessThan(trade.Qty) {
			return Holding{}, fmt.Errorf("%w: holding %s, selling %s",
				ErrInsufficientHolding, holding.TotalQty, trade.Qty)
		}
		profit := trade.Price.Sub(holding.AvgPrice).Mul(trade.Qty)
		holding.RealizedProfit = holding.RealizedProfit.Add(profit)
		holding.TotalQty = holding.TotalQty.Sub(trade.Qty)
		holding.TotalCost = holding.TotalCost.Sub(holding.AvgPrice.Mul(trade.Qty))
	}

	if holding.TotalQty.Sign() > 0 {
		holding.AvgPrice = holding.TotalCost.Div(holding.TotalQty)
	} else {
		holding.AvgPrice = decimal.Zero
		holding.TotalCost = decimal.Zero
	}
	return holding, nil
}

// ListTradesBetween lists ledger rows within [from, to], oldest first.
func (s *Store) ListTradesBetween(ctx context.Context, symbol string, from, to time.Time) ([]Trade, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listTradesBetweenSQL, symbol, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list trades between: %w", queryErr)
	}
	defer rows.Close()

	trades := make([]Trade, 0)
	for rows.Next() {
		var (
			trade    Trade
			priceStr string
			qtyStr   string
		)
		if scanErr := rows.Scan(&trade.ID, &trade.TS, &trade.Symbol, &trade.Side,
			&priceStr, &qtyStr, &trade.Note); scanErr != nil {
			return nil, scanErr
		}
		price, convErr := parseDecimal(priceStr, "trade price")
		if convErr != nil {
			return nil, convErr
		}
		qty, convErr := parseDecimal(qtyStr, "trade qty")
		if convErr != nil {
			return nil, convErr
		}
		trade.Price = price
		trade.Qty = qty
		trades = append(trades, trade)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return trades, nil
}

// ActiveBuyPrice resolves the open-position entry price: the most recent BUY
// strictly after the most recent SELL. Returns nil with no open position.
func (s *Store) ActiveBuyPrice(ctx context.Context, symbol string) (*decimal.Decimal, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var priceStr string
	if scanErr := pool.QueryRow(ctx, activeBuyPriceSQL, symbol).Scan(&priceStr); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("active buy price: %w", scanErr)
	}

	price, convErr := parseDecimal(priceStr, "active buy price")
	if convErr != nil {
		return nil, convErr
	}
	return &price, nil
}

// GetHolding returns the holdings summary, or nil when no trades exist.
func (s *Store) GetHolding(ctx context.Context, symbol string) (*Holding, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	holding, scanErr := scanHolding(pool.QueryRow(ctx, getHoldingSQL, symbol))
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get holding: %w", scanErr)
	}
	return &holding, nil
}

// DeleteTradesBefore removes ledger rows older than the retention cutoff.
func (s *Store) DeleteTradesBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	tag, execErr := pool.Exec(ctx, deleteTradesBeforeSQL, olderThan)
	if execErr != nil {
		return 0, fmt.Errorf("delete trades before: %w", execErr)
	}
	return tag.RowsAffected(), nil
}

func scanHolding(row pgx.Row) (Holding, error) {
	var (
		holding Holding
		qty     string
		cost    string
		avg     string
		profit  string
	)
	if err := row.Scan(&holding.Symbol, &qty, &cost, &avg, &profit, &holding.UpdatedTS); err != nil {
		return Holding{}, err
	}

	var convErr error
	if holding.TotalQty, convErr = parseDecimal(qty, "total qty"); convErr != nil {
		return Holding{}, convErr
	}
	if holding.TotalCost, convErr = parseDecimal(cost, "total cost"); convErr != nil {
		return Holding{}, convErr
	}
	if holding.AvgPrice, convErr = parseDecimal(avg, "avg price"); convErr != nil {
		return Holding{}, convErr
	}
	if holding.RealizedProfit, convErr = parseDecimal(profit, "realized profit"); convErr != nil {
		return Holding{}, convErr
	}
	return holding, nil
}
