package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"goldwatcher/internal/engine"
)

// PriceSample is one appended minute observation of the spot price.
type PriceSample struct {
	ID       int64
	Symbol   string
	TS       time.Time
	Price    decimal.Decimal
	XAUPrice decimal.Decimal
	Source   string
}

// RuleConfig holds one subscriber's rise/fall threshold slots. Slot index is
// the node level; nil slots are unset.
type RuleConfig struct {
	ID        int64
	Symbol    string
	CreatedBy string
	Rise      [3]*decimal.Decimal
	Fall      [3]*decimal.Decimal
}

// TargetConfig is an armed absolute-price alert.
type TargetConfig struct {
	ID          int64
	Symbol      string
	TargetPrice decimal.Decimal
	Cmp         string
	Armed       bool
	CreatedTS   time.Time
	UpdatedTS   time.Time
}

// AlertRecord captures one triggered-and-processed rule instance.
type AlertRecord struct {
	ID            int64
	TS            time.Time
	Symbol        string
	CreatedBy     string
	Kind          engine.Kind
	Baseline      engine.Baseline
	Level         int
	Price         decimal.Decimal
	RefPrice      decimal.Decimal
	ChangePercent *decimal.Decimal
	Status        string
	Error         *string
}

// Delivery statuses recorded on AlertRecord rows.
const (
	StatusSent   = "SENT"
	StatusFailed = "FAILED"
)

// Trade is one row of the buy/sell ledger.
type Trade struct {
	ID     int64
	TS     time.Time
	Symbol string
	Side   string
	Price  decimal.Decimal
	Qty    decimal.Decimal
	Note   *string
}

// Trade sides.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Holding is the net position derived from the trade ledger.
type Holding struct {
	Symbol         string
	TotalQty       decimal.Decimal
	TotalCost      decimal.Decimal
	AvgPrice       decimal.Decimal
	RealizedProfit decimal.Decimal
	UpdatedTS      time.Time
}

// Report is a persisted AI market commentary.
type Report struct {
	ID           int64
	Symbol       string
	TS           time.Time
	Model        string
	ReportMD     string
	TriggerType  string
	TriggerValue string
}

// GlobalConfig holds per-symbol market state plus admin-level default
// thresholds surfaced by the HTTP API.
type GlobalConfig struct {
	Symbol       string
	MarketStatus string
	Rise         [3]*decimal.Decimal
	Fall         [3]*decimal.Decimal
	UpdatedTS    time.Time
}

// MarketOpen is the market_status value that enables the ingestion pipeline.
const MarketOpen = "OPEN"
