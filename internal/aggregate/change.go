package aggregate

import (
	"time"

	"github.com/shopspring/decimal"
)

// Daily is the running high/low state for one (symbol, local day).
type Daily struct {
	Symbol      string
	DayTS       time.Time
	MaxPrice    decimal.Decimal
	MinPrice    decimal.Decimal
	MaxTS       time.Time
	MinTS       time.Time
	LastUpdated time.Time
}

// ChangeKind tags which extremum columns a sample moved.
type ChangeKind int

const (
	NoChange ChangeKind = iota
	NewMax
	NewMin
	NewBoth
)

// Change describes the delta a sample applies to a daily aggregate row.
// 只有发生变化的极值字段有意义：持久层按 Kind 分支更新对应列，
// 而不是动态拼接 SQL。
type Change struct {
	Kind     ChangeKind
	MaxPrice decimal.Decimal
	MaxTS    time.Time
	MinPrice decimal.Decimal
	MinTS    time.Time
}

// Init builds the aggregate row for the first sample of a new day.
func Init(symbol string, dayTS time.Time, price decimal.Decimal, ts time.Time) Daily {
	return Daily{
		Symbol:      symbol,
		DayTS:       dayTS,
		MaxPrice:    price,
		MinPrice:    price,
		MaxTS:       ts,
		MinTS:       ts,
		LastUpdated: ts,
	}
}

// Fold determines how a new sample moves the day's extremes. Comparisons are
// strict: a sample equal to the current max/min leaves the timestamps alone.
func Fold(current Daily, price decimal.Decimal, ts time.Time) Change {
	newMax := price.GreaterThan(current.MaxPrice)
	newMin := price.LessThan(current.MinPrice)

	switch {
	case newMax && newMin:
		// max >= min 不变式下单个样本到不了这里；保留分支使变体完整。
		return Change{Kind: NewBoth, MaxPrice: price, MaxTS: ts, MinPrice: price, MinTS: ts}
	case newMax:
		return Change{Kind: NewMax, MaxPrice: price, MaxTS: ts}
	case newMin:
		return Change{Kind: NewMin, MinPrice: price, MinTS: ts}
	default:
		return Change{Kind: NoChange}
	}
}

// Apply folds a change back into the in-memory row, refreshing LastUpdated
// only when an extremum actually moved.
func Apply(current Daily, change Change, ts time.Time) Daily {
	switch change.Kind {
	case NewMax:
		current.MaxPrice = change.MaxPrice
		current.MaxTS = change.MaxTS
	case NewMin:
		current.MinPrice = change.MinPrice
		current.MinTS = change.MinTS
	case NewBoth:
		current.MaxPrice = change.MaxPrice
		current.MaxTS = change.MaxTS
		current.MinPrice = change.MinPrice
		current.MinTS = change.MinTS
	case NoChange:
		return current
	}
	current.LastUpdated = ts
	return current
}
