package engine

import (
	"github.com/shopspring/decimal"
)

// Kind 告警类型。
type Kind string

// Baseline 涨跌幅对比基准。
type Baseline string

const (
	KindRise   Kind = "RISE"
	KindFall   Kind = "FALL"
	KindTarget Kind = "TARGET"

	BaselinePrevClose    Baseline = "PREVIOUS_CLOSE"
	BaselineOpenPosition Baseline = "OPEN_POSITION"
	BaselineTarget       Baseline = "TARGET"
)

// Node is one triggered threshold evaluation. Level is the configuration
// slot index (1..3), not a rank by magnitude; level 0 is reserved for
// target-price alerts.
type Node struct {
	Kind          Kind
	Baseline      Baseline
	Level         int
	ChangePercent decimal.Decimal
	RefPrice      decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// CheckNodes evaluates the configured rise/fall thresholds against the
// percentage change of priceNow relative to refPrice.
//
// 去重规则：同一方向上重复的阈值只取第一个出现的槽位。
// refPrice ≤ 0 时跳过整个评估（无法计算涨跌幅）。
func CheckNodes(priceNow, refPrice decimal.Decimal, baseline Baseline, rise, fall [3]*decimal.Decimal) []Node {
	if refPrice.Sign() <= 0 {
		return nil
	}

	changePercent := priceNow.Sub(refPrice).Div(refPrice).Mul(hundred)

	var triggered []Node
	switch changePercent.Sign() {
	case 1:
		triggered = matchDirection(KindRise, baseline, changePercent, changePercent, refPrice, rise)
	case -1:
		triggered = matchDirection(KindFall, baseline, changePercent.Abs(), changePercent, refPrice, fall)
	}
	return triggered
}

func matchDirection(kind Kind, baseline Baseline, magnitude, changePercent, refPrice decimal.Decimal, thresholds [3]*decimal.Decimal) []Node {
	var nodes []Node
	seen := make([]decimal.Decimal, 0, len(thresholds))
	for idx, threshold := range thresholds {
		if threshold == nil || threshold.Sign() <= 0 {
			continue
		}
		dup := false
		for _, prior := range seen {
			if prior.Equal(*threshold) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		seen = append(seen, *threshold)

		if magnitude.GreaterThanOrEqual(*threshold) {
			nodes = append(nodes, Node{
				Kind:          kind,
				Baseline:      baseline,
				Level:         idx + 1,
				ChangePercent: changePercent,
				RefPrice:      refPrice,
			})
		}
	}
	return nodes
}

// MaxDailySends returns the per-day send cap for a node level. Higher
// severity levels are allowed to re-fire more often intraday.
func MaxDailySends(level int) int {
	return level
}
