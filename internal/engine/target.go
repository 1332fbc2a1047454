package engine

import (
	"github.com/shopspring/decimal"
)

// Target comparison operators.
const (
	CmpEQ  = "EQ"
	CmpGTE = "GTE"
	CmpLTE = "LTE"
)

// eqTolerance 为 EQ 比较的绝对容差。金价报价保留两位小数，
// 因此用固定 0.01 而不是相对误差。
var eqTolerance = decimal.NewFromFloat(0.01)

// CheckTarget reports whether priceNow satisfies the comparator against the
// absolute target price. Unknown comparators behave as GTE.
func CheckTarget(priceNow, target decimal.Decimal, cmp string) bool {
	switch cmp {
	case CmpEQ:
		return priceNow.Sub(target).Abs().LessThanOrEqual(eqTolerance)
	case CmpLTE:
		return priceNow.LessThanOrEqual(target)
	case CmpGTE:
		return priceNow.GreaterThanOrEqual(target)
	default:
		return priceNow.GreaterThanOrEqual(target)
	}
}
