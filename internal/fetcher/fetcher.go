package fetcher

import (
	"context"

	"github.com/shopspring/decimal"
)

// Quote is one spot-price observation from an upstream feed.
type Quote struct {
	// Price is the domestic spot price in CNY per gram.
	Price decimal.Decimal
	// XAU is the international gold price in USD per ounce.
	XAU decimal.Decimal
	// Source names the feed the quote came from.
	Source string
}

// PriceFetcher retrieves the current gold spot price.
type PriceFetcher interface {
	FetchPrice(ctx context.Context) (Quote, error)
}
