package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// Show prints recent price samples.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	samples, err := store.ListRecentPrices(ctx, a.Config.Market.Symbol, opts.Limit)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		fmt.Fprintln(os.Stdout, "no prices found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tSymbol\tPrice (CNY/g)\tXAU (USD/oz)\tSource")

	for _, sample := range samples {
		xau := "-"
		if sample.XAUPrice.Sign() > 0 {
			xau = formatDecimal(sample.XAUPrice, 2)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\n",
			sample.TS.UTC().Format(time.RFC3339),
			sample.Symbol,
			formatDecimal(sample.Price, 2),
			xau,
			sample.Source,
		)
	}

	writer.Flush()
	return nil
}
