package cli

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulatePrice string
	simulateRef   string
	simulateRise  string
	simulateFall  string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Evaluate threshold nodes for a given price and push a test alert",
	RunE: func(cmd *cobra.Command, args []string) error {
		price, err := decimal.NewFromString(simulatePrice)
		if err != nil {
			return fmt.Errorf("invalid --price: %w", err)
		}
		ref, err := decimal.NewFromString(simulateRef)
		if err != nil {
			return fmt.Errorf("invalid --ref: %w", err)
		}

		rise, err := parseThresholds(simulateRise)
		if err != nil {
			return fmt.Errorf("invalid --rise: %w", err)
		}
		fall, err := parseThresholds(simulateFall)
		if err != nil {
			return fmt.Errorf("invalid --fall: %w", err)
		}

		return getApp().SimulateAlert(cmd.Context(), price, ref, rise, fall)
	},
}

// parseThresholds 解析逗号分隔的最多三个阈值槽位。
func parseThresholds(value string) ([3]*decimal.Decimal, error) {
	var slots [3]*decimal.Decimal
	if value == "" {
		return slots, nil
	}

	parts := strings.Split(value, ",")
	if len(parts) > 3 {
		return slots, fmt.Errorf("at most 3 threshold slots, got %d", len(parts))
	}
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := decimal.NewFromString(part)
		if err != nil {
			return slots, err
		}
		slots[i] = &d
	}
	return slots, nil
}

func init() {
	simulateCmd.Flags().StringVar(&simulatePrice, "price", "", "Current price (CNY/g)")
	simulateCmd.Flags().StringVar(&simulateRef, "ref", "", "Baseline price to compare against")
	simulateCmd.Flags().StringVar(&simulateRise, "rise", "", "Comma-separated rise thresholds in percent, up to 3 slots")
	simulateCmd.Flags().StringVar(&simulateFall, "fall", "", "Comma-separated fall thresholds in percent, up to 3 slots")
	_ = simulateCmd.MarkFlagRequired("price")
	_ = simulateCmd.MarkFlagRequired("ref")
}
