package cli

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulatePrice    string
	simulateCurrency string
)

var simulateCmd = &cobra.Command{
	Use:         "simulate <instrument> <upper-bound> <lower-bound>",
	Short:       "模拟一次价格并走完整告警流程",
	Args:        cobra.ExactArgs(3),
	Annotations: map[string]string{"monitorArgs": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulatePrice == "" {
			return errors.New("--price 必须提供")
		}
		price, err := decimal.NewFromString(simulatePrice)
		if err != nil {
			return fmt.Errorf("invalid --price value: %w", err)
		}

		class, err := getApp().Simulate(cmd.Context(), price, simulateCurrency)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), class)
		return nil
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulatePrice, "price", "", "模拟价格")
	simulateCmd.Flags().StringVar(&simulateCurrency, "currency", "", "Currency of --price (defaults to twelvedata.quote_currency)")
}
