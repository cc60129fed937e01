package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"quote-alerts/internal/app"
	"quote-alerts/internal/config"
	"quote-alerts/internal/logging"
)

var (
	cfgFile   string
	logLevel  string
	appHandle *app.App
)

var rootCmd = &cobra.Command{
	Use:   "quotealert <instrument> <upper-bound> <lower-bound> [config-path]",
	Short: "Alert when an instrument's price leaves a band",
	Long: `quotealert polls the latest price of one instrument, converts it to the
target currency and sends a Buy alert when it drops below the lower bound or a
Sell alert when it rises above the upper bound.`,
	Args:          cobra.RangeArgs(3, 4),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if appHandle != nil || cmd.Annotations["skipConfig"] == "true" {
			return nil
		}

		path := cfgFile
		var overrides config.Overrides
		if cmd == cmd.Root() || cmd.Annotations["monitorArgs"] == "true" {
			var err error
			overrides, path, err = monitorOverrides(args, path)
			if err != nil {
				return err
			}
		}

		cfg, err := config.LoadWithOverrides(path, overrides)
		if err != nil {
			return err
		}

		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		logger := logging.NewLogger(cfg.Logging)
		appHandle = app.NewApp(cfg, logger)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context())
	},
}

// monitorOverrides turns the positional arguments into config overrides. The
// optional fourth argument replaces --config.
func monitorOverrides(args []string, path string) (config.Overrides, string, error) {
	if len(args) < 3 {
		return nil, path, fmt.Errorf("expected <instrument> <upper-bound> <lower-bound> [config-path], got %d args", len(args))
	}

	upper, err := decimal.NewFromString(args[1])
	if err != nil {
		return nil, path, &config.Error{Key: "monitor.upper_bound", Err: fmt.Errorf("invalid decimal %q", args[1])}
	}
	lower, err := decimal.NewFromString(args[2])
	if err != nil {
		return nil, path, &config.Error{Key: "monitor.lower_bound", Err: fmt.Errorf("invalid decimal %q", args[2])}
	}
	if len(args) == 4 {
		path = args[3]
	}

	return config.Overrides{
		"monitor.instrument":  args[0],
		"monitor.upper_bound": upper.String(),
		"monitor.lower_bound": lower.String(),
	}, path, nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		var cfgErr *config.Error
		if errors.As(err, &cfgErr) {
			fmt.Fprintln(os.Stderr, "configuration error:", cfgErr)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level defined in config")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(simulateCmd)
}

func getApp() *app.App {
	if appHandle == nil {
		panic("application not initialized; PersistentPreRunE not executed")
	}
	return appHandle
}
