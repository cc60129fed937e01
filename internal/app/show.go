package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"quote-alerts/internal/storage"
)

// Show prints the most recent alerts.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show alerts")
	}
	if closeStore != nil {
		defer closeStore()
	}

	alerts, err := store.ListRecentAlerts(ctx, opts.Limit)
	if err != nil {
		return err
	}
	return writeAlertTable(os.Stdout, alerts)
}

func writeAlertTable(out io.Writer, alerts []storage.AlertRecord) error {
	if len(alerts) == 0 {
		_, err := fmt.Fprintln(out, "no alerts found")
		return err
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tInstrument\tDirection\tPrice\tLower\tUpper\tChannels")

	for _, alert := range alerts {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s %s\t%s\t%s\t%s\n",
			alert.CreatedAt.UTC().Format(time.RFC3339),
			alert.Instrument,
			strings.ToUpper(alert.Direction),
			alert.Price.StringFixed(3),
			alert.Currency,
			alert.LowerBound.StringFixed(3),
			alert.UpperBound.StringFixed(3),
			strings.Join(alert.Channels, ","),
		)
	}

	return writer.Flush()
}
