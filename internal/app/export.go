package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"quote-alerts/internal/storage"
)

// Export renders the alert history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.AddDate(0, 0, -30)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	alerts, err := store.ListAlertsBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		a.Logger.Info().Msg("no alerts found for export window")
		return nil
	}

	downsampled := downsampleAlerts(alerts, opts.MaxPoints)
	a.Logger.Info().Int("total", len(alerts)).Int("exported", len(downsampled)).Msg("exporting alerts")

	if opts.CSVPath != "" {
		if err := writeAlertsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeAlertsPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleAlerts(alerts []storage.AlertRecord, max int) []storage.AlertRecord {
	if max <= 0 || len(alerts) <= max {
		return alerts
	}
	if max == 1 {
		return alerts[len(alerts)-1:]
	}

	result := make([]storage.AlertRecord, 0, max)
	step := float64(len(alerts)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(alerts) {
			idx = len(alerts) - 1
		}
		result = append(result, alerts[idx])
	}
	return result
}

func writeAlertsCSV(path string, alerts []storage.AlertRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{"created_at", "instrument", "direction", "price", "currency", "lower_bound", "upper_bound", "channels"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, alert := range alerts {
		record := []string{
			alert.CreatedAt.UTC().Format(time.RFC3339),
			alert.Instrument,
			alert.Direction,
			alert.Price.String(),
			alert.Currency,
			alert.LowerBound.String(),
			alert.UpperBound.String(),
			strings.Join(alert.Channels, ";"),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeAlertsPNG(path string, alerts []storage.AlertRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(alerts))
	price := make([]float64, len(alerts))
	lower := make([]float64, len(alerts))
	upper := make([]float64, len(alerts))

	for i, alert := range alerts {
		x[i] = alert.CreatedAt
		price[i] = alert.Price.InexactFloat64()
		lower[i] = alert.LowerBound.InexactFloat64()
		upper[i] = alert.UpperBound.InexactFloat64()
	}
	// go-chart needs at least two points per series
	if len(alerts) == 1 {
		x = append(x, x[0].Add(time.Minute))
		price = append(price, price[0])
		lower = append(lower, lower[0])
		upper = append(upper, upper[0])
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.3f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price (" + alerts[0].Currency + ")",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    alerts[0].Instrument,
				XValues: x,
				YValues: price,
				Style: chart.Style{
					StrokeWidth: chart.Disabled,
					DotWidth:    4,
				},
			},
			chart.TimeSeries{
				Name:    "Lower bound",
				XValues: x,
				YValues: lower,
			},
			chart.TimeSeries{
				Name:    "Upper bound",
				XValues: x,
				YValues: upper,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
