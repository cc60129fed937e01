package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"quote-alerts/internal/alerting"
	"quote-alerts/internal/config"
	"quote-alerts/internal/currency"
	"quote-alerts/internal/fetcher"
	"quote-alerts/internal/metrics"
	"quote-alerts/internal/scheduler"
	"quote-alerts/internal/service"
	"quote-alerts/internal/storage"
	"quote-alerts/internal/twelvedata"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newClient() *twelvedata.Client {
	cfg := a.Config.TwelveData
	return twelvedata.New(twelvedata.Options{
		BaseURL:           cfg.BaseURL,
		APIKey:            cfg.APIKey,
		Timeout:           cfg.RequestTimeout,
		UserAgent:         cfg.UserAgent,
		RequestsPerMinute: cfg.RequestsPerMinute,
	}, a.Logger)
}

// newConverter wires the Twelve Data rates behind the normalizer and the
// configured cache. The returned closer is never nil.
func (a *App) newConverter(ctx context.Context, client *twelvedata.Client) (currency.Converter, func(), error) {
	cfg := a.Config.Currency
	upstream := currency.NewTwelveData(client)
	closer := func() {}

	var cache currency.RateCache
	switch {
	case cfg.CacheTTL <= 0:
	case cfg.Redis.Enabled:
		redisCache, err := currency.NewRedisCache(ctx, currency.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, closer, err
		}
		cache = redisCache
		closer = func() {
			if err := redisCache.Close(); err != nil {
				a.Logger.Warn().Err(err).Msg("close redis rate cache")
			}
		}
	default:
		cache = currency.NewMemoryCache()
	}

	return currency.NewNormalizer(upstream, cache, cfg.CacheTTL, a.Logger), closer, nil
}

func (a *App) newNotifier() (alerting.Notifier, error) {
	cfg := a.Config.Alerting
	var notifiers []alerting.Notifier

	if cfg.Email.Enabled {
		email := cfg.Email
		notifier, err := alerting.NewEmailNotifier(alerting.EmailOptions{
			Host:          email.SMTPHost,
			Port:          email.SMTPPort,
			Username:      email.SMTPUsername,
			Password:      email.SMTPPassword,
			SSL:           email.SMTPSSL,
			Timeout:       cfg.Timeout,
			FromName:      email.FromName,
			FromAddress:   email.FromAddress,
			ToAddress:     email.ToAddress,
			RecipientName: email.RecipientName,
			BuySubject:    email.BuySubject,
			SellSubject:   email.SellSubject,
			BuyTemplate:   alerting.LoadTemplate(email.BuyTemplatePath, alerting.Buy, a.Logger),
			SellTemplate:  alerting.LoadTemplate(email.SellTemplatePath, alerting.Sell, a.Logger),
		}, a.Logger)
		if err != nil {
			return nil, &config.Error{Key: "alerting.email", Err: err}
		}
		notifiers = append(notifiers, notifier)
	}

	if cfg.Telegram.Enabled {
		tg := cfg.Telegram
		notifiers = append(notifiers, alerting.NewTelegramNotifier(tg.BotToken, tg.ChatID, tg.APIBase, cfg.Timeout, a.Logger))
	}

	if len(notifiers) == 0 {
		a.Logger.Warn().Msg("no alert channel enabled; alerts are only logged")
		notifiers = append(notifiers, alerting.NewLogNotifier(a.Logger))
	}
	return alerting.NewMulti(notifiers...), nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := storage.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) band() (service.Band, error) {
	if err := a.Config.ValidateMonitor(); err != nil {
		return service.Band{}, err
	}
	if err := a.Config.ValidatePolling(); err != nil {
		return service.Band{}, err
	}
	m := a.Config.Monitor
	band, err := service.NewBand(m.LowerBound, m.UpperBound, m.TargetCurrency)
	if err != nil {
		return service.Band{}, &config.Error{Key: "monitor", Err: err}
	}
	return band, nil
}

func (a *App) engineOptions(band service.Band) service.Options {
	m := a.Config.Monitor
	return service.Options{
		Instrument:     m.Instrument,
		Band:           band,
		Cooldown:       m.Cooldown,
		SourceCurrency: m.SourceCurrency,
		ResetOnFailure: m.ResetOnFailure,
		SinkTimeout:    a.Config.Alerting.Timeout,
	}
}

// Run executes the long-running monitoring loop.
func (a *App) Run(ctx context.Context) error {
	band, err := a.band()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Info().Msg("database.dsn not configured; alert audit disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	client := a.newClient()
	source := fetcher.NewTwelveData(client, a.Config.TwelveData.QuoteCurrency, a.Logger)

	converter, closeConverter, err := a.newConverter(ctx, client)
	if err != nil {
		return err
	}
	defer closeConverter()

	notifier, err := a.newNotifier()
	if err != nil {
		return err
	}

	sched := scheduler.New(scheduler.Options{
		Interval:       a.Config.Scheduler.Interval,
		AlignToStart:   a.Config.Scheduler.AlignToBucket,
		ImmediateStart: a.Config.Scheduler.ImmediateStart,
		StartupDelay:   a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	opts := a.engineOptions(band)
	if opts.SourceCurrency == "" {
		opts.SourceCurrency = source.QuoteCurrency()
	}
	if store != nil {
		opts.Alerts = store
		opts.Locker = store
		opts.LockKey = a.Config.Scheduler.AdvisoryLockKey
	}

	var recorder *metrics.Recorder
	if a.Config.Metrics.Enabled {
		recorder = metrics.New()
		opts.Metrics = recorder
	}

	engine, err := service.New(opts, sched, source, converter, notifier, a.Logger)
	if err != nil {
		return &config.Error{Key: "monitor", Err: err}
	}

	g, gctx := errgroup.WithContext(ctx)
	if recorder != nil {
		srv := metrics.NewServer(a.Config.Metrics.ListenAddr, a.Config.Metrics.Path, recorder, a.Logger)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}
	g.Go(func() error {
		err := engine.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	a.Logger.Info().
		Str("instrument", opts.Instrument).
		Str("lower", band.Lower.String()).
		Str("upper", band.Upper.String()).
		Str("currency", band.Currency).
		Dur("interval", a.Config.Scheduler.Interval).
		Dur("cooldown", opts.Cooldown).
		Msg("starting price monitor")

	if err := g.Wait(); err != nil {
		a.Logger.Error().Err(err).Msg("monitor terminated with error")
		return err
	}

	a.Logger.Info().Msg("price monitor stopped")
	return nil
}

// ExportOptions hold parameters for exporting the alert history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
