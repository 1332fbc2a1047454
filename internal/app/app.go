package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"goldwatcher/internal/alerting"
	"goldwatcher/internal/config"
	"goldwatcher/internal/fetcher"
	"goldwatcher/internal/report"
	"goldwatcher/internal/scheduler"
	"goldwatcher/internal/server"
	"goldwatcher/internal/service"
	"goldwatcher/internal/storage"
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

func (a *App) newFetcher() fetcher.PriceFetcher {
	return fetcher.NewPanjia(fetcher.PanjiaOptions{
		URL:        a.Config.Feed.URL,
		UserAgent:  a.Config.Feed.UserAgent,
		Referer:    a.Config.Feed.Referer,
		Source:     a.Config.Feed.Source,
		PriceIndex: a.Config.Feed.PriceIndex,
		XAUIndex:   a.Config.Feed.XAUIndex,
		Timeout:    a.Config.Feed.RequestTimeout,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	return alerting.NewFeishuNotifier(a.Config.Feishu.WebhookURL, a.Config.Feishu.RequestTimeout, a.Logger)
}

// newReporter returns nil when the AI endpoint is not configured; the
// service then skips the daily report gate entirely.
func (a *App) newReporter() report.Generator {
	if a.Config.AI.APIURL == "" || a.Config.AI.APIKey == "" {
		return nil
	}
	return report.NewOpenAIGenerator(report.Options{
		APIURL:      a.Config.AI.APIURL,
		APIKey:      a.Config.AI.APIKey,
		Model:       a.Config.AI.Model,
		MaxTokens:   a.Config.AI.MaxTokens,
		Temperature: a.Config.AI.Temperature,
		TZOffset:    a.Config.Market.TZOffset(),
		Timeout:     a.Config.AI.RequestTimeout,
	}, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, errors.New("database.dsn not configured")
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newService(store *storage.Store, sched *scheduler.Scheduler, reporter report.Generator) *service.Service {
	return service.New(a.Config, service.Options{
		Scheduler: sched,
		Store:     store,
		Fetcher:   a.newFetcher(),
		Notifier:  a.newNotifier(),
		Reporter:  reporter,
		Locker:    store,
		LockKey:   a.Config.Scheduler.AdvisoryLockKey,
	}, a.Logger)
}

// Run executes the long-running monitoring loop.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	svc := a.newService(store, sched, a.newReporter())

	a.Logger.Info().Msg("starting monitoring service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// Serve runs the HTTP query and configuration API.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	// 报表测试端点需要一个不挂调度器的 service 实例。
	svc := a.newService(store, nil, a.newReporter())

	srv := server.New(a.Config, store, a.newNotifier(), svc, a.Logger)
	err = srv.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// ExportOptions hold parameters for exporting historical prices.
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

// Migrate applies pending schema migrations.
func (a *App) Migrate(ctx context.Context) error {
	if a.Config.Database.DSN == "" {
		return errors.New("database.dsn not configured")
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := storage.Migrate(ctx, pool, a.Config.Database.MigrationsPath); err != nil {
		return err
	}

	a.Logger.Info().Str("dir", a.Config.Database.MigrationsPath).Msg("migrations applied")
	return nil
}
