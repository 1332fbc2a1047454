package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"goldwatcher/internal/aggregate"
	"goldwatcher/internal/alerting"
	"goldwatcher/internal/config"
	"goldwatcher/internal/fetcher"
	"goldwatcher/internal/report"
	"goldwatcher/internal/scheduler"
	"goldwatcher/internal/storage"
	"goldwatcher/internal/timeutil"
)

// Store bundles every persistence concern the sampling loop touches.
type Store interface {
	storage.PriceStore
	storage.DailyStore
	storage.RuleConfigStore
	storage.TargetStore
	storage.AlertStore
	storage.TradeStore
	storage.ReportStore
	storage.MarkerStore
	storage.GlobalConfigStore
}

const (
	markerLastCleanup = "last_cleanup_date"
	markerLastReport  = "last_daily_report_date"
)

// Options wires the service dependencies.
type Options struct {
	Scheduler *scheduler.Scheduler
	Store     Store
	Fetcher   fetcher.PriceFetcher
	Notifier  alerting.Notifier
	Reporter  report.Generator
	Locker    storage.AdvisoryLocker
	LockKey   int64
}

// Service orchestrates the per-minute cycle: price ingestion, daily
// aggregation, threshold and target alerting, plus the once-daily
// cleanup and report gates.
type Service struct {
	scheduler *scheduler.Scheduler
	store     Store
	fetch     fetcher.PriceFetcher
	notifier  alerting.Notifier
	reporter  report.Generator
	logger    zerolog.Logger

	symbol      string
	tzOffset    time.Duration
	retention   time.Duration
	cleanupHour int
	reportHour  int

	locker  storage.AdvisoryLocker
	lockKey int64
	now     func() time.Time
}

// New constructs the monitoring service.
func New(cfg *config.Config, opts Options, logger zerolog.Logger) *Service {
	return &Service{
		scheduler:   opts.Scheduler,
		store:       opts.Store,
		fetch:       opts.Fetcher,
		notifier:    opts.Notifier,
		reporter:    opts.Reporter,
		logger:      logger.With().Str("component", "service").Logger(),
		symbol:      cfg.Market.Symbol,
		tzOffset:    cfg.Market.TZOffset(),
		retention:   cfg.Maintenance.Retention(),
		cleanupHour: cfg.Maintenance.CleanupHour,
		reportHour:  cfg.Maintenance.ReportHour,
		locker:      opts.Locker,
		lockKey:     opts.LockKey,
		now:         time.Now,
	}
}

// Run begins the aligned sampling loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessTick)
}

// ProcessTick 执行单个采样周期。
func (s *Service) ProcessTick(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("bucket", bucket).Msg("skip tick because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	return s.executeTick(ctx, bucket)
}

func (s *Service) executeTick(ctx context.Context, bucket time.Time) error {
	gcfg, err := s.store.GetGlobalConfig(ctx, s.symbol)
	if err != nil {
		return fmt.Errorf("load global config: %w", err)
	}
	marketOpen := gcfg != nil && gcfg.MarketStatus == storage.MarketOpen
	if !marketOpen {
		s.logger.Debug().Time("bucket", bucket).Msg("market closed, skipping price fetch and alerts")
	}

	// 停盘时仍执行清理与早报门控。
	if err := s.runCleanupIfDue(ctx, bucket); err != nil {
		s.logger.Error().Err(err).Msg("daily cleanup failed")
	}
	if err := s.sendDailyReportIfDue(ctx, bucket); err != nil {
		s.logger.Error().Err(err).Msg("daily report failed")
	}

	if !marketOpen {
		return nil
	}

	quote, err := s.fetch.FetchPrice(ctx)
	if err != nil {
		return fmt.Errorf("fetch gold price: %w", err)
	}

	// 价格日志按分钟对齐, 与调度桶保持同一粒度。
	ts := timeutil.AlignMinute(s.now().UTC())
	sample := storage.PriceSample{
		Symbol:   s.symbol,
		TS:       ts,
		Price:    quote.Price,
		XAUPrice: quote.XAU,
		Source:   quote.Source,
	}
	if err := s.store.InsertPrice(ctx, sample); err != nil {
		s.logger.Error().Err(err).Time("ts", ts).Msg("failed to insert price record")
	}

	s.logger.Info().Time("ts", ts).
		Str("symbol", s.symbol).
		Str("price", quote.Price.String()).
		Str("xau", quote.XAU.String()).
		Str("source", quote.Source).
		Msg("price recorded")

	if err := s.updateDaily(ctx, quote, ts); err != nil {
		s.logger.Error().Err(err).Msg("failed to update daily aggregate")
	}

	if err := s.runAlertEngine(ctx, quote.Price, ts); err != nil {
		s.logger.Error().Err(err).Msg("alert engine failed")
	}

	if err := s.checkTargets(ctx, quote.Price, ts); err != nil {
		s.logger.Error().Err(err).Msg("target check failed")
	}

	return nil
}

func (s *Service) updateDaily(ctx context.Context, quote fetcher.Quote, ts time.Time) error {
	dayTS := timeutil.DayStart(ts, s.tzOffset)

	existing, err := s.store.GetDaily(ctx, s.symbol, dayTS)
	if err != nil {
		return err
	}
	if existing == nil {
		return s.store.InsertDaily(ctx, aggregate.Init(s.symbol, dayTS, quote.Price, ts))
	}

	change := aggregate.Fold(*existing, quote.Price, ts)
	if change.Kind == aggregate.NoChange {
		return nil
	}
	return s.store.ApplyDailyChange(ctx, s.symbol, dayTS, change, ts)
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
