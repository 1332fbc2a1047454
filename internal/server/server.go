package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"goldwatcher/internal/alerting"
	"goldwatcher/internal/config"
	"goldwatcher/internal/service"
	"goldwatcher/internal/storage"
)

// Store bundles the persistence operations the HTTP API reads and writes.
type Store interface {
	storage.PriceStore
	storage.DailyStore
	storage.TradeStore
	storage.AlertStore
	storage.ReportStore
	storage.TargetStore
	storage.RuleConfigStore
	storage.GlobalConfigStore
}

// Server exposes the query and configuration API consumed by the web UI.
type Server struct {
	cfg      *config.Config
	store    Store
	notifier alerting.Notifier
	svc      *service.Service
	logger   zerolog.Logger
	now      func() time.Time
}

// New constructs the API server. svc may be nil when the report test
// endpoint is not needed.
func New(cfg *config.Config, store Store, notifier alerting.Notifier, svc *service.Service, logger zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		notifier: notifier,
		svc:      svc,
		logger:   logger.With().Str("component", "server").Logger(),
		now:      time.Now,
	}
}

// Router assembles the gin engine with middleware and routes.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(s.logger))
	router.Use(corsMiddleware(s.cfg.Server.CORSOrigin))
	if s.cfg.Server.RequireReferer {
		router.Use(refererGate(s.cfg.Server.AllowedOrigins))
	}

	api := router.Group("/api")
	{
		api.GET("/prices", s.handleGetPrices)
		api.GET("/daily-prices", s.handleGetDailyPrices)
		api.GET("/trades", s.handleGetTrades)
		api.POST("/trades", s.handlePostTrade)
		api.GET("/holdings", s.handleGetHoldings)
		api.GET("/alerts", s.handleGetAlerts)
		api.GET("/reports", s.handleGetReports)
		api.GET("/user-targets", s.handleGetUserTargets)
		api.POST("/user-targets", s.handlePostUserTarget)
		api.PUT("/user-targets/:id", s.handlePutUserTarget)
		api.DELETE("/user-targets/:id", s.handleDeleteUserTarget)
		api.GET("/global-config", s.handleGetGlobalConfig)
		api.POST("/global-config", s.handlePostGlobalConfig)
		api.GET("/user-configs", s.handleGetUserConfigs)
		api.POST("/user-configs", s.handlePostUserConfig)
		api.POST("/test/feishu", s.handleTestFeishu)
		api.POST("/test/alert", s.handleTestAlert)
		api.POST("/test/daily-report", s.handleTestDailyReport)
	}

	return router
}

// Serve runs the HTTP server until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info().Str("addr", s.cfg.Server.ListenAddr).Msg("http api listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
