package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"moneta/audit"
	"moneta/config"
	"moneta/core/events"
	"moneta/gateway/middleware"
	"moneta/gateway/routes"
	nativecommon "moneta/native/common"
	"moneta/native/market"
	"moneta/observability"
	"moneta/observability/logging"
	"moneta/observability/metrics"
	"moneta/oracle"
	"moneta/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.toml", "path to marketd configuration")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("MONETA_ENV"))

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logging.Setup("marketd", env, logging.Options{}).Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.Service.Name, env, logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		logger.Error("create data dir", "error", err)
		os.Exit(1)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.Storage.DataDir, "market"))
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	store := storage.NewMarketStore(db)

	sink, err := audit.Open(cfg.Storage.AuditPath, logger)
	if err != nil {
		logger.Error("open audit store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Warn("close audit store", "error", err)
		}
	}()

	params, err := cfg.EngineParams()
	if err != nil {
		logger.Error("engine params", "error", err)
		os.Exit(1)
	}
	model, err := cfg.RateModel()
	if err != nil {
		logger.Error("rate model", "error", err)
		os.Exit(1)
	}
	seeds, err := cfg.SeedPrices()
	if err != nil {
		logger.Error("seed prices", "error", err)
		os.Exit(1)
	}

	board := oracle.NewBoard(time.Duration(cfg.Oracle.MaxAgeSeconds) * time.Second)
	for feed, price := range seeds {
		if err := board.Post(feed, price); err != nil {
			logger.Error("seed price", "error", err)
			os.Exit(1)
		}
	}

	engine := market.NewEngine(params)
	engine.SetState(store)
	engine.SetRateModel(model)
	engine.SetPriceSource(board)
	engine.SetEmitter(events.MultiEmitter{sink, observability.Events()})
	engine.SetPauses(nativecommon.NewPauses())
	engine.SetTimestamp(uint64(time.Now().Unix()))

	// A fresh database gets the configured asset listing; an existing one
	// keeps its live configuration and ignores the config section.
	existing, err := store.GetMarket()
	if err != nil {
		logger.Error("read market", "error", err)
		os.Exit(1)
	}
	if existing == nil {
		assets, err := cfg.EngineAssets()
		if err != nil {
			logger.Error("engine assets", "error", err)
			os.Exit(1)
		}
		if err := engine.InitMarket(assets); err != nil {
			logger.Error("init market", "error", err)
			os.Exit(1)
		}
		logger.Info("market initialised", "assets", len(assets))
	}

	authenticator := middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:    true,
		HMACSecret: cfg.Gateway.JWTSecret,
	}, logger)
	logger.Info("gateway auth configured", logging.MaskField("jwt_secret", cfg.Gateway.JWTSecret))
	limiter := middleware.NewRateLimiter(middleware.RateLimit{
		PerSecond: cfg.Gateway.RatePerSecond,
		Burst:     cfg.Gateway.RateBurst,
	})
	var obs *middleware.Observability
	if cfg.Gateway.MetricsEnabled {
		obs = middleware.NewObservability(middleware.ObservabilityConfig{
			ServiceName: cfg.Service.Name,
			LogRequests: true,
		}, logger)
	}

	handler := routes.New(routes.Config{
		Engine:        engine,
		Store:         store,
		Oracle:        board,
		Logger:        logger,
		Metrics:       metrics.Market(),
		Authenticator: authenticator,
		RateLimiter:   limiter,
		Observability: obs,
		AdminScopes:   []string{"market:admin"},
	})

	server := &http.Server{
		Addr:              cfg.Gateway.ListenAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "address", cfg.Gateway.ListenAddress)
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("shutdown", "error", err)
	}
}
