package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"stock-trader/auth"
	"stock-trader/cache"
	"stock-trader/config"
	"stock-trader/database"
	"stock-trader/handlers"
	"stock-trader/logger"
	"stock-trader/messaging"
	"stock-trader/metrics"
	"stock-trader/middleware"
	"stock-trader/scheduler"
	"stock-trader/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	appLog, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
		File:   cfg.Log.File,
	})
	if err != nil {
		log.Fatal("Failed to set up logging: ", err)
	}

	if err := run(cfg, appLog); err != nil {
		appLog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, appLog *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := config.OpenDB(cfg, logger.Gorm(appLog, cfg.Log.Level))
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	store := database.New(db)
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	if cfg.SeedFile != "" {
		stocks, err := database.LoadSeedFile(cfg.SeedFile)
		if err != nil {
			return err
		}
		if err := store.SeedStocks(ctx, stocks); err != nil {
			return err
		}
		appLog.Info("stock catalog seeded", "file", cfg.SeedFile, "stocks", len(stocks))
	}

	rdb, err := config.OpenRedis(ctx, cfg)
	if err != nil {
		return err
	}
	defer rdb.Close()

	var publisher services.TradePublisher = messaging.NopPublisher{}
	if cfg.NATSURL != "" {
		nats, err := messaging.NewNATSPublisher(cfg.NATSURL, appLog)
		if err != nil {
			return err
		}
		defer nats.Close()
		publisher = nats
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	tokens := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Expiry)
	locks := services.NewUserLocker()

	stockService := services.NewStockService(store, cache.NewStockCache(rdb, cfg.CacheTTL))
	h := &handlers.Handler{
		Stocks: stockService,
		Users: services.NewUserService(store, tokens, cache.NewTokenStore(rdb), locks, services.UserSettings{
			StartingBalance: cfg.StartingBalance,
			AdminEmails:     cfg.AdminEmails,
			RefreshExpiry:   cfg.JWT.RefreshExpiry,
		}),
		Trading:   services.NewTradingService(store, locks, publisher, m),
		Portfolio: services.NewPortfolioService(store),
		Ping:      store.Ping,
	}

	jobs := scheduler.New(appLog)
	if err := jobs.ScheduleCacheRefresh(cfg.CacheRefreshSpec, stockService); err != nil {
		return err
	}
	jobs.Start()
	defer jobs.Stop(context.Background())

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.Cleanup(ctx)

	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(appLog), middleware.Recovery(), middleware.Metrics(m))
	router.GET("/metrics", gin.WrapH(m.Handler()))
	h.Routes(router, handlers.Guards{
		Auth:      middleware.JWTAuth(tokens),
		Admin:     middleware.AdminOnly(),
		RateLimit: limiter.Handler(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("server listening", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	appLog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
