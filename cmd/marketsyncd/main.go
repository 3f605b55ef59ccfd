package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/walletd/marketsync/configs"
	"github.com/walletd/marketsync/internal/cache"
	"github.com/walletd/marketsync/internal/provider"
	"github.com/walletd/marketsync/internal/server"
	"github.com/walletd/marketsync/internal/syncer"
)

func main() {
	appConfig := configs.AppLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	store, err := newStore(&appConfig.Cache)
	if err != nil {
		logger.Error("Failed to initialize cache store", "backend", appConfig.Cache.Backend, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	coingecko := provider.NewCoinGecko(appConfig.Providers.PriceBaseURL, logger)
	exchangeRate := provider.NewExchangeRate(appConfig.Providers.RateBaseURL, appConfig.Providers.RateAPIKey, logger)

	hub := server.NewHub(logger)
	defer hub.Close()

	priceSync := syncer.NewPriceSync(coingecko, store, logger, hub)
	ratesSync := syncer.NewRatesSync(exchangeRate, logger, hub)
	historySync := syncer.NewHistorySync(coingecko, store, appConfig.Providers.HistoryDays, logger, hub)

	notifier := syncer.NewNotifier()

	router := server.NewRouter(&server.Config{
		Handler: server.NewMarketHandler(priceSync, ratesSync, historySync, notifier),
		Hub:     hub,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	for _, run := range []func(context.Context, <-chan syncer.Event){
		priceSync.Run,
		ratesSync.Run,
		historySync.Run,
	} {
		wg.Add(1)
		go func(run func(context.Context, <-chan syncer.Event)) {
			defer wg.Done()
			run(ctx, notifier.Subscribe())
		}(run)
	}

	srv := &http.Server{
		Addr:    ":" + appConfig.ServerPort,
		Handler: router,
	}

	go func() {
		logger.Info("Serving market data", "port", appConfig.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Warn("Shutdown signal received, stopping synchronizers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}

	wg.Wait()
	logger.Info("All synchronizers stopped")
}

// newStore selects the cache adapter from configuration.
func newStore(cfg *configs.CacheConfig) (cache.Store, error) {
	switch cfg.Backend {
	case "redis":
		return cache.NewRedisStore(cfg.RedisURL, cfg.RedisPassword)
	default:
		fileLogger := logrus.New()
		fileLogger.SetFormatter(&logrus.JSONFormatter{})
		return cache.NewFileStore(cfg.DataDir, fileLogger)
	}
}
