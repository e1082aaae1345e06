package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"myex/internal/amqp"
	"myex/internal/backend"
	"myex/internal/cache"
	"myex/internal/config"
	"myex/internal/core"
	"myex/internal/exchange"
	apphttp "myex/internal/http"
	"myex/internal/ledger"
	"myex/internal/log"
	"myex/internal/refresh"
	"myex/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: log.ComponentApp,
	})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	be, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.Close(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err.Error())
		}
	}()

	rates := exchange.NewRateService(exchange.Config{
		BaseURL:  cfg.ExchangeAPIURL,
		Fallback: decimal.NewFromFloat(cfg.FallbackRate),
		TTL:      cfg.ExchangeCacheTTL,
	}, logger)

	// AMQP is optional; without it the poll loop alone keeps the ledger fresh.
	var events refresh.Events
	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(amqp.Config{
			URL:      cfg.AMQPURL,
			Exchange: cfg.AMQPExchange,
			Queue:    cfg.AMQPQueue,
			Prefetch: cfg.AMQPPrefetch,
		}, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err.Error())
		} else {
			defer client.Close()
			events, publisher = client, client
			logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	ctrl := ledger.New(ledger.Config{
		Currency: core.Currency(strings.ToUpper(cfg.DefaultCurrency)),
		Rate:     decimal.NewFromFloat(cfg.FallbackRate),
	})
	dispatcher := refresh.NewDispatcher(ctrl, logger)
	refresher := refresh.NewService(dispatcher, be.Reader, rates, refresh.Options{
		Interval: cfg.RefreshInterval,
		Events:   events,
		Janitor:  cache.NewJanitor(logger, rates.Cache()),
	}, logger)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Dispatcher:   dispatcher,
		Reloader:     refresher,
		Trips:        be.Reader,
		Transactions: services.NewTransactionService(be.Writer, be.Reader, publisher, refresher, logger),
		Rates:        rates,
	}, logger)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return refresher.Run(gctx) })
	g.Go(func() error {
		logger.Info("Starting myex server",
			log.FieldOperation, log.OpStartup,
			"port", cfg.Port,
			log.FieldBackend, cfg.DataBackend,
			log.FieldCurrency, cfg.DefaultCurrency)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
