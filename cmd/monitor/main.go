// Package main runs the position monitor: it polls one wallet's
// clearinghouse state on an interval, scores portfolio risk, persists
// history, and serves the query API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"perp-risk-monitor/internal/api"
	"perp-risk-monitor/internal/config"
	"perp-risk-monitor/internal/exchange"
	"perp-risk-monitor/internal/ingest"
	"perp-risk-monitor/internal/observability"
	"perp-risk-monitor/internal/query"
	"perp-risk-monitor/internal/risk"
	"perp-risk-monitor/internal/storage"
	chstore "perp-risk-monitor/internal/storage/clickhouse"
	"perp-risk-monitor/internal/storage/memory"
	"perp-risk-monitor/internal/storage/migrations"
	pgstore "perp-risk-monitor/internal/storage/postgres"
)

// allStores holds all storage implementations.
type allStores struct {
	positions storage.PositionHistoryStore
	fills     storage.FillStore
	metrics   storage.MetricsHistoryStore
	summaries storage.AccountSummaryStore
}

func main() {
	config.LoadEnvFile()
	env := config.FromEnv()

	// Parse flags (env vars as defaults)
	wallet := flag.String("wallet", env.WalletAddress, "Wallet address to monitor")
	exchangeURL := flag.String("exchange-url", env.ExchangeURL, "Exchange info API base URL")
	exchangeWSURL := flag.String("exchange-ws-url", env.ExchangeWSURL, "Exchange websocket URL (empty disables the fill stream)")
	postgresDSN := flag.String("postgres-dsn", env.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", env.ClickhouseDSN, "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", env.UseMemory, "Use in-memory storage instead of databases")
	pollInterval := flag.Duration("poll-interval", env.PollInterval, "Exchange poll interval")
	writeInterval := flag.Duration("write-interval", env.WriteInterval, "History write interval")
	listenAddr := flag.String("listen-addr", env.ListenAddr, "HTTP listen address")

	flag.Parse()

	cfg := env
	cfg.WalletAddress = *wallet
	cfg.ExchangeURL = *exchangeURL
	cfg.ExchangeWSURL = *exchangeWSURL
	cfg.PostgresDSN = *postgresDSN
	cfg.ClickhouseDSN = *clickhouseDSN
	cfg.UseMemory = *useMemory
	cfg.PollInterval = *pollInterval
	cfg.WriteInterval = *writeInterval
	cfg.ListenAddr = *listenAddr

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		logger.Fatal("create stores", zap.Error(err))
	}
	defer cleanup()

	metrics := observability.NewMetrics("")

	clientOpts := []exchange.Option{}
	if cfg.ExchangeURL != "" {
		clientOpts = append(clientOpts, exchange.WithBaseURL(cfg.ExchangeURL))
	}
	client := exchange.NewClient(clientOpts...)

	poller := ingest.NewPoller(ingest.PollerConfig{
		Client:        client,
		Scorer:        risk.NewScorer(cfg.Limits),
		Logger:        logger,
		Metrics:       metrics,
		Positions:     stores.positions,
		Fills:         stores.fills,
		MetricsDB:     stores.metrics,
		Summaries:     stores.summaries,
		User:          cfg.WalletAddress,
		PollInterval:  cfg.PollInterval,
		WriteInterval: cfg.WriteInterval,
		CacheTTL:      cfg.CacheTTL,
	})

	queries := query.NewService(stores.positions, stores.fills, stores.metrics)
	markets := ingest.NewMarketService(client, logger, metrics, 30*time.Second)
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.NewServer(queries, markets, logger),
	}

	errCh := make(chan error, 2)

	go func() {
		if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("poller: %w", err)
		}
	}()

	// The websocket stream delivers fills between polls; the poll
	// loop still backstops it, and the idempotent upsert makes the
	// overlap harmless.
	if cfg.ExchangeWSURL != "" {
		stream := exchange.NewFillStream(cfg.ExchangeWSURL, cfg.WalletAddress, logger)
		stream.OnReconnect = metrics.WSReconnects.Inc
		go func() {
			err := stream.Run(ctx, func(fills []exchange.FillRecord, _ bool) {
				poller.HandleFillPush(ctx, fills)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("fill stream stopped", zap.Error(err))
			}
		}()
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("component failed, shutting down", zap.Error(err))
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}

	logger.Info("shutdown complete")
}

// createStores creates all required stores and runs migrations.
func createStores(ctx context.Context, cfg config.Config) (*allStores, func(), error) {
	if cfg.UseMemory {
		stores := &allStores{
			positions: memory.NewPositionHistoryStore(),
			fills:     memory.NewFillStore(),
			metrics:   memory.NewMetricsHistoryStore(),
			summaries: memory.NewAccountSummaryStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := &allStores{
		positions: chstore.NewPositionHistoryStore(chConn),
		fills:     pgstore.NewFillStore(pool),
		metrics:   chstore.NewMetricsHistoryStore(chConn),
		summaries: pgstore.NewAccountSummaryStore(pool),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}
