// Package main imports historical position and metrics CSV logs into
// storage, in batches, skipping rows it cannot parse.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"perp-risk-monitor/internal/config"
	"perp-risk-monitor/internal/domain"
	"perp-risk-monitor/internal/storage"
	chstore "perp-risk-monitor/internal/storage/clickhouse"
	"perp-risk-monitor/internal/storage/memory"
	"perp-risk-monitor/internal/storage/migrations"
	pgstore "perp-risk-monitor/internal/storage/postgres"
)

const batchSize = 100

func main() {
	config.LoadEnvFile()
	env := config.FromEnv()

	positionsCSV := flag.String("positions-csv", "logs/position_history.csv", "Position history CSV path")
	metricsCSV := flag.String("metrics-csv", "logs/metrics_history.csv", "Metrics history CSV path")
	postgresDSN := flag.String("postgres-dsn", env.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", env.ClickhouseDSN, "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", env.UseMemory, "Use in-memory storage (dry run)")

	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("postgres and clickhouse DSNs are required (or pass -use-memory for a dry run)")
	}

	ctx := context.Background()

	positionStore, metricsStore, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatal("create stores", zap.Error(err))
	}
	defer cleanup()

	if _, err := os.Stat(*positionsCSV); err == nil {
		imported, skipped, err := importPositions(ctx, *positionsCSV, positionStore)
		if err != nil {
			logger.Fatal("import positions", zap.Error(err))
		}
		logger.Info("position history imported",
			zap.String("file", *positionsCSV),
			zap.Int("imported", imported),
			zap.Int("skipped", skipped))
	} else {
		logger.Warn("position history file not found", zap.String("file", *positionsCSV))
	}

	if _, err := os.Stat(*metricsCSV); err == nil {
		imported, skipped, err := importMetrics(ctx, *metricsCSV, metricsStore)
		if err != nil {
			logger.Fatal("import metrics", zap.Error(err))
		}
		logger.Info("metrics history imported",
			zap.String("file", *metricsCSV),
			zap.Int("imported", imported),
			zap.Int("skipped", skipped))
	} else {
		logger.Warn("metrics history file not found", zap.String("file", *metricsCSV))
	}
}

func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (storage.PositionHistoryStore, storage.MetricsHistoryStore, func(), error) {
	if useMemory {
		return memory.NewPositionHistoryStore(), memory.NewMetricsHistoryStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return chstore.NewPositionHistoryStore(chConn), chstore.NewMetricsHistoryStore(chConn), cleanup, nil
}

// importPositions streams position rows into the store in batches.
func importPositions(ctx context.Context, path string, store storage.PositionHistoryStore) (imported, skipped int, err error) {
	rows, err := readCSV(path)
	if err != nil {
		return 0, 0, err
	}

	var batch []*domain.Position
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := store.Append(ctx, batch); err != nil {
			return fmt.Errorf("append batch: %w", err)
		}
		imported += len(batch)
		batch = batch[:0]
		return nil
	}

	for _, row := range rows {
		pos, ok := parsePositionRow(row)
		if !ok {
			skipped++
			continue
		}
		batch = append(batch, pos)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return imported, skipped, err
			}
		}
	}
	return imported, skipped, flush()
}

// importMetrics streams metrics rows into the store.
func importMetrics(ctx context.Context, path string, store storage.MetricsHistoryStore) (imported, skipped int, err error) {
	rows, err := readCSV(path)
	if err != nil {
		return 0, 0, err
	}

	for _, row := range rows {
		point, ok := parseMetricsRow(row)
		if !ok {
			skipped++
			continue
		}
		if err := store.Append(ctx, point); err != nil {
			return imported, skipped, fmt.Errorf("append metrics point: %w", err)
		}
		imported++
	}
	return imported, skipped, nil
}

// readCSV reads a headered CSV file into name-keyed rows.
func readCSV(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var rows []map[string]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(record) {
				row[name] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parsePositionRow(row map[string]string) (*domain.Position, bool) {
	ts, ok := parseTimestamp(row["timestamp"])
	if !ok || row["coin"] == "" {
		return nil, false
	}
	return &domain.Position{
		Coin:             row["coin"],
		Side:             domain.Side(row["side"]),
		Size:             parseFloat(row["size"]),
		Leverage:         parseFloat(row["leverage"]),
		EntryPrice:       parseFloat(row["entry_price"]),
		LiquidationPrice: parseFloat(row["liquidation_price"]),
		UnrealizedPnl:    parseFloat(row["unrealized_pnl"]),
		RealizedPnl:      parseFloat(row["realized_pnl"]),
		MarginUsed:       parseFloat(row["margin_used"]),
		Timestamp:        ts,
		IsOpen:           true,
	}, true
}

func parseMetricsRow(row map[string]string) (*domain.MetricsPoint, bool) {
	ts, ok := parseTimestamp(row["timestamp"])
	if !ok {
		return nil, false
	}
	return &domain.MetricsPoint{
		Timestamp:             ts,
		AccountValue:          parseFloat(row["account_value"]),
		TotalPositionValue:    parseFloat(row["total_position_value"]),
		TotalMarginUsed:       parseFloat(row["total_margin_used"]),
		FreeMargin:            parseFloat(row["free_margin"]),
		TotalUnrealizedPnl:    parseFloat(row["total_unrealized_pnl"]),
		AccountLeverage:       parseFloat(row["account_leverage"]),
		TotalExposure:         parseFloat(row["total_exposure"]),
		ExposureToEquityRatio: parseFloat(row["exposure_equity_ratio"]),
		PortfolioHeat:         parseFloat(row["portfolio_heat"]),
		RiskAdjustedReturn:    parseFloat(row["risk_adjusted_return"]),
		MarginUtilization:     parseFloat(row["margin_utilization"]),
		ConcentrationScore:    parseFloat(row["concentration_score"]),
	}, true
}

// parseTimestamp accepts RFC3339 and the space-separated layout the
// historical logs were written with.
func parseTimestamp(raw string) (time.Time, bool) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseFloat(raw string) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}
