package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"perp-risk-monitor/internal/cache"
	"perp-risk-monitor/internal/domain"
	"perp-risk-monitor/internal/exchange"
	"perp-risk-monitor/internal/observability"
	"perp-risk-monitor/internal/risk"
	"perp-risk-monitor/internal/storage"
)

// ExchangeClient is the slice of the exchange API the poller needs.
type ExchangeClient interface {
	ClearinghouseState(ctx context.Context, user string) (*exchange.State, error)
	UserFills(ctx context.Context, user string) ([]exchange.FillRecord, error)
}

// Poller periodically snapshots one wallet's positions, fills, and
// risk metrics into storage.
type Poller struct {
	client  ExchangeClient
	scorer  *risk.Scorer
	logger  *zap.Logger
	metrics *observability.Metrics

	positions storage.PositionHistoryStore
	fills     storage.FillStore
	metricsDB storage.MetricsHistoryStore
	summaries storage.AccountSummaryStore

	user          string
	pollInterval  time.Duration
	writeInterval time.Duration

	stateCache *cache.TTL[*exchange.State]
	lastWrite  time.Time
	now        func() time.Time
}

// PollerConfig wires a Poller's collaborators and tuning knobs.
type PollerConfig struct {
	Client  ExchangeClient
	Scorer  *risk.Scorer
	Logger  *zap.Logger
	Metrics *observability.Metrics

	Positions storage.PositionHistoryStore
	Fills     storage.FillStore
	MetricsDB storage.MetricsHistoryStore
	Summaries storage.AccountSummaryStore

	User string

	// PollInterval is how often the exchange is polled.
	PollInterval time.Duration
	// WriteInterval gates snapshot persistence so a fast poll loop
	// does not flood history storage. Zero writes every poll.
	WriteInterval time.Duration
	// CacheTTL bounds redundant state fetches within one interval.
	CacheTTL time.Duration
}

// NewPoller creates a poller from cfg.
func NewPoller(cfg PollerConfig) *Poller {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Poller{
		client:        cfg.Client,
		scorer:        cfg.Scorer,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		positions:     cfg.Positions,
		fills:         cfg.Fills,
		metricsDB:     cfg.MetricsDB,
		summaries:     cfg.Summaries,
		user:          cfg.User,
		pollInterval:  cfg.PollInterval,
		writeInterval: cfg.WriteInterval,
		stateCache:    cache.NewTTL[*exchange.State](ttl),
		now:           time.Now,
	}
}

// Run polls on the configured interval until ctx is cancelled. A
// failed cycle is logged and counted, never fatal.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	p.logger.Info("poller started",
		zap.String("user", p.user),
		zap.Duration("poll_interval", p.pollInterval),
		zap.Duration("write_interval", p.writeInterval))

	// First cycle runs immediately rather than one interval in.
	p.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return ctx.Err()
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

// cycle runs one poll: fetch, normalize, score, persist.
func (p *Poller) cycle(ctx context.Context) {
	start := p.now()
	err := p.poll(ctx)
	elapsed := p.now().Sub(start)

	p.metrics.PollCycleDuration.Observe(elapsed.Seconds())
	if err != nil {
		p.metrics.PollCyclesTotal.WithLabelValues("error").Inc()
		p.logger.Error("poll cycle failed", zap.Error(err), zap.Duration("elapsed", elapsed))
		return
	}
	p.metrics.PollCyclesTotal.WithLabelValues("ok").Inc()
	p.metrics.LastSuccessfulPoll.Set(float64(p.now().Unix()))
}

func (p *Poller) poll(ctx context.Context) error {
	state, err := p.stateCache.GetOrFill(p.user, func() (*exchange.State, error) {
		fetchStart := p.now()
		s, err := p.client.ClearinghouseState(ctx, p.user)
		p.metrics.APICallLatency.WithLabelValues("clearinghouseState").
			Observe(p.now().Sub(fetchStart).Seconds())
		return s, err
	})
	if err != nil {
		p.metrics.APICallErrors.WithLabelValues("clearinghouseState").Inc()
		return err
	}

	now := p.now().UTC()
	positions, report := NormalizePositions(state, now)
	p.recordReport(report)

	summary, summaryReport := BuildAccountSummary(state, now)
	p.recordReport(summaryReport)
	p.metrics.PositionsSnapshot.Set(float64(len(positions)))
	p.metrics.AccountValue.Set(summary.AccountValue)

	// Fills are fetched every cycle; the trade-ID key makes the
	// repeated upserts idempotent.
	if err := p.syncFills(ctx); err != nil {
		// A fills failure does not invalidate the snapshot work.
		p.metrics.APICallErrors.WithLabelValues("userFills").Inc()
		p.logger.Warn("fill sync failed", zap.Error(err))
	}

	if !p.shouldWrite(now) {
		return nil
	}

	portfolio, err := p.scorer.ScorePortfolio(toValues(positions), summary.AccountValue)
	if err != nil && !errors.Is(err, domain.ErrNoPositions) {
		return err
	}
	p.publishRisk(portfolio)

	point := buildMetricsPoint(summary, portfolio, now)

	err = p.persist(ctx, positions, summary, point)
	// The write happened (possibly partially); do not retry it on
	// the next cycle just because one store failed.
	p.lastWrite = now
	return err
}

// persist writes the cycle's outputs. Each store failure is logged
// and counted independently so one bad backend cannot block the rest,
// but any failure marks the cycle failed.
func (p *Poller) persist(ctx context.Context, positions []*domain.Position,
	summary *domain.AccountSummary, point *domain.MetricsPoint) error {

	var firstErr error
	fail := func(store string, err error) {
		p.metrics.PersistenceErrors.WithLabelValues(store).Inc()
		p.logger.Error("store write failed", zap.String("store", store), zap.Error(err))
		if firstErr == nil {
			firstErr = fmt.Errorf("persist %s: %w", store, err)
		}
	}

	if len(positions) > 0 {
		if err := p.positions.Append(ctx, positions); err != nil {
			fail("position_history", err)
		}
	}
	if err := p.summaries.Append(ctx, summary); err != nil {
		fail("account_summary", err)
	}
	if err := p.metricsDB.Append(ctx, point); err != nil {
		fail("metrics_history", err)
	}
	return firstErr
}

// HandleFillPush ingests fills delivered over the websocket stream.
// Write failures are logged and counted, matching the poll loop's
// tolerance for a flaky backend.
func (p *Poller) HandleFillPush(ctx context.Context, records []exchange.FillRecord) {
	fills, report := NormalizeFills(records)
	p.recordReport(report)

	if len(fills) == 0 {
		return
	}
	if err := p.fills.UpsertBulk(ctx, fills); err != nil {
		p.metrics.PersistenceErrors.WithLabelValues("fills").Inc()
		p.logger.Error("store pushed fills failed", zap.Error(err))
		return
	}
	p.metrics.FillsUpserted.Add(float64(len(fills)))
}

func (p *Poller) syncFills(ctx context.Context) error {
	fetchStart := p.now()
	records, err := p.client.UserFills(ctx, p.user)
	p.metrics.APICallLatency.WithLabelValues("userFills").
		Observe(p.now().Sub(fetchStart).Seconds())
	if err != nil {
		return err
	}
	fills, report := NormalizeFills(records)
	p.recordReport(report)

	if len(fills) == 0 {
		return nil
	}
	if err := p.fills.UpsertBulk(ctx, fills); err != nil {
		p.metrics.PersistenceErrors.WithLabelValues("fills").Inc()
		return err
	}
	p.metrics.FillsUpserted.Add(float64(len(fills)))
	return nil
}

func (p *Poller) recordReport(report *domain.IngestReport) {
	recordIngestReport(p.logger, p.metrics, report)
}

// recordIngestReport counts and logs every skip and default a
// normalizer reported, so malformed upstream data is always visible.
func recordIngestReport(logger *zap.Logger, metrics *observability.Metrics, report *domain.IngestReport) {
	for _, s := range report.Skipped {
		metrics.RecordsSkipped.WithLabelValues(s.Reason).Inc()
		logger.Warn("record skipped",
			zap.String("coin", s.Coin),
			zap.String("reason", s.Reason))
	}
	for _, d := range report.Defaulted {
		metrics.FieldsDefaulted.WithLabelValues(d.Field).Inc()
		logger.Debug("field defaulted to zero",
			zap.String("coin", d.Coin),
			zap.String("field", d.Field),
			zap.String("raw", d.Raw))
	}
}

func (p *Poller) publishRisk(portfolio domain.PortfolioRisk) {
	p.metrics.TotalExposure.Set(portfolio.TotalExposureUSD)
	p.metrics.MarginUtilization.Set(portfolio.MarginUtilization)
	p.metrics.PortfolioHeat.Set(portfolio.PortfolioHeat)
	p.metrics.ActiveWarnings.Set(float64(len(portfolio.Warnings)))

	for _, w := range portfolio.Warnings {
		p.logger.Warn("risk warning", zap.String("warning", w))
	}
}

// shouldWrite gates history writes to at most one per write interval.
func (p *Poller) shouldWrite(now time.Time) bool {
	if p.writeInterval <= 0 {
		return true
	}
	return now.Sub(p.lastWrite) >= p.writeInterval
}

func buildMetricsPoint(summary *domain.AccountSummary, portfolio domain.PortfolioRisk, now time.Time) *domain.MetricsPoint {
	return &domain.MetricsPoint{
		Timestamp:             now,
		AccountValue:          summary.AccountValue,
		TotalPositionValue:    summary.TotalPositionValue,
		TotalMarginUsed:       summary.TotalMarginUsed,
		FreeMargin:            summary.AccountValue - summary.TotalMarginUsed,
		TotalUnrealizedPnl:    summary.TotalUnrealizedPnl,
		AccountLeverage:       summary.AccountLeverage,
		TotalExposure:         portfolio.TotalExposureUSD,
		ExposureToEquityRatio: portfolio.ExposureToEquityRatio,
		PortfolioHeat:         portfolio.PortfolioHeat,
		RiskAdjustedReturn:    portfolio.RiskAdjustedReturn,
		MarginUtilization:     portfolio.MarginUtilization,
		ConcentrationScore:    portfolio.ConcentrationScore,
	}
}

func toValues(positions []*domain.Position) []domain.Position {
	out := make([]domain.Position, len(positions))
	for i, p := range positions {
		out[i] = *p
	}
	return out
}
