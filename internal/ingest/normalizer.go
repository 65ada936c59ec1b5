// Package ingest turns raw exchange payloads into domain records and
// drives the periodic snapshot poll loop.
package ingest

import (
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"perp-risk-monitor/internal/domain"
	"perp-risk-monitor/internal/exchange"
)

// NormalizePositions converts a raw clearinghouse state into domain
// positions. Records without a coin or with zero size are skipped;
// unparsable numeric fields default to zero. Both outcomes are
// recorded in the returned report, never silently dropped.
func NormalizePositions(state *exchange.State, now time.Time) ([]*domain.Position, *domain.IngestReport) {
	report := &domain.IngestReport{}
	positions := make([]*domain.Position, 0, len(state.AssetPositions))

	for _, ap := range state.AssetPositions {
		raw := ap.Position
		if raw.Coin == "" {
			report.AddSkip("", "missing coin")
			continue
		}

		szi := safeFloat(raw.Szi, raw.Coin, "szi", report)
		if szi == 0 {
			report.AddSkip(raw.Coin, "zero size")
			continue
		}
		side := domain.SideLong
		if szi < 0 {
			side = domain.SideShort
		}

		positions = append(positions, &domain.Position{
			Coin:             raw.Coin,
			Side:             side,
			Size:             math.Abs(szi),
			Leverage:         float64(raw.Leverage.Value),
			EntryPrice:       safeFloat(raw.EntryPx, raw.Coin, "entryPx", report),
			LiquidationPrice: safeFloat(raw.LiquidationPx, raw.Coin, "liquidationPx", report),
			UnrealizedPnl:    safeFloat(raw.UnrealizedPnl, raw.Coin, "unrealizedPnl", report),
			MarginUsed:       safeFloat(raw.MarginUsed, raw.Coin, "marginUsed", report),
			Timestamp:        now.UTC(),
			IsOpen:           true,
		})
		report.Parsed++
	}
	return positions, report
}

// NormalizeFills converts raw fill records into domain fills. The fill
// ID comes from the exchange trade ID, which is stable across repeated
// fetches and makes upserts idempotent.
func NormalizeFills(records []exchange.FillRecord) ([]*domain.Fill, *domain.IngestReport) {
	report := &domain.IngestReport{}
	fills := make([]*domain.Fill, 0, len(records))

	for _, raw := range records {
		if raw.Coin == "" {
			report.AddSkip("", "missing coin")
			continue
		}
		if raw.Tid == 0 {
			report.AddSkip(raw.Coin, "missing trade id")
			continue
		}

		side := domain.SideLong
		if raw.Side == "A" {
			side = domain.SideShort
		}

		closedPnl, err := decimal.NewFromString(raw.ClosedPnl)
		if err != nil {
			report.AddDefault(raw.Coin, "closedPnl", raw.ClosedPnl)
			closedPnl = decimal.Zero
		}

		fills = append(fills, &domain.Fill{
			FillID:    strconv.FormatInt(raw.Tid, 10),
			OrderID:   strconv.FormatInt(raw.Oid, 10),
			Coin:      raw.Coin,
			Side:      side,
			Size:      safeFloat(raw.Sz, raw.Coin, "sz", report),
			Price:     safeFloat(raw.Px, raw.Coin, "px", report),
			ClosedPnl: closedPnl,
			Timestamp: time.UnixMilli(raw.Time).UTC(),
		})
		report.Parsed++
	}
	return fills, report
}

// BuildAccountSummary derives an account-level summary from a raw
// clearinghouse state. Garbled margin fields default to zero and are
// recorded in the returned report.
func BuildAccountSummary(state *exchange.State, now time.Time) (*domain.AccountSummary, *domain.IngestReport) {
	report := &domain.IngestReport{}
	ms := state.MarginSummary

	accountValue := safeFloat(ms.AccountValue, "", "accountValue", report)
	totalNtlPos := safeFloat(ms.TotalNtlPos, "", "totalNtlPos", report)

	var totalUpnl float64
	openCount := 0
	for _, ap := range state.AssetPositions {
		totalUpnl += safeFloat(ap.Position.UnrealizedPnl, ap.Position.Coin, "unrealizedPnl", report)
		openCount++
	}

	var accountLeverage float64
	if accountValue > 0 {
		accountLeverage = totalNtlPos / accountValue
	}

	return &domain.AccountSummary{
		AccountValue:       accountValue,
		TotalPositionValue: totalNtlPos,
		TotalMarginUsed:    safeFloat(ms.TotalMarginUsed, "", "totalMarginUsed", report),
		TotalRawUSD:        safeFloat(ms.TotalRawUsd, "", "totalRawUsd", report),
		Withdrawable:       safeFloat(state.Withdrawable, "", "withdrawable", report),
		TotalUnrealizedPnl: totalUpnl,
		AccountLeverage:    accountLeverage,
		PositionCount:      openCount,
		Timestamp:          now.UTC(),
	}, report
}

// NormalizeMarkets zips the universe with its positionally aligned
// asset contexts. A missing context leaves the pricing fields zero;
// garbled pricing fields are recorded in the returned report.
func NormalizeMarkets(meta *exchange.Meta, ctxs []exchange.AssetCtx) ([]domain.MarketInfo, *domain.IngestReport) {
	report := &domain.IngestReport{}
	markets := make([]domain.MarketInfo, 0, len(meta.Universe))

	for i, entry := range meta.Universe {
		m := domain.MarketInfo{
			Symbol:      entry.Name,
			SzDecimals:  entry.SzDecimals,
			MaxLeverage: entry.MaxLeverage,
		}
		if i < len(ctxs) {
			ctx := ctxs[i]
			m.MarkPrice = safeFloat(ctx.MarkPx, entry.Name, "markPx", report)
			m.OraclePrice = safeFloat(ctx.OraclePx, entry.Name, "oraclePx", report)
			m.Funding = safeFloat(ctx.Funding, entry.Name, "funding", report)
			m.Premium = safeFloat(ctx.Premium, entry.Name, "premium", report)
			m.OpenInterest = safeFloat(ctx.OpenInterest, entry.Name, "openInterest", report)
			m.DayVolume = safeFloat(ctx.DayNtlVlm, entry.Name, "dayNtlVlm", report)
		}
		markets = append(markets, m)
	}
	return markets, report
}

// safeFloat parses a numeric string from the API, recording a default
// in the report instead of failing when the field is empty or garbled.
func safeFloat(raw, coin, field string, report *domain.IngestReport) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		report.AddDefault(coin, field, raw)
		return 0
	}
	return v
}
