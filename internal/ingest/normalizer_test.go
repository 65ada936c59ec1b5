package ingest

import (
	"testing"
	"time"

	"perp-risk-monitor/internal/domain"
	"perp-risk-monitor/internal/exchange"
)

var normBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func rawPosition(coin, szi string) exchange.AssetPosition {
	return exchange.AssetPosition{
		Type: "oneWay",
		Position: exchange.PositionRecord{
			Coin:          coin,
			Szi:           szi,
			Leverage:      exchange.Leverage{Type: "cross", Value: 10},
			EntryPx:       "100.0",
			LiquidationPx: "90.0",
			UnrealizedPnl: "-50.0",
			MarginUsed:    "1000.0",
		},
	}
}

func TestNormalizePositions(t *testing.T) {
	state := &exchange.State{
		AssetPositions: []exchange.AssetPosition{
			rawPosition("BTC", "0.5"),
			rawPosition("ETH", "-2.0"),
		},
	}

	positions, report := NormalizePositions(state, normBase)
	if len(positions) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(positions))
	}
	if report.Parsed != 2 || !report.Clean() {
		t.Errorf("expected clean report with 2 parsed, got %+v", report)
	}

	btc := positions[0]
	if btc.Side != domain.SideLong || btc.Size != 0.5 {
		t.Errorf("wrong long normalization: %s %f", btc.Side, btc.Size)
	}
	if btc.EntryPrice != 100 || btc.LiquidationPrice != 90 || btc.Leverage != 10 {
		t.Errorf("wrong numeric fields: %+v", btc)
	}
	if !btc.IsOpen || !btc.Timestamp.Equal(normBase) {
		t.Errorf("wrong snapshot metadata: %+v", btc)
	}

	eth := positions[1]
	if eth.Side != domain.SideShort || eth.Size != 2.0 {
		t.Errorf("short szi must flip side and abs size: %s %f", eth.Side, eth.Size)
	}
}

func TestNormalizePositions_SkipsUnidentifiable(t *testing.T) {
	state := &exchange.State{
		AssetPositions: []exchange.AssetPosition{
			rawPosition("", "1.0"),
			rawPosition("SOL", "0"),
			rawPosition("BTC", "0.5"),
		},
	}

	positions, report := NormalizePositions(state, normBase)
	if len(positions) != 1 || positions[0].Coin != "BTC" {
		t.Fatalf("expected only BTC to survive, got %d", len(positions))
	}
	if len(report.Skipped) != 2 {
		t.Fatalf("expected 2 skips, got %d", len(report.Skipped))
	}
	if report.Skipped[0].Reason != "missing coin" || report.Skipped[1].Reason != "zero size" {
		t.Errorf("wrong skip reasons: %+v", report.Skipped)
	}
}

func TestNormalizePositions_DefaultsGarbledFields(t *testing.T) {
	ap := rawPosition("BTC", "1.0")
	ap.Position.LiquidationPx = "not-a-number"
	state := &exchange.State{AssetPositions: []exchange.AssetPosition{ap}}

	positions, report := NormalizePositions(state, normBase)
	if len(positions) != 1 {
		t.Fatalf("a garbled field must not drop the record")
	}
	if positions[0].LiquidationPrice != 0 {
		t.Errorf("expected defaulted liquidation price, got %f", positions[0].LiquidationPrice)
	}
	if len(report.Defaulted) != 1 || report.Defaulted[0].Field != "liquidationPx" {
		t.Errorf("default must be reported: %+v", report.Defaulted)
	}
}

func TestNormalizeFills(t *testing.T) {
	records := []exchange.FillRecord{
		{Coin: "BTC", Px: "50000", Sz: "0.1", Side: "A", Time: normBase.UnixMilli(), ClosedPnl: "125.5", Oid: 11, Tid: 22},
		{Coin: "ETH", Px: "2500", Sz: "2", Side: "B", Time: normBase.UnixMilli(), ClosedPnl: "garbage", Oid: 33, Tid: 44},
		{Coin: "", Tid: 55},
		{Coin: "SOL", Tid: 0},
	}

	fills, report := NormalizeFills(records)
	if len(fills) != 2 {
		t.Fatalf("expected 2 fills, got %d", len(fills))
	}
	if fills[0].FillID != "22" || fills[0].OrderID != "11" {
		t.Errorf("fill identity must come from trade and order IDs: %+v", fills[0])
	}
	if fills[0].Side != domain.SideShort || fills[1].Side != domain.SideLong {
		t.Errorf("wrong side mapping: %s %s", fills[0].Side, fills[1].Side)
	}
	if fills[0].ClosedPnl.String() != "125.5" {
		t.Errorf("closed pnl must keep exact decimal value, got %s", fills[0].ClosedPnl)
	}
	if !fills[1].ClosedPnl.IsZero() {
		t.Errorf("garbled closed pnl must default to zero, got %s", fills[1].ClosedPnl)
	}
	if len(report.Skipped) != 2 || len(report.Defaulted) != 1 {
		t.Errorf("expected 2 skips and 1 default, got %+v", report)
	}
}

func TestBuildAccountSummary(t *testing.T) {
	state := &exchange.State{
		MarginSummary: exchange.MarginSummary{
			AccountValue:    "10000",
			TotalNtlPos:     "25000",
			TotalRawUsd:     "9500",
			TotalMarginUsed: "2500",
		},
		Withdrawable: "7500",
		AssetPositions: []exchange.AssetPosition{
			rawPosition("BTC", "0.5"),
			rawPosition("ETH", "-2.0"),
		},
	}

	summary, report := BuildAccountSummary(state, normBase)
	if summary.AccountValue != 10000 || summary.TotalPositionValue != 25000 {
		t.Errorf("wrong margin figures: %+v", summary)
	}
	if summary.AccountLeverage != 2.5 {
		t.Errorf("expected account leverage 2.5, got %f", summary.AccountLeverage)
	}
	if summary.TotalUnrealizedPnl != -100 {
		t.Errorf("expected summed upnl -100, got %f", summary.TotalUnrealizedPnl)
	}
	if summary.PositionCount != 2 {
		t.Errorf("expected 2 positions, got %d", summary.PositionCount)
	}
	if !report.Clean() {
		t.Errorf("well-formed state must produce a clean report, got %+v", report)
	}
}

func TestBuildAccountSummary_GarbledFieldsReported(t *testing.T) {
	state := &exchange.State{
		MarginSummary: exchange.MarginSummary{
			AccountValue:    "not-a-number",
			TotalNtlPos:     "25000",
			TotalRawUsd:     "9500",
			TotalMarginUsed: "2500",
		},
		Withdrawable: "7500",
	}

	summary, report := BuildAccountSummary(state, normBase)
	if summary.AccountValue != 0 {
		t.Errorf("garbled account value must default to zero, got %f", summary.AccountValue)
	}
	if summary.AccountLeverage != 0 {
		t.Errorf("leverage is undefined without account value, got %f", summary.AccountLeverage)
	}
	if len(report.Defaulted) != 1 {
		t.Fatalf("expected 1 defaulted field, got %+v", report)
	}
	d := report.Defaulted[0]
	if d.Field != "accountValue" || d.Raw != "not-a-number" {
		t.Errorf("wrong defaulted field recorded: %+v", d)
	}
}

func TestNormalizeMarkets(t *testing.T) {
	meta := &exchange.Meta{Universe: []exchange.UniverseEntry{
		{Name: "BTC", SzDecimals: 5, MaxLeverage: 50},
		{Name: "ETH", SzDecimals: 4, MaxLeverage: 50},
	}}
	ctxs := []exchange.AssetCtx{
		{MarkPx: "50100", OraclePx: "50050", Funding: "0.0000125", OpenInterest: "1234.5", DayNtlVlm: "98765"},
	}

	markets, report := NormalizeMarkets(meta, ctxs)
	if len(markets) != 2 {
		t.Fatalf("expected 2 markets, got %d", len(markets))
	}
	if markets[0].MarkPrice != 50100 || markets[0].MaxLeverage != 50 {
		t.Errorf("wrong market fields: %+v", markets[0])
	}
	// ETH has no aligned context; pricing stays zero.
	if markets[1].MarkPrice != 0 || markets[1].Symbol != "ETH" {
		t.Errorf("expected zero pricing for unaligned market, got %+v", markets[1])
	}
	if !report.Clean() {
		t.Errorf("well-formed contexts must produce a clean report, got %+v", report)
	}
}

func TestNormalizeMarkets_GarbledPricingReported(t *testing.T) {
	meta := &exchange.Meta{Universe: []exchange.UniverseEntry{
		{Name: "BTC", SzDecimals: 5, MaxLeverage: 50},
	}}
	ctxs := []exchange.AssetCtx{
		{MarkPx: "bogus", OraclePx: "50050", Funding: "0.0000125", Premium: "0.0001", OpenInterest: "1234.5", DayNtlVlm: "98765"},
	}

	markets, report := NormalizeMarkets(meta, ctxs)
	if markets[0].MarkPrice != 0 || markets[0].OraclePrice != 50050 {
		t.Errorf("garbled mark price must default to zero, got %+v", markets[0])
	}
	if len(report.Defaulted) != 1 {
		t.Fatalf("expected 1 defaulted field, got %+v", report)
	}
	d := report.Defaulted[0]
	if d.Coin != "BTC" || d.Field != "markPx" || d.Raw != "bogus" {
		t.Errorf("wrong defaulted field recorded: %+v", d)
	}
}
