package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perp-risk-monitor/internal/domain"
)

func testLimits() domain.RiskLimits {
	return domain.RiskLimits{
		MaxPositionSizeUSD:    100000,
		MaxLeverage:           50,
		MaxDrawdownPct:        15,
		MaxPositionPct:        20,
		MinDistanceToLiq:      10,
		MaxCorrelation:        0.7,
		MarginUtilizationWarn: 80,
		PortfolioHeatWarn:     70,
	}
}

func TestScorePosition_WeightedComposite(t *testing.T) {
	// leverage 10/50 -> 20, dist 5% of min 10% -> 50,
	// value 20000/100000 -> 20, pnl -200/2000 -> 10.
	// 0.3*20 + 0.3*50 + 0.2*20 + 0.2*10 = 27.
	pos := domain.Position{
		Coin:             "BTC",
		Side:             domain.SideLong,
		Size:             200,
		EntryPrice:       100,
		LiquidationPrice: 95,
		Leverage:         10,
		MarginUsed:       2000,
		UnrealizedPnl:    -200,
	}

	pr := NewScorer(testLimits()).ScorePosition(pos, 10000)

	assert.InDelta(t, 27.0, pr.RiskScore, 1e-9)
	assert.InDelta(t, 5.0, pr.DistanceToLiquidation, 1e-9)
	assert.InDelta(t, 20000.0, pr.PositionValueUSD, 1e-9)
	assert.InDelta(t, 200000.0, pr.ExposureUSD, 1e-9)
	assert.InDelta(t, 20.0, pr.PctOfAccount, 1e-9)
	assert.InDelta(t, -10.0, pr.ROI, 1e-9)
}

func TestScorePosition_UnboundedAboveLimits(t *testing.T) {
	// Leverage double the maximum and size double the limit must push
	// the composite past 100 instead of clamping.
	pos := domain.Position{
		Coin:             "DOGE",
		Side:             domain.SideShort,
		Size:             2000,
		EntryPrice:       100,
		LiquidationPrice: 100, // zero distance
		Leverage:         100,
		MarginUsed:       1000,
		UnrealizedPnl:    -2000,
	}

	pr := NewScorer(testLimits()).ScorePosition(pos, 10000)

	// 0.3*200 + 0.3*100 + 0.2*200 + 0.2*200 = 170
	assert.InDelta(t, 170.0, pr.RiskScore, 1e-9)
	assert.Greater(t, pr.RiskScore, 100.0)
}

func TestScorePosition_ZeroMarginROI(t *testing.T) {
	pos := domain.Position{
		Coin:       "ETH",
		Size:       1,
		EntryPrice: 2000,
		Leverage:   5,
		MarginUsed: 0,
	}
	pr := NewScorer(testLimits()).ScorePosition(pos, 10000)
	assert.Zero(t, pr.ROI)
}

func TestScorePortfolio_NoPositions(t *testing.T) {
	_, err := NewScorer(testLimits()).ScorePortfolio(nil, 10000)
	require.ErrorIs(t, err, domain.ErrNoPositions)
}

func TestScorePortfolio_ConcentrationSinglePosition(t *testing.T) {
	positions := []domain.Position{
		{Coin: "BTC", Size: 1, EntryPrice: 100, LiquidationPrice: 80, Leverage: 2, MarginUsed: 50},
	}
	pf, err := NewScorer(testLimits()).ScorePortfolio(positions, 10000)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, pf.ConcentrationScore, 1e-9)
}

func TestScorePortfolio_ConcentrationEqualPositions(t *testing.T) {
	// Four equal exposures -> HHI = 100/4.
	positions := make([]domain.Position, 4)
	for i := range positions {
		positions[i] = domain.Position{
			Coin: "C", Size: 1, EntryPrice: 100, LiquidationPrice: 80,
			Leverage: 2, MarginUsed: 50,
		}
	}
	pf, err := NewScorer(testLimits()).ScorePortfolio(positions, 10000)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, pf.ConcentrationScore, 1e-9)
}

func TestScorePortfolio_ConcentrationUneven(t *testing.T) {
	// Exposures 300 and 100 -> shares 0.75 / 0.25 -> 62.5.
	positions := []domain.Position{
		{Coin: "BTC", Size: 3, EntryPrice: 100, LiquidationPrice: 80, Leverage: 1, MarginUsed: 100},
		{Coin: "ETH", Size: 1, EntryPrice: 100, LiquidationPrice: 80, Leverage: 1, MarginUsed: 100},
	}
	pf, err := NewScorer(testLimits()).ScorePortfolio(positions, 10000)
	require.NoError(t, err)
	assert.InDelta(t, 62.5, pf.ConcentrationScore, 1e-9)
}

func TestScorePortfolio_TotalsAndRatios(t *testing.T) {
	positions := []domain.Position{
		{Coin: "BTC", Size: 2, EntryPrice: 100, LiquidationPrice: 50, Leverage: 5, MarginUsed: 40, UnrealizedPnl: 10},
		{Coin: "ETH", Size: 1, EntryPrice: 300, LiquidationPrice: 150, Leverage: 2, MarginUsed: 150, UnrealizedPnl: -30},
	}
	pf, err := NewScorer(testLimits()).ScorePortfolio(positions, 1000)
	require.NoError(t, err)

	// exposures: 2*100*5=1000, 1*300*2=600
	assert.InDelta(t, 1600.0, pf.TotalExposureUSD, 1e-9)
	assert.InDelta(t, 1.6, pf.ExposureToEquityRatio, 1e-9)
	assert.InDelta(t, 30.0, pf.LargestPositionPct, 1e-9) // 300/1000*100
	assert.InDelta(t, 19.0, pf.MarginUtilization, 1e-9)  // 190/1000*100
}

func TestScorePortfolio_HeatZeroDistanceGuard(t *testing.T) {
	// Liquidation price equal to entry: heat uses fraction 1, not +Inf.
	positions := []domain.Position{
		{Coin: "BTC", Size: 1, EntryPrice: 100, LiquidationPrice: 100, Leverage: 25, MarginUsed: 10},
	}
	pf, err := NewScorer(testLimits()).ScorePortfolio(positions, 10000)
	require.NoError(t, err)
	// 25/50 * 1 * 100 = 50
	assert.InDelta(t, 50.0, pf.PortfolioHeat, 1e-9)
}

func TestScorePortfolio_HeatGrowsNearLiquidation(t *testing.T) {
	near := []domain.Position{
		{Coin: "BTC", Size: 1, EntryPrice: 100, LiquidationPrice: 99.9, Leverage: 10, MarginUsed: 10},
	}
	far := []domain.Position{
		{Coin: "BTC", Size: 1, EntryPrice: 100, LiquidationPrice: 50, Leverage: 10, MarginUsed: 10},
	}
	s := NewScorer(testLimits())
	pfNear, err := s.ScorePortfolio(near, 10000)
	require.NoError(t, err)
	pfFar, err := s.ScorePortfolio(far, 10000)
	require.NoError(t, err)
	assert.Greater(t, pfNear.PortfolioHeat, 100.0)
	assert.Less(t, pfFar.PortfolioHeat, pfNear.PortfolioHeat)
}

func TestScorePortfolio_RiskAdjustedReturnSinglePosition(t *testing.T) {
	// With one position stddev defaults to 1, so the ratio is the mean return.
	positions := []domain.Position{
		{Coin: "BTC", Size: 1, EntryPrice: 100, LiquidationPrice: 50, Leverage: 2, MarginUsed: 100, UnrealizedPnl: 25},
	}
	pf, err := NewScorer(testLimits()).ScorePortfolio(positions, 10000)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, pf.RiskAdjustedReturn, 1e-9)
}

func TestScorePortfolio_RiskAdjustedReturnZeroStddev(t *testing.T) {
	// Two identical returns: population stddev is 0 and the ratio
	// degrades to 0 instead of dividing by zero.
	positions := []domain.Position{
		{Coin: "BTC", Size: 1, EntryPrice: 100, LiquidationPrice: 50, Leverage: 2, MarginUsed: 100, UnrealizedPnl: 10},
		{Coin: "ETH", Size: 1, EntryPrice: 100, LiquidationPrice: 50, Leverage: 2, MarginUsed: 100, UnrealizedPnl: 10},
	}
	pf, err := NewScorer(testLimits()).ScorePortfolio(positions, 10000)
	require.NoError(t, err)
	assert.Zero(t, pf.RiskAdjustedReturn)
}

func TestScorePortfolio_Warnings(t *testing.T) {
	// Close to liquidation, oversized, over-levered, high margin use.
	positions := []domain.Position{
		{
			Coin: "BTC", Size: 100, EntryPrice: 100, LiquidationPrice: 98,
			Leverage: 60, MarginUsed: 9000, UnrealizedPnl: -500,
		},
	}
	pf, err := NewScorer(testLimits()).ScorePortfolio(positions, 10000)
	require.NoError(t, err)

	require.NotEmpty(t, pf.Warnings)
	joined := ""
	for _, w := range pf.Warnings {
		joined += w + "\n"
	}
	assert.Contains(t, joined, "close to liquidation")
	assert.Contains(t, joined, "position size exceeds maximum")
	assert.Contains(t, joined, "leverage exceeds maximum")
	assert.Contains(t, joined, "High margin utilization")
	assert.Contains(t, joined, "High portfolio heat")
}

func TestScorePortfolio_NoWarningsInsideLimits(t *testing.T) {
	positions := []domain.Position{
		{Coin: "BTC", Size: 1, EntryPrice: 100, LiquidationPrice: 50, Leverage: 2, MarginUsed: 50, UnrealizedPnl: 5},
	}
	pf, err := NewScorer(testLimits()).ScorePortfolio(positions, 10000)
	require.NoError(t, err)
	assert.Empty(t, pf.Warnings)
}

func TestSuggestAdjustments(t *testing.T) {
	positions := []domain.Position{
		{Coin: "BTC", Size: 1, EntryPrice: 100, LiquidationPrice: 98, Leverage: 10, MarginUsed: 5000},
		{Coin: "ETH", Size: 1, EntryPrice: 100, LiquidationPrice: 50, Leverage: 2, MarginUsed: 10},
	}
	suggestions := NewScorer(testLimits()).SuggestAdjustments(positions, 10000)

	require.Len(t, suggestions, 2)
	assert.Contains(t, suggestions[0], "reducing leverage or adding margin to BTC")
	assert.Contains(t, suggestions[1], "reducing BTC position size")
}

func TestCheckDrawdown(t *testing.T) {
	positions := []domain.Position{
		{Coin: "BTC", UnrealizedPnl: -500},
	}
	status := NewScorer(testLimits()).CheckDrawdown(10000, 8500, positions)

	assert.InDelta(t, 20.0, status.CurrentDrawdownPct, 1e-9)
	assert.True(t, status.MaxDrawdownWarning)
	assert.InDelta(t, -5.0, status.RemainingDrawdown, 1e-9)
}
