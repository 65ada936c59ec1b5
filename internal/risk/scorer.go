// Package risk computes per-position and portfolio-level risk metrics
// from normalized position snapshots. All functions are pure: they
// never mutate their inputs and never retain state between calls.
package risk

import (
	"fmt"
	"math"

	"perp-risk-monitor/internal/domain"
)

// Sub-score weights for the composite position risk score.
const (
	weightLeverage = 0.3
	weightLiq      = 0.3
	weightSize     = 0.2
	weightPnl      = 0.2
)

// Scorer derives risk metrics against an injected set of limits.
type Scorer struct {
	limits domain.RiskLimits
}

// NewScorer creates a scorer with the given limits.
func NewScorer(limits domain.RiskLimits) *Scorer {
	return &Scorer{limits: limits}
}

// Limits returns the configured limits.
func (s *Scorer) Limits() domain.RiskLimits {
	return s.limits
}

// ScorePosition computes risk metrics for a single position.
// The composite score is the weighted sum of four sub-scores, each the
// ratio of the position's value to its configured limit scaled to
// 0-100. It is deliberately not clamped: inputs beyond the limits
// produce scores above 100 as an overflow signal.
func (s *Scorer) ScorePosition(pos domain.Position, accountValue float64) domain.PositionRisk {
	value := pos.Value()
	distToLiq := distanceToLiquidation(pos)

	pctOfAccount := 0.0
	if accountValue > 0 {
		pctOfAccount = pos.MarginUsed / accountValue * 100
	}

	roi := 0.0
	if pos.MarginUsed > 0 {
		roi = pos.UnrealizedPnl / pos.MarginUsed * 100
	}

	leverageScore := pos.Leverage / s.limits.MaxLeverage * 100
	liqScore := math.Max(0, 1-distToLiq/s.limits.MinDistanceToLiq) * 100
	sizeScore := value / s.limits.MaxPositionSizeUSD * 100
	pnlScore := 0.0
	if pos.MarginUsed > 0 {
		pnlScore = math.Max(0, -pos.UnrealizedPnl/pos.MarginUsed*100)
	}

	return domain.PositionRisk{
		Coin:                  pos.Coin,
		PositionValueUSD:      value,
		ExposureUSD:           pos.Exposure(),
		PctOfAccount:          pctOfAccount,
		DistanceToLiquidation: distToLiq,
		Leverage:              pos.Leverage,
		ROI:                   roi,
		RiskScore: weightLeverage*leverageScore +
			weightLiq*liqScore +
			weightSize*sizeScore +
			weightPnl*pnlScore,
	}
}

// ScorePortfolio computes portfolio-wide risk metrics and threshold
// warnings. An empty position set returns domain.ErrNoPositions so
// callers can tell "nothing to report" from an all-zero portfolio.
func (s *Scorer) ScorePortfolio(positions []domain.Position, accountValue float64) (domain.PortfolioRisk, error) {
	if len(positions) == 0 {
		return domain.PortfolioRisk{}, domain.ErrNoPositions
	}

	var (
		totalExposure   float64
		largestPosition float64
		totalMargin     float64
		exposures       = make([]float64, 0, len(positions))
		warnings        []string
	)

	for i := range positions {
		pos := &positions[i]
		exposure := pos.Exposure()
		totalExposure += exposure
		exposures = append(exposures, exposure)
		largestPosition = math.Max(largestPosition, pos.Value())
		totalMargin += pos.MarginUsed

		pr := s.ScorePosition(*pos, accountValue)
		warnings = append(warnings, s.positionWarnings(*pos, pr)...)
	}

	pf := domain.PortfolioRisk{
		TotalExposureUSD:   totalExposure,
		ConcentrationScore: concentrationScore(exposures),
		PortfolioHeat:      s.portfolioHeat(positions),
		RiskAdjustedReturn: riskAdjustedReturn(positions),
	}
	if accountValue > 0 {
		pf.ExposureToEquityRatio = totalExposure / accountValue
		pf.LargestPositionPct = largestPosition / accountValue * 100
		pf.MarginUtilization = totalMargin / accountValue * 100
	}

	if pf.MarginUtilization > s.limits.MarginUtilizationWarn {
		warnings = append(warnings,
			fmt.Sprintf("WARNING: High margin utilization (%.1f%%)", pf.MarginUtilization))
	}
	if pf.PortfolioHeat > s.limits.PortfolioHeatWarn {
		warnings = append(warnings,
			fmt.Sprintf("WARNING: High portfolio heat (%.1f)", pf.PortfolioHeat))
	}
	pf.Warnings = warnings

	return pf, nil
}

// positionWarnings emits per-position threshold warnings. Warnings are
// reported, never raised.
func (s *Scorer) positionWarnings(pos domain.Position, pr domain.PositionRisk) []string {
	var warnings []string
	if pr.DistanceToLiquidation < s.limits.MinDistanceToLiq {
		warnings = append(warnings,
			fmt.Sprintf("WARNING: %s position close to liquidation (%.1f%%)", pos.Coin, pr.DistanceToLiquidation))
	}
	if pr.PctOfAccount > s.limits.MaxPositionPct {
		warnings = append(warnings,
			fmt.Sprintf("WARNING: %s position size exceeds maximum (%.1f%%)", pos.Coin, pr.PctOfAccount))
	}
	if pos.Leverage > s.limits.MaxLeverage {
		warnings = append(warnings,
			fmt.Sprintf("WARNING: %s leverage exceeds maximum (%gx)", pos.Coin, pos.Leverage))
	}
	return warnings
}

// SuggestAdjustments proposes position changes that would bring the
// portfolio back inside the configured limits.
func (s *Scorer) SuggestAdjustments(positions []domain.Position, accountValue float64) []string {
	var suggestions []string
	for i := range positions {
		pr := s.ScorePosition(positions[i], accountValue)
		if pr.DistanceToLiquidation < s.limits.MinDistanceToLiq {
			suggestions = append(suggestions,
				fmt.Sprintf("Consider reducing leverage or adding margin to %s position", positions[i].Coin))
		}
		if pr.PctOfAccount > s.limits.MaxPositionPct {
			suggestions = append(suggestions,
				fmt.Sprintf("Consider reducing %s position size", positions[i].Coin))
		}
	}
	return suggestions
}

// CheckDrawdown compares current equity (account value plus unrealized
// PnL) against a reference starting equity.
func (s *Scorer) CheckDrawdown(initialEquity, accountValue float64, positions []domain.Position) domain.DrawdownStatus {
	currentEquity := accountValue
	for i := range positions {
		currentEquity += positions[i].UnrealizedPnl
	}

	drawdownPct := 0.0
	if initialEquity > 0 {
		drawdownPct = (initialEquity - currentEquity) / initialEquity * 100
	}

	return domain.DrawdownStatus{
		CurrentDrawdownPct: drawdownPct,
		MaxDrawdownWarning: drawdownPct > s.limits.MaxDrawdownPct,
		RemainingDrawdown:  s.limits.MaxDrawdownPct - drawdownPct,
	}
}

// portfolioHeat averages leverage scaled by liquidation proximity over
// all positions. An exact-zero distance substitutes 1 for the fraction
// to avoid a literal divide by zero; near-zero distances are not
// clamped, so heat grows without bound as positions approach
// liquidation. That growth is kept as a strong risk signal.
func (s *Scorer) portfolioHeat(positions []domain.Position) float64 {
	if len(positions) == 0 {
		return 0
	}

	sum := 0.0
	for i := range positions {
		pos := &positions[i]
		distFrac := 0.0
		if pos.EntryPrice > 0 {
			distFrac = math.Abs(pos.EntryPrice-pos.LiquidationPrice) / pos.EntryPrice
		}
		inv := 1.0
		if distFrac > 0 {
			inv = 1 / distFrac
		}
		sum += pos.Leverage / s.limits.MaxLeverage * inv
	}
	return sum / float64(len(positions)) * 100
}

// distanceToLiquidation returns the percent gap between entry price
// and liquidation price. Zero entry price degrades to zero distance.
func distanceToLiquidation(pos domain.Position) float64 {
	if pos.EntryPrice <= 0 {
		return 0
	}
	return math.Abs(pos.EntryPrice-pos.LiquidationPrice) / pos.EntryPrice * 100
}
