package domain

import "errors"

// ErrNoPositions is returned when a portfolio-level computation is
// asked to run over an empty position set. It distinguishes "nothing
// to report" from a computed zero.
var ErrNoPositions = errors.New("no open positions")

// PositionRisk holds per-position risk metrics derived by the scorer.
// It is a pure derivation owned by the caller; nothing retains it.
type PositionRisk struct {
	Coin                  string
	PositionValueUSD      float64 // size * entry price
	ExposureUSD           float64 // value * leverage
	PctOfAccount          float64 // margin_used / account_value * 100
	DistanceToLiquidation float64 // percent gap between entry and liquidation
	Leverage              float64
	ROI                   float64 // unrealized_pnl / margin_used * 100
	RiskScore             float64 // weighted composite, >100 signals limit overflow
}

// PortfolioRisk holds portfolio-wide risk metrics.
type PortfolioRisk struct {
	TotalExposureUSD      float64
	ExposureToEquityRatio float64
	LargestPositionPct    float64
	ConcentrationScore    float64 // HHI over exposures: 100 = single position
	PortfolioHeat         float64
	RiskAdjustedReturn    float64
	MarginUtilization     float64 // percent of account value used as margin
	Warnings              []string
}

// RiskLimits is the injected scorer configuration. Nothing inside the
// scoring code hard-codes a threshold.
type RiskLimits struct {
	MaxPositionSizeUSD    float64
	MaxLeverage           float64
	MaxDrawdownPct        float64
	MaxPositionPct        float64
	MinDistanceToLiq      float64 // percent
	MaxCorrelation        float64
	MarginUtilizationWarn float64 // portfolio warning threshold, percent
	PortfolioHeatWarn     float64 // portfolio warning threshold
}

// DefaultRiskLimits returns the stock limit set.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
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

// DrawdownStatus reports current drawdown against the configured maximum.
type DrawdownStatus struct {
	CurrentDrawdownPct float64
	MaxDrawdownWarning bool
	RemainingDrawdown  float64
}
