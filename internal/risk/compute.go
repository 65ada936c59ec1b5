package risk

import (
	"math"

	"perp-risk-monitor/internal/domain"
)

// concentrationScore computes the Herfindahl-Hirschman Index over
// position exposures, scaled to 0-100. A single position scores 100;
// N equal positions score 100/N.
func concentrationScore(exposures []float64) float64 {
	if len(exposures) == 0 {
		return 0
	}
	total := 0.0
	for _, e := range exposures {
		total += e
	}
	if total == 0 {
		return 0
	}
	hhi := 0.0
	for _, e := range exposures {
		w := e / total
		hhi += w * w
	}
	return hhi * 100
}

// riskAdjustedReturn is a simple Sharpe-like ratio over per-position
// returns (unrealized PnL relative to margin). The standard deviation
// defaults to 1 for fewer than two positions, which deliberately
// understates risk for single-position portfolios.
func riskAdjustedReturn(positions []domain.Position) float64 {
	if len(positions) == 0 {
		return 0
	}

	returns := make([]float64, 0, len(positions))
	for i := range positions {
		r := 0.0
		if positions[i].MarginUsed > 0 {
			r = positions[i].UnrealizedPnl / positions[i].MarginUsed
		}
		returns = append(returns, r)
	}

	avg := mean(returns)
	std := 1.0
	if len(returns) > 1 {
		std = stddev(returns, avg)
	}
	if std <= 0 {
		return 0
	}
	return avg / std
}

// mean calculates the arithmetic mean.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev calculates population standard deviation (n denominator).
func stddev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(values)))
}
