package domain

import "time"

// HistoryPoint is one cell of the reconciled historical series:
// a (timestamp, coin) pair carrying sparse unrealized PnL from
// snapshots and reconstructed cumulative realized PnL from fills.
type HistoryPoint struct {
	Timestamp     time.Time `json:"timestamp"` // grid point, UTC
	Coin          string    `json:"coin"`
	UnrealizedPnl float64   `json:"unrealized_pnl"` // last observation carried forward
	RealizedPnl   float64   `json:"realized_pnl"`   // cumulative closed_pnl at or before Timestamp
	IsOpen        bool      `json:"is_open"`
}

// MetricsPoint is one row of the metrics history: the full portfolio
// risk snapshot plus account summary fields, appended once per poll.
type MetricsPoint struct {
	Timestamp             time.Time `json:"timestamp"`
	AccountValue          float64   `json:"account_value"`
	TotalPositionValue    float64   `json:"total_position_value"`
	TotalMarginUsed       float64   `json:"total_margin_used"`
	FreeMargin            float64   `json:"free_margin"`
	TotalUnrealizedPnl    float64   `json:"total_unrealized_pnl"`
	AccountLeverage       float64   `json:"account_leverage"`
	TotalExposure         float64   `json:"total_exposure"`
	ExposureToEquityRatio float64   `json:"exposure_to_equity_ratio"`
	PortfolioHeat         float64   `json:"portfolio_heat"`
	RiskAdjustedReturn    float64   `json:"risk_adjusted_return"`
	MarginUtilization     float64   `json:"margin_utilization"`
	ConcentrationScore    float64   `json:"concentration_score"`
}
