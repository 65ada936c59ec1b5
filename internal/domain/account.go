package domain

import "time"

// AccountSummary aggregates account-level margin state for one poll.
type AccountSummary struct {
	AccountValue       float64
	TotalPositionValue float64
	TotalMarginUsed    float64
	TotalRawUSD        float64
	Withdrawable       float64
	TotalUnrealizedPnl float64
	AccountLeverage    float64 // total notional / account value
	PositionCount      int
	Timestamp          time.Time // poll time, UTC
}

// MarketInfo is per-symbol market metadata and current market data.
type MarketInfo struct {
	Symbol       string  `json:"symbol"`
	SzDecimals   int     `json:"sz_decimals"`
	MaxLeverage  int     `json:"max_leverage"`
	MarkPrice    float64 `json:"mark_price"`
	OraclePrice  float64 `json:"oracle_price"`
	Funding      float64 `json:"funding"`
	Premium      float64 `json:"premium"`
	OpenInterest float64 `json:"open_interest"`
	DayVolume    float64 `json:"day_volume"`
}
