// Package exchange talks to the Hyperliquid info API and websocket
// feed. All numeric fields arrive as JSON strings and are kept raw
// here; parsing into domain types happens in the ingest package.
package exchange

// Leverage describes a position's leverage setting.
type Leverage struct {
	Type  string `json:"type"`
	Value int    `json:"value"`
}

// PositionRecord is one raw perp position as reported by
// clearinghouseState.
type PositionRecord struct {
	Coin           string   `json:"coin"`
	Szi            string   `json:"szi"`
	Leverage       Leverage `json:"leverage"`
	EntryPx        string   `json:"entryPx"`
	PositionValue  string   `json:"positionValue"`
	UnrealizedPnl  string   `json:"unrealizedPnl"`
	LiquidationPx  string   `json:"liquidationPx"`
	MarginUsed     string   `json:"marginUsed"`
	ReturnOnEquity string   `json:"returnOnEquity"`
	MaxLeverage    int      `json:"maxLeverage"`
}

// AssetPosition wraps a position record with its margining mode.
type AssetPosition struct {
	Type     string         `json:"type"`
	Position PositionRecord `json:"position"`
}

// MarginSummary holds raw account-level margin figures.
type MarginSummary struct {
	AccountValue    string `json:"accountValue"`
	TotalNtlPos     string `json:"totalNtlPos"`
	TotalRawUsd     string `json:"totalRawUsd"`
	TotalMarginUsed string `json:"totalMarginUsed"`
}

// State is the raw clearinghouseState response for one wallet.
type State struct {
	MarginSummary      MarginSummary   `json:"marginSummary"`
	CrossMarginSummary MarginSummary   `json:"crossMarginSummary"`
	Withdrawable       string          `json:"withdrawable"`
	AssetPositions     []AssetPosition `json:"assetPositions"`
	Time               int64           `json:"time"`
}

// UniverseEntry is one listed perp market from the meta response.
type UniverseEntry struct {
	Name        string `json:"name"`
	SzDecimals  int    `json:"szDecimals"`
	MaxLeverage int    `json:"maxLeverage"`
}

// Meta describes the exchange's listed markets.
type Meta struct {
	Universe []UniverseEntry `json:"universe"`
}

// AssetCtx holds per-market pricing and volume context, positionally
// aligned with Meta.Universe.
type AssetCtx struct {
	MarkPx       string `json:"markPx"`
	OraclePx     string `json:"oraclePx"`
	Funding      string `json:"funding"`
	Premium      string `json:"premium"`
	OpenInterest string `json:"openInterest"`
	DayNtlVlm    string `json:"dayNtlVlm"`
}

// FillRecord is one raw trade fill from userFills.
type FillRecord struct {
	Coin      string `json:"coin"`
	Px        string `json:"px"`
	Sz        string `json:"sz"`
	Side      string `json:"side"` // "B" buy, "A" sell
	Time      int64  `json:"time"` // unix millis
	ClosedPnl string `json:"closedPnl"`
	Dir       string `json:"dir"`
	Hash      string `json:"hash"`
	Oid       int64  `json:"oid"`
	Tid       int64  `json:"tid"`
	Crossed   bool   `json:"crossed"`
	Fee       string `json:"fee"`
}
