package domain

import "time"

// Side is the direction of a position or fill.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Position is a point-in-time snapshot of one held coin.
// Size is stored as an absolute value; Side encodes the sign.
// A position is never mutated: each polling cycle produces a fresh
// instance, and open/closed state is derived at read time from the
// newest snapshot batch.
type Position struct {
	Coin             string    `json:"coin"`
	Side             Side      `json:"side"`
	Size             float64   `json:"size"` // absolute magnitude
	Leverage         float64   `json:"leverage"`
	EntryPrice       float64   `json:"entry_price"`
	LiquidationPrice float64   `json:"liquidation_price"`
	UnrealizedPnl    float64   `json:"unrealized_pnl"`
	RealizedPnl      float64   `json:"realized_pnl"`
	MarginUsed       float64   `json:"margin_used"`
	Timestamp        time.Time `json:"timestamp"` // snapshot time, UTC
	IsOpen           bool      `json:"is_open"`   // derived at read time
}

// Value returns the position notional in USD at entry.
func (p *Position) Value() float64 {
	return p.Size * p.EntryPrice
}

// Exposure returns the leveraged notional exposure in USD.
func (p *Position) Exposure() float64 {
	return p.Value() * p.Leverage
}
