package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fill is a single trade execution reported by the exchange.
// Fills are immutable facts; FillID is the source of idempotence and
// re-submission of the same FillID must never double-count.
type Fill struct {
	FillID    string          // globally unique execution id
	OrderID   string          // parent order id
	Coin      string          // symbol
	Side      Side            // long or short
	Size      float64         // executed size, absolute
	Price     float64         // execution price
	ClosedPnl decimal.Decimal // realized PnL delta from this execution
	Timestamp time.Time       // execution time, UTC
}
