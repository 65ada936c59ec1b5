// Package reconcile merges irregular position snapshots with
// append-only fill events into one time-aligned historical series per
// coin. Snapshots supply sparse unrealized PnL; fills supply the
// canonical cumulative realized PnL curve. The output grid is
// independent of both inputs' native sampling.
package reconcile

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"perp-risk-monitor/internal/domain"
)

// DefaultResolution is used when a caller passes a non-positive grid
// resolution.
const DefaultResolution = time.Minute

// Window is a closed request interval [Start, End] in UTC; both
// endpoints are included.
type Window struct {
	Start time.Time
	End   time.Time
}

// Last returns a window covering the given duration back from now.
func Last(d time.Duration, now time.Time) Window {
	n := now.UTC()
	return Window{Start: n.Add(-d), End: n}
}

// cumPoint is one breakpoint of a coin's cumulative realized PnL curve.
type cumPoint struct {
	ts  time.Time
	sum decimal.Decimal
}

// snapPoint is one collapsed snapshot observation for a coin.
type snapPoint struct {
	ts     time.Time
	upnl   float64
	isOpen bool
}

// Reconcile produces the ordered (timestamp ASC, coin ASC) series of
// history points covering window at the given resolution.
//
// Realized PnL at any grid point T is exactly the sum of closed_pnl
// over all deduplicated fills with timestamp <= T, regardless of
// resolution. Unrealized PnL and the open flag are last observation
// carried forward per coin, 0/closed before the first snapshot.
//
// A coin present in an earlier snapshot but absent from the newest one
// is reported closed on every grid row; this is a derived view, no
// underlying row is altered.
func Reconcile(snapshots []*domain.Position, fills []*domain.Fill, window Window, resolution time.Duration) []domain.HistoryPoint {
	if len(snapshots) == 0 {
		// Nothing observed: an empty result, not an error.
		return nil
	}
	if resolution <= 0 {
		resolution = DefaultResolution
	}

	grid := buildGrid(window, resolution)
	if len(grid) == 0 {
		return nil
	}

	realized := realizedCurves(fills)
	observed, openCoins := snapshotSeries(snapshots)

	// Union of coins from both sources, sorted for deterministic output.
	coinSet := make(map[string]struct{}, len(observed)+len(realized))
	for coin := range observed {
		coinSet[coin] = struct{}{}
	}
	for coin := range realized {
		coinSet[coin] = struct{}{}
	}
	coins := make([]string, 0, len(coinSet))
	for coin := range coinSet {
		coins = append(coins, coin)
	}
	sort.Strings(coins)

	result := make([]domain.HistoryPoint, 0, len(grid)*len(coins))
	for _, t := range grid {
		for _, coin := range coins {
			point := domain.HistoryPoint{Timestamp: t, Coin: coin}

			if curve := realized[coin]; len(curve) > 0 {
				point.RealizedPnl = realizedAt(curve, t)
			}
			if snaps := observed[coin]; len(snaps) > 0 {
				if sp := lastSnapshotAt(snaps, t); sp != nil {
					point.UnrealizedPnl = sp.upnl
					point.IsOpen = sp.isOpen
				}
			}

			// Closed-position back-marking: absent from the newest
			// snapshot means closed everywhere on the derived view.
			if _, open := openCoins[coin]; !open {
				point.IsOpen = false
			}

			result = append(result, point)
		}
	}
	return result
}

// TotalRealizedPnl sums closed_pnl over deduplicated fills inside the
// window. Decimal accumulation keeps the sum exact, so re-ingested
// duplicates and accumulation order cannot shift the result.
func TotalRealizedPnl(fills []*domain.Fill, window Window) decimal.Decimal {
	total := decimal.Zero
	seen := make(map[string]struct{}, len(fills))
	for _, f := range fills {
		if _, dup := seen[f.FillID]; dup {
			continue
		}
		seen[f.FillID] = struct{}{}
		ts := f.Timestamp.UTC()
		if ts.Before(window.Start.UTC()) || ts.After(window.End.UTC()) {
			continue
		}
		total = total.Add(f.ClosedPnl)
	}
	return total
}

// buildGrid returns regular grid points spanning the window. The first
// point is the earliest resolution-aligned instant at or after the
// window start, so no row falls outside the window; points past the
// window end are excluded.
func buildGrid(window Window, resolution time.Duration) []time.Time {
	start := window.Start.UTC().Truncate(resolution)
	if start.Before(window.Start.UTC()) {
		start = start.Add(resolution)
	}
	end := window.End.UTC()
	if start.After(end) {
		return nil
	}

	var grid []time.Time
	for t := start; !t.After(end); t = t.Add(resolution) {
		grid = append(grid, t)
	}
	return grid
}

// realizedCurves deduplicates fills by fill_id, orders them per coin
// by timestamp, and folds closed_pnl into cumulative breakpoints.
// Fills are immutable facts, so duplicates are simply dropped.
func realizedCurves(fills []*domain.Fill) map[string][]cumPoint {
	seen := make(map[string]struct{}, len(fills))
	byCoin := make(map[string][]*domain.Fill)
	for _, f := range fills {
		if f.FillID != "" {
			if _, dup := seen[f.FillID]; dup {
				continue
			}
			seen[f.FillID] = struct{}{}
		}
		byCoin[f.Coin] = append(byCoin[f.Coin], f)
	}

	curves := make(map[string][]cumPoint, len(byCoin))
	for coin, coinFills := range byCoin {
		sort.SliceStable(coinFills, func(i, j int) bool {
			return coinFills[i].Timestamp.UTC().Before(coinFills[j].Timestamp.UTC())
		})
		sum := decimal.Zero
		curve := make([]cumPoint, 0, len(coinFills))
		for _, f := range coinFills {
			sum = sum.Add(f.ClosedPnl)
			curve = append(curve, cumPoint{ts: f.Timestamp.UTC(), sum: sum})
		}
		curves[coin] = curve
	}
	return curves
}

// realizedAt forward-fills the cumulative curve: the value at t is the
// last breakpoint at or before t, or 0 before the first fill.
func realizedAt(curve []cumPoint, t time.Time) float64 {
	idx := sort.Search(len(curve), func(i int) bool {
		return curve[i].ts.After(t)
	})
	if idx == 0 {
		return 0
	}
	f, _ := curve[idx-1].sum.Float64()
	return f
}

// snapshotSeries collapses duplicate (timestamp, coin) snapshot rows —
// distinct sub-lots of the same coin — by summing unrealized PnL and
// OR-ing the open flag, then sorts each coin's observations by time.
// It also reports which coins are present in the newest snapshot batch.
func snapshotSeries(snapshots []*domain.Position) (map[string][]snapPoint, map[string]struct{}) {
	type cellKey struct {
		coin string
		ts   int64
	}
	cells := make(map[cellKey]*snapPoint)
	var newest time.Time
	for _, s := range snapshots {
		ts := s.Timestamp.UTC()
		if ts.After(newest) {
			newest = ts
		}
		key := cellKey{coin: s.Coin, ts: ts.UnixNano()}
		if cell, ok := cells[key]; ok {
			cell.upnl += s.UnrealizedPnl
			cell.isOpen = cell.isOpen || s.IsOpen
		} else {
			cells[key] = &snapPoint{ts: ts, upnl: s.UnrealizedPnl, isOpen: s.IsOpen}
		}
	}

	observed := make(map[string][]snapPoint)
	openCoins := make(map[string]struct{})
	for key, cell := range cells {
		observed[key.coin] = append(observed[key.coin], *cell)
		if cell.ts.Equal(newest) {
			openCoins[key.coin] = struct{}{}
		}
	}
	for coin := range observed {
		snaps := observed[coin]
		sort.Slice(snaps, func(i, j int) bool {
			return snaps[i].ts.Before(snaps[j].ts)
		})
		observed[coin] = snaps
	}
	return observed, openCoins
}

// lastSnapshotAt returns the last observation at or before t, nil when
// t precedes the first observation.
func lastSnapshotAt(snaps []snapPoint, t time.Time) *snapPoint {
	idx := sort.Search(len(snaps), func(i int) bool {
		return snaps[i].ts.After(t)
	})
	if idx == 0 {
		return nil
	}
	return &snaps[idx-1]
}
