// Package book implements the per-instrument local order book: an
// integer-tick-keyed mirror of one exchange's bid/ask levels, kept in sync
// with a best-bid/ask cache, plus the Binance-family and Poloniex book
// updater state machines that drive it from snapshots and deltas.
package book

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/haaandolo/rotom-sub000/pkg/types"
)

// OrderBook is an exchange-local, per-instrument mirror of one side-pair
// of the book, keyed by integer price ticks (price * 1/tickSize, rounded)
// rather than floats, so level lookups are exact regardless of
// floating-point price representation. The zero value is not usable; use
// NewOrderBook.
type OrderBook struct {
	mu sync.RWMutex

	tickSize    float64
	invTickSize float64

	bids map[int64]float64 // tick -> size
	asks map[int64]float64

	bestBidTick int64
	bestAskTick int64
	hasBestBid  bool
	hasBestAsk  bool

	lastUpdateTime time.Time
	lastSequence   uint64
}

// NewOrderBook creates an empty book for the given tick size.
func NewOrderBook(tickSize float64) *OrderBook {
	return &OrderBook{
		tickSize:    tickSize,
		invTickSize: 1 / tickSize,
		bids:        make(map[int64]float64),
		asks:        make(map[int64]float64),
	}
}

func (b *OrderBook) tickOf(price float64) int64 {
	return int64(math.Round(price * b.invTickSize))
}

func (b *OrderBook) priceOf(tick int64) float64 {
	return float64(tick) / b.invTickSize
}

// ReplaceAll discards the current bid/ask maps and seeds them from levels.
// Used for REST snapshot init and for exchanges (Poloniex) that stream a
// full book on every message instead of deltas.
func (b *OrderBook) ReplaceAll(bids, asks []types.Level, sequence uint64, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bids = make(map[int64]float64, len(bids))
	b.asks = make(map[int64]float64, len(asks))
	b.hasBestBid = false
	b.hasBestAsk = false

	for _, lvl := range bids {
		b.upsertBidLocked(lvl)
	}
	for _, lvl := range asks {
		b.upsertAskLocked(lvl)
	}
	b.lastSequence = sequence
	b.lastUpdateTime = at
}

// ApplyDelta upserts/removes the given bid and ask levels (size == 0
// removes) and refreshes the best-bid/ask cache. It returns true if the
// resulting book is crossed (best bid >= best ask with both sides
// populated) — the caller must treat this as corruption and trigger a
// resync; no tolerance epsilon is applied.
func (b *OrderBook) ApplyDelta(bids, asks []types.Level, sequence uint64, at time.Time) (crossed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, lvl := range bids {
		if lvl.Size == 0 {
			b.removeBidLocked(b.tickOf(lvl.Price))
		} else {
			b.upsertBidLocked(lvl)
		}
	}
	for _, lvl := range asks {
		if lvl.Size == 0 {
			b.removeAskLocked(b.tickOf(lvl.Price))
		} else {
			b.upsertAskLocked(lvl)
		}
	}
	b.lastSequence = sequence
	b.lastUpdateTime = at

	return b.hasBestBid && b.hasBestAsk && b.priceOf(b.bestBidTick) >= b.priceOf(b.bestAskTick)
}

func (b *OrderBook) upsertBidLocked(lvl types.Level) {
	tick := b.tickOf(lvl.Price)
	b.bids[tick] = lvl.Size
	if !b.hasBestBid || tick > b.bestBidTick {
		b.bestBidTick = tick
		b.hasBestBid = true
	}
}

func (b *OrderBook) upsertAskLocked(lvl types.Level) {
	tick := b.tickOf(lvl.Price)
	b.asks[tick] = lvl.Size
	if !b.hasBestAsk || tick < b.bestAskTick {
		b.bestAskTick = tick
		b.hasBestAsk = true
	}
}

func (b *OrderBook) removeBidLocked(tick int64) {
	delete(b.bids, tick)
	if b.hasBestBid && tick == b.bestBidTick {
		b.recomputeBestBidLocked()
	}
}

func (b *OrderBook) removeAskLocked(tick int64) {
	delete(b.asks, tick)
	if b.hasBestAsk && tick == b.bestAskTick {
		b.recomputeBestAskLocked()
	}
}

func (b *OrderBook) recomputeBestBidLocked() {
	b.hasBestBid = false
	for tick := range b.bids {
		if !b.hasBestBid || tick > b.bestBidTick {
			b.bestBidTick = tick
			b.hasBestBid = true
		}
	}
}

func (b *OrderBook) recomputeBestAskLocked() {
	b.hasBestAsk = false
	for tick := range b.asks {
		if !b.hasBestAsk || tick < b.bestAskTick {
			b.bestAskTick = tick
			b.hasBestAsk = true
		}
	}
}

// BestBid returns the current best bid and whether one exists.
func (b *OrderBook) BestBid() (types.Level, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.hasBestBid {
		return types.Level{}, false
	}
	return types.Level{Price: b.priceOf(b.bestBidTick), Size: b.bids[b.bestBidTick]}, true
}

// BestAsk returns the current best ask and whether one exists.
func (b *OrderBook) BestAsk() (types.Level, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.hasBestAsk {
		return types.Level{}, false
	}
	return types.Level{Price: b.priceOf(b.bestAskTick), Size: b.asks[b.bestAskTick]}, true
}

// LastSequence returns the sequence number of the most recent applied
// update (REST lastUpdateId, or 0 for sequence-less exchanges).
func (b *OrderBook) LastSequence() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastSequence
}

// Snapshot returns the full bid/ask vectors, bids descending by price and
// asks ascending, for downstream consumption (MarketEvent.EventData).
func (b *OrderBook) Snapshot() (bids, asks []types.Level) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	bidTicks := make([]int64, 0, len(b.bids))
	for tick := range b.bids {
		bidTicks = append(bidTicks, tick)
	}
	sort.Slice(bidTicks, func(i, j int) bool { return bidTicks[i] > bidTicks[j] })
	bids = make([]types.Level, len(bidTicks))
	for i, tick := range bidTicks {
		bids[i] = types.Level{Price: b.priceOf(tick), Size: b.bids[tick]}
	}

	askTicks := make([]int64, 0, len(b.asks))
	for tick := range b.asks {
		askTicks = append(askTicks, tick)
	}
	sort.Slice(askTicks, func(i, j int) bool { return askTicks[i] < askTicks[j] })
	asks = make([]types.Level, len(askTicks))
	for i, tick := range askTicks {
		asks[i] = types.Level{Price: b.priceOf(tick), Size: b.asks[tick]}
	}

	return bids, asks
}
