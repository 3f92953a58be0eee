// Package types defines the shared data model used across all packages.
//
// This is the common vocabulary for the scanner — exchanges, instruments,
// book levels, market events, and WebSocket health state. It has no
// dependencies on internal packages, so it can be imported by any layer.
package types

import "time"

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// ExchangeId is a closed enumeration of supported venues. It is totally
// ordered (by the iota below); canonical exchange pairs used as spread
// keys always list the lower id first.
type ExchangeId uint8

const (
	ExchangeBinanceSpot ExchangeId = iota
	ExchangePoloniex
)

func (e ExchangeId) String() string {
	switch e {
	case ExchangeBinanceSpot:
		return "binance_spot"
	case ExchangePoloniex:
		return "poloniex"
	default:
		return "unknown"
	}
}

// StreamKind enumerates the kinds of stream a subscription can request.
// Not every exchange supports every kind; asking for an unsupported
// combination is a configuration-time error (see adapter.Adapter.Supports,
// checked by streambuilder.Builder.Build).
type StreamKind uint8

const (
	StreamL2 StreamKind = iota
	StreamTrade
	StreamTrades
	StreamAggTrades
	StreamSnapshot
	StreamConnectionStatus
)

func (s StreamKind) String() string {
	switch s {
	case StreamL2:
		return "l2"
	case StreamTrade:
		return "trade"
	case StreamTrades:
		return "trades"
	case StreamAggTrades:
		return "agg_trades"
	case StreamSnapshot:
		return "snapshot"
	case StreamConnectionStatus:
		return "connection_status"
	default:
		return "unknown"
	}
}

// ————————————————————————————————————————————————————————————————————————
// Instrument
// ————————————————————————————————————————————————————————————————————————

// Instrument identifies a tradeable pair by lowercase-normalized asset
// codes, independent of any exchange's wire formatting.
type Instrument struct {
	Base  string
	Quote string
}

func (i Instrument) String() string {
	return i.Base + "_" + i.Quote
}

// Level is a single (price, size) pair on one side of a book. size == 0
// is the sentinel for "remove this price level". Neither field may be NaN.
type Level struct {
	Price float64
	Size  float64
}

// Less orders levels lexicographically by price then size, used where a
// deterministic ordering of levels (e.g. in tests) is required.
func (l Level) Less(other Level) bool {
	if l.Price != other.Price {
		return l.Price < other.Price
	}
	return l.Size < other.Size
}

// ————————————————————————————————————————————————————————————————————————
// Market events
// ————————————————————————————————————————————————————————————————————————

// MarketEvent wraps any event payload with the routing and timing metadata
// the scanner needs: which exchange/instrument it belongs to, and when the
// exchange says it happened versus when this process observed it.
type MarketEvent[T any] struct {
	ExchangeTime time.Time
	ReceivedTime time.Time
	Exchange     ExchangeId
	Instrument   Instrument
	EventData    T
}

// BookData is the normalized book payload carried by a MarketEvent after a
// book updater has applied a delta or snapshot: the full level vectors at
// the time of the update (bids descending, asks ascending, so index 0 is
// the best level on each side) and the sequence number of that update.
type BookData struct {
	Bids         []Level
	Asks         []Level
	LastSequence uint64
}

// Trade is a single executed trade normalized across exchanges.
type Trade struct {
	Price float64
	Size  float64
	Side  Side
}

// Side is the taker side of a trade.
type Side uint8

const (
	SideBuy Side = iota
	SideSell
)

// WsStatusKind distinguishes connected from disconnected health events.
type WsStatusKind uint8

const (
	WsConnected WsStatusKind = iota
	WsDisconnected
)

// WsStatus is emitted by a supervisor on every transition into or out of
// the Running state, for the given stream kind and every instrument in
// its subscription batch (a single connection multiplexes many
// instruments, so health applies to all of them at once).
type WsStatus struct {
	Kind        WsStatusKind
	Stream      StreamKind
	Instruments []Instrument
}

// NetworkSpec describes one withdrawal network for a coin on an exchange:
// fee and whether the chain is currently enabled for withdrawal/deposit.
type NetworkSpec struct {
	Exchange        ExchangeId
	Coin            string
	Network         string
	WithdrawFee     float64
	WithdrawEnabled bool
	DepositEnabled  bool
}
