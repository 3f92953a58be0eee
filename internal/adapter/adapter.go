// Package adapter declares, per exchange, the static data and pure
// functions a consumer supervisor needs: WebSocket URL, subscription
// payload builder, heartbeat schedule, subscription-response validator,
// and REST snapshot/ticker-info endpoints. Adapters do no I/O themselves;
// all transport goes through wsclient and resty.
package adapter

import (
	"time"

	"github.com/haaandolo/rotom-sub000/internal/wsclient"
	"github.com/haaandolo/rotom-sub000/pkg/types"
)

// Adapter is the capability set a consumer supervisor drives. One value per
// ExchangeId lives in the Registry below.
type Adapter interface {
	// ID identifies the exchange this adapter serves.
	ID() types.ExchangeId

	// Supports reports whether this exchange offers the given stream kind.
	Supports(kind types.StreamKind) bool

	// WSURL returns the WebSocket endpoint for a subscription group.
	// Exchanges that multiplex all symbols on one socket ignore insts;
	// exchanges that require one socket per symbol use insts[0].
	WSURL(insts []types.Instrument) string

	// Requests builds the subscription payload(s) to send immediately
	// after connecting, for the given stream kind and instrument batch.
	Requests(stream types.StreamKind, insts []types.Instrument) [][]byte

	// Heartbeat returns the keep-alive schedule, or a zero-Period spec if
	// the exchange requires none (wsclient.StartHeartbeat no-ops on that).
	Heartbeat() wsclient.HeartbeatSpec

	// ValidateSubscribeResponse inspects the first inbound frame after
	// subscribing. ok=true means the frame was recognized as a
	// subscription ack/nack (and err is non-nil on nack); ok=false means
	// the frame was not a subscription response and should be handed to
	// the transformer instead.
	ValidateSubscribeResponse(f wsclient.Frame) (ok bool, err error)

	// WireSymbol renders an instrument in this exchange's wire format,
	// e.g. BTCUSDT for Binance or BTC_USDT for Poloniex.
	WireSymbol(inst types.Instrument) string

	// ParseSymbol is WireSymbol's inverse: it maps an inbound payload's
	// symbol field back to an Instrument. The shipped transformers do not
	// call it; they look books up by wire symbol directly.
	ParseSymbol(wire string) (types.Instrument, bool)

	// SnapshotURL returns the REST endpoint for a full book snapshot of
	// inst, or "" if the exchange streams snapshots over the WS only.
	SnapshotURL(inst types.Instrument) string

	// TickerInfoURL returns the REST endpoint carrying tick-size metadata
	// for inst, or "" if not applicable.
	TickerInfoURL(inst types.Instrument) string
}

// Registry maps each supported exchange to its adapter.
type Registry struct {
	adapters map[types.ExchangeId]Adapter
}

// NewRegistry builds a registry from the given adapters, keyed by their
// own ID().
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[types.ExchangeId]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.ID()] = a
	}
	return r
}

// Get returns the adapter for exchange, or false if unsupported.
func (r *Registry) Get(exchange types.ExchangeId) (Adapter, bool) {
	a, ok := r.adapters[exchange]
	return a, ok
}

// DefaultRegistry wires every adapter this implementation ships.
func DefaultRegistry() *Registry {
	return NewRegistry(NewBinanceSpot(), NewPoloniex())
}

// restTimeout bounds REST fetches used during book-updater init. The spec
// leaves retry policy to the WS layer; this is only a sane upper bound.
const restTimeout = 10 * time.Second

// RestTimeout exposes restTimeout for callers constructing a shared
// *resty.Client (e.g. cmd/scanner's bootstrap).
func RestTimeout() time.Duration {
	return restTimeout
}
