// Package transform implements C4: the uniform mapping from an exchange's
// wire payload to the internal MarketEvent model. A Transformer is either
// stateless (direct symbol→Instrument lookup, e.g. for trades) or
// "multibook" (owns a book updater per subscribed instrument, routing
// deltas and propagating resync errors upward).
package transform

import (
	"strconv"
	"time"

	"github.com/haaandolo/rotom-sub000/internal/wsclient"
	"github.com/haaandolo/rotom-sub000/pkg/types"
)

// Output is the tagged result of one Transform call: exactly one of the
// pointer fields is set, matching Stream.
type Output struct {
	Stream types.StreamKind
	Book   *types.MarketEvent[types.BookData]
	Trade  *types.MarketEvent[types.Trade]
	Status *types.MarketEvent[types.WsStatus]
}

// Transformer maps one decoded wire frame to zero or more Outputs. Ping,
// pong, and non-data frames (e.g. subscription acks already consumed by
// the adapter's validator) yield (nil, nil).
type Transformer interface {
	Transform(f wsclient.Frame) ([]Output, error)
}

func now() time.Time { return time.Now() }

func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
