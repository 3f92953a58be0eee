package scanner

import (
	"time"

	"github.com/haaandolo/rotom-sub000/pkg/types"
)

// tradeWindow and spreadWindow are the bounded-time windows the scanner
// keeps for trade history and spread history respectively (§3 Lifecycle).
const (
	tradeWindow  = 10 * time.Minute
	spreadWindow = 10 * time.Minute
)

// Spreads holds the four flavors computed for one SpreadChange against
// one counterparty exchange. A nil field means that flavor could not be
// computed because the counterparty side was empty.
type Spreads struct {
	TakeTake *float64
	TakeMake *float64
	MakeTake *float64
	MakeMake *float64
}

// SpreadHistory is the bounded-time series of Spreads computed between one
// exchange (the "self" side, implicit from its owning map) and one
// specific counterparty exchange, for one instrument.
type SpreadHistory struct {
	TakeTake      *Windowed[float64]
	TakeMake      *Windowed[float64]
	MakeTake      *Windowed[float64]
	MakeMake      *Windowed[float64]
	LatestSpreads Spreads
}

func newSpreadHistory() *SpreadHistory {
	return &SpreadHistory{
		TakeTake: NewWindowed[float64](spreadWindow),
		TakeMake: NewWindowed[float64](spreadWindow),
		MakeTake: NewWindowed[float64](spreadWindow),
		MakeMake: NewWindowed[float64](spreadWindow),
	}
}

func (h *SpreadHistory) push(at time.Time, s Spreads) {
	if s.TakeTake != nil {
		h.TakeTake.Push(at, *s.TakeTake)
	}
	if s.TakeMake != nil {
		h.TakeMake.Push(at, *s.TakeMake)
	}
	if s.MakeTake != nil {
		h.MakeTake.Push(at, *s.MakeTake)
	}
	if s.MakeMake != nil {
		h.MakeMake.Push(at, *s.MakeMake)
	}
	h.LatestSpreads = s
}

// InstrumentMarketData is the scanner's per-(exchange, instrument) state:
// current best bid/ask, a windowed trade queue, per-counterparty spread
// histories, and the two WS health flags.
type InstrumentMarketData struct {
	BestBid *types.Level
	BestAsk *types.Level

	Trades *Windowed[types.Trade]

	Spreads map[types.ExchangeId]*SpreadHistory

	BookConnected  bool
	TradeConnected bool
}

func newInstrumentMarketData() *InstrumentMarketData {
	return &InstrumentMarketData{
		Trades:  NewWindowed[types.Trade](tradeWindow),
		Spreads: make(map[types.ExchangeId]*SpreadHistory),
	}
}

func (d *InstrumentMarketData) spreadHistoryFor(other types.ExchangeId) *SpreadHistory {
	h, ok := d.Spreads[other]
	if !ok {
		h = newSpreadHistory()
		d.Spreads[other] = h
	}
	return h
}

// spreadChange is an internal work-queue item: one side's top-of-book
// price moved and every counterparty exchange holding the same
// instrument must be re-evaluated against it.
type spreadChange struct {
	exchange   types.ExchangeId
	instrument types.Instrument
}

// ————————————————————————————————————————————————————————————————————————
// HTTP request/response contract (§6)
// ————————————————————————————————————————————————————————————————————————

// Request is the scanner's command channel input: exactly one of the two
// fields is set.
type Request struct {
	TopSpreads    bool
	SpreadHistory *SpreadHistoryRequest
	Reply         chan<- Response
}

type SpreadHistoryRequest struct {
	BaseExchange  types.ExchangeId
	QuoteExchange types.ExchangeId
	Instrument    types.Instrument
}

// Response carries exactly one populated field, matching whichever
// request kind was sent.
type Response struct {
	TopSpreads            []SpreadResponse
	SpreadHistory         *SpreadHistoryResponse
	CouldNotFindHistory   bool
}

// TradeAverage summarizes recent trade activity for one exchange side of
// a SpreadResponse.
type TradeAverage struct {
	AveragePrice float64
	AverageSize  float64
	SampleCount  int
}

// SpreadResponse is one ranked entry as exposed over the HTTP facade.
type SpreadResponse struct {
	BaseExchange  types.ExchangeId
	QuoteExchange types.ExchangeId
	Instrument    types.Instrument

	LatestSpreads Spreads

	BaseTradeAverage  TradeAverage
	QuoteTradeAverage TradeAverage

	BaseNetwork  []types.NetworkSpec
	QuoteNetwork []types.NetworkSpec

	BaseBookConnected   bool
	BaseTradeConnected  bool
	QuoteBookConnected  bool
	QuoteTradeConnected bool
}

// SpreadHistoryResponse is the full bounded history for one exchange
// pair + instrument triple.
type SpreadHistoryResponse struct {
	BaseExchange  types.ExchangeId
	QuoteExchange types.ExchangeId
	Instrument    types.Instrument
	History       SpreadHistory
}
