// Package scanner implements C7: the single-goroutine aggregator that
// consumes merged market events, a network-info stream, and an HTTP
// command channel, maintaining book state, spread histories, and the
// ranked top-10 spread index.
package scanner

import (
	"context"
	"time"

	"github.com/haaandolo/rotom-sub000/internal/transform"
	"github.com/haaandolo/rotom-sub000/pkg/types"
)

// idlePoll is how long the loop parks when all three input sources were
// empty on the last pass, so a single slow source never starves the
// others and the loop never busy-spins (§5 suspension points).
const idlePoll = 5 * time.Millisecond

// networkKey identifies one (exchange, coin) network-status entry.
type networkKey struct {
	Exchange types.ExchangeId
	Coin     string
}

// Scanner owns all aggregator state. It is driven entirely by Run and
// must not be accessed from any other goroutine.
type Scanner struct {
	exchangeData map[types.ExchangeId]map[types.Instrument]*InstrumentMarketData
	spreadsSorted *SpreadsSorted
	networkStatus map[networkKey]types.NetworkSpec

	workQueue []spreadChange

	marketIn  <-chan transform.Output
	networkIn <-chan types.MarketEvent[types.NetworkSpec]
	requests  <-chan Request
}

func New(marketIn <-chan transform.Output, networkIn <-chan types.MarketEvent[types.NetworkSpec], requests <-chan Request) *Scanner {
	return &Scanner{
		exchangeData:  make(map[types.ExchangeId]map[types.Instrument]*InstrumentMarketData),
		spreadsSorted: NewSpreadsSorted(),
		networkStatus: make(map[networkKey]types.NetworkSpec),
		marketIn:      marketIn,
		networkIn:     networkIn,
		requests:      requests,
	}
}

// Run drains the three input sources non-blockingly, in a fixed order,
// until ctx is cancelled or any of the three channels closes.
func (s *Scanner) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		progressed := false

		select {
		case evt, ok := <-s.networkIn:
			if !ok {
				return
			}
			s.applyNetworkSpec(evt.EventData)
			progressed = true
		default:
		}

		select {
		case req, ok := <-s.requests:
			if !ok {
				return
			}
			s.handleRequest(req)
			progressed = true
		default:
		}

		select {
		case out, ok := <-s.marketIn:
			if !ok {
				return
			}
			s.handleMarketOutput(out)
			progressed = true
		default:
		}

		s.drainWorkQueue()

		if !progressed {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idlePoll):
			}
		}
	}
}

func (s *Scanner) dataFor(exchange types.ExchangeId, inst types.Instrument) *InstrumentMarketData {
	byInst, ok := s.exchangeData[exchange]
	if !ok {
		byInst = make(map[types.Instrument]*InstrumentMarketData)
		s.exchangeData[exchange] = byInst
	}
	md, ok := byInst[inst]
	if !ok {
		md = newInstrumentMarketData()
		byInst[inst] = md
	}
	return md
}

func (s *Scanner) applyNetworkSpec(spec types.NetworkSpec) {
	key := networkKey{Exchange: spec.Exchange, Coin: spec.Coin}
	// Replaying the same spec is a no-op (§8 idempotence): only write
	// through when something actually changed.
	if existing, ok := s.networkStatus[key]; ok && existing == spec {
		return
	}
	s.networkStatus[key] = spec
}

func (s *Scanner) handleMarketOutput(out transform.Output) {
	switch {
	case out.Book != nil:
		s.handleBookEvent(out.Book)
	case out.Trade != nil:
		s.handleTradeEvent(out.Trade)
	case out.Status != nil:
		s.handleStatusEvent(out.Status)
	}
}

// handleBookEvent swaps stored bid/ask vectors with the incoming ones,
// only when non-empty (§4.7, tolerating trades arriving before the first
// book event), and enqueues a spreadChange if top-of-book moved and both
// sides are now populated.
func (s *Scanner) handleBookEvent(evt *types.MarketEvent[types.BookData]) {
	md := s.dataFor(evt.Exchange, evt.Instrument)

	changed := false
	if len(evt.EventData.Bids) > 0 {
		newBest := evt.EventData.Bids[0]
		if md.BestBid == nil || md.BestBid.Price != newBest.Price {
			changed = true
		}
		md.BestBid = &newBest
	}
	if len(evt.EventData.Asks) > 0 {
		newBest := evt.EventData.Asks[0]
		if md.BestAsk == nil || md.BestAsk.Price != newBest.Price {
			changed = true
		}
		md.BestAsk = &newBest
	}

	if changed && md.BestBid != nil && md.BestAsk != nil {
		s.workQueue = append(s.workQueue, spreadChange{exchange: evt.Exchange, instrument: evt.Instrument})
	}
}

func (s *Scanner) handleTradeEvent(evt *types.MarketEvent[types.Trade]) {
	md := s.dataFor(evt.Exchange, evt.Instrument)
	md.Trades.Push(evt.ReceivedTime, evt.EventData)
}

func (s *Scanner) handleStatusEvent(evt *types.MarketEvent[types.WsStatus]) {
	connected := evt.EventData.Kind == types.WsConnected
	isBook := evt.EventData.Stream == types.StreamL2 || evt.EventData.Stream == types.StreamSnapshot
	for _, inst := range evt.EventData.Instruments {
		md := s.dataFor(evt.Exchange, inst)
		if isBook {
			md.BookConnected = connected
		} else {
			md.TradeConnected = connected
		}
	}
}

// drainWorkQueue processes every pending spreadChange to empty before the
// next input poll (§5 ordering guarantee).
func (s *Scanner) drainWorkQueue() {
	for len(s.workQueue) > 0 {
		change := s.workQueue[0]
		s.workQueue = s.workQueue[1:]
		s.processSpreadChange(change)
	}
}

// processSpreadChange computes the four spread flavors between the
// changed side and every other exchange holding the same instrument
// (§4.7). Only the changed side's own history records the result —
// spreads are not recomputed symmetrically from the counterparty's
// perspective (§9 Open Question, resolved to match the source).
func (s *Scanner) processSpreadChange(change spreadChange) {
	byInst, ok := s.exchangeData[change.exchange]
	if !ok {
		return
	}
	sc, ok := byInst[change.instrument]
	if !ok || sc.BestBid == nil || sc.BestAsk == nil {
		return
	}

	now := time.Now()
	for otherExchange, otherByInst := range s.exchangeData {
		if otherExchange == change.exchange {
			continue
		}
		other, ok := otherByInst[change.instrument]
		if !ok {
			continue
		}

		spreads := computeSpreads(sc.BestBid, sc.BestAsk, other.BestBid, other.BestAsk)
		sc.spreadHistoryFor(otherExchange).push(now, spreads)

		key := CanonicalSpreadKey(change.exchange, otherExchange, change.instrument)
		if spreads.MakeMake != nil && *spreads.MakeMake > 0 {
			s.spreadsSorted.Upsert(key, *spreads.MakeMake)
		} else {
			s.spreadsSorted.Remove(key)
		}
	}
}

// computeSpreads implements the four formulas from §4.7. sc is the
// changed side; other is the counterparty. Any flavor whose counterparty
// level is nil is left nil in the result.
func computeSpreads(scBid, scAsk, otherBid, otherAsk *types.Level) Spreads {
	var out Spreads
	if otherBid != nil && scAsk != nil {
		v := otherBid.Price/scAsk.Price - 1
		out.TakeTake = &v
	}
	if otherAsk != nil && scAsk != nil {
		v := otherAsk.Price/scAsk.Price - 1
		out.TakeMake = &v
	}
	if otherBid != nil && scBid != nil {
		v := otherBid.Price/scBid.Price - 1
		out.MakeTake = &v
	}
	if otherAsk != nil && scBid != nil {
		v := otherAsk.Price/scBid.Price - 1
		out.MakeMake = &v
	}
	return out
}

func (s *Scanner) handleRequest(req Request) {
	if req.TopSpreads {
		req.Reply <- Response{TopSpreads: s.buildTopSpreads()}
		return
	}
	if req.SpreadHistory != nil {
		req.Reply <- s.buildSpreadHistoryResponse(*req.SpreadHistory)
	}
}

// findSpreadHistory locates the SpreadHistory for an (a, b) exchange pair
// and instrument, trying both directions: processSpreadChange only ever
// records history under whichever exchange actually changed (the "self"
// side), which need not be a in the (a, b) order the caller passed in. The
// returned self/other identify whichever side the history was actually
// found under, so callers must label their response from these, not from
// the original a/b order.
func (s *Scanner) findSpreadHistory(a, b types.ExchangeId, inst types.Instrument) (self, other types.ExchangeId, selfMD *InstrumentMarketData, hist *SpreadHistory, ok bool) {
	if byInst, ok := s.exchangeData[a]; ok {
		if md, ok := byInst[inst]; ok {
			if h, ok := md.Spreads[b]; ok {
				return a, b, md, h, true
			}
		}
	}
	if byInst, ok := s.exchangeData[b]; ok {
		if md, ok := byInst[inst]; ok {
			if h, ok := md.Spreads[a]; ok {
				return b, a, md, h, true
			}
		}
	}
	return 0, 0, nil, nil, false
}

func (s *Scanner) buildTopSpreads() []SpreadResponse {
	entries := s.spreadsSorted.Snapshot()
	out := make([]SpreadResponse, 0, len(entries))
	for _, entry := range entries {
		base, quote, baseMD, hist, ok := s.findSpreadHistory(entry.Key.ExchangeA, entry.Key.ExchangeB, entry.Key.Instrument)
		if !ok {
			continue
		}
		quoteMD := s.exchangeData[quote][entry.Key.Instrument]
		if quoteMD == nil {
			continue
		}
		out = append(out, SpreadResponse{
			BaseExchange:        base,
			QuoteExchange:       quote,
			Instrument:          entry.Key.Instrument,
			LatestSpreads:       hist.LatestSpreads,
			BaseTradeAverage:    tradeAverage(baseMD.Trades),
			QuoteTradeAverage:   tradeAverage(quoteMD.Trades),
			BaseNetwork:         s.networksFor(base, entry.Key.Instrument.Base),
			QuoteNetwork:        s.networksFor(quote, entry.Key.Instrument.Base),
			BaseBookConnected:   baseMD.BookConnected,
			BaseTradeConnected:  baseMD.TradeConnected,
			QuoteBookConnected:  quoteMD.BookConnected,
			QuoteTradeConnected: quoteMD.TradeConnected,
		})
	}
	return out
}

func (s *Scanner) buildSpreadHistoryResponse(req SpreadHistoryRequest) Response {
	base, quote, _, hist, ok := s.findSpreadHistory(req.BaseExchange, req.QuoteExchange, req.Instrument)
	if !ok {
		return Response{CouldNotFindHistory: true}
	}
	return Response{SpreadHistory: &SpreadHistoryResponse{
		BaseExchange:  base,
		QuoteExchange: quote,
		Instrument:    req.Instrument,
		History:       *hist,
	}}
}

func (s *Scanner) networksFor(exchange types.ExchangeId, coin string) []types.NetworkSpec {
	var out []types.NetworkSpec
	for key, spec := range s.networkStatus {
		if key.Exchange == exchange && key.Coin == coin {
			out = append(out, spec)
		}
	}
	return out
}

func tradeAverage(w *Windowed[types.Trade]) TradeAverage {
	items := w.Items()
	if len(items) == 0 {
		return TradeAverage{}
	}
	var sumPrice, sumSize float64
	for _, it := range items {
		sumPrice += it.Value.Price
		sumSize += it.Value.Size
	}
	n := float64(len(items))
	return TradeAverage{AveragePrice: sumPrice / n, AverageSize: sumSize / n, SampleCount: len(items)}
}
