package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/haaandolo/rotom-sub000/internal/transform"
	"github.com/haaandolo/rotom-sub000/pkg/types"
)

func bookEvent(exchange types.ExchangeId, bid, ask float64) transform.Output {
	return transform.Output{
		Stream: types.StreamL2,
		Book: &types.MarketEvent[types.BookData]{
			ExchangeTime: time.Now(),
			ReceivedTime: time.Now(),
			Exchange:     exchange,
			Instrument:   types.Instrument{Base: "btc", Quote: "usdt"},
			EventData: types.BookData{
				Bids: []types.Level{{Price: bid, Size: 1}},
				Asks: []types.Level{{Price: ask, Size: 1}},
			},
		},
	}
}

func TestComputeSpreadsFormulas(t *testing.T) {
	scBid := &types.Level{Price: 100}
	scAsk := &types.Level{Price: 101}
	otherBid := &types.Level{Price: 102}
	otherAsk := &types.Level{Price: 103}

	spreads := computeSpreads(scBid, scAsk, otherBid, otherAsk)

	want := func(got *float64, expected float64) {
		if got == nil {
			t.Fatalf("expected non-nil spread")
		}
		if *got != expected {
			t.Fatalf("expected %v, got %v", expected, *got)
		}
	}
	want(spreads.TakeTake, otherBid.Price/scAsk.Price-1)
	want(spreads.TakeMake, otherAsk.Price/scAsk.Price-1)
	want(spreads.MakeTake, otherBid.Price/scBid.Price-1)
	want(spreads.MakeMake, otherAsk.Price/scBid.Price-1)
}

func TestComputeSpreadsNilWhenCounterpartyMissing(t *testing.T) {
	scBid := &types.Level{Price: 100}
	scAsk := &types.Level{Price: 101}

	spreads := computeSpreads(scBid, scAsk, nil, nil)
	if spreads.TakeTake != nil || spreads.TakeMake != nil || spreads.MakeTake != nil || spreads.MakeMake != nil {
		t.Fatalf("expected all flavors nil with no counterparty data, got %+v", spreads)
	}
}

func approxEqual(t *testing.T, got, want float64) {
	t.Helper()
	const eps = 1e-9
	if got < want-eps || got > want+eps {
		t.Fatalf("expected ~%v, got %v", want, got)
	}
}

// TestScannerRanksSpreadAcrossExchanges establishes both exchanges' books
// first (the initial Binance->Poloniex counterpart pairing computes a
// negative make-make spread and is never ranked), then drives a further
// change on the Poloniex side — the canonical "B" exchange of the pair —
// so the resulting positive spread's history is recorded only under
// Poloniex's own map (Poloniex.Spreads[Binance]), never under
// Binance.Spreads[Poloniex]. This exercises both the ranked round-trip
// through buildTopSpreads and the base/quote-independent lookup in
// buildSpreadHistoryResponse when the recorded direction is the reverse of
// the direction the caller queried in.
func TestScannerRanksSpreadAcrossExchanges(t *testing.T) {
	marketIn := make(chan transform.Output, 4)
	networkIn := make(chan types.MarketEvent[types.NetworkSpec])
	requests := make(chan Request)

	sc := New(marketIn, networkIn, requests)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sc.Run(ctx)

	marketIn <- bookEvent(types.ExchangeBinanceSpot, 100, 101)
	marketIn <- bookEvent(types.ExchangePoloniex, 102, 103)
	marketIn <- bookEvent(types.ExchangePoloniex, 90, 103)

	wantMakeMake := 101.0/90.0 - 1

	// Run polls requests before market data on every pass, so wait until
	// all three book events have been taken off marketIn; each is fully
	// processed before the next pass reaches the request poll.
	for len(marketIn) > 0 {
		time.Sleep(time.Millisecond)
	}

	reply := make(chan Response, 1)
	requests <- Request{TopSpreads: true, Reply: reply}

	select {
	case resp := <-reply:
		if len(resp.TopSpreads) != 1 {
			t.Fatalf("expected exactly one ranked spread entry, got %+v", resp.TopSpreads)
		}
		entry := resp.TopSpreads[0]
		if entry.BaseExchange != types.ExchangePoloniex || entry.QuoteExchange != types.ExchangeBinanceSpot {
			t.Fatalf("expected base/quote to reflect the recorded direction (poloniex/binance_spot), got %v/%v", entry.BaseExchange, entry.QuoteExchange)
		}
		if entry.LatestSpreads.MakeMake == nil {
			t.Fatalf("expected a populated make-make spread")
		}
		approxEqual(t, *entry.LatestSpreads.MakeMake, wantMakeMake)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for scanner response")
	}

	// Query in the opposite direction from how the history was recorded;
	// the fallback lookup must still find it.
	historyReply := make(chan Response, 1)
	requests <- Request{
		SpreadHistory: &SpreadHistoryRequest{
			BaseExchange:  types.ExchangeBinanceSpot,
			QuoteExchange: types.ExchangePoloniex,
			Instrument:    types.Instrument{Base: "btc", Quote: "usdt"},
		},
		Reply: historyReply,
	}

	select {
	case resp := <-historyReply:
		if resp.CouldNotFindHistory {
			t.Fatalf("expected spread history to be found regardless of query direction")
		}
		if resp.SpreadHistory.BaseExchange != types.ExchangePoloniex || resp.SpreadHistory.QuoteExchange != types.ExchangeBinanceSpot {
			t.Fatalf("expected response to reflect the recorded direction (poloniex/binance_spot), got %v/%v",
				resp.SpreadHistory.BaseExchange, resp.SpreadHistory.QuoteExchange)
		}
		if resp.SpreadHistory.History.LatestSpreads.MakeMake == nil {
			t.Fatalf("expected a populated make-make spread in history")
		}
		approxEqual(t, *resp.SpreadHistory.History.LatestSpreads.MakeMake, wantMakeMake)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for scanner response")
	}

	// Querying in the direction it was actually recorded must also succeed.
	forwardReply := make(chan Response, 1)
	requests <- Request{
		SpreadHistory: &SpreadHistoryRequest{
			BaseExchange:  types.ExchangePoloniex,
			QuoteExchange: types.ExchangeBinanceSpot,
			Instrument:    types.Instrument{Base: "btc", Quote: "usdt"},
		},
		Reply: forwardReply,
	}

	select {
	case resp := <-forwardReply:
		if resp.CouldNotFindHistory {
			t.Fatalf("expected spread history to be found in its recorded direction")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for scanner response")
	}
}

func TestScannerSpreadHistoryNotFoundSignal(t *testing.T) {
	marketIn := make(chan transform.Output)
	networkIn := make(chan types.MarketEvent[types.NetworkSpec])
	requests := make(chan Request)

	sc := New(marketIn, networkIn, requests)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sc.Run(ctx)

	reply := make(chan Response, 1)
	requests <- Request{
		SpreadHistory: &SpreadHistoryRequest{
			BaseExchange:  types.ExchangeBinanceSpot,
			QuoteExchange: types.ExchangePoloniex,
			Instrument:    types.Instrument{Base: "btc", Quote: "usdt"},
		},
		Reply: reply,
	}

	select {
	case resp := <-reply:
		if !resp.CouldNotFindHistory {
			t.Fatalf("expected CouldNotFindHistory for an unseen pair, got %+v", resp)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for scanner response")
	}
}
