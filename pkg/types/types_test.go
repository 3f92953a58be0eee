package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMarketEventJSONRoundTrip(t *testing.T) {
	in := MarketEvent[Trade]{
		ExchangeTime: time.UnixMilli(1000),
		ReceivedTime: time.UnixMilli(1001),
		Exchange:     ExchangeBinanceSpot,
		Instrument:   Instrument{Base: "btc", Quote: "usdt"},
		EventData:    Trade{Price: 100.5, Size: 1.25, Side: SideSell},
	}

	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out MarketEvent[Trade]
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	// time.Time values are compared with Equal: decoding sets a UTC
	// location where time.UnixMilli set Local, so == on the struct fails.
	if !out.ExchangeTime.Equal(in.ExchangeTime) || !out.ReceivedTime.Equal(in.ReceivedTime) ||
		out.Exchange != in.Exchange || out.Instrument != in.Instrument || out.EventData != in.EventData {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestInstrumentString(t *testing.T) {
	if got := (Instrument{Base: "btc", Quote: "usdt"}).String(); got != "btc_usdt" {
		t.Fatalf("expected btc_usdt, got %s", got)
	}
}

func TestLevelLess(t *testing.T) {
	a := Level{Price: 1, Size: 2}
	b := Level{Price: 1, Size: 3}
	if !a.Less(b) {
		t.Fatalf("expected equal-price level to order by size")
	}
	if (Level{Price: 2}).Less(Level{Price: 1}) {
		t.Fatalf("expected lower price to sort first")
	}
}

func TestExchangeIdString(t *testing.T) {
	if ExchangeBinanceSpot.String() != "binance_spot" {
		t.Fatalf("unexpected string for ExchangeBinanceSpot")
	}
	if ExchangePoloniex.String() != "poloniex" {
		t.Fatalf("unexpected string for ExchangePoloniex")
	}
}
