package transform

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/haaandolo/rotom-sub000/internal/adapter"
	"github.com/haaandolo/rotom-sub000/internal/book"
	"github.com/haaandolo/rotom-sub000/internal/wsclient"
	"github.com/haaandolo/rotom-sub000/pkg/types"
)

func newTestPoloniexTransformer() *PoloniexTransformer {
	b := book.NewOrderBook(0.01)
	return &PoloniexTransformer{
		adapter: adapter.NewPoloniex(),
		books: map[string]*poloniexBookEntry{
			"BTC_USDT": {instrument: types.Instrument{Base: "btc", Quote: "usdt"}, book: b, updater: &book.PoloniexUpdater{}},
		},
	}
}

func TestPoloniexTransformBenignPongIgnored(t *testing.T) {
	tr := newTestPoloniexTransformer()

	outs, err := tr.Transform(wsclient.Frame{Kind: wsclient.FrameText, Data: []byte(`{"event":"pong"}`)})
	if err != nil || outs != nil {
		t.Fatalf("expected pong to be silently ignored, got outs=%v err=%v", outs, err)
	}
}

func TestPoloniexTransformBookFrame(t *testing.T) {
	tr := newTestPoloniexTransformer()

	msg := adapter.PoloniexBookMessage{
		Channel: "book",
		Data: []adapter.PoloniexBookFrame{{
			Symbol: "BTC_USDT",
			Bids:   [][]string{{"100.00", "1"}},
			Asks:   [][]string{{"100.01", "1"}},
			ID:     1,
			Timestamp: time.Now().UnixMilli(),
		}},
	}
	raw, _ := json.Marshal(msg)

	outs, err := tr.Transform(wsclient.Frame{Kind: wsclient.FrameText, Data: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outs) != 1 || outs[0].Book == nil {
		t.Fatalf("expected one book output, got %+v", outs)
	}
}

func TestPoloniexTransformTradesFrame(t *testing.T) {
	tr := newTestPoloniexTransformer()

	msg := adapter.PoloniexTradesMessage{
		Channel: "trades",
		Data: []adapter.PoloniexTradeRecord{{
			Symbol: "BTC_USDT", Price: "100.25", Quantity: "0.1", TakerSide: "sell",
		}},
	}
	raw, _ := json.Marshal(msg)

	outs, err := tr.Transform(wsclient.Frame{Kind: wsclient.FrameText, Data: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outs) != 1 || outs[0].Trade == nil {
		t.Fatalf("expected one trade output, got %+v", outs)
	}
	if outs[0].Trade.EventData.Side != types.SideSell {
		t.Fatalf("expected sell side, got %v", outs[0].Trade.EventData.Side)
	}
}
