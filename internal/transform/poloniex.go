package transform

import (
	"context"
	"encoding/json"

	"github.com/go-resty/resty/v2"

	"github.com/haaandolo/rotom-sub000/internal/adapter"
	"github.com/haaandolo/rotom-sub000/internal/book"
	"github.com/haaandolo/rotom-sub000/internal/marketerr"
	"github.com/haaandolo/rotom-sub000/internal/wsclient"
	"github.com/haaandolo/rotom-sub000/pkg/types"
)

// acceptablePoloniexPayloads is the closed, hard-coded whitelist of
// benign keep-alive replies that must not be logged as errors (§4.5,
// §9). Evidenced in original_source/rotom-data/src/exchange/poloniex:
// the server's pong reply to our ping heartbeat.
var acceptablePoloniexPayloads = map[string]bool{
	`{"event":"pong"}`: true,
	"PONG":             true,
}

type poloniexBookEntry struct {
	instrument types.Instrument
	book       *book.OrderBook
	updater    *book.PoloniexUpdater
}

// PoloniexTransformer is a MultiBook transformer even though Poloniex's
// updater never reports a resync error — it still needs per-instrument
// book state to satisfy the "own a book updater per instrument" shape
// for symmetry with BinanceTransformer and §4.3's "other exchanges"
// trivial-updater case.
type PoloniexTransformer struct {
	adapter *adapter.Poloniex
	books   map[string]*poloniexBookEntry // wire symbol -> entry
}

func NewPoloniexTransformer(ctx context.Context, client *resty.Client, insts []types.Instrument) (*PoloniexTransformer, error) {
	a := &adapter.Poloniex{}
	t := &PoloniexTransformer{adapter: a, books: make(map[string]*poloniexBookEntry, len(insts))}
	for _, inst := range insts {
		b, upd, err := book.InitPoloniexBook(ctx, client, inst)
		if err != nil {
			return nil, err
		}
		t.books[a.WireSymbol(inst)] = &poloniexBookEntry{instrument: inst, book: b, updater: upd}
	}
	return t, nil
}

func (t *PoloniexTransformer) Transform(f wsclient.Frame) ([]Output, error) {
	if f.Kind == wsclient.FrameText && acceptablePoloniexPayloads[string(f.Data)] {
		return nil, nil
	}

	var probe struct {
		Channel string `json:"channel"`
		Event   string `json:"event"`
	}
	if err := json.Unmarshal(f.Data, &probe); err != nil {
		return nil, &marketerr.DeserialiseError{Payload: string(f.Data), Cause: err}
	}
	if probe.Event != "" {
		// subscribe/unsubscribe acks are consumed by the adapter's
		// validator before the transformer ever sees post-subscribe
		// traffic reach here; any other event-tagged frame is ignorable.
		return nil, nil
	}

	switch probe.Channel {
	case "book":
		var msg adapter.PoloniexBookMessage
		if err := json.Unmarshal(f.Data, &msg); err != nil {
			return nil, &marketerr.DeserialiseError{Payload: string(f.Data), Cause: err}
		}
		outputs := make([]Output, 0, len(msg.Data))
		for _, frame := range msg.Data {
			entry, ok := t.books[frame.Symbol]
			if !ok {
				return nil, &marketerr.OrderBookFindError{Symbol: frame.Symbol}
			}
			data, applied := entry.updater.Update(entry.book, frame)
			if !applied {
				continue
			}
			outputs = append(outputs, Output{
				Stream: types.StreamL2,
				Book: &types.MarketEvent[types.BookData]{
					ExchangeTime: msToTime(frame.Timestamp),
					ReceivedTime: now(),
					Exchange:     types.ExchangePoloniex,
					Instrument:   entry.instrument,
					EventData:    data,
				},
			})
		}
		return outputs, nil

	case "trades":
		var msg adapter.PoloniexTradesMessage
		if err := json.Unmarshal(f.Data, &msg); err != nil {
			return nil, &marketerr.DeserialiseError{Payload: string(f.Data), Cause: err}
		}
		outputs := make([]Output, 0, len(msg.Data))
		for _, rec := range msg.Data {
			entry, ok := t.books[rec.Symbol]
			if !ok {
				return nil, &marketerr.OrderBookFindError{Symbol: rec.Symbol}
			}
			side := types.SideBuy
			if rec.TakerSide == "sell" {
				side = types.SideSell
			}
			outputs = append(outputs, Output{
				Stream: types.StreamTrades,
				Trade: &types.MarketEvent[types.Trade]{
					ExchangeTime: msToTime(rec.Timestamp),
					ReceivedTime: now(),
					Exchange:     types.ExchangePoloniex,
					Instrument:   entry.instrument,
					EventData:    types.Trade{Price: parseFloat(rec.Price), Size: parseFloat(rec.Quantity), Side: side},
				},
			})
		}
		return outputs, nil

	default:
		return nil, &marketerr.DeserialiseError{Payload: string(f.Data), Cause: errUnknownStream}
	}
}
