package transform

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/haaandolo/rotom-sub000/internal/adapter"
	"github.com/haaandolo/rotom-sub000/internal/book"
	"github.com/haaandolo/rotom-sub000/internal/marketerr"
	"github.com/haaandolo/rotom-sub000/internal/wsclient"
	"github.com/haaandolo/rotom-sub000/pkg/types"
)

type binanceBookEntry struct {
	instrument types.Instrument
	book       *book.OrderBook
	updater    *book.BinanceUpdater
}

// BinanceTransformer is a MultiBook transformer (per §4.4): it owns one
// OrderBook+BinanceUpdater per subscribed instrument, keyed by wire
// symbol, and is stateless with respect to trades (direct symbol lookup).
type BinanceTransformer struct {
	adapter *adapter.BinanceSpot
	books   map[string]*binanceBookEntry // wire symbol -> entry
}

// NewBinanceTransformer performs the async snapshot+tick-size REST fetch
// for every instrument before the caller starts consuming the WS stream,
// per §4.4's "construction is async" requirement.
func NewBinanceTransformer(ctx context.Context, client *resty.Client, insts []types.Instrument) (*BinanceTransformer, error) {
	a := &adapter.BinanceSpot{}
	t := &BinanceTransformer{adapter: a, books: make(map[string]*binanceBookEntry, len(insts))}
	for _, inst := range insts {
		b, upd, err := book.InitBinanceBook(ctx, client, inst)
		if err != nil {
			return nil, err
		}
		t.books[a.WireSymbol(inst)] = &binanceBookEntry{instrument: inst, book: b, updater: upd}
	}
	return t, nil
}

func (t *BinanceTransformer) Transform(f wsclient.Frame) ([]Output, error) {
	var env adapter.BinanceCombinedEnvelope
	if ok, err := wsclient.DecodeFrame(f, &env); !ok {
		return nil, err
	}

	switch {
	case strings.HasSuffix(env.Stream, "@depth"):
		var delta adapter.BinanceDepthUpdate
		if err := json.Unmarshal(env.Data, &delta); err != nil {
			return nil, &marketerr.DeserialiseError{Payload: string(env.Data), Cause: err}
		}
		entry, ok := t.books[delta.Symbol]
		if !ok {
			return nil, &marketerr.OrderBookFindError{Symbol: delta.Symbol}
		}
		data, applied, err := entry.updater.Update(entry.book, delta)
		if err != nil {
			return nil, err
		}
		if !applied {
			return nil, nil
		}
		return []Output{{
			Stream: types.StreamL2,
			Book: &types.MarketEvent[types.BookData]{
				ExchangeTime: msToTime(delta.EventTime),
				ReceivedTime: now(),
				Exchange:     types.ExchangeBinanceSpot,
				Instrument:   entry.instrument,
				EventData:    data,
			},
		}}, nil

	case strings.HasSuffix(env.Stream, "@trade"):
		var tr adapter.BinanceTradeEvent
		if err := json.Unmarshal(env.Data, &tr); err != nil {
			return nil, &marketerr.DeserialiseError{Payload: string(env.Data), Cause: err}
		}
		entry, ok := t.books[tr.Symbol]
		if !ok {
			return nil, &marketerr.OrderBookFindError{Symbol: tr.Symbol}
		}
		// Taker is the side opposite the maker; BuyerMkr=true means the
		// buyer posted the resting order, so the taker sold.
		side := types.SideBuy
		if tr.BuyerMkr {
			side = types.SideSell
		}
		price := parseFloat(tr.Price)
		size := parseFloat(tr.Quantity)
		return []Output{{
			Stream: types.StreamTrade,
			Trade: &types.MarketEvent[types.Trade]{
				ExchangeTime: msToTime(tr.EventTime),
				ReceivedTime: now(),
				Exchange:     types.ExchangeBinanceSpot,
				Instrument:   entry.instrument,
				EventData:    types.Trade{Price: price, Size: size, Side: side},
			},
		}}, nil

	default:
		// Unknown stream suffix: not one of the benign keep-alive shapes
		// for this exchange, so it is logged as a non-terminal error by
		// the supervisor rather than silently dropped here.
		return nil, &marketerr.DeserialiseError{Payload: string(f.Data), Cause: errUnknownStream}
	}
}

var errUnknownStream = unknownStreamError{}

type unknownStreamError struct{}

func (unknownStreamError) Error() string { return "unrecognized binance combined-stream name" }
