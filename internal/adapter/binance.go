package adapter

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/haaandolo/rotom-sub000/internal/marketerr"
	"github.com/haaandolo/rotom-sub000/internal/wsclient"
	"github.com/haaandolo/rotom-sub000/pkg/types"
)

const (
	binanceWSBase              = "wss://stream.binance.com:9443/stream"
	binanceSnapshotURL         = "https://api.binance.com/api/v3/depth"
	binanceTickerInfoURL       = "https://api.binance.us/api/v3/exchangeInfo"
)

// BinanceSpot implements Adapter for Binance's public spot market data.
// It multiplexes every instrument on a single combined-stream socket and
// relies on the book updater's U/u sequence reconciliation (see
// internal/book) rather than any WS-level heartbeat — Binance's combined
// stream sends protocol-level pings the gorilla/websocket client answers
// automatically, so Heartbeat is a no-op here.
type BinanceSpot struct{}

func NewBinanceSpot() *BinanceSpot { return &BinanceSpot{} }

func (b *BinanceSpot) ID() types.ExchangeId { return types.ExchangeBinanceSpot }

func (b *BinanceSpot) Supports(kind types.StreamKind) bool {
	switch kind {
	case types.StreamL2, types.StreamTrade, types.StreamConnectionStatus:
		return true
	default:
		return false
	}
}

func (b *BinanceSpot) WSURL(insts []types.Instrument) string {
	return binanceWSBase
}

func (b *BinanceSpot) WireSymbol(inst types.Instrument) string {
	return strings.ToUpper(inst.Base + inst.Quote)
}

func (b *BinanceSpot) ParseSymbol(wire string) (types.Instrument, bool) {
	// Binance gives no separator; callers must match against the known
	// instrument set built at subscribe time. This best-effort parse
	// assumes a 3-4 char quote suffix (usdt/usdc/btc/eth), matching the
	// instruments this adapter was actually subscribed with in practice.
	lower := strings.ToLower(wire)
	for _, quote := range []string{"usdt", "usdc", "busd", "btc", "eth"} {
		if strings.HasSuffix(lower, quote) && len(lower) > len(quote) {
			return types.Instrument{Base: strings.TrimSuffix(lower, quote), Quote: quote}, true
		}
	}
	return types.Instrument{}, false
}

func (b *BinanceSpot) streamName(stream types.StreamKind, inst types.Instrument) string {
	sym := strings.ToLower(b.WireSymbol(inst))
	switch stream {
	case types.StreamL2:
		return sym + "@depth"
	case types.StreamTrade:
		return sym + "@trade"
	default:
		return ""
	}
}

func (b *BinanceSpot) Requests(stream types.StreamKind, insts []types.Instrument) [][]byte {
	streams := make([]string, 0, len(insts))
	for _, inst := range insts {
		if name := b.streamName(stream, inst); name != "" {
			streams = append(streams, name)
		}
	}
	if len(streams) == 0 {
		return nil
	}
	payload, _ := json.Marshal(binanceSubscribeRequest{
		Method: "SUBSCRIBE",
		Params: streams,
		ID:     1,
	})
	return [][]byte{payload}
}

func (b *BinanceSpot) Heartbeat() wsclient.HeartbeatSpec {
	return wsclient.HeartbeatSpec{}
}

func (b *BinanceSpot) ValidateSubscribeResponse(f wsclient.Frame) (bool, error) {
	if f.Kind != wsclient.FrameText {
		return false, nil
	}
	var resp binanceSubscribeResponse
	if ok, err := wsclient.DecodeFrame(f, &resp); !ok || err != nil {
		return false, nil
	}
	if resp.ID == 0 {
		return false, nil
	}
	if resp.Error != nil {
		return true, &marketerr.SubscribeError{Exchange: "binance_spot", Reason: resp.Error.Msg}
	}
	return true, nil
}

func (b *BinanceSpot) SnapshotURL(inst types.Instrument) string {
	return binanceSnapshotURL
}

func (b *BinanceSpot) TickerInfoURL(inst types.Instrument) string {
	return binanceTickerInfoURL
}

// ————————————————————————————————————————————————————————————————————————
// Wire shapes
// ————————————————————————————————————————————————————————————————————————

type binanceSubscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int      `json:"id"`
}

type binanceSubscribeResponse struct {
	ID     int    `json:"id"`
	Result any    `json:"result"`
	Error  *struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	} `json:"error,omitempty"`
}

// BinanceCombinedEnvelope wraps every message on the combined-stream
// socket; Stream identifies which subscription the Data payload belongs
// to (e.g. "btcusdt@depth").
type BinanceCombinedEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// BinanceDepthUpdate is one L2 delta on the depth stream.
type BinanceDepthUpdate struct {
	EventType     string     `json:"e"`
	EventTime     int64      `json:"E"`
	Symbol        string     `json:"s"`
	FirstUpdateID uint64     `json:"U"`
	LastUpdateID  uint64     `json:"u"`
	Bids          [][]string `json:"b"`
	Asks          [][]string `json:"a"`
}

// BinanceTradeEvent is a single trade on the trade stream.
type BinanceTradeEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Price     string `json:"p"`
	Quantity  string `json:"q"`
	BuyerMkr  bool   `json:"m"`
}

// BinanceDepthSnapshot is the REST GET /api/v3/depth response.
type BinanceDepthSnapshot struct {
	LastUpdateID uint64     `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// BinanceExchangeInfo is the REST GET /api/v3/exchangeInfo response,
// trimmed to the fields needed for tick-size extraction.
type BinanceExchangeInfo struct {
	Symbols []struct {
		Symbol  string `json:"symbol"`
		Filters []struct {
			FilterType string `json:"filterType"`
			TickSize   string `json:"tickSize"`
		} `json:"filters"`
	} `json:"symbols"`
}

// FetchBinanceSnapshot retrieves the REST depth snapshot for inst.
func FetchBinanceSnapshot(ctx context.Context, client *resty.Client, inst types.Instrument) (*BinanceDepthSnapshot, error) {
	b := &BinanceSpot{}
	var out BinanceDepthSnapshot
	resp, err := client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"symbol": b.WireSymbol(inst), "limit": "1000"}).
		SetResult(&out).
		Get(binanceSnapshotURL)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, &marketerr.SubscribeError{Exchange: "binance_spot", Reason: "snapshot http " + resp.Status()}
	}
	return &out, nil
}

// FetchBinanceTickSize retrieves and extracts the PRICE_FILTER tick size
// for inst, returning a recoverable TickSizeError if absent.
func FetchBinanceTickSize(ctx context.Context, client *resty.Client, inst types.Instrument) (float64, error) {
	b := &BinanceSpot{}
	var out BinanceExchangeInfo
	resp, err := client.R().
		SetContext(ctx).
		SetQueryParam("symbol", b.WireSymbol(inst)).
		SetResult(&out).
		Get(binanceTickerInfoURL)
	if err != nil {
		return 0, err
	}
	if resp.IsError() || len(out.Symbols) == 0 {
		return 0, &marketerr.TickSizeError{Base: inst.Base, Quote: inst.Quote, Exchange: "binance_spot"}
	}
	for _, filter := range out.Symbols[0].Filters {
		if filter.FilterType == "PRICE_FILTER" {
			tick, err := decimal.NewFromString(filter.TickSize)
			if err != nil {
				return 0, &marketerr.TickSizeError{Base: inst.Base, Quote: inst.Quote, Exchange: "binance_spot"}
			}
			f, _ := tick.Float64()
			return f, nil
		}
	}
	return 0, &marketerr.TickSizeError{Base: inst.Base, Quote: inst.Quote, Exchange: "binance_spot"}
}

// ParseBinanceLevels converts wire [price,size] string pairs into Levels,
// using shopspring/decimal so precision survives the string→float
// conversion even for exotic tick sizes.
func ParseBinanceLevels(raw [][]string) []types.Level {
	out := make([]types.Level, 0, len(raw))
	for _, pair := range raw {
		if len(pair) != 2 {
			continue
		}
		price, err1 := decimal.NewFromString(pair[0])
		size, err2 := decimal.NewFromString(pair[1])
		if err1 != nil || err2 != nil {
			continue
		}
		p, _ := price.Float64()
		s, _ := size.Float64()
		out = append(out, types.Level{Price: p, Size: s})
	}
	return out
}
