package adapter

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/haaandolo/rotom-sub000/internal/wsclient"
	"github.com/haaandolo/rotom-sub000/pkg/types"
)

const (
	poloniexWSURL      = "wss://ws.poloniex.com/ws/public"
	poloniexPingPeriod = 25 * time.Second
)

// Poloniex implements Adapter for Poloniex's public spot market data.
// Poloniex streams full book snapshots on every "book" message (there is
// no sequence-numbered delta protocol), so its book updater is trivial —
// see internal/book.PoloniexUpdater. It requires an explicit
// {"event":"ping"} text frame every 25s or the server closes the socket.
type Poloniex struct{}

func NewPoloniex() *Poloniex { return &Poloniex{} }

func (p *Poloniex) ID() types.ExchangeId { return types.ExchangePoloniex }

func (p *Poloniex) Supports(kind types.StreamKind) bool {
	switch kind {
	case types.StreamL2, types.StreamTrades, types.StreamConnectionStatus:
		return true
	default:
		return false
	}
}

func (p *Poloniex) WSURL(insts []types.Instrument) string {
	return poloniexWSURL
}

func (p *Poloniex) WireSymbol(inst types.Instrument) string {
	return strings.ToUpper(inst.Base) + "_" + strings.ToUpper(inst.Quote)
}

func (p *Poloniex) ParseSymbol(wire string) (types.Instrument, bool) {
	parts := strings.SplitN(wire, "_", 2)
	if len(parts) != 2 {
		return types.Instrument{}, false
	}
	return types.Instrument{Base: strings.ToLower(parts[0]), Quote: strings.ToLower(parts[1])}, true
}

func (p *Poloniex) channelName(stream types.StreamKind) string {
	switch stream {
	case types.StreamL2:
		return "book"
	case types.StreamTrades:
		return "trades"
	default:
		return ""
	}
}

func (p *Poloniex) Requests(stream types.StreamKind, insts []types.Instrument) [][]byte {
	channel := p.channelName(stream)
	if channel == "" {
		return nil
	}
	symbols := make([]string, 0, len(insts))
	for _, inst := range insts {
		symbols = append(symbols, p.WireSymbol(inst))
	}
	payload, _ := json.Marshal(poloniexSubscribeRequest{
		Event:   "subscribe",
		Channel: []string{channel},
		Symbols: symbols,
	})
	return [][]byte{payload}
}

func (p *Poloniex) Heartbeat() wsclient.HeartbeatSpec {
	payload, _ := json.Marshal(poloniexPing{Event: "ping"})
	return wsclient.HeartbeatSpec{Period: poloniexPingPeriod, Payload: payload}
}

func (p *Poloniex) ValidateSubscribeResponse(f wsclient.Frame) (bool, error) {
	if f.Kind != wsclient.FrameText {
		return false, nil
	}
	var resp poloniexSubscribeAck
	if ok, err := wsclient.DecodeFrame(f, &resp); !ok || err != nil {
		return false, nil
	}
	if resp.Event != "subscribe" {
		return false, nil
	}
	// Poloniex acks by echoing the channel/symbols it accepted; an empty
	// channel on an ack frame is the closest signal to a nack this API
	// exposes, so treat it as one.
	if resp.Channel == "" {
		return true, &subscribeRejected{}
	}
	return true, nil
}

func (p *Poloniex) SnapshotURL(inst types.Instrument) string {
	// Poloniex has no standalone REST book-snapshot endpoint; the first
	// WS "book" message for a symbol is itself the snapshot.
	return ""
}

func (p *Poloniex) TickerInfoURL(inst types.Instrument) string {
	return "https://api.poloniex.com/markets/" + p.WireSymbol(inst)
}

type subscribeRejected struct{}

func (e *subscribeRejected) Error() string { return "poloniex: subscription rejected" }

// ————————————————————————————————————————————————————————————————————————
// Wire shapes
// ————————————————————————————————————————————————————————————————————————

type poloniexSubscribeRequest struct {
	Event   string   `json:"event"`
	Channel []string `json:"channel"`
	Symbols []string `json:"symbols"`
}

type poloniexPing struct {
	Event string `json:"event"`
}

type poloniexSubscribeAck struct {
	Event   string `json:"event"`
	Channel string `json:"channel"`
}

// PoloniexBookMessage is a full order-book push on the "book" channel.
// Poloniex always sends the complete book, never a delta; action is
// "snapshot" on the first message per symbol and "update" thereafter, but
// both carry the complete bid/ask vectors in this API.
type PoloniexBookMessage struct {
	Channel string              `json:"channel"`
	Data    []PoloniexBookFrame `json:"data"`
}

type PoloniexBookFrame struct {
	Symbol    string     `json:"symbol"`
	CreatedAt int64      `json:"createTime"`
	Asks      [][]string `json:"asks"`
	Bids      [][]string `json:"bids"`
	ID        uint64     `json:"id"`
	Timestamp int64      `json:"ts"`
}

// PoloniexTradesMessage is a trades-channel push, possibly batching
// several fills per message.
type PoloniexTradesMessage struct {
	Channel string                `json:"channel"`
	Data    []PoloniexTradeRecord `json:"data"`
}

type PoloniexTradeRecord struct {
	Symbol    string `json:"symbol"`
	Amount    string `json:"amount"`
	Quantity  string `json:"quantity"`
	TakerSide string `json:"takerSide"`
	Price     string `json:"price"`
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PoloniexTickerInfo is the REST GET /markets/{symbol} response, trimmed
// to the tick-size-relevant field: a decimal exponent, not a literal tick.
type PoloniexTickerInfo struct {
	Symbol     string `json:"symbol"`
	PriceScale int    `json:"priceScale"`
}

// TickSizeFromPriceScale converts Poloniex's priceScale exponent (number
// of decimal places) into the same tick-size float other adapters report.
func TickSizeFromPriceScale(scale int) float64 {
	tick := decimal.New(1, -int32(scale))
	f, _ := tick.Float64()
	return f
}

// ParsePoloniexLevels mirrors ParseBinanceLevels for Poloniex's [price,
// size] string pairs.
func ParsePoloniexLevels(raw [][]string) []types.Level {
	return ParseBinanceLevels(raw)
}
