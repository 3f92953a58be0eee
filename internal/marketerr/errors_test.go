package marketerr

import (
	"errors"
	"testing"
)

func TestDeserialiseErrorUnwraps(t *testing.T) {
	cause := errors.New("bad json")
	err := &DeserialiseError{Payload: "{}", Cause: cause}
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find the wrapped cause")
	}
}

func TestWebSocketDisconnectedErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := &WebSocketDisconnectedError{Cause: cause}
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find the wrapped cause")
	}
}

func TestErrorMessagesIncludeContext(t *testing.T) {
	cases := []error{
		&SubscribeError{Exchange: "binance_spot", Reason: "timeout"},
		&InvalidSequenceError{Symbol: "BTCUSDT", PrevLastUpdateID: 1, FirstUpdateID: 3},
		&TickSizeError{Base: "btc", Quote: "usdt", Exchange: "binance_spot"},
		&OrderBookFindError{Symbol: "BTCUSDT"},
		&CouldNotFindSpreadHistory{BaseExchange: "binance_spot", QuoteExchange: "poloniex", Instrument: "btc_usdt"},
	}
	for _, err := range cases {
		if err.Error() == "" {
			t.Fatalf("expected non-empty error message for %T", err)
		}
	}
}
