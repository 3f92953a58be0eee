package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/haaandolo/rotom-sub000/internal/marketerr"
	"github.com/haaandolo/rotom-sub000/internal/transform"
	"github.com/haaandolo/rotom-sub000/internal/wsclient"
	"github.com/haaandolo/rotom-sub000/pkg/types"
)

// fakeAdapter is the minimal adapter.Adapter needed to drive Run through its
// connect step without a live exchange: WSURL points nowhere reachable, so
// wsclient.Connect fails immediately and deterministically.
type fakeAdapter struct{ id types.ExchangeId }

func (f fakeAdapter) ID() types.ExchangeId                              { return f.id }
func (f fakeAdapter) Supports(types.StreamKind) bool                    { return true }
func (f fakeAdapter) WSURL([]types.Instrument) string                   { return "ws://127.0.0.1:1/no-such-listener" }
func (f fakeAdapter) Requests(types.StreamKind, []types.Instrument) [][]byte { return nil }
func (f fakeAdapter) Heartbeat() wsclient.HeartbeatSpec                 { return wsclient.HeartbeatSpec{} }
func (f fakeAdapter) ValidateSubscribeResponse(wsclient.Frame) (bool, error) {
	return true, nil
}
func (f fakeAdapter) WireSymbol(types.Instrument) string                   { return "" }
func (f fakeAdapter) ParseSymbol(string) (types.Instrument, bool)          { return types.Instrument{}, false }
func (f fakeAdapter) SnapshotURL(types.Instrument) string                  { return "" }
func (f fakeAdapter) TickerInfoURL(types.Instrument) string                { return "" }

func TestRunReturnsFatalErrorOnFirstConnectFailure(t *testing.T) {
	s := &Supervisor{
		Exchange:    types.ExchangeBinanceSpot,
		Stream:      types.StreamL2,
		Instruments: []types.Instrument{{Base: "btc", Quote: "usdt"}},
		Adapter:     fakeAdapter{id: types.ExchangeBinanceSpot},
		NewTransform: func(context.Context) (transform.Transformer, error) {
			t.Fatal("transform factory should not be reached when connect fails")
			return nil, nil
		},
		Out: make(chan transform.Output, 1),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := s.Run(ctx)
	if err == nil {
		t.Fatalf("expected the first failed connect attempt to return a fatal error")
	}
	var subErr *marketerr.SubscribeError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected *marketerr.SubscribeError, got %T (%v)", err, err)
	}
}

func TestRunStopsCleanlyWhenContextCancelledBeforeConnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &Supervisor{
		Exchange: types.ExchangeBinanceSpot,
		Stream:   types.StreamL2,
		Adapter:  fakeAdapter{id: types.ExchangeBinanceSpot},
		Out:      make(chan transform.Output, 1),
	}

	if err := s.Run(ctx); err != nil {
		t.Fatalf("expected nil error on pre-cancelled context, got %v", err)
	}
}

func TestSendDropsOldestWhenChannelFull(t *testing.T) {
	out := make(chan transform.Output, 1)
	s := &Supervisor{Exchange: types.ExchangeBinanceSpot, Stream: types.StreamL2, Out: out}

	first := transform.Output{Stream: types.StreamTrade}
	second := transform.Output{Stream: types.StreamL2}

	s.send(first)
	s.send(second)

	if len(out) != 1 {
		t.Fatalf("expected exactly one buffered item after drop-oldest, got %d", len(out))
	}
	got := <-out
	if got.Stream != types.StreamL2 {
		t.Fatalf("expected the newest item to survive, got %+v", got)
	}
}
