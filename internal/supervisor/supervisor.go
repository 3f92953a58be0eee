// Package supervisor implements C5: the consumer supervisor that owns one
// adapter + transformer pair, drives the connect/subscribe/read lifecycle,
// classifies errors as terminal or transient, and reconnects with
// exponential back-off.
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/haaandolo/rotom-sub000/internal/adapter"
	"github.com/haaandolo/rotom-sub000/internal/marketerr"
	"github.com/haaandolo/rotom-sub000/internal/transform"
	"github.com/haaandolo/rotom-sub000/internal/wsclient"
	"github.com/haaandolo/rotom-sub000/pkg/types"
)

const (
	startBackoff = 125 * time.Millisecond
	maxBackoff   = 30 * time.Second
)

// TransformerFactory builds a fresh Transformer for one (re)connection,
// performing any REST init (book snapshots, tick sizes) it requires.
type TransformerFactory func(ctx context.Context) (transform.Transformer, error)

// Supervisor owns one exchange+stream-kind subscription group: a single
// WebSocket connection, its heartbeat, and the transformer routing its
// payloads to the shared output channel.
type Supervisor struct {
	Exchange    types.ExchangeId
	Stream      types.StreamKind
	Instruments []types.Instrument

	Adapter     adapter.Adapter
	NewTransform TransformerFactory
	RestClient  *resty.Client
	Out         chan<- transform.Output
	Logger      *slog.Logger
}

// Run drives the lifecycle state machine until ctx is cancelled. The first
// connect attempt's failure is returned as a fatal error to the caller;
// every subsequent failure is retried forever with doubling back-off.
func (s *Supervisor) Run(ctx context.Context) error {
	backoff := startBackoff
	attempt := 0

	for {
		if ctx.Err() != nil {
			return nil
		}
		attempt++

		err := s.connectAndRun(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			s.logger().Warn("consumer disconnected", "exchange", s.Exchange, "stream", s.Stream, "attempt", attempt, "error", err)
			if attempt == 1 {
				return &marketerr.SubscribeError{Exchange: s.Exchange.String(), Reason: err.Error()}
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (s *Supervisor) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// connectAndRun performs one full Connecting → Subscribing → Running
// cycle and returns when the connection terminates (error or ctx done).
func (s *Supervisor) connectAndRun(ctx context.Context) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	url := s.Adapter.WSURL(s.Instruments)
	conn, err := wsclient.Connect(connCtx, url)
	if err != nil {
		return err
	}
	defer conn.Close()
	// Closing the socket on cancellation unblocks ReadFrame below.
	go func() {
		<-connCtx.Done()
		conn.Close()
	}()

	tr, err := s.NewTransform(connCtx)
	if err != nil {
		return err
	}

	for _, req := range s.Adapter.Requests(s.Stream, s.Instruments) {
		if err := conn.Send(req); err != nil {
			return err
		}
	}

	wsclient.StartHeartbeat(connCtx, conn, s.Adapter.Heartbeat())

	subscribed := false
	s.emitStatus(types.WsDisconnected) // ensure a defined state; overwritten below on success

	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			if wsclient.IsDisconnected(err) {
				if subscribed {
					s.emitStatus(types.WsDisconnected)
				}
				return &marketerr.WebSocketDisconnectedError{Cause: err}
			}
			s.logger().Warn("transient websocket error", "exchange", s.Exchange, "error", err)
			continue
		}

		if !subscribed {
			ok, valErr := s.Adapter.ValidateSubscribeResponse(frame)
			if ok {
				if valErr != nil {
					return valErr
				}
				subscribed = true
				s.emitStatus(types.WsConnected)
				continue
			}
			// Not a subscription-response frame: Binance's combined
			// stream, for instance, may start delivering data before
			// any distinguishable ack arrives, so treat the group as
			// subscribed on this first non-ack frame and fall through
			// to the transformer.
			subscribed = true
			s.emitStatus(types.WsConnected)
		}

		outputs, xformErr := tr.Transform(frame)
		if xformErr != nil {
			if invalidSeq, ok := xformErr.(*marketerr.InvalidSequenceError); ok {
				s.emitStatus(types.WsDisconnected)
				return invalidSeq
			}
			if deser, ok := xformErr.(*marketerr.DeserialiseError); ok {
				s.logger().Debug("non-terminal deserialise error", "exchange", s.Exchange, "payload", deser.Payload)
				continue
			}
			if _, ok := xformErr.(*marketerr.OrderBookFindError); ok {
				s.logger().Warn("unmapped symbol", "exchange", s.Exchange, "error", xformErr)
				continue
			}
			s.logger().Warn("non-terminal transform error", "exchange", s.Exchange, "error", xformErr)
			continue
		}

		for _, out := range outputs {
			s.send(out)
		}
	}
}

func (s *Supervisor) emitStatus(kind types.WsStatusKind) {
	s.send(transform.Output{
		Stream: types.StreamConnectionStatus,
		Status: &types.MarketEvent[types.WsStatus]{
			ExchangeTime: time.Now(),
			ReceivedTime: time.Now(),
			Exchange:     s.Exchange,
			EventData:    types.WsStatus{Kind: kind, Stream: s.Stream, Instruments: s.Instruments},
		},
	})
}

// send is a non-blocking, drop-oldest-and-log send: if Out is full, the
// oldest buffered item is dropped to make room (§5 back-pressure policy),
// matching the teacher's dispatchMessage pattern.
func (s *Supervisor) send(out transform.Output) {
	select {
	case s.Out <- out:
		return
	default:
	}
	select {
	case <-s.Out:
		s.logger().Warn("output channel full, dropped oldest event", "exchange", s.Exchange, "stream", s.Stream)
	default:
	}
	select {
	case s.Out <- out:
	default:
		s.logger().Warn("output channel full, dropping event", "exchange", s.Exchange, "stream", s.Stream)
	}
}
