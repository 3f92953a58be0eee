// Package streambuilder implements C6: given a batch of subscriptions, it
// groups them by (exchange, stream kind), spawns one supervisor per
// group, and exposes both per-(exchange, kind) channels and a single
// merged stream for the scanner to consume.
package streambuilder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/haaandolo/rotom-sub000/internal/adapter"
	"github.com/haaandolo/rotom-sub000/internal/ratelimit"
	"github.com/haaandolo/rotom-sub000/internal/supervisor"
	"github.com/haaandolo/rotom-sub000/internal/transform"
	"github.com/haaandolo/rotom-sub000/pkg/types"
)

// restBurst/restRatePerSecond bound how fast book-updater init fetches
// (snapshot + ticker-info) go out through the builder's REST client. One
// limiter is shared by every subscription group and every exchange.
const (
	restBurst          = 20
	restRatePerSecond  = 10
)

// Subscription is one configured (exchange, instrument, stream kind)
// tuple, as read from configuration.
type Subscription struct {
	Exchange   types.ExchangeId
	Instrument types.Instrument
	Stream     types.StreamKind
}

const groupChannelBuffer = 256

// Streams is C6's output: per-(exchange, stream-kind) channels, plus one
// channel merging all of them for the scanner's single input source.
type Streams struct {
	ByExchange map[groupKey]<-chan transform.Output
	Merged     <-chan transform.Output
}

type groupKey struct {
	Exchange types.ExchangeId
	Stream   types.StreamKind
}

// Builder spawns and owns every consumer supervisor.
type Builder struct {
	Registry   *adapter.Registry
	RestClient *resty.Client
	Logger     *slog.Logger
}

func NewBuilder(registry *adapter.Registry, restClient *resty.Client, logger *slog.Logger) *Builder {
	if restClient == nil {
		restClient = resty.New().SetTimeout(10 * time.Second)
	}
	limiter := ratelimit.NewTokenBucket(restBurst, restRatePerSecond)
	restClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})
	return &Builder{Registry: registry, RestClient: restClient, Logger: logger}
}

// Build groups subs by (exchange, stream kind), spawns one supervisor
// goroutine per group, and returns the resulting Streams. An unsupported
// (exchange, stream kind) pair is a configuration error returned
// immediately, before any goroutine is spawned.
func (b *Builder) Build(ctx context.Context, subs []Subscription) (*Streams, error) {
	groups := make(map[groupKey][]types.Instrument)
	seen := make(map[groupKey]map[types.Instrument]bool)

	for _, s := range subs {
		a, ok := b.Registry.Get(s.Exchange)
		if !ok {
			return nil, fmt.Errorf("streambuilder: no adapter for exchange %s", s.Exchange)
		}
		if !a.Supports(s.Stream) {
			return nil, fmt.Errorf("streambuilder: %s does not support stream %s", s.Exchange, s.Stream)
		}
		key := groupKey{Exchange: s.Exchange, Stream: s.Stream}
		if seen[key] == nil {
			seen[key] = make(map[types.Instrument]bool)
		}
		if !seen[key][s.Instrument] {
			seen[key][s.Instrument] = true
			groups[key] = append(groups[key], s.Instrument)
		}
	}

	byExchange := make(map[groupKey]<-chan transform.Output, len(groups))
	merged := make(chan transform.Output, groupChannelBuffer*len(groups)+1)

	for key, insts := range groups {
		a, _ := b.Registry.Get(key.Exchange)
		groupCh := make(chan transform.Output, groupChannelBuffer)
		byExchange[key] = groupCh

		sup := &supervisor.Supervisor{
			Exchange:     key.Exchange,
			Stream:       key.Stream,
			Instruments:  insts,
			Adapter:      a,
			NewTransform: b.transformerFactory(key.Exchange, insts),
			RestClient:   b.RestClient,
			Out:          groupCh,
			Logger:       b.Logger,
		}

		go func(s *supervisor.Supervisor) {
			if err := s.Run(ctx); err != nil && b.Logger != nil {
				b.Logger.Error("supervisor exited fatally", "exchange", s.Exchange, "stream", s.Stream, "error", err)
			}
		}(sup)

		go fanIn(ctx, groupCh, merged)
	}

	return &Streams{ByExchange: byExchange, Merged: merged}, nil
}

func (b *Builder) transformerFactory(exchange types.ExchangeId, insts []types.Instrument) supervisor.TransformerFactory {
	return func(ctx context.Context) (transform.Transformer, error) {
		switch exchange {
		case types.ExchangeBinanceSpot:
			return transform.NewBinanceTransformer(ctx, b.RestClient, insts)
		case types.ExchangePoloniex:
			return transform.NewPoloniexTransformer(ctx, b.RestClient, insts)
		default:
			return nil, fmt.Errorf("streambuilder: no transformer for exchange %s", exchange)
		}
	}
}

func fanIn(ctx context.Context, src <-chan transform.Output, dst chan<- transform.Output) {
	for {
		select {
		case <-ctx.Done():
			return
		case out, ok := <-src:
			if !ok {
				return
			}
			select {
			case dst <- out:
			case <-ctx.Done():
				return
			}
		}
	}
}
