// Spread scanner — consumes normalized order book and trade streams from
// multiple exchanges, tracks cross-exchange spreads per instrument, and
// exposes the ranked result over HTTP.
//
// Architecture:
//
//	main.go                     — entry point: loads config, wires everything, waits for SIGINT/SIGTERM
//	internal/adapter            — per-exchange wire format, URLs, heartbeat, subscribe validation
//	internal/wsclient           — WebSocket transport: connect, frame read, heartbeat, gzip decode
//	internal/book                — tick-keyed order book + per-exchange sequence reconciliation
//	internal/transform           — raw frame → normalized MarketEvent
//	internal/supervisor          — per-connection lifecycle: connect, subscribe, reconnect with back-off
//	internal/streambuilder       — groups subscriptions, spawns supervisors, fans in a merged stream
//	internal/scanner             — single-goroutine aggregator: book state, spread ranking, HTTP contract
//	internal/httpapi             — REST facade over the scanner's request/response channel
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-resty/resty/v2"

	"github.com/haaandolo/rotom-sub000/internal/adapter"
	"github.com/haaandolo/rotom-sub000/internal/config"
	"github.com/haaandolo/rotom-sub000/internal/httpapi"
	"github.com/haaandolo/rotom-sub000/internal/scanner"
	"github.com/haaandolo/rotom-sub000/internal/streambuilder"
	"github.com/haaandolo/rotom-sub000/pkg/types"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("ROTOM_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	subs, err := toSubscriptions(cfg.Subscriptions)
	if err != nil {
		logger.Error("invalid subscriptions", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	restClient := resty.New().SetTimeout(adapter.RestTimeout())
	builder := streambuilder.NewBuilder(adapter.DefaultRegistry(), restClient, logger)

	streams, err := builder.Build(ctx, subs)
	if err != nil {
		logger.Error("failed to build streams", "error", err)
		os.Exit(1)
	}

	requests := make(chan scanner.Request, 64)
	// No network-info producer is wired; the channel is a hook point for
	// a withdrawal-fee feed and never closes.
	networkIn := make(chan types.MarketEvent[types.NetworkSpec])

	sc := scanner.New(streams.Merged, networkIn, requests)
	go sc.Run(ctx)

	handlers := httpapi.NewHandlers(requests, logger)
	server := httpapi.NewServer(cfg.Server.Addr, handlers, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error("http facade failed", "error", err)
		}
	}()

	logger.Info("spread scanner started", "addr", cfg.Server.Addr, "subscriptions", len(subs))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	if err := server.Stop(); err != nil {
		logger.Error("failed to stop http facade", "error", err)
	}
	cancel()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func toSubscriptions(in []config.SubscriptionConfig) ([]streambuilder.Subscription, error) {
	out := make([]streambuilder.Subscription, 0, len(in))
	for i, s := range in {
		exchange, ok := parseExchange(s.Exchange)
		if !ok {
			return nil, fmt.Errorf("subscriptions[%d]: unknown exchange %q", i, s.Exchange)
		}
		stream, ok := parseStreamKind(s.StreamKind)
		if !ok {
			return nil, fmt.Errorf("subscriptions[%d]: unknown stream_kind %q", i, s.StreamKind)
		}
		out = append(out, streambuilder.Subscription{
			Exchange:   exchange,
			Instrument: types.Instrument{Base: s.Base, Quote: s.Quote},
			Stream:     stream,
		})
	}
	return out, nil
}

func parseExchange(s string) (types.ExchangeId, bool) {
	switch s {
	case "binance_spot":
		return types.ExchangeBinanceSpot, true
	case "poloniex":
		return types.ExchangePoloniex, true
	default:
		return 0, false
	}
}

func parseStreamKind(s string) (types.StreamKind, bool) {
	switch s {
	case "l2":
		return types.StreamL2, true
	case "trade":
		return types.StreamTrade, true
	case "trades":
		return types.StreamTrades, true
	case "agg_trades":
		return types.StreamAggTrades, true
	case "snapshot":
		return types.StreamSnapshot, true
	default:
		return 0, false
	}
}
