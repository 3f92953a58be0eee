package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/haaandolo/rotom-sub000/internal/scanner"
	"github.com/haaandolo/rotom-sub000/pkg/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleHealthReturnsOK(t *testing.T) {
	h := NewHandlers(make(chan scanner.Request, 1), discardLogger())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/healthz", nil)
	h.HandleHealth(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %+v", body)
	}
}

func TestHandleTopSpreadsRoundTripsThroughScanner(t *testing.T) {
	requests := make(chan scanner.Request, 1)
	h := NewHandlers(requests, discardLogger())

	want := []scanner.SpreadResponse{{
		BaseExchange:  types.ExchangeBinanceSpot,
		QuoteExchange: types.ExchangePoloniex,
		Instrument:    types.Instrument{Base: "btc", Quote: "usdt"},
	}}
	go func() {
		req := <-requests
		if !req.TopSpreads {
			t.Errorf("expected a TopSpreads request")
		}
		req.Reply <- scanner.Response{TopSpreads: want}
	}()

	rec := httptest.NewRecorder()
	httpReq := httptest.NewRequest("GET", "/spreads/top", nil)
	h.HandleTopSpreads(rec, httpReq)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got []scanner.SpreadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(got) != 1 || got[0].Instrument != want[0].Instrument {
		t.Fatalf("unexpected body: %+v", got)
	}
}

func TestHandleTopSpreadsTimesOutWhenScannerNeverReplies(t *testing.T) {
	requests := make(chan scanner.Request)
	h := NewHandlers(requests, discardLogger())

	rec := httptest.NewRecorder()
	httpReq := httptest.NewRequest("GET", "/spreads/top", nil)
	h.HandleTopSpreads(rec, httpReq)

	if rec.Code != 500 {
		t.Fatalf("expected 500 on scanner-busy timeout, got %d", rec.Code)
	}
}

func TestHandleSpreadHistoryRejectsBadQuery(t *testing.T) {
	h := NewHandlers(make(chan scanner.Request, 1), discardLogger())

	rec := httptest.NewRecorder()
	httpReq := httptest.NewRequest("GET", "/spreads/history?base_exchange=nope&quote_exchange=poloniex&instrument=btc_usdt", nil)
	h.HandleSpreadHistory(rec, httpReq)

	if rec.Code != 400 {
		t.Fatalf("expected 400 for unrecognized base_exchange, got %d", rec.Code)
	}
}

func TestHandleSpreadHistoryNotFound(t *testing.T) {
	requests := make(chan scanner.Request, 1)
	h := NewHandlers(requests, discardLogger())

	go func() {
		req := <-requests
		req.Reply <- scanner.Response{CouldNotFindHistory: true}
	}()

	rec := httptest.NewRecorder()
	httpReq := httptest.NewRequest("GET", "/spreads/history?base_exchange=binance_spot&quote_exchange=poloniex&instrument=btc_usdt", nil)
	h.HandleSpreadHistory(rec, httpReq)

	if rec.Code != 404 {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestParseInstrumentRejectsMissingSeparator(t *testing.T) {
	if _, ok := parseInstrument("btcusdt"); ok {
		t.Fatalf("expected parseInstrument to reject a string with no separator")
	}
}
