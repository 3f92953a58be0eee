package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/haaandolo/rotom-sub000/internal/scanner"
	"github.com/haaandolo/rotom-sub000/pkg/types"
)

// requestTimeout bounds how long a handler waits for the scanner goroutine
// to answer a Request over its reply channel.
const requestTimeout = 2 * time.Second

// Handlers holds the scanner command channel and writes its responses out
// as JSON, matching the teacher's handler/JSON-encoder shape.
type Handlers struct {
	requests chan<- scanner.Request
	logger   *slog.Logger
}

func NewHandlers(requests chan<- scanner.Request, logger *slog.Logger) *Handlers {
	return &Handlers{requests: requests, logger: logger.With("component", "http-handlers")}
}

func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (h *Handlers) HandleTopSpreads(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.New().String()
	reply := make(chan scanner.Response, 1)
	req := scanner.Request{TopSpreads: true, Reply: reply}

	resp, err := h.roundTrip(req, reply)
	if err != nil {
		h.logger.Error("top spreads round-trip failed", "request_id", reqID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, resp.TopSpreads)
}

func (h *Handlers) HandleSpreadHistory(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.New().String()

	q := r.URL.Query()
	base, ok := parseExchangeID(q.Get("base_exchange"))
	if !ok {
		http.Error(w, "invalid or missing base_exchange", http.StatusBadRequest)
		return
	}
	quote, ok := parseExchangeID(q.Get("quote_exchange"))
	if !ok {
		http.Error(w, "invalid or missing quote_exchange", http.StatusBadRequest)
		return
	}
	inst, ok := parseInstrument(q.Get("instrument"))
	if !ok {
		http.Error(w, "invalid or missing instrument, expected base_quote", http.StatusBadRequest)
		return
	}

	reply := make(chan scanner.Response, 1)
	req := scanner.Request{
		SpreadHistory: &scanner.SpreadHistoryRequest{
			BaseExchange:  base,
			QuoteExchange: quote,
			Instrument:    inst,
		},
		Reply: reply,
	}

	resp, err := h.roundTrip(req, reply)
	if err != nil {
		h.logger.Error("spread history round-trip failed", "request_id", reqID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if resp.CouldNotFindHistory {
		http.Error(w, "no spread history for that exchange pair and instrument", http.StatusNotFound)
		return
	}

	h.writeJSON(w, resp.SpreadHistory)
}

func (h *Handlers) roundTrip(req scanner.Request, reply chan scanner.Response) (scanner.Response, error) {
	select {
	case h.requests <- req:
	case <-time.After(requestTimeout):
		return scanner.Response{}, errScannerBusy
	}

	select {
	case resp := <-reply:
		return resp, nil
	case <-time.After(requestTimeout):
		return scanner.Response{}, errScannerBusy
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

var errScannerBusy = &scannerBusyError{}

type scannerBusyError struct{}

func (*scannerBusyError) Error() string { return "scanner did not respond within the request timeout" }

func parseExchangeID(s string) (types.ExchangeId, bool) {
	switch strings.ToLower(s) {
	case "binance_spot":
		return types.ExchangeBinanceSpot, true
	case "poloniex":
		return types.ExchangePoloniex, true
	default:
		return 0, false
	}
}

func parseInstrument(s string) (types.Instrument, bool) {
	parts := strings.SplitN(strings.ToLower(s), "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return types.Instrument{}, false
	}
	return types.Instrument{Base: parts[0], Quote: parts[1]}, true
}
