// Package marketerr defines the error taxonomy shared by the wire codec,
// exchange adapters, and book updaters. Consumer supervisors type-switch on
// these to decide whether a disconnect is terminal (reconnect + resnapshot)
// or transient (log and keep reading).
package marketerr

import "fmt"

// SubscribeError is returned when a subscription-response validator rejects
// the exchange's reply, and by a supervisor whose first connection attempt
// fails. Always terminal. No timeout detects a reply that never arrives.
type SubscribeError struct {
	Exchange string
	Reason   string
}

func (e *SubscribeError) Error() string {
	return fmt.Sprintf("%s: subscribe failed: %s", e.Exchange, e.Reason)
}

// InvalidSequenceError signals a gap or overlap in a book updater's
// sequence-number reconciliation. Always terminal: the supervisor must
// reconnect and fetch a fresh snapshot.
type InvalidSequenceError struct {
	Symbol            string
	PrevLastUpdateID  uint64
	FirstUpdateID     uint64
}

func (e *InvalidSequenceError) Error() string {
	return fmt.Sprintf("invalid sequence for %s: prev_last_update_id=%d first_update_id=%d",
		e.Symbol, e.PrevLastUpdateID, e.FirstUpdateID)
}

// TickSizeError is raised when ticker-info metadata does not contain a tick
// size filter for the instrument. No book updater can be built without it.
type TickSizeError struct {
	Base, Quote string
	Exchange    string
}

func (e *TickSizeError) Error() string {
	return fmt.Sprintf("%s: no tick size filter for %s/%s", e.Exchange, e.Base, e.Quote)
}

// OrderBookFindError is raised by a stateless transformer when the wire
// symbol on an inbound payload has no corresponding Instrument mapping.
type OrderBookFindError struct {
	Symbol string
}

func (e *OrderBookFindError) Error() string {
	return fmt.Sprintf("no instrument mapping for wire symbol %q", e.Symbol)
}

// DeserialiseError wraps a JSON decode failure together with the raw
// payload, so the caller can check it against an exchange's benign-payload
// whitelist before deciding whether to log it.
type DeserialiseError struct {
	Payload string
	Cause   error
}

func (e *DeserialiseError) Error() string {
	return fmt.Sprintf("deserialise failed: %v (payload=%q)", e.Cause, e.Payload)
}

func (e *DeserialiseError) Unwrap() error { return e.Cause }

// WebSocketDisconnectedError marks a transport failure the codec has
// classified as terminal (see protocols/ws classification rules).
type WebSocketDisconnectedError struct {
	Cause error
}

func (e *WebSocketDisconnectedError) Error() string {
	return fmt.Sprintf("websocket disconnected: %v", e.Cause)
}

func (e *WebSocketDisconnectedError) Unwrap() error { return e.Cause }

// CouldNotFindSpreadHistory is returned by the scanner's GetSpreadHistory
// handler when no history exists for the requested exchange pair and
// instrument.
type CouldNotFindSpreadHistory struct {
	BaseExchange, QuoteExchange string
	Instrument                 string
}

func (e *CouldNotFindSpreadHistory) Error() string {
	return fmt.Sprintf("no spread history for %s/%s %s", e.BaseExchange, e.QuoteExchange, e.Instrument)
}
