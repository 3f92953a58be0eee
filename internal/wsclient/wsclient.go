// Package wsclient is the wire codec: it owns the raw WebSocket connection,
// decodes frames (including gzip-capable binary frames), and classifies
// transport errors as terminal or transient so a supervisor knows whether
// to reconnect.
package wsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzip"

	"github.com/haaandolo/rotom-sub000/internal/marketerr"
)

const (
	writeWait = 10 * time.Second
	dialWait  = 10 * time.Second
)

// FrameKind tags the kind of WebSocket frame received off the wire.
type FrameKind uint8

const (
	FrameText FrameKind = iota
	FrameBinary
	FramePing
	FramePong
	FrameClose
)

// Frame is a decoded, untyped WebSocket frame. The caller (a transformer or
// adapter validator) is responsible for interpreting Data according to Kind.
type Frame struct {
	Kind FrameKind
	Data []byte
}

// HeartbeatSpec describes an adapter's keep-alive requirement: send Payload
// as a text frame every Period.
type HeartbeatSpec struct {
	Period  time.Duration
	Payload []byte
}

// Conn is a single WebSocket connection. Reads happen on the caller's
// goroutine via ReadFrame; writes (including heartbeats) are serialized
// under mu since gorilla/websocket forbids concurrent writers.
type Conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// Connect dials url and returns a ready-to-read connection.
func Connect(ctx context.Context, url string) (*Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialWait}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Conn{ws: ws}, nil
}

// Send writes a text frame to the socket. Safe for concurrent use with
// StartHeartbeat.
func (c *Conn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// Close shuts down the underlying connection. Safe to call more than once.
func (c *Conn) Close() error {
	return c.ws.Close()
}

// ReadFrame blocks for the next frame and classifies it. A non-nil error is
// always a transport failure; callers must check IsDisconnected(err) to
// decide between a terminal reconnect and logging a transient error.
func (c *Conn) ReadFrame() (Frame, error) {
	kind, data, err := c.ws.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	switch kind {
	case websocket.TextMessage:
		return Frame{Kind: FrameText, Data: data}, nil
	case websocket.BinaryMessage:
		return Frame{Kind: FrameBinary, Data: data}, nil
	case websocket.PingMessage:
		return Frame{Kind: FramePing, Data: data}, nil
	case websocket.PongMessage:
		return Frame{Kind: FramePong, Data: data}, nil
	default:
		return Frame{Kind: FrameClose, Data: data}, nil
	}
}

// StartHeartbeat launches a ticker goroutine that sends spec.Payload every
// spec.Period until ctx is cancelled. A send failure caused by a closed
// socket is silently dropped — the read half will observe the disconnect.
func StartHeartbeat(ctx context.Context, conn *Conn, spec HeartbeatSpec) {
	if spec.Period <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(spec.Period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = conn.Send(spec.Payload)
			}
		}
	}()
}

// DecodeFrame turns a Frame's raw bytes into out. Text frames are parsed as
// UTF-8 JSON directly. Binary frames are first tried as gzip-compressed
// JSON; on decompression failure, the raw bytes are parsed as JSON instead.
// Ping/Pong/Close frames decode to nothing and return ok=false.
func DecodeFrame(f Frame, out any) (ok bool, err error) {
	switch f.Kind {
	case FrameText:
		if decErr := json.Unmarshal(f.Data, out); decErr != nil {
			return false, &marketerr.DeserialiseError{Payload: string(f.Data), Cause: decErr}
		}
		return true, nil
	case FrameBinary:
		if decoded, gzErr := gunzip(f.Data); gzErr == nil {
			if decErr := json.Unmarshal(decoded, out); decErr != nil {
				return false, &marketerr.DeserialiseError{Payload: string(decoded), Cause: decErr}
			}
			return true, nil
		}
		if decErr := json.Unmarshal(f.Data, out); decErr != nil {
			return false, &marketerr.DeserialiseError{Payload: string(f.Data), Cause: decErr}
		}
		return true, nil
	default:
		return false, nil
	}
}

func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// IsDisconnected reports whether err represents a terminal transport
// failure: connection-closed, already-closed, I/O error, send-after-close,
// or reset-without-closing-handshake. Anything else is transient and the
// supervisor should keep reading.
func IsDisconnected(err error) bool {
	if err == nil {
		return false
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseNoStatusReceived,
	) {
		return true
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	return msg == "use of closed network connection" ||
		msg == "websocket: close sent" ||
		msg == "repeated read on failed websocket connection"
}
