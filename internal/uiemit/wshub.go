package uiemit

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// wireEnvelope is the JSON shape written to each websocket client.
type wireEnvelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// ControlMessage is one inbound frame from a connected dashboard client.
type ControlMessage struct {
	Type      string `json:"type"` // "cancel-session" or "write-pty-input"
	SessionID string `json:"session_id"`
	Input     string `json:"input,omitempty"` // write-pty-input only
}

// ControlHandler processes an inbound control frame from a browser client.
type ControlHandler func(ControlMessage)

// WebSocketHub is an Emitter backed by a broadcast of coder/websocket
// connections, serving a companion dashboard. It accepts inbound
// "cancel-session" / "write-pty-input" control frames via onControl.
type WebSocketHub struct {
	mu         sync.Mutex
	conns      map[*websocket.Conn]struct{}
	onControl  ControlHandler
	writeTimeout time.Duration
}

// NewWebSocketHub returns a hub dispatching inbound control frames to
// onControl (may be nil to ignore them).
func NewWebSocketHub(onControl ControlHandler) *WebSocketHub {
	return &WebSocketHub{
		conns:        make(map[*websocket.Conn]struct{}),
		onControl:    onControl,
		writeTimeout: 15 * time.Second,
	}
}

// ServeHTTP upgrades the request to a websocket connection, registers it
// for broadcast, and blocks reading inbound control frames until the
// connection closes or the request context is done.
func (h *WebSocketHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return
	}
	defer conn.CloseNow()

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
	}()

	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if h.onControl == nil {
			continue
		}
		var msg ControlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		h.onControl(msg)
	}
}

// Emit implements Emitter: broadcast the named event to every connected
// client. A client that fails to accept a write within the timeout is
// dropped from the broadcast set (its read loop will observe the close).
func (h *WebSocketHub) Emit(name string, payload any) {
	data, err := json.Marshal(wireEnvelope{Event: name, Payload: payload})
	if err != nil {
		return
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), h.writeTimeout)
		err := c.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			h.mu.Lock()
			delete(h.conns, c)
			h.mu.Unlock()
		}
	}
}

// ConnectionCount reports the number of currently connected clients.
func (h *WebSocketHub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
