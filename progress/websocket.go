package progress

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsDialTimeout  = 5 * time.Second
	wsWriteTimeout = 5 * time.Second
)

// WebSocketReporter pushes progress events to a listener, typically the host
// UI, over a WebSocket connection opened on Start and closed on Finish.
type WebSocketReporter struct {
	url       string
	userAgent string
	conn      *websocket.Conn
	label     string
	started   time.Time
	mu        sync.Mutex
}

// NewWebSocketReporter creates a reporter for the ws:// or wss:// url.
func NewWebSocketReporter(url, userAgent string) *WebSocketReporter {
	return &WebSocketReporter{url: url, userAgent: userAgent}
}

func (r *WebSocketReporter) Start(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.label = label
	r.started = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), wsDialTimeout)
	defer cancel()

	header := http.Header{}
	if r.userAgent != "" {
		header.Set("User-Agent", r.userAgent)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, r.url, header)
	if err != nil {
		log.Printf("[progress] Failed to connect to %s: %v", r.url, err)
		return
	}
	r.conn = conn

	r.send(Event{Type: "start", Label: label, Indeterminate: true, Time: r.started})
}

func (r *WebSocketReporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return
	}

	r.send(Event{
		Type:          "finish",
		Label:         r.label,
		Indeterminate: true,
		Time:          time.Now(),
		ElapsedMillis: time.Since(r.started).Milliseconds(),
	})

	deadline := time.Now().Add(wsWriteTimeout)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
	if err := r.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		log.Printf("[progress] Failed to send close frame: %v", err)
	}
	r.conn.Close()
	r.conn = nil
}

func (r *WebSocketReporter) send(event Event) {
	r.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := r.conn.WriteJSON(event); err != nil {
		log.Printf("[progress] Failed to send %s event: %v", event.Type, err)
	}
}
