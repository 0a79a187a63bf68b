package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketConfig configures a WebSocket session.
type WebSocketConfig struct {
	URL              string
	Username         string
	Password         string
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	PingTimeout      time.Duration
	WriteTimeout     time.Duration
}

func (c *WebSocketConfig) applyDefaults() {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = 2 * c.PingInterval
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
}

// WebSocketTransport is a Transport speaking JSON commands over a WebSocket.
// Each Connect opens a fresh socket; the registered subscriptions are not
// replayed and must be made again by the caller.
type WebSocketTransport struct {
	cfg    WebSocketConfig
	logger *slog.Logger
	errors chan error
	cmdID  atomic.Int64

	// Write serialization
	writeMu sync.Mutex

	mu         sync.RWMutex
	conn       *websocket.Conn
	done       chan struct{}
	connected  bool
	lastPingAt time.Time
	handlers   map[string]MessageHandler
}

// NewWebSocketTransport creates a WebSocket transport. No connection is made
// until Connect.
func NewWebSocketTransport(cfg WebSocketConfig, logger *slog.Logger) *WebSocketTransport {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()

	return &WebSocketTransport{
		cfg:      cfg,
		logger:   logger,
		errors:   make(chan error, 1),
		handlers: make(map[string]MessageHandler),
	}
}

// Connect dials the broker, replacing any previous socket.
func (t *WebSocketTransport) Connect(ctx context.Context) error {
	t.closeConn()

	header := http.Header{}
	header.Set("Accept", "application/json")

	dialer := websocket.Dialer{
		HandshakeTimeout: t.cfg.HandshakeTimeout,
	}

	url := t.cfg.URL
	conn, _, err := dialer.DialContext(ctx, url, t.authHeader(header))
	if err != nil {
		return fmt.Errorf("websocket dial %s: %w", url, err)
	}

	done := make(chan struct{})

	t.mu.Lock()
	t.conn = conn
	t.done = done
	t.connected = true
	t.lastPingAt = time.Now()
	t.handlers = make(map[string]MessageHandler)
	t.mu.Unlock()

	// Server sends ping, we respond with pong
	conn.SetPingHandler(func(data string) error {
		t.touch()
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	conn.SetPongHandler(func(string) error {
		t.touch()
		return nil
	})

	go t.readLoop(conn, done)
	go t.heartbeatLoop(conn, done)

	t.logger.Debug("websocket connected", "url", url)
	return nil
}

func (t *WebSocketTransport) authHeader(h http.Header) http.Header {
	if t.cfg.Username != "" {
		req := http.Request{Header: h}
		req.SetBasicAuth(t.cfg.Username, t.cfg.Password)
	}
	return h
}

// Subscribe sends a subscribe command for topic and routes its data frames
// to handler.
func (t *WebSocketTransport) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return ErrNotConnected
	}
	t.handlers[topic] = handler
	t.mu.Unlock()

	cmd := Command{
		ID:     t.cmdID.Add(1),
		Cmd:    "subscribe",
		Params: SubscribeParams{Channels: []string{topic}},
	}
	if err := t.sendJSON(ctx, cmd); err != nil {
		return fmt.Errorf("websocket subscribe %s: %w", topic, err)
	}
	return nil
}

// Publish sends a publish command. payload must be a JSON document.
func (t *WebSocketTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	if !json.Valid(payload) {
		return errors.New("websocket publish: payload is not valid JSON")
	}

	cmd := Command{
		ID:     t.cmdID.Add(1),
		Cmd:    "publish",
		Params: PublishParams{Topic: topic, Msg: payload},
	}
	if err := t.sendJSON(ctx, cmd); err != nil {
		return fmt.Errorf("websocket publish %s: %w", topic, err)
	}
	return nil
}

func (t *WebSocketTransport) sendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	t.mu.RLock()
	conn, connected := t.conn, t.connected
	t.mu.RUnlock()
	if !connected {
		return ErrNotConnected
	}

	deadline := time.Now().Add(t.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	conn.SetWriteDeadline(deadline)
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Disconnect sends a close frame and closes the socket.
func (t *WebSocketTransport) Disconnect(ctx context.Context) error {
	t.mu.RLock()
	conn := t.conn
	t.mu.RUnlock()
	if conn == nil {
		return nil
	}

	deadline := time.Now().Add(time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	t.writeMu.Lock()
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		deadline,
	)
	t.writeMu.Unlock()

	return t.closeConn()
}

// closeConn tears down the current socket without reporting an error.
func (t *WebSocketTransport) closeConn() error {
	t.mu.Lock()
	conn, done := t.conn, t.done
	t.conn, t.done = nil, nil
	t.connected = false
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	close(done)
	return conn.Close()
}

// Errors returns the connection-lost channel.
func (t *WebSocketTransport) Errors() <-chan error {
	return t.errors
}

// IsConnected returns the current connection state.
func (t *WebSocketTransport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

func (t *WebSocketTransport) touch() {
	t.mu.Lock()
	t.lastPingAt = time.Now()
	t.mu.Unlock()
}

// readLoop reads frames until the socket fails or done is closed.
func (t *WebSocketTransport) readLoop(conn *websocket.Conn, done chan struct{}) {
	for {
		_, data, err := conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			// Ignore errors after Disconnect or a redial
			select {
			case <-done:
				return
			default:
			}

			t.mu.Lock()
			if t.done == done {
				t.connected = false
			}
			t.mu.Unlock()

			select {
			case t.errors <- err:
			default:
			}
			return
		}

		t.handleFrame(data, receivedAt)
	}
}

func (t *WebSocketTransport) handleFrame(data []byte, receivedAt time.Time) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.logger.Warn("unparseable websocket frame", "error", err, "size", len(data))
		return
	}

	switch f.Type {
	case "message":
		t.mu.RLock()
		handler := t.handlers[f.Topic]
		t.mu.RUnlock()
		if handler == nil {
			t.logger.Debug("frame for unsubscribed topic", "topic", f.Topic)
			return
		}
		handler(TimestampedMessage{Topic: f.Topic, Data: f.Msg, ReceivedAt: receivedAt})
	case "error":
		var e ErrorMsg
		json.Unmarshal(f.Msg, &e)
		t.logger.Warn("broker error", "id", f.ID, "code", e.Code, "message", e.Message)
	default:
		t.logger.Debug("command response", "id", f.ID, "type", f.Type)
	}
}

// heartbeatLoop pings the broker and closes the socket when no ping or pong
// has been seen within PingTimeout, which makes readLoop report the loss.
func (t *WebSocketTransport) heartbeatLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(t.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(t.cfg.WriteTimeout)
			t.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline)
			t.writeMu.Unlock()
			if err != nil {
				t.logger.Debug("failed to send ping", "error", err)
			}

			t.mu.RLock()
			lastPing := t.lastPingAt
			t.mu.RUnlock()

			if time.Since(lastPing) > t.cfg.PingTimeout {
				t.logger.Warn("no ping received, connection stale",
					"last_ping", lastPing,
					"timeout", t.cfg.PingTimeout,
				)
				conn.Close()
				return
			}
		}
	}
}
