package connection

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected     = errors.New("not connected")
	ErrTimeout          = errors.New("operation timeout")
	ErrRetriesExhausted = errors.New("reconnect attempts exhausted")
	ErrStopped          = errors.New("supervisor stopped")
)

// TimestampedMessage wraps a payload with the topic it arrived on and the
// local time it was received.
type TimestampedMessage struct {
	Topic      string
	Data       []byte
	ReceivedAt time.Time
}

// MessageHandler is called by a Transport for every inbound payload. It is
// called from the transport's own goroutine and must not block.
type MessageHandler func(msg TimestampedMessage)

// Transport is one session with a pub/sub broker.
type Transport interface {
	// Connect opens the session. It may be called again after a
	// disconnect notification to redial.
	Connect(ctx context.Context) error

	// Subscribe registers handler for payloads published on topic.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) error

	// Publish sends payload on topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Disconnect closes the session.
	Disconnect(ctx context.Context) error

	// Errors delivers one notification each time an open session is lost.
	Errors() <-chan error

	// IsConnected returns current connection state.
	IsConnected() bool
}

// State is the supervisor's connection state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Command is a command sent to a WebSocket broker.
type Command struct {
	ID     int64       `json:"id"`
	Cmd    string      `json:"cmd"`
	Params interface{} `json:"params"`
}

// SubscribeParams are parameters for a subscribe command.
type SubscribeParams struct {
	Channels []string `json:"channels"`
}

// PublishParams are parameters for a publish command.
type PublishParams struct {
	Topic string          `json:"topic"`
	Msg   json.RawMessage `json:"msg"`
}

// Frame is any frame received from a WebSocket broker: command responses
// carry ID, published data carries Type "message" and Topic.
type Frame struct {
	ID    int64           `json:"id,omitempty"`
	Type  string          `json:"type"` // "message", "subscribed", "error", "ok"
	Topic string          `json:"topic,omitempty"`
	Msg   json.RawMessage `json:"msg"`
}

// ErrorMsg is the message content for an "error" frame.
type ErrorMsg struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
