package connection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig configures an MQTT session.
type MQTTConfig struct {
	Host           string
	Port           int
	ClientID       string
	Username       string
	Password       string
	QoS            byte
	ConnectTimeout time.Duration
	KeepAlive      time.Duration
}

// BrokerURL returns the tcp:// URL paho dials.
func (c MQTTConfig) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.Host, c.Port)
}

// MQTTTransport is a Transport over paho. Automatic reconnection is
// disabled; lost connections are reported on Errors and the caller redials.
type MQTTTransport struct {
	cfg    MQTTConfig
	logger *slog.Logger
	client mqtt.Client
	errors chan error

	mu        sync.RWMutex
	connected bool
}

// NewMQTTTransport creates an MQTT transport. No connection is made until
// Connect.
func NewMQTTTransport(cfg MQTTConfig, logger *slog.Logger) *MQTTTransport {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}

	t := &MQTTTransport{
		cfg:    cfg,
		logger: logger,
		errors: make(chan error, 1),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL())
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	if cfg.KeepAlive > 0 {
		opts.SetKeepAlive(cfg.KeepAlive)
	}
	opts.SetConnectionLostHandler(t.onConnectionLost)

	t.client = mqtt.NewClient(opts)
	return t
}

// Connect dials the broker.
func (t *MQTTTransport) Connect(ctx context.Context) error {
	t.logger.Debug("connecting to mqtt broker", "broker", t.cfg.BrokerURL(), "client_id", t.cfg.ClientID)

	if err := waitToken(ctx, t.client.Connect(), t.cfg.ConnectTimeout); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", t.cfg.BrokerURL(), err)
	}

	t.setConnected(true)
	t.logger.Debug("mqtt connection established", "broker", t.cfg.BrokerURL())
	return nil
}

// Subscribe subscribes to topic at the configured QoS.
func (t *MQTTTransport) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	if !t.IsConnected() {
		return ErrNotConnected
	}

	token := t.client.Subscribe(topic, t.cfg.QoS, func(_ mqtt.Client, m mqtt.Message) {
		handler(TimestampedMessage{
			Topic:      m.Topic(),
			Data:       m.Payload(),
			ReceivedAt: time.Now(),
		})
	})
	if err := waitToken(ctx, token, t.cfg.ConnectTimeout); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", topic, err)
	}
	return nil
}

// Publish publishes payload on topic, not retained.
func (t *MQTTTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	if !t.IsConnected() {
		return ErrNotConnected
	}
	if err := waitToken(ctx, t.client.Publish(topic, t.cfg.QoS, false, payload), t.cfg.ConnectTimeout); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}

// Disconnect closes the session, giving in-flight work 250ms to finish.
// It returns early with ctx's error if ctx ends first.
func (t *MQTTTransport) Disconnect(ctx context.Context) error {
	t.setConnected(false)

	done := make(chan struct{})
	go func() {
		if t.client.IsConnectionOpen() {
			t.client.Disconnect(250)
		}
		close(done)
	}()

	select {
	case <-done:
		t.logger.Debug("mqtt disconnected")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mqtt disconnect: %w", ctx.Err())
	}
}

// Errors returns the connection-lost channel.
func (t *MQTTTransport) Errors() <-chan error {
	return t.errors
}

// IsConnected returns the current connection state.
func (t *MQTTTransport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

func (t *MQTTTransport) setConnected(v bool) {
	t.mu.Lock()
	t.connected = v
	t.mu.Unlock()
}

func (t *MQTTTransport) onConnectionLost(_ mqtt.Client, err error) {
	t.setConnected(false)
	t.logger.Warn("mqtt connection lost", "broker", t.cfg.BrokerURL(), "error", err)

	select {
	case t.errors <- err:
	default:
	}
}

// waitToken waits for a paho token, bounded by timeout and ctx.
func waitToken(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
