package connection

import (
	"fmt"
	"log/slog"

	"github.com/smartpanel/marquee/internal/config"
)

// NewTransport builds the transport selected by cfg.Transport.
func NewTransport(cfg config.BrokerConfig, logger *slog.Logger) (Transport, error) {
	switch cfg.Transport {
	case config.TransportMQTT, "":
		return NewMQTTTransport(MQTTConfig{
			Host:           cfg.Host,
			Port:           cfg.Port,
			ClientID:       cfg.ClientID,
			Username:       cfg.Username,
			Password:       cfg.Password,
			QoS:            cfg.QoS,
			ConnectTimeout: cfg.ConnectTimeout,
			KeepAlive:      cfg.KeepAlive,
		}, logger), nil
	case config.TransportWebSocket:
		return NewWebSocketTransport(WebSocketConfig{
			URL:              cfg.URL,
			Username:         cfg.Username,
			Password:         cfg.Password,
			HandshakeTimeout: cfg.ConnectTimeout,
			PingInterval:     cfg.KeepAlive,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// NewSupervisorConfig derives supervisor settings from cfg.
func NewSupervisorConfig(cfg *config.Config) SupervisorConfig {
	return SupervisorConfig{
		Topic:     cfg.Broker.Topic,
		InboxSize: cfg.Broker.InboxSize,
		Backoff: BackoffConfig{
			FirstDelay:  cfg.Reconnect.FirstDelay,
			Factor:      float64(cfg.Reconnect.Factor),
			MaxDelay:    cfg.Reconnect.MaxDelay,
			MaxAttempts: cfg.Reconnect.MaxAttempts,
		},
	}
}
