package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/smartpanel/marquee/internal/control"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if err := c.Broker.validate(); err != nil {
		return err
	}

	if c.Reconnect.FirstDelay <= 0 {
		return errors.New("reconnect.first_delay must be > 0")
	}
	if c.Reconnect.Factor < 1 {
		return errors.New("reconnect.factor must be >= 1")
	}
	if c.Reconnect.MaxDelay < c.Reconnect.FirstDelay {
		return fmt.Errorf("reconnect.max_delay (%s) cannot be below first_delay (%s)", c.Reconnect.MaxDelay, c.Reconnect.FirstDelay)
	}
	if c.Reconnect.MaxAttempts < 1 {
		return errors.New("reconnect.max_attempts must be >= 1")
	}

	if c.Display.Width < 1 || c.Display.Height < 1 {
		return fmt.Errorf("display size must be positive, got %dx%d", c.Display.Width, c.Display.Height)
	}
	if c.Display.FrameInterval <= 0 {
		return errors.New("display.frame_interval must be > 0")
	}
	if c.Display.ScrollStep < 1 {
		return errors.New("display.scroll_step must be >= 1")
	}
	if c.Display.StaleAfter <= 0 {
		return errors.New("display.stale_after must be > 0")
	}
	if _, err := control.ParseRGB(c.Display.DefaultColor); err != nil {
		return fmt.Errorf("display.default_color: %w", err)
	}

	switch c.Panel.Output {
	case OutputHeadless, OutputSSD1306:
	default:
		return fmt.Errorf("panel.output must be %q or %q, got %q", OutputHeadless, OutputSSD1306, c.Panel.Output)
	}

	if c.Journal.Enabled {
		if err := c.Journal.Database.validate("journal.database"); err != nil {
			return err
		}
		if c.Journal.BatchSize < 1 {
			return errors.New("journal.batch_size must be >= 1")
		}
	}

	if c.Status.Port < 0 || c.Status.Port > 65535 {
		return fmt.Errorf("status.port must be between 0 and 65535, got %d", c.Status.Port)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}

	return nil
}

func (b *BrokerConfig) validate() error {
	switch b.Transport {
	case TransportMQTT:
		if b.Host == "" {
			return errors.New("broker.host is required")
		}
		if b.Port < 1 || b.Port > 65535 {
			return fmt.Errorf("broker.port must be between 1 and 65535, got %d", b.Port)
		}
	case TransportWebSocket:
		if b.URL == "" {
			return errors.New("broker.url is required")
		}
	default:
		return fmt.Errorf("broker.transport must be %q or %q, got %q", TransportMQTT, TransportWebSocket, b.Transport)
	}
	if b.Topic == "" {
		return errors.New("broker.topic is required")
	}
	if b.QoS > 2 {
		return fmt.Errorf("broker.qos must be 0, 1 or 2, got %d", b.QoS)
	}
	if b.InboxSize < 1 {
		return errors.New("broker.inbox_size must be >= 1")
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
