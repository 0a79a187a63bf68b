package config

import (
	"log/slog"
	"strings"
	"time"
)

// Transport kinds supported by the broker section.
const (
	TransportMQTT      = "mqtt"
	TransportWebSocket = "websocket"
)

// Panel outputs supported by the panel section.
const (
	OutputHeadless = "headless"
	OutputSSD1306  = "ssd1306"
)

// Config is the root configuration for a marquee instance.
type Config struct {
	Broker          BrokerConfig    `yaml:"broker"`
	Reconnect       ReconnectConfig `yaml:"reconnect"`
	Display         DisplayConfig   `yaml:"display"`
	Panel           PanelConfig     `yaml:"panel"`
	Journal         JournalConfig   `yaml:"journal"`
	Status          StatusConfig    `yaml:"status"`
	Log             LogConfig       `yaml:"log"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
}

// BrokerConfig holds the control feed connection settings.
type BrokerConfig struct {
	Transport      string        `yaml:"transport"` // "mqtt" or "websocket"
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	URL            string        `yaml:"url"` // websocket transport only
	Topic          string        `yaml:"topic"`
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	QoS            byte          `yaml:"qos"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
	InboxSize      int           `yaml:"inbox_size"`
}

// ReconnectConfig holds the exponential backoff settings.
type ReconnectConfig struct {
	FirstDelay  time.Duration `yaml:"first_delay"`
	Factor      int           `yaml:"factor"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// DisplayConfig holds render loop and display state settings.
type DisplayConfig struct {
	Width         int           `yaml:"width"`
	Height        int           `yaml:"height"`
	Baseline      int           `yaml:"baseline"`
	FrameInterval time.Duration `yaml:"frame_interval"`
	ScrollStep    int           `yaml:"scroll_step"`
	StaleAfter    time.Duration `yaml:"stale_after"`
	DefaultFont   string        `yaml:"default_font"`
	DefaultColor  string        `yaml:"default_color"` // "[r,g,b]"
	BootText      string        `yaml:"boot_text"`
	FontsDir      string        `yaml:"fonts_dir"`
	FontSize      float64       `yaml:"font_size"` // points, TrueType/OpenType fonts only
}

// PanelConfig selects where rendered frames go.
type PanelConfig struct {
	Output string `yaml:"output"` // "headless" or "ssd1306"
	I2CBus string `yaml:"i2c_bus"` // empty selects the first bus
}

// JournalConfig holds the optional control message journal settings.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// StatusConfig holds the status HTTP endpoint settings.
type StatusConfig struct {
	Port int `yaml:"port"` // 0 disables the endpoint
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// SlogLevel returns the slog level for Level. Unknown levels map to info;
// Validate rejects them first.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
