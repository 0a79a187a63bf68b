package config

import (
	"time"

	"github.com/google/uuid"
)

// Default values for optional configuration fields.
const (
	DefaultTransport          = TransportMQTT
	DefaultMQTTPort           = 1883
	DefaultConnectTimeout     = 5 * time.Second
	DefaultKeepAlive          = 30 * time.Second
	DefaultInboxSize          = 64
	DefaultReconnectFirst     = 1 * time.Second
	DefaultReconnectFactor    = 2
	DefaultReconnectMaxDelay  = 60 * time.Second
	DefaultReconnectAttempts  = 12
	DefaultWidth              = 32
	DefaultHeight             = 16
	DefaultBaseline           = 10
	DefaultFrameInterval      = 50 * time.Millisecond
	DefaultScrollStep         = 1
	DefaultStaleAfter         = 2 * time.Hour
	DefaultFont               = "7x13"
	DefaultColor              = "[255,255,0]"
	DefaultBootText           = "Booting .... Hello World!"
	DefaultFontsDir           = "fonts"
	DefaultFontSize           = 10
	DefaultOutput             = OutputHeadless
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 4
	DefaultMinConns           = 1
	DefaultJournalBatchSize   = 100
	DefaultJournalFlushPeriod = 5 * time.Second
	DefaultLogLevel           = "info"
	DefaultShutdownTimeout    = 5 * time.Second
	DefaultClientIDPrefix     = "marquee-"
)

func (c *Config) applyDefaults() {
	// Broker defaults
	if c.Broker.Transport == "" {
		c.Broker.Transport = DefaultTransport
	}
	if c.Broker.Port == 0 && c.Broker.Transport == TransportMQTT {
		c.Broker.Port = DefaultMQTTPort
	}
	if c.Broker.ClientID == "" {
		c.Broker.ClientID = DefaultClientIDPrefix + uuid.NewString()
	}
	if c.Broker.ConnectTimeout == 0 {
		c.Broker.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Broker.KeepAlive == 0 {
		c.Broker.KeepAlive = DefaultKeepAlive
	}
	if c.Broker.InboxSize == 0 {
		c.Broker.InboxSize = DefaultInboxSize
	}

	// Reconnect defaults
	if c.Reconnect.FirstDelay == 0 {
		c.Reconnect.FirstDelay = DefaultReconnectFirst
	}
	if c.Reconnect.Factor == 0 {
		c.Reconnect.Factor = DefaultReconnectFactor
	}
	if c.Reconnect.MaxDelay == 0 {
		c.Reconnect.MaxDelay = DefaultReconnectMaxDelay
	}
	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = DefaultReconnectAttempts
	}

	// Display defaults
	if c.Display.Width == 0 {
		c.Display.Width = DefaultWidth
	}
	if c.Display.Height == 0 {
		c.Display.Height = DefaultHeight
	}
	if c.Display.Baseline == 0 {
		c.Display.Baseline = DefaultBaseline
	}
	if c.Display.FrameInterval == 0 {
		c.Display.FrameInterval = DefaultFrameInterval
	}
	if c.Display.ScrollStep == 0 {
		c.Display.ScrollStep = DefaultScrollStep
	}
	if c.Display.StaleAfter == 0 {
		c.Display.StaleAfter = DefaultStaleAfter
	}
	if c.Display.DefaultFont == "" {
		c.Display.DefaultFont = DefaultFont
	}
	if c.Display.DefaultColor == "" {
		c.Display.DefaultColor = DefaultColor
	}
	if c.Display.BootText == "" {
		c.Display.BootText = DefaultBootText
	}
	if c.Display.FontsDir == "" {
		c.Display.FontsDir = DefaultFontsDir
	}
	if c.Display.FontSize == 0 {
		c.Display.FontSize = DefaultFontSize
	}

	// Panel defaults
	if c.Panel.Output == "" {
		c.Panel.Output = DefaultOutput
	}

	// Journal defaults
	applyDBDefaults(&c.Journal.Database)
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultJournalBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultJournalFlushPeriod
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
