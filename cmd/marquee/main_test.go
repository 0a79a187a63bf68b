package main

import (
	"context"
	"testing"
	"time"

	"github.com/smartpanel/marquee/internal/config"
	"github.com/smartpanel/marquee/internal/journal"
)

func TestStopJournal(t *testing.T) {
	// No journal configured.
	stopJournal(nil, time.Second)

	w := journal.NewWriter(journal.WriterConfig{BatchSize: 10, FlushInterval: time.Hour}, nil, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		stopJournal(w, time.Second)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stopJournal did not return")
	}
}

func TestBrokerAddr(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.BrokerConfig
		want string
	}{
		{"mqtt", config.BrokerConfig{Transport: config.TransportMQTT, Host: "broker.local", Port: 1883}, "broker.local:1883"},
		{"websocket", config.BrokerConfig{Transport: config.TransportWebSocket, URL: "ws://hub:8080/ws"}, "ws://hub:8080/ws"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := brokerAddr(tt.cfg); got != tt.want {
				t.Errorf("brokerAddr() = %q, want %q", got, tt.want)
			}
		})
	}
}
