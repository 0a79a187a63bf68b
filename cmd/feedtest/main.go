// feedtest subscribes to the marquee control topic and prints every decoded
// control message to the console. It uses the same config and .env files as
// the marquee itself.
//
// Usage:
//
//	go run ./cmd/feedtest --config configs/marquee.yaml
//	go run ./cmd/feedtest --publish '{"message":"Hello","color":"[0,255,0]"}'
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smartpanel/marquee/internal/config"
	"github.com/smartpanel/marquee/internal/connection"
	"github.com/smartpanel/marquee/internal/control"
)

func main() {
	configPath := flag.String("config", "configs/marquee.yaml", "path to config file")
	envPath := flag.String("env", ".env", "path to .env file with MQTT_* settings")
	publish := flag.String("publish", "", "JSON payload to publish on the topic after subscribing")
	raw := flag.Bool("raw", false, "also print the raw payload")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if err := config.LoadEnvFile(*envPath); err != nil {
		logger.Error("failed to load env file", "error", err)
		os.Exit(1)
	}
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	// Never share a client id with a running marquee; brokers drop the
	// older session.
	cfg.Broker.ClientID += "-feedtest"

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	transport, err := connection.NewTransport(cfg.Broker, logger)
	if err != nil {
		logger.Error("failed to create transport", "error", err)
		os.Exit(1)
	}

	if err := transport.Connect(ctx); err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}

	msgs := make(chan connection.TimestampedMessage, 64)
	err = transport.Subscribe(ctx, cfg.Broker.Topic, func(m connection.TimestampedMessage) {
		select {
		case msgs <- m:
		default:
			logger.Warn("print buffer full, dropping message")
		}
	})
	if err != nil {
		logger.Error("failed to subscribe", "error", err)
		os.Exit(1)
	}
	logger.Info("subscribed", "topic", cfg.Broker.Topic)

	if *publish != "" {
		if err := transport.Publish(ctx, cfg.Broker.Topic, []byte(*publish)); err != nil {
			logger.Error("failed to publish", "error", err)
		} else {
			logger.Info("published", "topic", cfg.Broker.Topic, "size", len(*publish))
		}
	}

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-transport.Errors():
			logger.Error("connection lost", "error", err)
			break loop
		case m := <-msgs:
			printMessage(os.Stdout, m, *raw)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := transport.Disconnect(shutdownCtx); err != nil {
		logger.Warn("disconnect did not complete", "error", err)
	}
	logger.Info("disconnected")
}

// printMessage writes one line per payload: the decoded message, or the
// decode error followed by the message that would still be applied.
func printMessage(w io.Writer, m connection.TimestampedMessage, raw bool) {
	ts := m.ReceivedAt.Format("15:04:05.000")
	if raw {
		fmt.Fprintf(w, "[%s] %s raw: %s\n", ts, m.Topic, m.Data)
	}

	msg, err := control.Decode(m.Data, m.ReceivedAt)
	if err != nil {
		fmt.Fprintf(w, "[%s] %s error: %v\n", ts, m.Topic, err)
		if errors.Is(err, control.ErrMalformed) {
			return
		}
	}
	fmt.Fprintf(w, "[%s] %s %s\n", ts, m.Topic, msg)
}
