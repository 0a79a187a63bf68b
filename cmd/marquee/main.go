package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/smartpanel/marquee/internal/config"
	"github.com/smartpanel/marquee/internal/connection"
	"github.com/smartpanel/marquee/internal/control"
	"github.com/smartpanel/marquee/internal/display"
	"github.com/smartpanel/marquee/internal/journal"
	"github.com/smartpanel/marquee/internal/panel"
	"github.com/smartpanel/marquee/internal/render"
	"github.com/smartpanel/marquee/internal/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "configs/marquee.yaml", "path to config file")
	envPath := flag.String("env", ".env", "path to .env file with MQTT_* settings")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return 0
	}

	// Set up structured logging; the level is raised or lowered once the
	// config is loaded.
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting marquee",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	if err := config.LoadEnvFile(*envPath); err != nil {
		logger.Error("failed to load env file", "error", err)
		return 1
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return 1
	}
	level.Set(cfg.Log.SlogLevel())

	logger.Info("configuration loaded",
		"transport", cfg.Broker.Transport,
		"broker", brokerAddr(cfg.Broker),
		"topic", cfg.Broker.Topic,
		"client_id", cfg.Broker.ClientID,
		"panel", cfg.Panel.Output,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Panel
	out, err := openOutput(cfg)
	if err != nil {
		logger.Error("failed to open panel", "output", cfg.Panel.Output, "error", err)
		return 1
	}
	fonts := panel.NewFontLoader(cfg.Display.FontsDir, cfg.Display.FontSize)
	matrix := panel.NewMatrix(cfg.Display.Width, cfg.Display.Height, out, fonts, logger.With("component", "panel"))
	defer func() {
		if err := matrix.Close(); err != nil {
			logger.Warn("failed to close panel", "error", err)
		}
	}()

	// Display state and render loop
	defaultColor, err := control.ParseRGB(cfg.Display.DefaultColor)
	if err != nil {
		logger.Error("invalid default color", "error", err)
		return 1
	}
	state := display.New(display.Config{
		BootText:   cfg.Display.BootText,
		Font:       cfg.Display.DefaultFont,
		Color:      defaultColor,
		StaleAfter: cfg.Display.StaleAfter,
	}, time.Now())

	loop, err := render.NewLoop(render.Config{
		FrameInterval: cfg.Display.FrameInterval,
		Step:          cfg.Display.ScrollStep,
		Baseline:      cfg.Display.Baseline,
	}, matrix, state, logger.With("component", "render"))
	if err != nil {
		logger.Error("failed to start render loop", "error", err)
		return 1
	}

	// Optional journal
	var journalWriter *journal.Writer
	var recorder connection.Recorder
	if cfg.Journal.Enabled {
		logger.Info("connecting to journal database",
			"host", cfg.Journal.Database.Host,
			"port", cfg.Journal.Database.Port,
			"database", cfg.Journal.Database.Name,
		)
		pool, err := journal.Connect(ctx, cfg.Journal.Database)
		if err != nil {
			logger.Error("failed to connect to journal database", "error", err)
			return 1
		}
		defer pool.Close()

		if err := journal.EnsureSchema(ctx, pool); err != nil {
			logger.Error("failed to prepare journal", "error", err)
			return 1
		}

		journalWriter = journal.NewWriter(journal.WriterConfig{
			BatchSize:     cfg.Journal.BatchSize,
			FlushInterval: cfg.Journal.FlushInterval,
		}, pool, logger.With("component", "journal"))
		if err := journalWriter.Start(ctx); err != nil {
			logger.Error("failed to start journal", "error", err)
			return 1
		}
		recorder = journalWriter
	}

	// Control feed
	transport, err := connection.NewTransport(cfg.Broker, logger.With("component", "transport"))
	if err != nil {
		logger.Error("failed to create transport", "error", err)
		stopJournal(journalWriter, cfg.ShutdownTimeout)
		return 1
	}
	supervisor := connection.NewSupervisor(
		connection.NewSupervisorConfig(cfg),
		transport,
		state,
		recorder,
		logger.With("component", "supervisor"),
	)

	connectCtx, connectCancel := context.WithTimeout(ctx, cfg.Broker.ConnectTimeout)
	err = supervisor.Start(connectCtx)
	connectCancel()
	if err != nil {
		logger.Error("failed to connect to broker", "broker", brokerAddr(cfg.Broker), "error", err)
		stopJournal(journalWriter, cfg.ShutdownTimeout)
		return 1
	}

	// Status server
	var statusServer *http.Server
	if cfg.Status.Port > 0 {
		src := statusSources{connection: supervisor, display: state, frames: matrix}
		if journalWriter != nil {
			src.journal = journalWriter
		}
		statusServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Status.Port),
			Handler:           createStatusHandler(src, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("starting status server", "port", cfg.Status.Port)
			if err := statusServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status server error", "error", err)
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error { return supervisor.Run(gctx) })

	logger.Info("marquee running")

	<-gctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := supervisor.Stop(shutdownCtx); err != nil {
		logger.Warn("broker disconnect did not complete", "error", err)
	}

	exit := 0
	if err := g.Wait(); err != nil {
		logger.Error("task failed", "error", err)
		exit = 1
	}

	if journalWriter != nil {
		journalWriter.Stop(shutdownCtx)
	}
	if statusServer != nil {
		statusServer.Shutdown(shutdownCtx)
	}

	logger.Info("marquee stopped")
	return exit
}

func openOutput(cfg *config.Config) (panel.Output, error) {
	switch cfg.Panel.Output {
	case config.OutputSSD1306:
		return panel.OpenSSD1306(cfg.Panel.I2CBus, cfg.Display.Width, cfg.Display.Height)
	default:
		return &panel.Headless{}, nil
	}
}

func stopJournal(w *journal.Writer, timeout time.Duration) {
	if w == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	w.Stop(ctx)
}

func brokerAddr(b config.BrokerConfig) string {
	if b.Transport == config.TransportWebSocket {
		return b.URL
	}
	return fmt.Sprintf("%s:%d", b.Host, b.Port)
}
