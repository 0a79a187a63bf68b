package main

import (
	"encoding/json"
	"image"
	"image/png"
	"log/slog"
	"net/http"
	"time"

	"github.com/smartpanel/marquee/internal/connection"
	"github.com/smartpanel/marquee/internal/display"
	"github.com/smartpanel/marquee/internal/journal"
	"github.com/smartpanel/marquee/internal/version"
)

type connectionStats interface {
	Stats() connection.SupervisorStats
}

type journalStats interface {
	Stats() journal.WriterMetrics
}

type frameSource interface {
	Snapshot() *image.RGBA
}

// statusSources are the components the status endpoint reports on. journal
// and frames may be nil.
type statusSources struct {
	connection connectionStats
	display    *display.State
	journal    journalStats
	frames     frameSource
}

// createStatusHandler creates the HTTP handler for /health and /frame.png.
func createStatusHandler(src statusSources, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		conn := src.connection.Stats()
		snap := src.display.Snapshot()

		health := struct {
			Status     string                 `json:"status"`
			Version    version.Info           `json:"version"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Version:    version.Get(),
			Components: make(map[string]interface{}),
		}

		health.Components["connection"] = map[string]interface{}{
			"state":     conn.State.String(),
			"attempts":  conn.Attempts,
			"received":  conn.Received,
			"applied":   conn.Applied,
			"malformed": conn.Malformed,
			"dropped":   conn.Dropped,
		}
		if conn.State != connection.Connected {
			health.Status = "degraded"
		}

		health.Components["display"] = map[string]interface{}{
			"text":         snap.Text,
			"font":         snap.Font,
			"color":        snap.Color.String(),
			"status":       snap.Status,
			"brightness":   snap.Brightness,
			"stale":        src.display.IsStale(now),
			"last_message": snap.LastMessage.Format(time.RFC3339),
		}

		if src.journal != nil {
			m := src.journal.Stats()
			health.Components["journal"] = map[string]interface{}{
				"inserts": m.Inserts,
				"flushes": m.Flushes,
				"errors":  m.Errors,
				"dropped": m.Dropped,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(health); err != nil {
			logger.Debug("write health response", "error", err)
		}
	})

	mux.HandleFunc("/frame.png", func(w http.ResponseWriter, r *http.Request) {
		if src.frames == nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		if err := png.Encode(w, src.frames.Snapshot()); err != nil {
			logger.Debug("write frame response", "error", err)
		}
	})

	return mux
}
