package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/smartpanel/marquee/internal/control"
)

// BatchSender sends a batch of queries. *pgxpool.Pool satisfies it.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// WriterConfig holds batching settings.
type WriterConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	BufferSize    int
}

// DefaultWriterConfig returns the default batching settings.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     100,
		FlushInterval: 5 * time.Second,
		BufferSize:    256,
	}
}

// WriterMetrics tracks writer activity.
type WriterMetrics struct {
	Inserts int64
	Flushes int64
	Errors  int64
	Dropped int64
}

type row struct {
	ID         uuid.UUID
	ReceivedAt time.Time
	MessageTs  time.Time
	Text       string
	Status     string
	Color      *string
	Font       *string
	Brightness int
}

// Writer journals control messages. Record never blocks the caller.
type Writer struct {
	cfg    WriterConfig
	logger *slog.Logger

	input chan row
	db    BatchSender

	// Batching
	batch       []row
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics WriterMetrics
}

// NewWriter creates a Writer.
func NewWriter(cfg WriterConfig, db BatchSender, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultWriterConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}

	return &Writer{
		cfg:    cfg,
		logger: logger,
		input:  make(chan row, cfg.BufferSize),
		db:     db,
		batch:  make([]row, 0, cfg.BatchSize),
	}
}

// Record queues msg for writing. When the queue is full the message is
// dropped and counted.
func (w *Writer) Record(msg control.Message, receivedAt time.Time) {
	select {
	case w.input <- transform(msg, receivedAt):
	default:
		w.batchMu.Lock()
		w.metrics.Dropped++
		w.batchMu.Unlock()
		w.logger.Warn("journal buffer full, dropping message")
	}
}

// Start begins consuming queued messages.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("journal writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop shuts down the writer and flushes what is left.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping journal writer")

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("journal writer stopped")
	case <-ctx.Done():
		w.logger.Warn("journal writer stop timed out")
	}

	// Drain anything queued after the consumer exited.
	for drained := false; !drained; {
		select {
		case r := <-w.input:
			w.add(r)
		default:
			drained = true
		}
	}
	w.flush(ctx)

	return nil
}

// Stats returns current metrics.
func (w *Writer) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

func (w *Writer) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case r := <-w.input:
			if w.add(r) {
				w.flush(w.ctx)
			}
		}
	}
}

func (w *Writer) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

// add appends r to the batch and reports whether the batch is full.
func (w *Writer) add(r row) bool {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.batch = append(w.batch, r)
	return len(w.batch) >= w.cfg.BatchSize
}

func transform(msg control.Message, receivedAt time.Time) row {
	r := row{
		ID:         uuid.New(),
		ReceivedAt: receivedAt,
		MessageTs:  msg.Timestamp,
		Text:       msg.Text,
		Status:     msg.Status,
		Brightness: msg.Brightness,
	}
	if msg.Color != nil {
		c := msg.Color.String()
		r.Color = &c
	}
	if msg.Font != "" {
		f := msg.Font
		r.Font = &f
	}
	return r
}

// flush writes the current batch to the database.
func (w *Writer) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]row, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()
	if err := w.batchInsert(ctx, batch); err != nil {
		w.logger.Error("journal insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch))
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed journal",
		"count", len(batch),
		"duration", time.Since(start),
	)
}

func (w *Writer) batchInsert(ctx context.Context, rows []row) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO control_messages (id, received_at, message_ts, text, status, color, font, brightness)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING
		`, r.ID, r.ReceivedAt, r.MessageTs, r.Text, r.Status, r.Color, r.Font, r.Brightness)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
