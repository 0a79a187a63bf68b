package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smartpanel/marquee/internal/control"
)

// Status texts shown on the display.
const (
	StatusConnected = "Connected to broker"
	StatusFailed    = "Failed to connect to broker"
)

// Display receives decoded control messages and connection status text.
type Display interface {
	Apply(msg control.Message)
	SetStatus(text string)
}

// Recorder is notified of every applied control message.
type Recorder interface {
	Record(msg control.Message, receivedAt time.Time)
}

// SupervisorConfig configures a Supervisor.
type SupervisorConfig struct {
	Topic     string
	InboxSize int
	Backoff   BackoffConfig
}

// SupervisorStats provides statistics about the supervisor.
type SupervisorStats struct {
	State     State
	Attempts  int
	Received  int64
	Applied   int64
	Malformed int64
	Dropped   int64
}

// Supervisor keeps a Transport subscribed to the control topic and feeds
// decoded messages to a Display.
type Supervisor struct {
	cfg       SupervisorConfig
	transport Transport
	display   Display
	recorder  Recorder
	logger    *slog.Logger

	inbox chan TimestampedMessage
	sleep func(ctx context.Context, d time.Duration) error

	// Owned by the reconnect loop; attempts mirrored for Stats.
	backoff  *Backoff
	attempts atomic.Int64

	mu            sync.RWMutex
	state         State
	everConnected bool
	stopping      bool

	received  atomic.Int64
	applied   atomic.Int64
	malformed atomic.Int64
	dropped   atomic.Int64

	wg sync.WaitGroup
}

// NewSupervisor creates a Supervisor. recorder may be nil.
func NewSupervisor(cfg SupervisorConfig, transport Transport, display Display, recorder Recorder, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 64
	}

	return &Supervisor{
		cfg:       cfg,
		transport: transport,
		display:   display,
		recorder:  recorder,
		logger:    logger,
		inbox:     make(chan TimestampedMessage, cfg.InboxSize),
		sleep:     sleepContext,
		backoff:   NewBackoff(cfg.Backoff),
	}
}

// Start makes the first connection and subscribes. An error here is fatal
// for the process: there is nothing to fall back to.
func (s *Supervisor) Start(ctx context.Context) error {
	s.setState(Connecting)

	if err := s.connect(ctx); err != nil {
		s.setState(Disconnected)
		return err
	}

	if !s.connected() {
		return ErrStopped
	}
	s.logger.Info("subscribed to control feed", "topic", s.cfg.Topic)
	return nil
}

// Run dispatches inbound messages and reconnects on connection loss until
// ctx is cancelled. Start must have succeeded first.
func (s *Supervisor) Run(ctx context.Context) error {
	s.wg.Add(1)
	go s.dispatchLoop(ctx)
	defer s.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-s.transport.Errors():
			if s.transport.IsConnected() {
				s.logger.Debug("ignoring disconnect notification for a replaced session", "error", err)
				continue
			}
			if s.State() != Connected {
				continue
			}
			s.logger.Warn("connection lost", "error", err)
			if err := s.reconnect(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrStopped) {
				s.logger.Error("giving up on broker", "error", err, "attempts", s.backoff.Attempts())
			}
		}
	}
}

// Stop disconnects the transport. It returns when the transport has closed
// or ctx ends, whichever is first.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.logger.Info("stopping connection supervisor")
	s.mu.Lock()
	s.stopping = true
	s.state = Disconnected
	s.mu.Unlock()

	if err := s.transport.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	return nil
}

// State returns the current connection state.
func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Stats returns current statistics.
func (s *Supervisor) Stats() SupervisorStats {
	return SupervisorStats{
		State:     s.State(),
		Attempts:  int(s.attempts.Load()),
		Received:  s.received.Load(),
		Applied:   s.applied.Load(),
		Malformed: s.malformed.Load(),
		Dropped:   s.dropped.Load(),
	}
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Supervisor) setStateUnlessStopping(st State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return false
	}
	s.state = st
	return true
}

func (s *Supervisor) connect(ctx context.Context) error {
	if err := s.transport.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if err := s.transport.Subscribe(ctx, s.cfg.Topic, s.enqueue); err != nil {
		// Close the unsubscribed session so the next attempt can dial again.
		if derr := s.transport.Disconnect(ctx); derr != nil {
			s.logger.Warn("closing unsubscribed session", "error", derr)
		}
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

// connected records a successful (re)connect. The status text is only shown
// for the first connection so a reconnect does not replace live content.
// It reports false once Stop has been called.
func (s *Supervisor) connected() bool {
	s.backoff.Reset()
	s.attempts.Store(0)

	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return false
	}
	s.state = Connected
	first := !s.everConnected
	s.everConnected = true
	s.mu.Unlock()

	if first {
		s.display.SetStatus(StatusConnected)
	}
	return true
}

// reconnect redials with backoff. It leaves the supervisor Connected or,
// once attempts run out, Disconnected with the failure status shown.
func (s *Supervisor) reconnect(ctx context.Context) error {
	if !s.setStateUnlessStopping(Reconnecting) {
		return ErrStopped
	}

	for {
		delay, ok := s.backoff.Next()
		if !ok {
			if !s.setStateUnlessStopping(Disconnected) {
				return ErrStopped
			}
			s.display.SetStatus(StatusFailed)
			return ErrRetriesExhausted
		}
		attempt := s.backoff.Attempts()
		s.attempts.Store(int64(attempt))

		s.logger.Info("attempting reconnection", "attempt", attempt, "delay", delay)

		if err := s.sleep(ctx, delay); err != nil {
			return err
		}

		if err := s.connect(ctx); err != nil {
			s.logger.Warn("reconnection failed", "attempt", attempt, "error", err)
			continue
		}

		if !s.connected() {
			s.closeLateSession()
			return ErrStopped
		}
		s.logger.Info("reconnected", "attempt", attempt)
		return nil
	}
}

// closeLateSession closes a session opened by a reconnect that finished after
// Stop.
func (s *Supervisor) closeLateSession() {
	ctx, cancel := context.WithTimeout(context.Background(), lateSessionCloseTimeout)
	defer cancel()
	if err := s.transport.Disconnect(ctx); err != nil {
		s.logger.Warn("closing session opened during shutdown", "error", err)
	}
}

const lateSessionCloseTimeout = 2 * time.Second

// enqueue is the transport's message handler. It never blocks: when the
// inbox is full the message is dropped.
func (s *Supervisor) enqueue(msg TimestampedMessage) {
	s.received.Add(1)

	select {
	case s.inbox <- msg:
	default:
		s.dropped.Add(1)
		s.logger.Warn("inbox full, dropping message", "topic", msg.Topic)
	}
}

func (s *Supervisor) dispatchLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.inbox:
			s.dispatch(msg)
		}
	}
}

// dispatch decodes one payload and applies it. Malformed payloads are logged
// and dropped; an invalid color drops only the color.
func (s *Supervisor) dispatch(in TimestampedMessage) {
	msg, err := control.Decode(in.Data, in.ReceivedAt)
	if err != nil {
		var de *control.DecodeError
		if errors.As(err, &de) && de.Kind == control.InvalidColor {
			s.logger.Warn("ignoring invalid color", "error", err)
		} else {
			s.malformed.Add(1)
			s.logger.Warn("dropping malformed control message", "error", err, "payload", truncate(in.Data, maxLoggedPayload))
			return
		}
	}

	s.display.Apply(msg)
	s.applied.Add(1)
	s.logger.Debug("control message applied", "message", msg.String())

	if s.recorder != nil {
		s.recorder.Record(msg, in.ReceivedAt)
	}
}

const maxLoggedPayload = 256

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
