package connection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartpanel/marquee/internal/control"
)

// fakeTransport is a scripted Transport.
type fakeTransport struct {
	mu          sync.Mutex
	connectErrs   []error // consumed one per Connect call
	subscribeErrs []error // consumed one per Subscribe call
	connects      int
	subscribes  []string
	handler     MessageHandler
	connected   bool
	hangOnClose bool
	closed      bool
	disconnects int

	// refuseWhileConnected rejects Connect on an open session, as paho does
	// with auto-reconnect disabled.
	refuseWhileConnected bool

	errors chan error
}

func newFakeTransport(connectErrs ...error) *fakeTransport {
	return &fakeTransport{connectErrs: connectErrs, errors: make(chan error, 1)}
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.refuseWhileConnected && f.connected {
		return errAlreadyConnected
	}
	if len(f.connectErrs) > 0 {
		err := f.connectErrs[0]
		f.connectErrs = f.connectErrs[1:]
		if err != nil {
			return err
		}
	}
	f.connected = true
	return nil
}

func (f *fakeTransport) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes = append(f.subscribes, topic)
	if len(f.subscribeErrs) > 0 {
		err := f.subscribeErrs[0]
		f.subscribeErrs = f.subscribeErrs[1:]
		if err != nil {
			return err
		}
	}
	f.handler = handler
	return nil
}

func (f *fakeTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	return nil
}

func (f *fakeTransport) Disconnect(ctx context.Context) error {
	f.mu.Lock()
	f.connected = false
	f.closed = true
	f.disconnects++
	hang := f.hangOnClose
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (f *fakeTransport) Errors() <-chan error { return f.errors }

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

var errAlreadyConnected = errors.New("status is already connected or reconnecting")

// lose drops the connection and notifies the supervisor.
func (f *fakeTransport) lose(err error) {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	f.errors <- err
}

func (f *fakeTransport) deliver(payload string) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	h(TimestampedMessage{Topic: "home/panel", Data: []byte(payload), ReceivedAt: time.Now()})
}

func (f *fakeTransport) stats() (connects int, subscribes []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects, append([]string(nil), f.subscribes...)
}

type fakeDisplay struct {
	mu       sync.Mutex
	applied  []control.Message
	statuses []string
}

func (d *fakeDisplay) Apply(msg control.Message) {
	d.mu.Lock()
	d.applied = append(d.applied, msg)
	d.mu.Unlock()
}

func (d *fakeDisplay) SetStatus(text string) {
	d.mu.Lock()
	d.statuses = append(d.statuses, text)
	d.mu.Unlock()
}

func (d *fakeDisplay) snapshot() ([]control.Message, []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]control.Message(nil), d.applied...), append([]string(nil), d.statuses...)
}

type fakeRecorder struct {
	mu   sync.Mutex
	msgs []control.Message
}

func (r *fakeRecorder) Record(msg control.Message, _ time.Time) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func (r *fakeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 2s")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func testSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		Topic:     "home/panel",
		InboxSize: 8,
		Backoff:   DefaultBackoffConfig(),
	}
}

// startRun starts a supervisor and runs it until the test ends.
func startRun(t *testing.T, s *Supervisor) {
	t.Helper()
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestSupervisor_Start(t *testing.T) {
	ft := newFakeTransport()
	fd := &fakeDisplay{}
	s := NewSupervisor(testSupervisorConfig(), ft, fd, nil, nil)

	if s.State() != Disconnected {
		t.Errorf("initial State() = %v, want disconnected", s.State())
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if s.State() != Connected {
		t.Errorf("State() = %v, want connected", s.State())
	}
	_, subs := ft.stats()
	if len(subs) != 1 || subs[0] != "home/panel" {
		t.Errorf("subscribes = %v, want [home/panel]", subs)
	}
	_, statuses := fd.snapshot()
	if len(statuses) != 1 || statuses[0] != StatusConnected {
		t.Errorf("statuses = %v, want [%q]", statuses, StatusConnected)
	}
}

func TestSupervisor_StartFailure(t *testing.T) {
	refused := errors.New("connection refused")
	ft := newFakeTransport(refused)
	fd := &fakeDisplay{}
	s := NewSupervisor(testSupervisorConfig(), ft, fd, nil, nil)

	err := s.Start(context.Background())
	if !errors.Is(err, refused) {
		t.Fatalf("Start() error = %v, want %v", err, refused)
	}
	if s.State() != Disconnected {
		t.Errorf("State() = %v, want disconnected", s.State())
	}
	if _, statuses := fd.snapshot(); len(statuses) != 0 {
		t.Errorf("statuses = %v, want none", statuses)
	}
}

func TestSupervisor_Dispatch(t *testing.T) {
	ft := newFakeTransport()
	fd := &fakeDisplay{}
	rec := &fakeRecorder{}
	s := NewSupervisor(testSupervisorConfig(), ft, fd, rec, nil)
	startRun(t, s)

	ft.deliver(`{"message":"Hello","color":"[0,255,0]"}`)

	waitFor(t, func() bool {
		applied, _ := fd.snapshot()
		return len(applied) == 1
	})

	applied, _ := fd.snapshot()
	if applied[0].Text != "Hello" {
		t.Errorf("Text = %q, want Hello", applied[0].Text)
	}
	if applied[0].Color == nil || *applied[0].Color != (control.RGB{G: 255}) {
		t.Errorf("Color = %v, want [0,255,0]", applied[0].Color)
	}
	waitFor(t, func() bool { return rec.count() == 1 })

	stats := s.Stats()
	if stats.Received != 1 || stats.Applied != 1 {
		t.Errorf("Stats() = %+v, want received=1 applied=1", stats)
	}
}

func TestSupervisor_DispatchMalformed(t *testing.T) {
	ft := newFakeTransport()
	fd := &fakeDisplay{}
	rec := &fakeRecorder{}
	s := NewSupervisor(testSupervisorConfig(), ft, fd, rec, nil)
	startRun(t, s)

	ft.deliver(`not json`)
	ft.deliver(`{"message":"after"}`)

	waitFor(t, func() bool {
		applied, _ := fd.snapshot()
		return len(applied) == 1
	})

	applied, _ := fd.snapshot()
	if applied[0].Text != "after" {
		t.Errorf("Text = %q, want after", applied[0].Text)
	}
	if got := s.Stats().Malformed; got != 1 {
		t.Errorf("Malformed = %d, want 1", got)
	}
	if s.State() != Connected {
		t.Errorf("State() = %v, want connected", s.State())
	}
}

func TestSupervisor_DispatchInvalidColor(t *testing.T) {
	ft := newFakeTransport()
	fd := &fakeDisplay{}
	s := NewSupervisor(testSupervisorConfig(), ft, fd, nil, nil)
	startRun(t, s)

	ft.deliver(`{"message":"Hi","color":"[300,0,0]","font":"6x10"}`)

	waitFor(t, func() bool {
		applied, _ := fd.snapshot()
		return len(applied) == 1
	})

	applied, _ := fd.snapshot()
	if applied[0].Color != nil {
		t.Errorf("Color = %v, want nil", applied[0].Color)
	}
	if applied[0].Text != "Hi" || applied[0].Font != "6x10" {
		t.Errorf("message = %v, want text and font kept", applied[0])
	}
}

func TestSupervisor_InboxFullDrops(t *testing.T) {
	ft := newFakeTransport()
	cfg := testSupervisorConfig()
	cfg.InboxSize = 1
	s := NewSupervisor(cfg, ft, &fakeDisplay{}, nil, nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Run is not started, so nothing drains the inbox.
	for i := 0; i < 3; i++ {
		ft.deliver(`{"message":"x"}`)
	}

	stats := s.Stats()
	if stats.Received != 3 || stats.Dropped != 2 {
		t.Errorf("Stats() = %+v, want received=3 dropped=2", stats)
	}
}

func TestSupervisor_ReconnectBackoffExhausted(t *testing.T) {
	refused := errors.New("connection refused")
	errs := []error{nil}
	for i := 0; i < 12; i++ {
		errs = append(errs, refused)
	}
	ft := newFakeTransport(errs...)
	fd := &fakeDisplay{}
	s := NewSupervisor(testSupervisorConfig(), ft, fd, nil, nil)

	var mu sync.Mutex
	var delays []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
		return ctx.Err()
	}

	startRun(t, s)
	ft.lose(errors.New("EOF"))

	waitFor(t, func() bool {
		_, statuses := fd.snapshot()
		return len(statuses) == 2
	})

	_, statuses := fd.snapshot()
	if statuses[1] != StatusFailed {
		t.Errorf("status = %q, want %q", statuses[1], StatusFailed)
	}
	if s.State() != Disconnected {
		t.Errorf("State() = %v, want disconnected", s.State())
	}

	want := []int{1, 2, 4, 8, 16, 32, 60, 60, 60, 60, 60, 60}
	mu.Lock()
	defer mu.Unlock()
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %d entries", delays, len(want))
	}
	for i, w := range want {
		if delays[i] != time.Duration(w)*time.Second {
			t.Errorf("delay %d = %v, want %ds", i, delays[i], w)
		}
	}
	if connects, _ := ft.stats(); connects != 13 {
		t.Errorf("connects = %d, want 13", connects)
	}
}

func TestSupervisor_ReconnectSucceeds(t *testing.T) {
	refused := errors.New("connection refused")
	ft := newFakeTransport(nil, refused, refused, nil)
	fd := &fakeDisplay{}
	s := NewSupervisor(testSupervisorConfig(), ft, fd, nil, nil)
	s.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }

	startRun(t, s)
	ft.lose(errors.New("EOF"))

	waitFor(t, func() bool {
		_, subs := ft.stats()
		return len(subs) == 2
	})
	waitFor(t, func() bool { return s.State() == Connected })

	if got := s.Stats().Attempts; got != 0 {
		t.Errorf("Attempts = %d after reconnect, want 0", got)
	}
	if _, statuses := fd.snapshot(); len(statuses) != 1 {
		t.Errorf("statuses = %v, want only the first connect status", statuses)
	}

	// Messages flow on the new subscription.
	ft.deliver(`{"message":"back"}`)
	waitFor(t, func() bool {
		applied, _ := fd.snapshot()
		return len(applied) == 1
	})
}

func TestSupervisor_SubscribeFailureClosesSession(t *testing.T) {
	ft := newFakeTransport()
	ft.refuseWhileConnected = true
	ft.subscribeErrs = []error{nil, errors.New("suback timeout")}
	fd := &fakeDisplay{}
	s := NewSupervisor(testSupervisorConfig(), ft, fd, nil, nil)
	s.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }

	startRun(t, s)
	ft.lose(errors.New("EOF"))

	waitFor(t, func() bool {
		_, subs := ft.stats()
		return len(subs) == 3
	})
	waitFor(t, func() bool { return s.State() == Connected })

	connects, _ := ft.stats()
	if connects != 3 {
		t.Errorf("connects = %d, want 3", connects)
	}
	ft.mu.Lock()
	disconnects := ft.disconnects
	ft.mu.Unlock()
	if disconnects != 1 {
		t.Errorf("disconnects = %d, want 1 after the failed subscribe", disconnects)
	}
	if _, statuses := fd.snapshot(); len(statuses) != 1 {
		t.Errorf("statuses = %v, want only the first connect status", statuses)
	}

	ft.deliver(`{"message":"resubscribed"}`)
	waitFor(t, func() bool {
		applied, _ := fd.snapshot()
		return len(applied) == 1
	})
}

func TestSupervisor_StartSubscribeFailure(t *testing.T) {
	denied := errors.New("not authorized")
	ft := newFakeTransport()
	ft.subscribeErrs = []error{denied}
	s := NewSupervisor(testSupervisorConfig(), ft, &fakeDisplay{}, nil, nil)

	if err := s.Start(context.Background()); !errors.Is(err, denied) {
		t.Fatalf("Start() error = %v, want %v", err, denied)
	}
	if ft.IsConnected() {
		t.Error("transport left connected after subscribe failure")
	}
}

func TestSupervisor_StopDuringReconnect(t *testing.T) {
	ft := newFakeTransport()
	s := NewSupervisor(testSupervisorConfig(), ft, &fakeDisplay{}, nil, nil)

	sleeping := make(chan struct{})
	release := make(chan struct{})
	s.sleep = func(ctx context.Context, d time.Duration) error {
		close(sleeping)
		<-release
		return nil
	}

	startRun(t, s)
	ft.lose(errors.New("EOF"))
	<-sleeping

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	close(release)

	// The in-flight attempt connects, then sees the stop and closes again.
	waitFor(t, func() bool {
		connects, _ := ft.stats()
		return connects == 2 && !ft.IsConnected()
	})
	time.Sleep(20 * time.Millisecond)
	if s.State() != Disconnected {
		t.Errorf("State() = %v, want disconnected after Stop", s.State())
	}
}

func TestSupervisor_IgnoresNotificationWhileConnected(t *testing.T) {
	ft := newFakeTransport()
	s := NewSupervisor(testSupervisorConfig(), ft, &fakeDisplay{}, nil, nil)
	s.sleep = func(ctx context.Context, d time.Duration) error {
		t.Error("unexpected reconnect")
		return ctx.Err()
	}
	startRun(t, s)

	// A late notification from a replaced session.
	ft.errors <- errors.New("old session closed")

	time.Sleep(50 * time.Millisecond)
	if connects, _ := ft.stats(); connects != 1 {
		t.Errorf("connects = %d, want 1", connects)
	}
	if s.State() != Connected {
		t.Errorf("State() = %v, want connected", s.State())
	}
}

func TestSupervisor_RunStopsOnCancel(t *testing.T) {
	ft := newFakeTransport()
	s := NewSupervisor(testSupervisorConfig(), ft, &fakeDisplay{}, nil, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSupervisor_StopTimeout(t *testing.T) {
	ft := newFakeTransport()
	ft.hangOnClose = true
	s := NewSupervisor(testSupervisorConfig(), ft, &fakeDisplay{}, nil, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := s.Stop(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Stop() error = %v, want deadline exceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Stop did not honour the timeout")
	}
	if s.State() != Disconnected {
		t.Errorf("State() = %v, want disconnected", s.State())
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		Disconnected: "disconnected",
		Connecting:   "connecting",
		Connected:    "connected",
		Reconnecting: "reconnecting",
		State(99):    "unknown",
	}
	for st, want := range tests {
		if got := st.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(st), got, want)
		}
	}
}
