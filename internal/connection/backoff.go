package connection

import "time"

// BackoffConfig configures reconnect delays.
type BackoffConfig struct {
	FirstDelay  time.Duration
	Factor      float64
	MaxDelay    time.Duration
	MaxAttempts int
}

// DefaultBackoffConfig returns 1s doubling to a 60s cap over 12 attempts.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		FirstDelay:  time.Second,
		Factor:      2,
		MaxDelay:    60 * time.Second,
		MaxAttempts: 12,
	}
}

// Backoff tracks reconnect attempts. It is not safe for concurrent use; the
// supervisor's reconnect loop owns it.
type Backoff struct {
	cfg      BackoffConfig
	attempts int
	delay    time.Duration
}

// NewBackoff creates a Backoff in its reset state.
func NewBackoff(cfg BackoffConfig) *Backoff {
	if cfg.Factor < 1 {
		cfg.Factor = 1
	}
	b := &Backoff{cfg: cfg}
	b.Reset()
	return b
}

// Next returns the delay to wait before the next attempt and records the
// attempt. It returns false once MaxAttempts have been made.
func (b *Backoff) Next() (time.Duration, bool) {
	if b.attempts >= b.cfg.MaxAttempts {
		return 0, false
	}
	d := b.delay
	b.attempts++

	next := time.Duration(float64(b.delay) * b.cfg.Factor)
	if next > b.cfg.MaxDelay || next <= 0 {
		next = b.cfg.MaxDelay
	}
	b.delay = next
	return d, true
}

// Reset clears the attempt count and restores the first delay.
func (b *Backoff) Reset() {
	b.attempts = 0
	b.delay = b.cfg.FirstDelay
	if b.delay > b.cfg.MaxDelay {
		b.delay = b.cfg.MaxDelay
	}
}

// Attempts returns the number of attempts made since the last reset.
func (b *Backoff) Attempts() int {
	return b.attempts
}

// Delay returns the delay Next will return.
func (b *Backoff) Delay() time.Duration {
	return b.delay
}
