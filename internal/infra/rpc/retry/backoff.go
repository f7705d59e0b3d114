package retry

import (
	"errors"
	"sync"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/status"
)

// Backoff produces the delays between attempts of a single logical call.
// It satisfies the go-retry Backoff interface.
type Backoff struct {
	policy *Policy
	now    func() time.Time

	mu       sync.Mutex
	start    time.Time
	current  time.Duration
	attempts int
	hint     time.Duration
	exceeded error
}

// NewBackoff starts a schedule for p at the current time.
func NewBackoff(p *Policy) *Backoff {
	return newBackoff(p, time.Now)
}

func newBackoff(p *Policy, now func() time.Time) *Backoff {
	return &Backoff{
		policy:   p,
		now:      now,
		start:    now(),
		current:  p.Initial,
		attempts: 1,
	}
}

// ErrDeadlineExceeded and ErrAttemptsExhausted record why a schedule stopped.
var (
	ErrDeadlineExceeded  = errors.New("retry deadline exceeded")
	ErrAttemptsExhausted = errors.New("retry attempts exhausted")
)

// Observe inspects a retryable error for a server-provided RetryInfo delay.
func (b *Backoff) Observe(err error) {
	s, ok := status.FromError(err)
	if !ok {
		return
	}
	for _, d := range s.Details() {
		if info, ok := d.(*errdetails.RetryInfo); ok && info.GetRetryDelay() != nil {
			b.mu.Lock()
			b.hint = info.GetRetryDelay().AsDuration()
			b.mu.Unlock()
		}
	}
}

// Next returns the delay before the next attempt, or stop when the deadline
// or attempt budget has been used up. The returned delay never reaches past
// the deadline.
func (b *Backoff) Next() (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p := b.policy
	if p.MaxAttempts > 0 && b.attempts >= p.MaxAttempts {
		b.exceeded = ErrAttemptsExhausted
		return 0, true
	}

	elapsed := b.now().Sub(b.start)
	if p.Deadline > 0 && elapsed >= p.Deadline {
		b.exceeded = ErrDeadlineExceeded
		return 0, true
	}

	delay := min(b.current, p.Maximum)
	if b.hint > delay {
		delay = min(b.hint, p.Maximum)
	}
	b.hint = 0
	b.current = next(min(b.current, p.Maximum), p.Multiplier, p.Maximum)

	if p.Deadline > 0 {
		if remaining := p.Deadline - elapsed; delay > remaining {
			delay = remaining
		}
	}
	b.attempts++
	return delay, false
}

// Attempts returns the number of attempts the schedule has allowed so far.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Exhausted returns why the schedule stopped, or nil while it is running.
func (b *Backoff) Exhausted() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exceeded
}
