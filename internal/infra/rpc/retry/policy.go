// Package retry decides whether and when a failed Controller2 call is
// re-issued.
//
// A Policy describes an exponential schedule bounded by a total deadline and
// filtered by a predicate over the error classification. Backoff turns a
// policy into the sequence of delays consumed by the invoker's retry loop.
package retry

import (
	"fmt"
	"time"
)

// Policy defines retry behavior for one operation.
type Policy struct {
	// Initial is the first delay. It is clamped to Maximum.
	Initial time.Duration
	// Maximum caps every delay.
	Maximum time.Duration
	// Multiplier grows the delay after each retry.
	Multiplier float64
	// Deadline bounds the whole sequence of attempts. Zero means no deadline.
	Deadline time.Duration
	// MaxAttempts bounds the number of attempts. Zero means unlimited.
	MaxAttempts int
	// Predicate restricts retry to specific error classifications.
	Predicate Predicate
}

const (
	DefaultInitial    = 100 * time.Millisecond
	DefaultMaximum    = 60 * time.Second
	DefaultMultiplier = 1.3
	DefaultDeadline   = 600 * time.Second
)

// DefaultPolicy returns the process-wide default: 0.1s initial, 60s maximum,
// multiplier 1.3, 600s deadline, retrying deadline exceeded and unavailable.
// Each call returns a fresh value so the default cannot be mutated.
func DefaultPolicy() *Policy {
	return &Policy{
		Initial:    DefaultInitial,
		Maximum:    DefaultMaximum,
		Multiplier: DefaultMultiplier,
		Deadline:   DefaultDeadline,
		Predicate:  IfTransient(),
	}
}

// Validate checks the policy parameters.
func (p *Policy) Validate() error {
	if p.Initial <= 0 {
		return fmt.Errorf("retry: initial backoff must be positive, got %v", p.Initial)
	}
	if p.Maximum <= 0 {
		return fmt.Errorf("retry: maximum backoff must be positive, got %v", p.Maximum)
	}
	if p.Multiplier < 1 {
		return fmt.Errorf("retry: multiplier must be >= 1, got %v", p.Multiplier)
	}
	if p.Deadline < 0 {
		return fmt.Errorf("retry: deadline must not be negative, got %v", p.Deadline)
	}
	if p.MaxAttempts < 0 {
		return fmt.Errorf("retry: max attempts must not be negative, got %d", p.MaxAttempts)
	}
	if p.Predicate == nil {
		return fmt.Errorf("retry: predicate is required")
	}
	return nil
}

// Clone returns a copy of the policy.
func (p *Policy) Clone() *Policy {
	if p == nil {
		return nil
	}
	out := *p
	return &out
}

// WithDeadline returns a copy of p with a different total deadline.
func (p *Policy) WithDeadline(d time.Duration) *Policy {
	out := p.Clone()
	out.Deadline = d
	return out
}

// Delays returns the first n delays of the schedule, ignoring the deadline.
func (p *Policy) Delays(n int) []time.Duration {
	out := make([]time.Duration, 0, n)
	current := p.Initial
	for i := 0; i < n; i++ {
		current = min(current, p.Maximum)
		out = append(out, current)
		current = next(current, p.Multiplier, p.Maximum)
	}
	return out
}

func next(current time.Duration, multiplier float64, maximum time.Duration) time.Duration {
	grown := float64(current) * multiplier
	if grown > float64(maximum) {
		return maximum
	}
	return time.Duration(grown)
}
