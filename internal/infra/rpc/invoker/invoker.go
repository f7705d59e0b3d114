// Package invoker executes Controller2 operations under their retry and
// timeout policies.
//
// A Method binds an operation name to a transport call together with the
// defaults registered for it. Invoke merges per-call Settings over those
// defaults and runs the call: every attempt gets its own timeout and the same
// metadata, and failures are fed to the retry policy until the call succeeds,
// the error is not retryable, or the policy is exhausted.
package invoker

import (
	"context"
	"log/slog"
	"time"

	goretry "github.com/sethvargo/go-retry"
	"google.golang.org/grpc/metadata"

	"github.com/vietddude/debugctl/internal/infra/rpc/clientinfo"
	"github.com/vietddude/debugctl/internal/infra/rpc/retry"
	"github.com/vietddude/debugctl/internal/metrics"
)

// DefaultTimeout bounds a single attempt when neither the method nor the
// caller sets one.
const DefaultTimeout = 600 * time.Second

// Method binds a logical operation to a transport call and its defaults.
type Method[Req, Resp any] struct {
	// Name identifies the operation in logs and metrics.
	Name string

	// Call is the transport method. It must honor ctx for deadline and cancellation.
	Call func(ctx context.Context, req Req) (Resp, error)

	// DefaultRetry is used when the caller does not override the policy.
	// A nil DefaultRetry means a single attempt.
	DefaultRetry *retry.Policy

	// DefaultTimeout bounds each attempt unless overridden.
	DefaultTimeout time.Duration

	// ClientInfo is attached to every attempt.
	ClientInfo clientinfo.Info
}

// Settings are the per-call overrides.
type Settings struct {
	// Retry replaces the method's default policy entirely when RetrySet is true.
	// A nil Retry with RetrySet disables retries for the call.
	Retry    *retry.Policy
	RetrySet bool

	// Timeout overrides the per-attempt timeout when positive.
	Timeout time.Duration

	// Metadata is attached unchanged to every attempt.
	Metadata metadata.MD
}

// EffectiveRetry resolves the policy a call with s runs under.
func (m *Method[Req, Resp]) EffectiveRetry(s Settings) *retry.Policy {
	if s.RetrySet {
		return s.Retry
	}
	return m.DefaultRetry
}

// EffectiveTimeout resolves the per-attempt timeout of a call with s.
func (m *Method[Req, Resp]) EffectiveTimeout(s Settings) time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	if m.DefaultTimeout > 0 {
		return m.DefaultTimeout
	}
	return DefaultTimeout
}

// Invoke runs the operation. The error of the last attempt is returned
// unchanged when the policy gives up or rejects it; a cancelled ctx yields
// ctx.Err().
func (m *Method[Req, Resp]) Invoke(ctx context.Context, req Req, s Settings) (Resp, error) {
	var (
		resp     Resp
		attempts int
		backoff  *retry.Backoff
	)

	policy := m.EffectiveRetry(s)
	timeout := m.EffectiveTimeout(s)
	ctx = m.outgoing(ctx, s.Metadata)
	if policy != nil {
		backoff = retry.NewBackoff(policy)
	}

	call := func(ctx context.Context) error {
		attempts++
		r, err := m.attempt(ctx, req, timeout)
		if err == nil {
			resp = r
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if retry.Evaluate(policy, err) != retry.OutcomeRetryable {
			return err
		}
		backoff.Observe(err)
		return goretry.RetryableError(err)
	}

	start := time.Now()
	var err error
	switch {
	case ctx.Err() != nil:
		err = ctx.Err()
	case policy == nil:
		err = call(ctx)
	default:
		err = goretry.Do(ctx, m.schedule(backoff, &attempts), call)
	}

	metrics.RPCCallsTotal.WithLabelValues(m.Name, retry.Code(err).String()).Inc()
	metrics.RPCLatency.WithLabelValues(m.Name).Observe(time.Since(start).Seconds())

	if err != nil {
		slog.Debug("Controller2 call failed",
			"method", m.Name,
			"attempts", attempts,
			"code", retry.Code(err).String(),
			"error", err,
		)
		var zero Resp
		return zero, err
	}
	return resp, nil
}

func (m *Method[Req, Resp]) attempt(ctx context.Context, req Req, timeout time.Duration) (Resp, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := m.Call(ctx, req)
	metrics.RPCAttemptsTotal.WithLabelValues(m.Name, retry.Code(err).String()).Inc()
	return resp, err
}

func (m *Method[Req, Resp]) schedule(b *retry.Backoff, attempts *int) goretry.Backoff {
	return goretry.BackoffFunc(func() (time.Duration, bool) {
		delay, stop := b.Next()
		if stop {
			slog.Debug("Retry policy exhausted",
				"method", m.Name,
				"attempts", *attempts,
				"reason", b.Exhausted(),
			)
			return 0, true
		}
		metrics.RPCRetriesTotal.WithLabelValues(m.Name).Inc()
		slog.Debug("Retrying Controller2 call",
			"method", m.Name,
			"attempt", *attempts,
			"delay", delay,
		)
		return delay, false
	})
}

// outgoing attaches the caller metadata and the client tag to ctx once, so
// every attempt derived from it carries identical metadata.
func (m *Method[Req, Resp]) outgoing(ctx context.Context, md metadata.MD) context.Context {
	kv := make([]string, 0, 2*len(md)+2)
	for k, vs := range md {
		for _, v := range vs {
			kv = append(kv, k, v)
		}
	}
	if header := m.ClientInfo.Header(); header != "" {
		kv = append(kv, clientinfo.HeaderKey, header)
	}
	if len(kv) == 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}
