package rpc

import "context"

// Future is the handle of a call running in the background.
type Future[T any] struct {
	cancel context.CancelFunc
	done   chan struct{}
	value  T
	err    error
}

// Go runs fn in its own goroutine under a cancellable child of ctx.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	ctx, cancel := context.WithCancel(ctx)
	f := &Future[T]{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(f.done)
		defer cancel()
		f.value, f.err = fn(ctx)
	}()
	return f
}

// Done is closed when the call has finished.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Cancel stops the call. Pending retries are abandoned and Wait reports the
// cancellation unless the call had already finished.
func (f *Future[T]) Cancel() {
	f.cancel()
}

// Wait blocks until the call finishes or ctx is done. Giving up on ctx does
// not cancel the call.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
