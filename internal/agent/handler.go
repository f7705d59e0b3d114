package agent

import (
	"context"
	"time"

	"github.com/vietddude/debugctl/internal/core/domain"
)

// Handler evaluates an active breakpoint.
//
// Handle returns the breakpoint to report to the controller. A nil breakpoint
// means nothing is reported yet; the breakpoint stays pending until the next
// active list. The input is a private copy and may be modified in place.
type Handler interface {
	Handle(ctx context.Context, bp *domain.Breakpoint) (*domain.Breakpoint, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, bp *domain.Breakpoint) (*domain.Breakpoint, error)

func (f HandlerFunc) Handle(ctx context.Context, bp *domain.Breakpoint) (*domain.Breakpoint, error) {
	return f(ctx, bp)
}

// UnsupportedMessage is the status reported by UnsupportedHandler.
const UnsupportedMessage = "Breakpoint evaluation is not supported by this agent"

// UnsupportedHandler completes every breakpoint with an error status.
type UnsupportedHandler struct {
	Now func() time.Time
}

func (h UnsupportedHandler) Handle(_ context.Context, bp *domain.Breakpoint) (*domain.Breakpoint, error) {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	bp.Complete(errorStatus(domain.RefersToUnspecified, UnsupportedMessage), now())
	return bp, nil
}

func errorStatus(ref domain.StatusReference, format string, params ...string) *domain.StatusMessage {
	return &domain.StatusMessage{
		IsError:  true,
		RefersTo: ref,
		Description: &domain.FormatMessage{
			Format:     format,
			Parameters: params,
		},
	}
}
