package channel

import (
	"context"
	"sync/atomic"
)

// HandlerRef is a reference cell holding the handler that should currently
// receive events. Subscribe ref.Handle once; swap behaviour with Set. The
// subscription never changes, so no event is lost or handled twice while the
// behaviour behind it is replaced.
type HandlerRef struct {
	current atomic.Pointer[Handler]
}

// NewHandlerRef creates a reference holding h, which may be nil.
func NewHandlerRef(h Handler) *HandlerRef {
	r := &HandlerRef{}
	r.Set(h)
	return r
}

// Set replaces the current handler. A nil handler drops events.
func (r *HandlerRef) Set(h Handler) {
	if h == nil {
		r.current.Store(nil)
		return
	}
	r.current.Store(&h)
}

// Handle forwards ev to the current handler.
func (r *HandlerRef) Handle(ctx context.Context, ev ServerEvent) {
	if h := r.current.Load(); h != nil {
		(*h)(ctx, ev)
	}
}
