package reqcontext

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNoRequestContext names the missing-RequestContext condition. Nothing in
// this module returns it: internal/command reports a command with a cache
// key executing without an active RequestContext as an IllegalStateError.
var ErrNoRequestContext = errors.New("reqcontext: no active request context")

// RequestContext is the per-logical-request scope described in spec.md
// §4.6: it owns the request cache and the executed-command log, and is
// destroyed (releasing both) on Shutdown. There is at most one active
// context per logical caller; spec.md §9 replaces ambient thread-local
// lookup with explicit propagation via context.Context, using WithContext/
// FromContext below.
type RequestContext struct {
	ID    string
	Cache *Cache
	Log   *RequestLog
}

// Initialize creates a new RequestContext, installing a fresh cache and
// executed-command log. It corresponds to spec.md's "initializeContext()".
func Initialize() *RequestContext {
	return &RequestContext{
		ID:    uuid.NewString(),
		Cache: newCache(),
		Log:   newRequestLog(),
	}
}

// Shutdown releases every cached future and clears the executed-command
// log. The RequestContext value itself must not be reused afterward; a new
// logical request calls Initialize again.
func (rc *RequestContext) Shutdown() {
	rc.Cache.clearAll()
	rc.Log.clear()
}

type contextKeyType struct{}

var contextKey = contextKeyType{}

// WithContext returns a derived context.Context carrying rc, retrievable via
// FromContext. This is the "current context" slot from spec.md §9, scoped
// to Go's own unit of concurrency (a context.Context chain) rather than a
// goroutine-local.
func WithContext(parent context.Context, rc *RequestContext) context.Context {
	return context.WithValue(parent, contextKey, rc)
}

// FromContext retrieves the RequestContext installed by WithContext, if
// any.
func FromContext(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(contextKey).(*RequestContext)
	return rc, ok
}
