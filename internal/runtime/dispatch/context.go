package dispatch

import (
	"context"
	"time"
)

// Invocation describes the Runtime API invocation a target call belongs to.
type Invocation struct {
	TenantID           string
	RequestID          string
	TraceID            string
	Deadline           time.Time
	InvokedFunctionARN string
}

type invocationKey struct{}

// WithInvocation returns a context carrying inv.
func WithInvocation(ctx context.Context, inv Invocation) context.Context {
	return context.WithValue(ctx, invocationKey{}, inv)
}

// InvocationFromContext returns the invocation stored by WithInvocation.
func InvocationFromContext(ctx context.Context) (Invocation, bool) {
	inv, ok := ctx.Value(invocationKey{}).(Invocation)
	return inv, ok
}

// TraceIDFromContext is a shortcut for targets that only need the trace id.
func TraceIDFromContext(ctx context.Context) string {
	inv, _ := InvocationFromContext(ctx)
	return inv.TraceID
}
