package dispatch

import (
	"context"
	"sync/atomic"

	lberrors "github.com/drblury/lambdabridge/internal/runtime/errors"
)

// Operation names understood by a Target.
const (
	OpHandleEvent   = "HandleEvent"
	OpHandleRequest = "HandleRequest"
)

// Target receives encoded envelopes on behalf of a tenant and returns the
// encoded reply.
type Target interface {
	Dispatch(ctx context.Context, tenantID, operation string, payload []byte) ([]byte, error)
}

// TargetFunc adapts a function to Target.
type TargetFunc func(ctx context.Context, tenantID, operation string, payload []byte) ([]byte, error)

func (f TargetFunc) Dispatch(ctx context.Context, tenantID, operation string, payload []byte) ([]byte, error) {
	return f(ctx, tenantID, operation, payload)
}

// NullTarget is installed until a real target is configured.
type NullTarget struct{}

func (NullTarget) Dispatch(context.Context, string, string, []byte) ([]byte, error) {
	return nil, lberrors.ErrNoTarget
}

type targetBox struct {
	target Target
}

// Handle holds the current Target. It can be swapped while pollers are
// dispatching; each call sees either the old or the new target.
type Handle struct {
	current atomic.Pointer[targetBox]
}

// NewHandle returns a Handle holding t, or NullTarget when t is nil.
func NewHandle(t Target) *Handle {
	h := &Handle{}
	h.Swap(t)
	return h
}

// Swap installs t and returns the previous target.
func (h *Handle) Swap(t Target) Target {
	if t == nil {
		t = NullTarget{}
	}
	prev := h.current.Swap(&targetBox{target: t})
	if prev == nil {
		return NullTarget{}
	}
	return prev.target
}

// Load returns the current target.
func (h *Handle) Load() Target {
	box := h.current.Load()
	if box == nil {
		return NullTarget{}
	}
	return box.target
}

// Configured reports whether a real target is installed.
func (h *Handle) Configured() bool {
	_, null := h.Load().(NullTarget)
	return !null
}
