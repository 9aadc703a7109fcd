package poller

import (
	"context"
	"time"

	"github.com/drblury/lambdabridge/internal/runtime/logging"
	"github.com/drblury/lambdabridge/internal/runtime/metrics"
)

// InvocationInfo describes one dispatch attempt to hooks.
type InvocationInfo struct {
	// TenantID is the tenant whose poller fetched the invocation.
	TenantID string
	// RequestID is the Runtime API request id.
	RequestID string
	// TraceID is the X-Ray trace header, if any.
	TraceID string
	// Kind is metrics.KindEvent or metrics.KindHTTP.
	Kind string
	// Context is the context passed to the dispatch target.
	Context context.Context
	// StartedAt is when the dispatch began.
	StartedAt time.Time
	// Duration is only set in OnInvocationDone and OnInvocationError.
	Duration time.Duration
}

// Hooks are optional callbacks around each dispatch attempt. Nil hooks are
// skipped.
type Hooks struct {
	// OnInvocationStart runs before the target is called.
	OnInvocationStart func(info InvocationInfo)

	// OnInvocationDone runs after a response was posted.
	OnInvocationDone func(info InvocationInfo)

	// OnInvocationError runs after an error was posted for the invocation.
	OnInvocationError func(info InvocationInfo, err error)
}

// Merge combines two Hooks. The hooks from other run after the hooks from h.
func (h Hooks) Merge(other Hooks) Hooks {
	return Hooks{
		OnInvocationStart: chainInfoHooks(h.OnInvocationStart, other.OnInvocationStart),
		OnInvocationDone:  chainInfoHooks(h.OnInvocationDone, other.OnInvocationDone),
		OnInvocationError: chainErrorHooks(h.OnInvocationError, other.OnInvocationError),
	}
}

func chainInfoHooks(a, b func(InvocationInfo)) func(InvocationInfo) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(info InvocationInfo) {
		a(info)
		b(info)
	}
}

func chainErrorHooks(a, b func(InvocationInfo, error)) func(InvocationInfo, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(info InvocationInfo, err error) {
		a(info, err)
		b(info, err)
	}
}

func (h Hooks) start(info InvocationInfo) {
	if h.OnInvocationStart != nil {
		h.OnInvocationStart(info)
	}
}

func (h Hooks) done(info InvocationInfo) {
	if h.OnInvocationDone != nil {
		h.OnInvocationDone(info)
	}
}

func (h Hooks) failed(info InvocationInfo, err error) {
	if h.OnInvocationError != nil {
		h.OnInvocationError(info, err)
	}
}

// LoggingHooks returns hooks that log every dispatch attempt.
func LoggingHooks(logger logging.ServiceLogger) Hooks {
	return Hooks{
		OnInvocationStart: func(info InvocationInfo) {
			logger.Debug("Invocation started", logging.LogFields{
				"tenant":     info.TenantID,
				"request_id": info.RequestID,
				"kind":       info.Kind,
			})
		},
		OnInvocationDone: func(info InvocationInfo) {
			logger.Info("Invocation completed", logging.LogFields{
				"tenant":      info.TenantID,
				"request_id":  info.RequestID,
				"kind":        info.Kind,
				"duration_ms": info.Duration.Milliseconds(),
			})
		},
		OnInvocationError: func(info InvocationInfo, err error) {
			logger.Error("Invocation failed", err, logging.LogFields{
				"tenant":      info.TenantID,
				"request_id":  info.RequestID,
				"kind":        info.Kind,
				"duration_ms": info.Duration.Milliseconds(),
			})
		},
	}
}

// MetricsHooks returns hooks that record outcomes on m.
func MetricsHooks(m *metrics.PollerMetrics) Hooks {
	if m == nil {
		return Hooks{}
	}
	return Hooks{
		OnInvocationDone: func(info InvocationInfo) {
			m.RecordInvocation(info.TenantID, info.Kind, metrics.OutcomeSuccess, info.Duration)
		},
		OnInvocationError: func(info InvocationInfo, err error) {
			m.RecordInvocation(info.TenantID, info.Kind, metrics.OutcomeError, info.Duration)
		},
	}
}
