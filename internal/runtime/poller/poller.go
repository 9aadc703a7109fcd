// Package poller runs the fetch, dispatch and acknowledge loop for a single
// tenant against the Lambda Runtime API.
package poller

import (
	"context"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/lambdabridge/internal/runtime/classify"
	"github.com/drblury/lambdabridge/internal/runtime/config"
	"github.com/drblury/lambdabridge/internal/runtime/dispatch"
	lberrors "github.com/drblury/lambdabridge/internal/runtime/errors"
	"github.com/drblury/lambdabridge/internal/runtime/logging"
	"github.com/drblury/lambdabridge/internal/runtime/metrics"
	"github.com/drblury/lambdabridge/internal/runtime/runtimeapi"
)

// TraceEnvKey is the variable the X-Ray SDK reads the trace header from.
const TraceEnvKey = "_X_AMZN_TRACE_ID"

const tracerName = "github.com/drblury/lambdabridge/poller"

// Options configures a Poller.
type Options struct {
	TenantID   string
	API        runtimeapi.API
	Dispatcher *dispatch.Dispatcher
	Classifier *classify.Classifier
	Logger     logging.ServiceLogger
	Metrics    *metrics.PollerMetrics
	Hooks      Hooks

	// FetchErrorBackoff is slept after a failed /invocation/next call. Zero
	// selects config.DefaultFetchErrorBackoff, a negative value disables it.
	FetchErrorBackoff time.Duration

	// ExportTraceEnv also writes the trace id to TraceEnvKey. The variable is
	// process-global, so this only makes sense with one tenant per process.
	ExportTraceEnv bool
}

// Poller processes invocations for one tenant, strictly one at a time.
type Poller struct {
	tenantID       string
	api            runtimeapi.API
	dispatcher     *dispatch.Dispatcher
	classifier     *classify.Classifier
	logger         logging.ServiceLogger
	metrics        *metrics.PollerMetrics
	hooks          Hooks
	tracer         trace.Tracer
	backoff        time.Duration
	exportTraceEnv bool
	tracker        *Tracker
}

// New validates opts and builds a Poller.
func New(opts Options) (*Poller, error) {
	if opts.TenantID == "" {
		return nil, lberrors.ErrTenantRequired
	}
	if opts.API == nil {
		return nil, lberrors.ErrClientRequired
	}

	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = dispatch.New(nil)
	}
	classifier := opts.Classifier
	if classifier == nil {
		classifier = classify.New(classify.Options{})
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	backoff := opts.FetchErrorBackoff
	switch {
	case backoff == 0:
		backoff = config.DefaultFetchErrorBackoff
	case backoff < 0:
		backoff = 0
	}

	return &Poller{
		tenantID:       opts.TenantID,
		api:            opts.API,
		dispatcher:     dispatcher,
		classifier:     classifier,
		logger:         logger.With(logging.LogFields{"tenant": opts.TenantID}),
		metrics:        opts.Metrics,
		hooks:          MetricsHooks(opts.Metrics).Merge(opts.Hooks),
		tracer:         otel.Tracer(tracerName),
		backoff:        backoff,
		exportTraceEnv: opts.ExportTraceEnv,
		tracker:        NewTracker(),
	}, nil
}

// TenantID returns the tenant the poller serves.
func (p *Poller) TenantID() string { return p.tenantID }

// Tracker exposes the delivered request ids. Only read it once Run returned.
func (p *Poller) Tracker() *Tracker { return p.tracker }

// Run polls until ctx is done or alive reports false. Both are checked once per
// iteration, never while a Runtime API call is in flight, so a stop takes
// effect after at most one full cycle.
func (p *Poller) Run(ctx context.Context, alive func() bool) {
	if p.metrics != nil {
		p.metrics.PollerStarted(p.tenantID)
		defer p.metrics.PollerStopped(p.tenantID)
	}

	p.logger.Info("Poller started", nil)
	for ctx.Err() == nil && (alive == nil || alive()) {
		p.Poll(ctx)
	}
	p.logger.Info("Poller stopped", logging.LogFields{"dispatched": p.tracker.Len()})
}

// Poll runs a single cycle and reports whether an invocation was fetched.
func (p *Poller) Poll(ctx context.Context) bool {
	netCtx := context.WithoutCancel(ctx)

	p.logger.Trace("Fetching next invocation", nil)
	event, err := p.api.Next(netCtx)
	if err != nil {
		p.logger.Error("Failed to fetch next invocation", err, nil)
		if p.metrics != nil {
			p.metrics.RecordFetchError(p.tenantID)
		}
		p.wait(ctx)
		return false
	}
	if event == nil {
		return false
	}
	if !event.HasRequestID() {
		p.logger.Warn("Discarding invocation without request id", logging.LogFields{"bytes": len(event.Body)})
		return true
	}

	p.handle(netCtx, event)
	return true
}

func (p *Poller) handle(ctx context.Context, event *runtimeapi.InvocationEvent) {
	requestID := event.RequestID
	logger := p.logger.With(logging.LogFields{"request_id": requestID})

	ctx, span := p.tracer.Start(ctx, "lambdabridge.invocation",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("faas.invocation_id", requestID),
			attribute.String("lambdabridge.tenant", p.tenantID),
			attribute.String("lambdabridge.trace_header", event.TraceID),
		),
	)
	defer span.End()

	if p.exportTraceEnv && event.TraceID != "" {
		if err := os.Setenv(TraceEnvKey, event.TraceID); err != nil {
			logger.Debug("Could not export trace id", logging.LogFields{"error": err.Error()})
		}
	}

	if p.tracker.Seen(requestID) {
		dup := &lberrors.DuplicateDispatchError{RequestID: requestID}
		logger.Error("Invocation already dispatched", dup, nil)
		span.AddEvent("duplicate request id")
		if p.metrics != nil {
			p.metrics.RecordDuplicate(p.tenantID)
		}
		p.postError(ctx, logger, requestID, dup)
	}

	req := dispatch.Request{
		TenantID:           p.tenantID,
		RequestID:          requestID,
		TraceID:            event.TraceID,
		Body:               event.Body,
		Deadline:           event.Deadline,
		InvokedFunctionARN: event.InvokedFunctionARN,
		OnDelivered:        p.tracker.MarkDispatched,
	}

	httpReq, err := p.classifier.Classify(event.Body)
	if err != nil {
		logger.Warn("Payload is not an HTTP request, dispatching as Lambda raw event", logging.LogFields{"reason": err.Error()})
	} else if p.dispatchHTTP(ctx, span, logger, req, httpReq) {
		return
	}

	p.dispatchEvent(ctx, span, logger, req)
}

// dispatchHTTP reports whether the invocation was acknowledged. False means
// the target never accepted the request and the raw event path should run.
func (p *Poller) dispatchHTTP(ctx context.Context, span trace.Span, logger logging.ServiceLogger, req dispatch.Request, httpReq *dispatch.HTTPRequest) bool {
	info := p.info(ctx, req, metrics.KindHTTP)
	p.hooks.start(info)

	resp, err := p.dispatcher.DispatchHTTP(ctx, req, httpReq)
	var body []byte
	if err == nil {
		body, err = classify.EncodeResponse(resp)
	}
	info.Duration = time.Since(info.StartedAt)

	if err != nil {
		if !lberrors.IsDeliveryFailure(err) && !p.tracker.Seen(req.RequestID) {
			logger.Warn("HTTP dispatch failed before delivery, retrying as Lambda raw event", logging.LogFields{"reason": err.Error()})
			if p.metrics != nil {
				p.metrics.RecordInvocation(p.tenantID, metrics.KindHTTP, metrics.OutcomeFallback, info.Duration)
			}
			return false
		}
		p.fail(ctx, span, info, err)
		return true
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	p.respond(ctx, logger, info, body)
	return true
}

func (p *Poller) dispatchEvent(ctx context.Context, span trace.Span, logger logging.ServiceLogger, req dispatch.Request) {
	info := p.info(ctx, req, metrics.KindEvent)
	p.hooks.start(info)

	resp, err := p.dispatcher.DispatchEvent(ctx, req)
	info.Duration = time.Since(info.StartedAt)
	if err != nil {
		p.fail(ctx, span, info, err)
		return
	}
	p.respond(ctx, logger, info, resp.Body)
}

func (p *Poller) info(ctx context.Context, req dispatch.Request, kind string) InvocationInfo {
	return InvocationInfo{
		TenantID:  p.tenantID,
		RequestID: req.RequestID,
		TraceID:   req.TraceID,
		Kind:      kind,
		Context:   ctx,
		StartedAt: time.Now(),
	}
}

func (p *Poller) respond(ctx context.Context, logger logging.ServiceLogger, info InvocationInfo, body []byte) {
	resp := runtimeapi.InvocationResponse{Body: body, RequestID: info.RequestID}
	if err := p.api.PostResponse(ctx, resp); err != nil {
		logger.Error("Unable to send invocation response", err, nil)
	}
	p.hooks.done(info)
}

func (p *Poller) fail(ctx context.Context, span trace.Span, info InvocationInfo, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(lberrors.Kind(err)))

	logger := p.logger.With(logging.LogFields{"request_id": info.RequestID})
	logger.Error("Invocation failed", err, logging.LogFields{
		"kind":     info.Kind,
		"category": string(lberrors.Kind(err)),
	})
	p.postError(ctx, logger, info.RequestID, err)
	p.hooks.failed(info, err)
}

func (p *Poller) postError(ctx context.Context, logger logging.ServiceLogger, requestID string, cause error) {
	if err := p.api.PostError(ctx, runtimeapi.NewInvocationError(cause, requestID)); err != nil {
		logger.Error("Unable to send invocation error", err, nil)
	}
}

func (p *Poller) wait(ctx context.Context) {
	if p.backoff <= 0 {
		return
	}
	timer := time.NewTimer(p.backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
