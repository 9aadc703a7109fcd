// Package dispatch turns Runtime API invocations into envelopes, hands them to
// the configured Target and decodes the reply.
package dispatch

import (
	"context"
	"time"

	lberrors "github.com/drblury/lambdabridge/internal/runtime/errors"
	"github.com/drblury/lambdabridge/internal/runtime/jsoncodec"
)

// Request is one invocation to dispatch.
type Request struct {
	TenantID           string
	RequestID          string
	TraceID            string
	Body               []byte
	Deadline           time.Time
	InvokedFunctionARN string

	// OnDelivered runs after the target accepted the envelope and before its
	// reply is decoded.
	OnDelivered func(requestID string)
}

func (r Request) invocation() Invocation {
	return Invocation{
		TenantID:           r.TenantID,
		RequestID:          r.RequestID,
		TraceID:            r.TraceID,
		Deadline:           r.Deadline,
		InvokedFunctionARN: r.InvokedFunctionARN,
	}
}

// Dispatcher calls whatever target its Handle currently holds.
type Dispatcher struct {
	handle *Handle
}

// New creates a Dispatcher reading targets from handle.
func New(handle *Handle) *Dispatcher {
	if handle == nil {
		handle = NewHandle(nil)
	}
	return &Dispatcher{handle: handle}
}

// Handle exposes the target handle so it can be swapped.
func (d *Dispatcher) Handle() *Handle { return d.handle }

// DispatchEvent sends the raw body as an Event envelope.
func (d *Dispatcher) DispatchEvent(ctx context.Context, req Request) (*Response, error) {
	payload, err := jsoncodec.Marshal(Event{Body: req.Body, TraceID: req.TraceID})
	if err != nil {
		return nil, &lberrors.SerializationError{Stage: lberrors.StageEncode, What: "Lambda raw event", Err: err}
	}

	reply, err := d.call(ctx, req, OpHandleEvent, payload)
	if err != nil {
		return nil, err
	}

	var resp Response
	if err := jsoncodec.Unmarshal(reply, &resp); err != nil {
		return nil, &lberrors.SerializationError{Stage: lberrors.StageDecode, What: "Lambda raw event response", Delivered: true, Err: err}
	}
	return &resp, nil
}

// DispatchHTTP sends httpReq as an HTTPRequest envelope.
func (d *Dispatcher) DispatchHTTP(ctx context.Context, req Request, httpReq *HTTPRequest) (*HTTPResponse, error) {
	envelope := *httpReq
	envelope.TraceID = req.TraceID
	payload, err := jsoncodec.Marshal(envelope)
	if err != nil {
		return nil, &lberrors.SerializationError{Stage: lberrors.StageEncode, What: "HTTP request", Err: err}
	}

	reply, err := d.call(ctx, req, OpHandleRequest, payload)
	if err != nil {
		return nil, err
	}

	var resp HTTPResponse
	if err := jsoncodec.Unmarshal(reply, &resp); err != nil {
		return nil, &lberrors.SerializationError{Stage: lberrors.StageDecode, What: "HTTP response", Delivered: true, Err: err}
	}
	return &resp, nil
}

func (d *Dispatcher) call(ctx context.Context, req Request, op string, payload []byte) ([]byte, error) {
	ctx = WithInvocation(ctx, req.invocation())
	reply, err := d.handle.Load().Dispatch(ctx, req.TenantID, op, payload)
	if err != nil {
		return nil, &lberrors.TargetError{Operation: op, Err: err}
	}
	if req.OnDelivered != nil {
		req.OnDelivered(req.RequestID)
	}
	return reply, nil
}
