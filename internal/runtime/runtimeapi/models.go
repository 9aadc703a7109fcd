package runtimeapi

import (
	"time"

	"github.com/drblury/lambdabridge/internal/runtime/jsoncodec"
)

// InvocationEvent is one event fetched from /invocation/next.
type InvocationEvent struct {
	Body      []byte
	RequestID string
	// TraceID is the X-Ray trace header; empty when the endpoint sent none.
	TraceID            string
	Deadline           time.Time
	InvokedFunctionARN string
}

// HasRequestID reports whether the event can be acknowledged. Events without a
// request id are dropped by the poller.
func (e *InvocationEvent) HasRequestID() bool {
	return e != nil && e.RequestID != ""
}

// InvocationResponse is the successful result posted for a request id.
type InvocationResponse struct {
	Body      []byte
	RequestID string
}

// InvocationError is the failure posted for a request id.
type InvocationError struct {
	Message   string
	RequestID string
}

// NewInvocationError builds an InvocationError carrying err's message.
func NewInvocationError(err error, requestID string) InvocationError {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return InvocationError{Message: msg, RequestID: requestID}
}

type errorPayload struct {
	ErrorMessage string `json:"errorMessage"`
}

// Payload renders the wire body {"errorMessage": "..."}.
func (e InvocationError) Payload() ([]byte, error) {
	return jsoncodec.Marshal(errorPayload{ErrorMessage: e.Message})
}
