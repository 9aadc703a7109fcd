package main

import (
	"context"
	"net/http"

	"github.com/drblury/lambdabridge/internal/runtime/dispatch"
	"github.com/drblury/lambdabridge/internal/runtime/jsoncodec"
)

// echoTarget answers every invocation with the body it received.
type echoTarget struct{}

func (echoTarget) Dispatch(_ context.Context, _, operation string, payload []byte) ([]byte, error) {
	switch operation {
	case dispatch.OpHandleRequest:
		var req dispatch.HTTPRequest
		if err := jsoncodec.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		return jsoncodec.Marshal(dispatch.HTTPResponse{
			StatusCode: http.StatusOK,
			Status:     http.StatusText(http.StatusOK),
			Header:     map[string]string{"Content-Type": contentType(req.Header)},
			Body:       req.Body,
		})
	default:
		var ev dispatch.Event
		if err := jsoncodec.Unmarshal(payload, &ev); err != nil {
			return nil, err
		}
		return jsoncodec.Marshal(dispatch.Response{Body: ev.Body})
	}
}

func contentType(header map[string]string) string {
	for k, v := range header {
		if http.CanonicalHeaderKey(k) == "Content-Type" && v != "" {
			return v
		}
	}
	return "application/octet-stream"
}
