// Package classify decides whether a Runtime API payload is an ALB target
// group request and converts between ALB events and HTTP envelopes.
//
// Classification is structural: any JSON object carrying a non-empty
// httpMethod and path is treated as an ALB request unless RequireELBContext
// is set, in which case requestContext.elb must be present too.
package classify

import (
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/drblury/lambdabridge/internal/runtime/dispatch"
	lberrors "github.com/drblury/lambdabridge/internal/runtime/errors"
	"github.com/drblury/lambdabridge/internal/runtime/jsoncodec"
)

// Options tunes the classifier.
type Options struct {
	RequireELBContext bool
}

// Classifier converts payloads into HTTP envelopes.
type Classifier struct {
	opts Options
}

// New returns a Classifier using opts.
func New(opts Options) *Classifier {
	return &Classifier{opts: opts}
}

var defaultClassifier = New(Options{})

// Classify runs the structural classifier with default options.
func Classify(body []byte) (*dispatch.HTTPRequest, error) {
	return defaultClassifier.Classify(body)
}

// Classify returns the HTTP envelope for an ALB-shaped body. Any other payload
// yields a *errors.ClassificationError and should be dispatched as a raw event.
func (c *Classifier) Classify(body []byte) (*dispatch.HTTPRequest, error) {
	var alb events.ALBTargetGroupRequest
	if err := jsoncodec.Unmarshal(body, &alb); err != nil {
		return nil, &lberrors.ClassificationError{Reason: "not an ALB request", Err: err}
	}
	if c.opts.RequireELBContext && !jsoncodec.HasPath(body, "requestContext", "elb") {
		return nil, &lberrors.ClassificationError{Reason: "missing requestContext.elb in ALB request"}
	}
	if alb.HTTPMethod == "" {
		return nil, &lberrors.ClassificationError{Reason: "missing method in ALB request"}
	}
	if alb.Path == "" {
		return nil, &lberrors.ClassificationError{Reason: "missing path in ALB request"}
	}

	reqBody, err := decodeBody(alb)
	if err != nil {
		return nil, &lberrors.ClassificationError{Reason: "invalid base64 body in ALB request", Err: err}
	}

	return &dispatch.HTTPRequest{
		Method:      alb.HTTPMethod,
		Path:        alb.Path,
		QueryString: queryString(alb),
		Header:      headers(alb),
		Body:        reqBody,
	}, nil
}

func decodeBody(alb events.ALBTargetGroupRequest) ([]byte, error) {
	if alb.Body == "" {
		return []byte{}, nil
	}
	if alb.IsBase64Encoded {
		return base64.StdEncoding.DecodeString(alb.Body)
	}
	return []byte(alb.Body), nil
}

// queryString form-encodes the query parameters with keys sorted. When the
// target group has multi-value parameters enabled ALB only sends those.
func queryString(alb events.ALBTargetGroupRequest) string {
	values := url.Values{}
	for k, v := range alb.QueryStringParameters {
		values.Set(k, v)
	}
	if len(values) == 0 {
		for k, vs := range alb.MultiValueQueryStringParameters {
			values[k] = append([]string(nil), vs...)
		}
	}
	return values.Encode()
}

func headers(alb events.ALBTargetGroupRequest) map[string]string {
	out := make(map[string]string, len(alb.Headers)+len(alb.MultiValueHeaders))
	for k, v := range alb.Headers {
		out[k] = v
	}
	if len(alb.Headers) == 0 {
		for k, vs := range alb.MultiValueHeaders {
			out[k] = strings.Join(vs, ",")
		}
	}
	return out
}

// EncodeResponse renders the target's reply as an ALB target group response.
// The body is always base64 encoded.
func EncodeResponse(resp *dispatch.HTTPResponse) ([]byte, error) {
	header := resp.Header
	if header == nil {
		header = map[string]string{}
	}
	alb := events.ALBTargetGroupResponse{
		StatusCode:        resp.StatusCode,
		StatusDescription: resp.Status,
		Headers:           header,
		MultiValueHeaders: map[string][]string{},
		Body:              base64.StdEncoding.EncodeToString(resp.Body),
		IsBase64Encoded:   true,
	}
	out, err := jsoncodec.Marshal(alb)
	if err != nil {
		return nil, &lberrors.SerializationError{Stage: lberrors.StageEncode, What: "ALB response", Delivered: true, Err: err}
	}
	return out, nil
}
