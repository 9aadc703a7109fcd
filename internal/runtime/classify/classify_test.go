package classify

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/lambdabridge/internal/runtime/dispatch"
	lberrors "github.com/drblury/lambdabridge/internal/runtime/errors"
	"github.com/drblury/lambdabridge/internal/runtime/jsoncodec"
)

func TestClassifyALBRequest(t *testing.T) {
	body := []byte(`{
		"requestContext": {"elb": {"targetGroupArn": "arn:aws:elasticloadbalancing:eu-west-1:123456789012:targetgroup/tg/abc"}},
		"httpMethod": "GET",
		"path": "/hello",
		"queryStringParameters": {"b": "2", "a": "x y"},
		"headers": {"host": "example.com", "x-amzn-trace-id": "Root=1"},
		"body": "plain text",
		"isBase64Encoded": false
	}`)

	req, err := Classify(body)
	require.NoError(t, err)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/hello", req.Path)
	assert.Equal(t, "a=x+y&b=2", req.QueryString)
	assert.Equal(t, "example.com", req.Header["host"])
	assert.Equal(t, []byte("plain text"), req.Body)
}

func TestClassifyDecodesBase64Body(t *testing.T) {
	body := []byte(`{"httpMethod":"POST","path":"/upload","body":"` + base64.StdEncoding.EncodeToString([]byte{0, 1, 2}) + `","isBase64Encoded":true}`)

	req, err := Classify(body)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2}, req.Body)
	assert.Empty(t, req.QueryString)
	assert.NotNil(t, req.Header)
}

func TestClassifyEmptyBody(t *testing.T) {
	req, err := Classify([]byte(`{"httpMethod":"GET","path":"/"}`))
	require.NoError(t, err)
	assert.Equal(t, []byte{}, req.Body)
}

func TestClassifyMultiValueFallback(t *testing.T) {
	body := []byte(`{
		"httpMethod": "GET",
		"path": "/",
		"multiValueQueryStringParameters": {"tag": ["a", "b"]},
		"multiValueHeaders": {"accept": ["text/html", "application/json"]}
	}`)

	req, err := Classify(body)
	require.NoError(t, err)
	assert.Equal(t, "tag=a&tag=b", req.QueryString)
	assert.Equal(t, "text/html,application/json", req.Header["accept"])
}

func TestClassifyFallbacks(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		reason string
	}{
		{"missing method", `{"path":"/x"}`, "missing method in ALB request"},
		{"missing path", `{"httpMethod":"GET"}`, "missing path in ALB request"},
		{"opaque object", `{"orderId":42}`, "missing method in ALB request"},
		{"json null", `null`, "missing method in ALB request"},
		{"json array", `[1,2,3]`, "not an ALB request"},
		{"not json", `hello world`, "not an ALB request"},
		{"bad base64", `{"httpMethod":"GET","path":"/","body":"***","isBase64Encoded":true}`, "invalid base64 body in ALB request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Classify([]byte(tt.body))
			assert.Nil(t, req)

			var classErr *lberrors.ClassificationError
			require.True(t, errors.As(err, &classErr))
			assert.Equal(t, tt.reason, classErr.Reason)
			assert.Equal(t, lberrors.CategoryClassification, lberrors.Kind(err))
		})
	}
}

func TestClassifyRequireELBContext(t *testing.T) {
	strict := New(Options{RequireELBContext: true})
	shaped := []byte(`{"httpMethod":"GET","path":"/"}`)

	_, err := strict.Classify(shaped)
	var classErr *lberrors.ClassificationError
	require.True(t, errors.As(err, &classErr))
	assert.Contains(t, classErr.Reason, "requestContext.elb")

	_, err = Classify(shaped)
	assert.NoError(t, err, "structural classification accepts the same payload")

	withMarker := []byte(`{"httpMethod":"GET","path":"/","requestContext":{"elb":{"targetGroupArn":"arn"}}}`)
	req, err := strict.Classify(withMarker)
	require.NoError(t, err)
	assert.Equal(t, "/", req.Path)
}

func TestEncodeResponse(t *testing.T) {
	out, err := EncodeResponse(&dispatch.HTTPResponse{
		StatusCode: 200,
		Status:     "OK",
		Header:     map[string]string{"content-type": "text/plain"},
		Body:       []byte("hi"),
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"statusCode": 200,
		"statusDescription": "OK",
		"headers": {"content-type": "text/plain"},
		"multiValueHeaders": {},
		"body": "aGk=",
		"isBase64Encoded": true
	}`, string(out))
}

func TestEncodeResponseEmpty(t *testing.T) {
	out, err := EncodeResponse(&dispatch.HTTPResponse{StatusCode: 204})
	require.NoError(t, err)

	var alb events.ALBTargetGroupResponse
	require.NoError(t, jsoncodec.Unmarshal(out, &alb))
	assert.Equal(t, 204, alb.StatusCode)
	assert.True(t, alb.IsBase64Encoded)
	assert.Empty(t, alb.Body)
	assert.NotNil(t, alb.Headers)
}
