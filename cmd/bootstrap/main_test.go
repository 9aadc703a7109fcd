package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/lambdabridge/internal/runtime/config"
	"github.com/drblury/lambdabridge/internal/runtime/dispatch"
	"github.com/drblury/lambdabridge/internal/runtime/jsoncodec"
)

func TestLambdaEnvValuesSkipsEmpty(t *testing.T) {
	e := lambdaEnv{FunctionName: "fn", FunctionVersion: "3", RuntimeAPI: "127.0.0.1:9001", TaskRoot: "/var/task"}
	values := e.values()

	assert.Equal(t, "127.0.0.1:9001", values[config.RuntimeAPIKey])
	assert.Equal(t, "fn", values["AWS_LAMBDA_FUNCTION_NAME"])
	assert.Equal(t, "/var/task", values["LAMBDA_TASK_ROOT"])
	assert.NotContains(t, values, "LAMBDA_RUNTIME_DIR")
	assert.NotContains(t, values, "AWS_LAMBDA_LOG_GROUP_NAME")
}

func TestTargetByName(t *testing.T) {
	target, err := targetByName("echo")
	require.NoError(t, err)
	assert.IsType(t, echoTarget{}, target)

	target, err = targetByName("none")
	require.NoError(t, err)
	assert.Nil(t, target)

	_, err = targetByName("grpc")
	assert.ErrorContains(t, err, `unknown bootstrap target "grpc"`)
}

func TestEchoTargetEvent(t *testing.T) {
	payload, err := jsoncodec.Marshal(dispatch.Event{Body: []byte(`{"n":1}`)})
	require.NoError(t, err)

	out, err := echoTarget{}.Dispatch(context.Background(), "fn", dispatch.OpHandleEvent, payload)
	require.NoError(t, err)

	var resp dispatch.Response
	require.NoError(t, jsoncodec.Unmarshal(out, &resp))
	assert.JSONEq(t, `{"n":1}`, string(resp.Body))
}

func TestEchoTargetRequest(t *testing.T) {
	payload, err := jsoncodec.Marshal(dispatch.HTTPRequest{
		Method: http.MethodPost,
		Path:   "/hello",
		Header: map[string]string{"content-type": "text/plain"},
		Body:   []byte("hi"),
	})
	require.NoError(t, err)

	out, err := echoTarget{}.Dispatch(context.Background(), "fn", dispatch.OpHandleRequest, payload)
	require.NoError(t, err)

	var resp dispatch.HTTPResponse
	require.NoError(t, jsoncodec.Unmarshal(out, &resp))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain", resp.Header["Content-Type"])
	assert.Equal(t, "hi", string(resp.Body))
}

func TestEchoTargetRejectsGarbage(t *testing.T) {
	_, err := echoTarget{}.Dispatch(context.Background(), "fn", dispatch.OpHandleEvent, []byte("nope"))
	assert.Error(t, err)
}

func TestRunRequiresRuntimeAPI(t *testing.T) {
	t.Setenv("AWS_LAMBDA_RUNTIME_API", "")
	err := run(context.Background())
	assert.ErrorContains(t, err, "AWS_LAMBDA_RUNTIME_API is not set")
}

func TestRunServesOwnFunction(t *testing.T) {
	api := newFakeRuntimeAPI(`{"hello":"world"}`)
	srv := httptest.NewServer(api)
	defer srv.Close()

	t.Setenv("AWS_LAMBDA_RUNTIME_API", strings.TrimPrefix(srv.URL, "http://"))
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "echo-fn")
	t.Setenv("LAMBDABRIDGE_FETCH_ERROR_BACKOFF", "5ms")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	select {
	case body := <-api.responses:
		assert.JSONEq(t, `{"hello":"world"}`, body)
	case <-time.After(5 * time.Second):
		t.Fatal("no invocation response posted")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("bootstrap did not stop")
	}
}

// fakeRuntimeAPI hands out one invocation and then answers 503 to every poll.
type fakeRuntimeAPI struct {
	body      string
	served    atomic.Bool
	once      sync.Once
	responses chan string
}

func newFakeRuntimeAPI(body string) *fakeRuntimeAPI {
	return &fakeRuntimeAPI{body: body, responses: make(chan string, 1)}
}

func (f *fakeRuntimeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasSuffix(r.URL.Path, "/invocation/next"):
		if f.served.Swap(true) {
			time.Sleep(5 * time.Millisecond)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Lambda-Runtime-Aws-Request-Id", "req-1")
		_, _ = io.WriteString(w, f.body)
	case strings.HasSuffix(r.URL.Path, "/req-1/response"):
		body, _ := io.ReadAll(r.Body)
		f.once.Do(func() { f.responses <- string(body) })
		w.WriteHeader(http.StatusAccepted)
	default:
		w.WriteHeader(http.StatusAccepted)
	}
}
