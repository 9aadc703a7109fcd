// Package runtimeapi is the HTTP client for the AWS Lambda Runtime API.
//
// A Client is bound to one endpoint (host:port) and is used by exactly one
// poller, so it performs no retries and keeps no per-invocation state.
package runtimeapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	lberrors "github.com/drblury/lambdabridge/internal/runtime/errors"
	"github.com/drblury/lambdabridge/internal/runtime/logging"
)

// Version is reported in the User-Agent of every Runtime API request.
const Version = "0.1.0"

const runtimeAPIPrefix = "/2018-06-01/runtime"

const (
	headerAWSRequestID       = "Lambda-Runtime-Aws-Request-Id"
	headerTraceID            = "Lambda-Runtime-Trace-Id"
	headerDeadlineMS         = "Lambda-Runtime-Deadline-Ms"
	headerInvokedFunctionARN = "Lambda-Runtime-Invoked-Function-Arn"
)

// DefaultUserAgent is sent when no override is configured.
var DefaultUserAgent = "lambdabridge/" + Version

// API is the subset of the Runtime API used by a poller.
type API interface {
	Next(ctx context.Context) (*InvocationEvent, error)
	PostResponse(ctx context.Context, resp InvocationResponse) error
	PostError(ctx context.Context, invErr InvocationError) error
}

// lambdaTransport is shared by every client. The Runtime API is a local
// plain HTTP/1.1 endpoint: no proxy, no compression.
var lambdaTransport = &http.Transport{
	Proxy:               nil,
	MaxIdleConns:        16,
	MaxIdleConnsPerHost: 16,
	IdleConnTimeout:     120 * time.Second,
	DisableCompression:  true,
	ForceAttemptHTTP2:   false,
	DialContext: (&net.Dialer{
		Timeout:   time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// Client talks to a single Runtime API endpoint.
type Client struct {
	endpoint     string
	nextURL      string
	initErrorURL string
	invoPrefix   string
	userAgent    string

	// next has no timeout: /invocation/next is a long poll.
	next   *http.Client
	post   *http.Client
	logger logging.ServiceLogger
}

// Option customises a Client.
type Option func(*Client)

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithPostTimeout bounds response, error and init error posts.
func WithPostTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.post = &http.Client{Transport: c.post.Transport, Timeout: d}
		}
	}
}

// WithHTTPClient replaces both underlying HTTP clients, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.next = hc
			c.post = hc
		}
	}
}

// WithLogger sets the logger used for non-fatal conditions.
func WithLogger(logger logging.ServiceLogger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client for endpoint, a bare host:port.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, lberrors.ErrEndpointRequired
	}

	base := "http://" + endpoint + runtimeAPIPrefix
	c := &Client{
		endpoint:     endpoint,
		nextURL:      base + "/invocation/next",
		initErrorURL: base + "/init/error",
		invoPrefix:   base + "/invocation/",
		userAgent:    DefaultUserAgent,
		next:         &http.Client{Transport: lambdaTransport},
		post:         &http.Client{Transport: lambdaTransport, Timeout: 10 * time.Second},
		logger:       logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logging.LogFields{"endpoint": endpoint})
	return c, nil
}

// Endpoint returns the host:port the client was created with.
func (c *Client) Endpoint() string { return c.endpoint }

// Next fetches the next invocation. A non-2xx status is not an error: it
// yields (nil, nil) and the caller simply polls again.
func (c *Client) Next(ctx context.Context) (*InvocationEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.nextURL, nil)
	if err != nil {
		return nil, &lberrors.TransportError{Op: http.MethodGet, URL: c.nextURL, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.next.Do(req)
	if err != nil {
		return nil, &lberrors.TransportError{Op: http.MethodGet, URL: c.nextURL, Err: err}
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("No invocation available", logging.LogFields{"status": resp.StatusCode})
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &lberrors.TransportError{Op: http.MethodGet, URL: c.nextURL, Err: fmt.Errorf("read body: %w", err)}
	}

	h := resp.Header
	return &InvocationEvent{
		Body:               body,
		RequestID:          h.Get(headerAWSRequestID),
		TraceID:            h.Get(headerTraceID),
		Deadline:           parseDeadline(h),
		InvokedFunctionARN: h.Get(headerInvokedFunctionARN),
	}, nil
}

// PostResponse posts the raw response body for a request id.
func (c *Client) PostResponse(ctx context.Context, resp InvocationResponse) error {
	if resp.RequestID == "" {
		return lberrors.ErrRequestIDRequired
	}
	return c.postCommon(ctx, c.invoPrefix+resp.RequestID+"/response", "", resp.Body)
}

// PostError posts {"errorMessage": ...} for a request id.
func (c *Client) PostError(ctx context.Context, invErr InvocationError) error {
	if invErr.RequestID == "" {
		return lberrors.ErrRequestIDRequired
	}
	body, err := invErr.Payload()
	if err != nil {
		return err
	}
	return c.postCommon(ctx, c.invoPrefix+invErr.RequestID+"/error", "application/json", body)
}

// PostInitError reports a failure that happened before the first poll.
func (c *Client) PostInitError(ctx context.Context, cause error) error {
	body, err := NewInvocationError(cause, "").Payload()
	if err != nil {
		return err
	}
	return c.postCommon(ctx, c.initErrorURL, "application/json", body)
}

// postCommon sends body to url. The response status is logged and otherwise
// ignored; only a transport failure is returned.
func (c *Client) postCommon(ctx context.Context, url, contentType string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &lberrors.TransportError{Op: http.MethodPost, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.ContentLength = int64(len(body))

	resp, err := c.post.Do(req)
	if err != nil {
		return &lberrors.TransportError{Op: http.MethodPost, URL: url, Err: err}
	}
	defer drainAndClose(resp.Body)

	fields := logging.LogFields{"url": url, "status": resp.StatusCode}
	if resp.StatusCode >= 300 {
		c.logger.Warn("Runtime API rejected post", fields)
		return nil
	}
	c.logger.Debug("Runtime API post accepted", fields)
	return nil
}

// drainAndClose fully reads the body so the connection can be reused.
func drainAndClose(b io.ReadCloser) {
	if b == nil {
		return
	}
	_, _ = io.Copy(io.Discard, b)
	_ = b.Close()
}

func parseDeadline(h http.Header) time.Time {
	ms, err := strconv.ParseInt(h.Get(headerDeadlineMS), 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
