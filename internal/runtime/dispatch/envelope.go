package dispatch

// Event is the envelope for OpHandleEvent.
type Event struct {
	Body    []byte `json:"body"`
	TraceID string `json:"trace_id,omitempty"`
}

// Response is the reply to OpHandleEvent.
type Response struct {
	Body []byte `json:"body"`
}

// HTTPRequest is the envelope for OpHandleRequest, built from an ALB event.
type HTTPRequest struct {
	Method      string            `json:"method"`
	Path        string            `json:"path"`
	QueryString string            `json:"query_string"`
	Header      map[string]string `json:"header"`
	Body        []byte            `json:"body"`
	TraceID     string            `json:"trace_id,omitempty"`
}

// HTTPResponse is the reply to OpHandleRequest.
type HTTPResponse struct {
	StatusCode int               `json:"status_code"`
	Status     string            `json:"status"`
	Header     map[string]string `json:"header"`
	Body       []byte            `json:"body"`
}
