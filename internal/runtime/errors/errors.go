package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrTenantRequired       = sterrors.New("lambdabridge: tenant id is required")
	ErrRequestIDRequired    = sterrors.New("lambdabridge: request id is required")
	ErrEndpointRequired     = sterrors.New("lambdabridge: runtime api endpoint is required")
	ErrClientRequired       = sterrors.New("lambdabridge: runtime api client is required")
	ErrNoTarget             = sterrors.New("lambdabridge: no dispatch target configured")
	ErrPollerRunning        = sterrors.New("lambdabridge: poller already running for tenant")
	ErrUnknownTenant        = sterrors.New("lambdabridge: unknown tenant")
	ErrUnsupportedOperation = sterrors.New("lambdabridge: unsupported operation")
	ErrPublisherRequired    = sterrors.New("lambdabridge: publisher is required")
	ErrTopicRequired        = sterrors.New("lambdabridge: topic is required")
	ErrConfigRequired       = sterrors.New("lambdabridge: configuration is required")
	ErrLoggerRequired       = sterrors.New("lambdabridge: logger is required")
)

// ConfigError reports a configuration value that is missing or invalid when a
// tenant is started. No poller is spawned when it is returned.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Reason == "" {
		return "missing configuration value: " + e.Key
	}
	return fmt.Sprintf("invalid configuration value %s: %s", e.Key, e.Reason)
}

// TransportError wraps network failures talking to the Runtime API.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ClassificationError means a payload is not a usable ALB request. It is never
// fatal: the event is dispatched as an opaque event instead.
type ClassificationError struct {
	Reason string
	Err    error
}

func (e *ClassificationError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// SerializationStage tells on which side of the target call an envelope failed.
type SerializationStage string

const (
	StageEncode SerializationStage = "encode"
	StageDecode SerializationStage = "decode"
)

// SerializationError wraps envelope encode/decode failures. Delivered is true
// when the target already handled the invocation before the failure.
type SerializationError struct {
	Stage     SerializationStage
	What      string
	Delivered bool
	Err       error
}

func (e *SerializationError) Error() string {
	verb := "serialize"
	if e.Stage == StageDecode {
		verb = "deserialize"
	}
	return fmt.Sprintf("failed to %s %s: %v", verb, e.What, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// TargetError is a failure reported by the dispatch target itself.
type TargetError struct {
	Operation string
	Err       error
}

func (e *TargetError) Error() string {
	what := "Lambda event"
	if e.Operation == "HandleRequest" {
		what = "HTTP request"
	}
	return fmt.Sprintf("guest failed to handle %s: %v", what, e.Err)
}

func (e *TargetError) Unwrap() error { return e.Err }

// DuplicateDispatchError is raised when the endpoint hands out a request id
// that this poller already delivered to the target.
type DuplicateDispatchError struct {
	RequestID string
}

func (e *DuplicateDispatchError) Error() string {
	return "already dispatched: " + e.RequestID
}

// Category groups errors for logging and metrics labels.
type Category string

const (
	CategoryNone           Category = "none"
	CategoryConfig         Category = "config"
	CategoryTransport      Category = "transport"
	CategoryClassification Category = "classification"
	CategorySerialization  Category = "serialization"
	CategoryTarget         Category = "target"
	CategoryDuplicate      Category = "duplicate"
	CategoryOther          Category = "other"
)

// Kind classifies err into one of the categories above.
func Kind(err error) Category {
	if err == nil {
		return CategoryNone
	}

	var (
		configErr *ConfigError
		transport *TransportError
		classify  *ClassificationError
		serialize *SerializationError
		target    *TargetError
		duplicate *DuplicateDispatchError
	)
	switch {
	case sterrors.As(err, &configErr), sterrors.Is(err, ErrEndpointRequired):
		return CategoryConfig
	case sterrors.As(err, &transport):
		return CategoryTransport
	case sterrors.As(err, &classify):
		return CategoryClassification
	case sterrors.As(err, &serialize):
		return CategorySerialization
	case sterrors.As(err, &target), sterrors.Is(err, ErrNoTarget):
		return CategoryTarget
	case sterrors.As(err, &duplicate):
		return CategoryDuplicate
	default:
		return CategoryOther
	}
}

// IsDeliveryFailure reports whether err happened after the target had
// already accepted the invocation.
func IsDeliveryFailure(err error) bool {
	var serialize *SerializationError
	return sterrors.As(err, &serialize) && serialize.Delivered
}
