package lambdabridge

import (
	runtimepkg "github.com/drblury/lambdabridge/internal/runtime"
	classifypkg "github.com/drblury/lambdabridge/internal/runtime/classify"
	configpkg "github.com/drblury/lambdabridge/internal/runtime/config"
	controlpkg "github.com/drblury/lambdabridge/internal/runtime/control"
	dispatchpkg "github.com/drblury/lambdabridge/internal/runtime/dispatch"
	errspkg "github.com/drblury/lambdabridge/internal/runtime/errors"
	idspkg "github.com/drblury/lambdabridge/internal/runtime/ids"
	jsoncodec "github.com/drblury/lambdabridge/internal/runtime/jsoncodec"
	lifecyclepkg "github.com/drblury/lambdabridge/internal/runtime/lifecycle"
	loggingpkg "github.com/drblury/lambdabridge/internal/runtime/logging"
	metadatapkg "github.com/drblury/lambdabridge/internal/runtime/metadata"
	metricspkg "github.com/drblury/lambdabridge/internal/runtime/metrics"
	pollerpkg "github.com/drblury/lambdabridge/internal/runtime/poller"
	runtimeapipkg "github.com/drblury/lambdabridge/internal/runtime/runtimeapi"
	transportpkg "github.com/drblury/lambdabridge/transport"
)

type (
	Config        = configpkg.Config
	Bridge        = runtimepkg.Bridge
	BridgeOptions = runtimepkg.BridgeOptions

	// Dispatch
	Target       = dispatchpkg.Target
	TargetFunc   = dispatchpkg.TargetFunc
	NullTarget   = dispatchpkg.NullTarget
	Event        = dispatchpkg.Event
	Response     = dispatchpkg.Response
	HTTPRequest  = dispatchpkg.HTTPRequest
	HTTPResponse = dispatchpkg.HTTPResponse
	Invocation   = dispatchpkg.Invocation

	// Runtime API
	RuntimeAPI         = runtimeapipkg.API
	RuntimeClient      = runtimeapipkg.Client
	RuntimeClientOpt   = runtimeapipkg.Option
	InvocationEvent    = runtimeapipkg.InvocationEvent
	InvocationResponse = runtimeapipkg.InvocationResponse
	InvocationError    = runtimeapipkg.InvocationError

	// Lifecycle and control
	Manager                 = lifecyclepkg.Manager
	ManagerOptions          = lifecyclepkg.Options
	ClientFactory           = lifecyclepkg.ClientFactory
	PollerStatus            = lifecyclepkg.PollerStatus
	CapabilityConfiguration = lifecyclepkg.CapabilityConfiguration
	ControlService          = controlpkg.Service
	ControlDependencies     = controlpkg.Dependencies
	Commander               = controlpkg.Commander
	MiddlewareRegistration  = controlpkg.MiddlewareRegistration
	MiddlewareBuilder       = controlpkg.MiddlewareBuilder
	RetryConfig             = controlpkg.RetryConfig

	// Invocation hooks and metrics
	Hooks           = pollerpkg.Hooks
	InvocationInfo  = pollerpkg.InvocationInfo
	PollerMetrics   = metricspkg.PollerMetrics
	TenantStats     = metricspkg.TenantStats
	MetricsSnapshot = metricspkg.Snapshot

	ClassifierOptions = classifypkg.Options

	Metadata = metadatapkg.Metadata

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	// Errors
	ConfigError            = errspkg.ConfigError
	TransportError         = errspkg.TransportError
	ClassificationError    = errspkg.ClassificationError
	SerializationError     = errspkg.SerializationError
	TargetError            = errspkg.TargetError
	DuplicateDispatchError = errspkg.DuplicateDispatchError
	ErrorCategory          = errspkg.Category

	// Control transports
	TransportBuilder      = transportpkg.Builder
	TransportConfig       = transportpkg.Config
	TransportRegistry     = transportpkg.Registry
	TransportCapabilities = transportpkg.Capabilities
)

var (
	NewBridge      = runtimepkg.NewBridge
	LoadConfig     = configpkg.Load
	ValidateConfig = configpkg.ValidateConfig

	NewManager        = lifecyclepkg.New
	OptionsFromConfig = lifecyclepkg.OptionsFromConfig
	EncodeCommand     = lifecyclepkg.EncodeConfiguration

	NewControlService  = controlpkg.NewService
	DefaultMiddlewares = controlpkg.DefaultMiddlewares
	IsRejected         = controlpkg.IsRejected

	NewRuntimeClient = runtimeapipkg.NewClient
	WithUserAgent    = runtimeapipkg.WithUserAgent
	WithPostTimeout  = runtimeapipkg.WithPostTimeout
	WithHTTPClient   = runtimeapipkg.WithHTTPClient

	Classify       = classifypkg.Classify
	EncodeResponse = classifypkg.EncodeResponse

	InvocationFromContext = dispatchpkg.InvocationFromContext
	TraceIDFromContext    = dispatchpkg.TraceIDFromContext

	LoggingHooks     = pollerpkg.LoggingHooks
	MetricsHooks     = pollerpkg.MetricsHooks
	NewPollerMetrics = metricspkg.New

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	NewJSONLogger        = loggingpkg.NewJSONLogger
	ParseLogLevel        = loggingpkg.ParseLevel

	ErrorKind         = errspkg.Kind
	IsDeliveryFailure = errspkg.IsDeliveryFailure

	ErrTenantRequired       = errspkg.ErrTenantRequired
	ErrEndpointRequired     = errspkg.ErrEndpointRequired
	ErrNoTarget             = errspkg.ErrNoTarget
	ErrPollerRunning        = errspkg.ErrPollerRunning
	ErrUnsupportedOperation = errspkg.ErrUnsupportedOperation
	ErrConfigRequired       = errspkg.ErrConfigRequired
	ErrLoggerRequired       = errspkg.ErrLoggerRequired

	DefaultTransportRegistry = transportpkg.DefaultRegistry
	RegisterTransport        = transportpkg.RegisterWithCapabilities

	Marshal   = jsoncodec.Marshal
	Unmarshal = jsoncodec.Unmarshal

	CreateULID = idspkg.CreateULID
)

const (
	// RuntimeAPIKey is the tenant value holding the Runtime API host:port.
	RuntimeAPIKey = configpkg.RuntimeAPIKey

	CapabilityID  = lifecyclepkg.CapabilityID
	OpBindActor   = lifecyclepkg.OpBindActor
	OpRemoveActor = lifecyclepkg.OpRemoveActor
	SystemActor   = lifecyclepkg.SystemActor

	OpHandleEvent   = dispatchpkg.OpHandleEvent
	OpHandleRequest = dispatchpkg.OpHandleRequest

	// TraceEnvKey is set per invocation when Config.ExportTraceEnv is on.
	TraceEnvKey = pollerpkg.TraceEnvKey
)
