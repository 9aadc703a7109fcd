// Package control runs the command bus that binds and removes tenants. Hosts
// publish BindActor/RemoveActor commands on the control topic; the service
// consumes them through a watermill router and forwards each one to a
// Commander.
package control

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/plugin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/drblury/lambdabridge/internal/runtime/config"
	lberrors "github.com/drblury/lambdabridge/internal/runtime/errors"
	"github.com/drblury/lambdabridge/internal/runtime/logging"
	"github.com/drblury/lambdabridge/internal/runtime/metrics"
	"github.com/drblury/lambdabridge/transport"
)

const handlerName = "lambdabridge_control"

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

// Commander executes a decoded control command.
type Commander interface {
	HandleCall(ctx context.Context, actor, op string, msg []byte) ([]byte, error)
}

// Dependencies holds the optional collaborators of a Service. Leave fields
// nil to get the defaults.
type Dependencies struct {
	// Registry resolves Config.ControlTransport. Defaults to
	// transport.DefaultRegistry.
	Registry *transport.Registry

	// Registerer and Gatherer back the router metrics and the /metrics
	// endpoint. Default to the global Prometheus registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer

	// PollerMetrics are registered alongside the router metrics when metrics
	// are enabled.
	PollerMetrics *metrics.PollerMetrics

	Middlewares               []MiddlewareRegistration // Appended after the default middleware chain.
	DisableDefaultMiddlewares bool                     // Skips registering the default middleware chain when true.
	Retry                     RetryConfig
}

// Service wires a watermill router, the control transport and the middleware
// chain around a Commander.
type Service struct {
	Conf   *config.Config
	Logger logging.ServiceLogger

	commander    Commander
	transport    transport.Transport
	capabilities transport.Capabilities
	publisher    message.Publisher
	router       *message.Router

	registerer    prometheus.Registerer
	gatherer      prometheus.Gatherer
	pollerMetrics *metrics.PollerMetrics
	retry         RetryConfig

	httpServers   map[int]*http.ServeMux
	httpServersMu sync.Mutex
	running       []*http.Server
}

// NewService builds the transport named by conf.ControlTransport and a router
// consuming conf.ControlTopic. Call Start to begin processing commands.
func NewService(ctx context.Context, conf *config.Config, log logging.ServiceLogger, commander Commander, deps Dependencies) (*Service, error) {
	if conf == nil {
		return nil, lberrors.ErrConfigRequired
	}
	if log == nil {
		return nil, lberrors.ErrLoggerRequired
	}
	if commander == nil {
		return nil, errors.New("control: commander is required")
	}
	resolved := conf.WithDefaults()
	conf = &resolved
	log = log.With(logging.LogFields{"component": "control"})
	wmLogger := logging.NewWatermillAdapter(log)

	registry := deps.Registry
	if registry == nil {
		registry = transport.DefaultRegistry
	}
	s := &Service{
		Conf:          conf,
		Logger:        log,
		commander:     commander,
		capabilities:  registry.GetCapabilities(conf.ControlTransport),
		registerer:    deps.Registerer,
		gatherer:      deps.Gatherer,
		pollerMetrics: deps.PollerMetrics,
		retry:         deps.Retry.withDefaults(),
	}
	if s.registerer == nil {
		s.registerer = prometheus.DefaultRegisterer
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}

	log.Info("Creating control service", logging.LogFields{
		"transport":    conf.ControlTransport,
		"topic":        conf.ControlTopic,
		"capabilities": s.capabilities,
		"config":       conf,
	})

	tr, err := registry.Build(ctx, conf, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("build control transport: %w", err)
	}
	s.transport = tr
	s.publisher = tr.Publisher

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, wmLogger)
	if err != nil {
		_ = tr.Close()
		return nil, err
	}
	s.router = router
	s.router.AddPlugin(plugin.SignalsHandler)

	if err := s.registerConfiguredMiddlewares(deps); err != nil {
		_ = tr.Close()
		return nil, err
	}
	s.router.AddNoPublisherHandler(handlerName, conf.ControlTopic, tr.Subscriber, s.handleCommand)

	return s, nil
}

// Capabilities reports what the control transport guarantees.
func (s *Service) Capabilities() transport.Capabilities { return s.capabilities }

// Start runs the router until ctx is cancelled or Close is called.
func (s *Service) Start(ctx context.Context) error {
	s.startHTTPServers()
	defer s.stopHTTPServers()
	return routerRun(s.router, ctx)
}

// Running is closed once the router consumes the control topic.
func (s *Service) Running() chan struct{} { return s.router.Running() }

// Close stops the router and releases the transport.
func (s *Service) Close() error {
	err := s.router.Close()
	if closeErr := s.transport.Close(); closeErr != nil {
		s.Logger.Debug("Control transport close reported an error", logging.LogFields{"error": closeErr.Error()})
	}
	return err
}

func (s *Service) registerConfiguredMiddlewares(deps Dependencies) error {
	var defaults []MiddlewareRegistration
	if !deps.DisableDefaultMiddlewares {
		defaults = DefaultMiddlewares()
	}
	registrations := make([]MiddlewareRegistration, 0, len(defaults)+len(deps.Middlewares))
	registrations = append(registrations, defaults...)
	registrations = append(registrations, deps.Middlewares...)

	for _, reg := range registrations {
		if err := s.RegisterMiddleware(reg); err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_middleware"
			}
			return fmt.Errorf("register middleware %s: %w", name, err)
		}
	}
	return nil
}

// RegisterHTTPHandler mounts handler on the server listening on port. Servers
// start with Start.
func (s *Service) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	if s.httpServers == nil {
		s.httpServers = make(map[int]*http.ServeMux)
	}

	mux, ok := s.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		s.httpServers[port] = mux
	}

	mux.Handle(pattern, handler)
}

func (s *Service) startHTTPServers() {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	for port, mux := range s.httpServers {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		s.running = append(s.running, srv)
		s.Logger.Info("Starting HTTP server", logging.LogFields{"address": srv.Addr})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.Logger.Error("Failed to start HTTP server", err, logging.LogFields{"address": srv.Addr})
			}
		}()
	}
}

func (s *Service) stopHTTPServers() {
	s.httpServersMu.Lock()
	servers := s.running
	s.running = nil
	s.httpServersMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			s.Logger.Error("Failed to stop HTTP server", err, logging.LogFields{"address": srv.Addr})
		}
	}
}
