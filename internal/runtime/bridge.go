package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/drblury/lambdabridge/internal/runtime/config"
	"github.com/drblury/lambdabridge/internal/runtime/control"
	"github.com/drblury/lambdabridge/internal/runtime/dispatch"
	lberrors "github.com/drblury/lambdabridge/internal/runtime/errors"
	"github.com/drblury/lambdabridge/internal/runtime/lifecycle"
	"github.com/drblury/lambdabridge/internal/runtime/logging"
	"github.com/drblury/lambdabridge/internal/runtime/metrics"
	"github.com/drblury/lambdabridge/internal/runtime/poller"
)

// DefaultShutdownTimeout bounds how long Start waits for pollers once the
// control router stopped.
const DefaultShutdownTimeout = 30 * time.Second

// BridgeOptions holds the optional collaborators of a Bridge.
type BridgeOptions struct {
	Target dispatch.Target
	Hooks  poller.Hooks

	// ClientFactory overrides how Runtime API clients are built.
	ClientFactory lifecycle.ClientFactory

	// Registerer and Gatherer default to the global Prometheus registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer

	// Control is passed to the control service. Its Registerer, Gatherer and
	// PollerMetrics are filled in by NewBridge.
	Control control.Dependencies

	ShutdownTimeout time.Duration
}

// Bridge owns the lifecycle manager and the control service built from one
// Config.
type Bridge struct {
	Conf    *config.Config
	Logger  logging.ServiceLogger
	Manager *lifecycle.Manager
	Control *control.Service
	Metrics *metrics.PollerMetrics

	shutdownTimeout time.Duration
}

// NewBridge validates conf and wires metrics, the manager and the control
// service. Poller metrics are collected only when conf.MetricsEnabled is set.
func NewBridge(ctx context.Context, conf *config.Config, log logging.ServiceLogger, opts BridgeOptions) (*Bridge, error) {
	if err := config.ValidateConfig(conf); err != nil {
		return nil, err
	}
	if log == nil {
		return nil, lberrors.ErrLoggerRequired
	}
	resolved := conf.WithDefaults()
	conf = &resolved

	registerer := opts.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	var pollerMetrics *metrics.PollerMetrics
	if conf.MetricsEnabled {
		pollerMetrics = metrics.New(registerer)
	}

	managerOpts := lifecycle.OptionsFromConfig(conf)
	managerOpts.Logger = log
	managerOpts.Metrics = pollerMetrics
	managerOpts.Hooks = poller.LoggingHooks(log).Merge(opts.Hooks)
	managerOpts.Target = opts.Target
	managerOpts.ClientFactory = opts.ClientFactory
	manager := lifecycle.New(managerOpts)

	deps := opts.Control
	deps.Registerer = registerer
	deps.Gatherer = opts.Gatherer
	deps.PollerMetrics = pollerMetrics
	svc, err := control.NewService(ctx, conf, log, manager, deps)
	if err != nil {
		return nil, err
	}

	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	return &Bridge{
		Conf:            conf,
		Logger:          log,
		Manager:         manager,
		Control:         svc,
		Metrics:         pollerMetrics,
		shutdownTimeout: timeout,
	}, nil
}

// ConfigureDispatch installs the target every poller dispatches to.
func (b *Bridge) ConfigureDispatch(target dispatch.Target) {
	b.Manager.ConfigureDispatch(target)
}

// Start runs the control router until ctx is done, then stops every poller.
func (b *Bridge) Start(ctx context.Context) error {
	runErr := b.Control.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.shutdownTimeout)
	defer cancel()
	return errors.Join(runErr, b.Manager.Shutdown(shutdownCtx))
}

// Running is closed once control commands are being consumed.
func (b *Bridge) Running() chan struct{} { return b.Control.Running() }

// Bind publishes a BindActor command for tenantID.
func (b *Bridge) Bind(ctx context.Context, tenantID string, values map[string]string) (string, error) {
	return b.Control.Bind(ctx, tenantID, values)
}

// Remove publishes a RemoveActor command for tenantID.
func (b *Bridge) Remove(ctx context.Context, tenantID string) (string, error) {
	return b.Control.Remove(ctx, tenantID)
}

// Close stops the control service and waits for pollers to exit.
func (b *Bridge) Close(ctx context.Context) error {
	return errors.Join(b.Control.Close(), b.Manager.Shutdown(ctx))
}
