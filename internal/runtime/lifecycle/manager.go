// Package lifecycle starts and stops one poller per tenant and exposes the
// capability surface the host uses to bind and unbind tenants.
package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/drblury/lambdabridge/internal/runtime/classify"
	"github.com/drblury/lambdabridge/internal/runtime/config"
	"github.com/drblury/lambdabridge/internal/runtime/dispatch"
	lberrors "github.com/drblury/lambdabridge/internal/runtime/errors"
	"github.com/drblury/lambdabridge/internal/runtime/ids"
	"github.com/drblury/lambdabridge/internal/runtime/logging"
	"github.com/drblury/lambdabridge/internal/runtime/metrics"
	"github.com/drblury/lambdabridge/internal/runtime/poller"
	"github.com/drblury/lambdabridge/internal/runtime/runtimeapi"
)

// ClientFactory builds the Runtime API client for a tenant endpoint.
type ClientFactory func(endpoint string) (runtimeapi.API, error)

// Options configures a Manager. Zero values are usable.
type Options struct {
	Logger  logging.ServiceLogger
	Metrics *metrics.PollerMetrics
	Hooks   poller.Hooks
	Target  dispatch.Target

	// ClientFactory overrides how Runtime API clients are built.
	ClientFactory ClientFactory

	UserAgent         string
	PostTimeout       time.Duration
	FetchErrorBackoff time.Duration
	ExportTraceEnv    bool
	RequireELBContext bool
}

// OptionsFromConfig copies the Runtime API settings of cfg into Options.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{}
	}
	return Options{
		UserAgent:         cfg.UserAgent,
		PostTimeout:       cfg.PostTimeout,
		FetchErrorBackoff: cfg.FetchErrorBackoff,
		ExportTraceEnv:    cfg.ExportTraceEnv,
		RequireELBContext: cfg.RequireELBContext,
	}
}

type entry struct {
	pollerID  string
	alive     bool
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
}

// Manager owns the tenant table. Only a poller's own goroutine removes its
// entry, and only while the entry still carries its poller id.
type Manager struct {
	mu      sync.RWMutex
	tenants map[string]*entry

	dispatcher    *dispatch.Dispatcher
	classifier    *classify.Classifier
	clientFactory ClientFactory
	logger        logging.ServiceLogger
	opts          Options
}

// New creates a Manager.
func New(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.With(logging.LogFields{"component": "lifecycle"})

	m := &Manager{
		tenants:    make(map[string]*entry),
		dispatcher: dispatch.New(dispatch.NewHandle(opts.Target)),
		classifier: classify.New(classify.Options{RequireELBContext: opts.RequireELBContext}),
		logger:     logger,
		opts:       opts,
	}
	m.clientFactory = opts.ClientFactory
	if m.clientFactory == nil {
		m.clientFactory = m.newClient
	}
	return m
}

func (m *Manager) newClient(endpoint string) (runtimeapi.API, error) {
	return runtimeapi.NewClient(endpoint,
		runtimeapi.WithUserAgent(m.opts.UserAgent),
		runtimeapi.WithPostTimeout(m.opts.PostTimeout),
		runtimeapi.WithLogger(m.opts.Logger),
	)
}

// Dispatcher returns the dispatcher shared by every poller.
func (m *Manager) Dispatcher() *dispatch.Dispatcher { return m.dispatcher }

// ConfigureDispatch installs the target all pollers dispatch to. Pollers pick
// it up on their next invocation.
func (m *Manager) ConfigureDispatch(target dispatch.Target) {
	m.dispatcher.Handle().Swap(target)
	m.logger.Debug("Dispatch target configured", logging.LogFields{"configured": target != nil})
}

// Start spawns a poller for tenantID against the endpoint found under
// config.RuntimeAPIKey in values. It returns once the poller goroutine is
// launched. A tenant whose poller is still running yields ErrPollerRunning; a
// tenant whose poller is stopping is replaced.
func (m *Manager) Start(ctx context.Context, tenantID string, values map[string]string) error {
	if tenantID == "" {
		return lberrors.ErrTenantRequired
	}
	endpoint, err := config.EndpointFromValues(values)
	if err != nil {
		return err
	}

	api, err := m.clientFactory(endpoint)
	if err != nil {
		return fmt.Errorf("create runtime api client: %w", err)
	}
	p, err := poller.New(poller.Options{
		TenantID:          tenantID,
		API:               api,
		Dispatcher:        m.dispatcher,
		Classifier:        m.classifier,
		Logger:            m.opts.Logger,
		Metrics:           m.opts.Metrics,
		Hooks:             m.opts.Hooks,
		FetchErrorBackoff: m.opts.FetchErrorBackoff,
		ExportTraceEnv:    m.opts.ExportTraceEnv,
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	if existing, ok := m.tenants[tenantID]; ok && existing.alive {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", lberrors.ErrPollerRunning, tenantID)
	}
	// The poller outlives the caller's context; Stop cancels it.
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e := &entry{
		pollerID:  ids.CreateULID(),
		alive:     true,
		startedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	m.tenants[tenantID] = e
	m.mu.Unlock()

	m.logger.Info("Starting poller", logging.LogFields{
		"tenant":    tenantID,
		"poller_id": e.pollerID,
		"endpoint":  endpoint,
	})
	go m.run(loopCtx, p, e)
	return nil
}

func (m *Manager) run(ctx context.Context, p *poller.Poller, e *entry) {
	tenantID := p.TenantID()
	defer close(e.done)
	defer m.remove(tenantID, e.pollerID)
	defer e.cancel()
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Poller panicked", fmt.Errorf("panic: %v", r), logging.LogFields{
				"tenant":    tenantID,
				"poller_id": e.pollerID,
			})
		}
	}()

	p.Run(ctx, func() bool { return m.alive(tenantID, e.pollerID) })
}

func (m *Manager) alive(tenantID, pollerID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.tenants[tenantID]
	return ok && e.pollerID == pollerID && e.alive
}

func (m *Manager) remove(tenantID, pollerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.tenants[tenantID]; ok && e.pollerID == pollerID {
		delete(m.tenants, tenantID)
	}
}

// Stop asks the tenant's poller to exit and returns immediately. The poller
// finishes its current cycle first. Stopping an unknown tenant is a no-op.
func (m *Manager) Stop(tenantID string) error {
	m.stop(tenantID)
	return nil
}

func (m *Manager) stop(tenantID string) *entry {
	m.mu.Lock()
	e, ok := m.tenants[tenantID]
	if !ok {
		m.mu.Unlock()
		m.logger.Warn("Received request to stop poller for unknown tenant, ignoring", logging.LogFields{"tenant": tenantID})
		return nil
	}
	wasAlive := e.alive
	e.alive = false
	m.mu.Unlock()

	e.cancel()
	if wasAlive {
		m.logger.Info("Stopping poller", logging.LogFields{"tenant": tenantID, "poller_id": e.pollerID})
	}
	return e
}

// Wait blocks until the tenant's current poller exited or ctx is done.
func (m *Manager) Wait(ctx context.Context, tenantID string) error {
	m.mu.RLock()
	e, ok := m.tenants[tenantID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return waitFor(ctx, e)
}

// StopAndWait stops the tenant's poller and waits for it to exit.
func (m *Manager) StopAndWait(ctx context.Context, tenantID string) error {
	e := m.stop(tenantID)
	if e == nil {
		return nil
	}
	return waitFor(ctx, e)
}

// Shutdown stops every poller and waits for all of them to exit.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.tenants))
	for _, e := range m.tenants {
		e.alive = false
		entries = append(entries, e)
	}
	m.mu.Unlock()

	m.logger.Info("Shutting down pollers", logging.LogFields{"count": len(entries)})
	for _, e := range entries {
		e.cancel()
	}
	for _, e := range entries {
		if err := waitFor(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func waitFor(ctx context.Context, e *entry) error {
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running returns the sorted ids of tenants with a live poller.
func (m *Manager) Running() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.tenants))
	for id, e := range m.tenants {
		if e.alive {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// IsRunning reports whether tenantID has a live poller.
func (m *Manager) IsRunning(tenantID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.tenants[tenantID]
	return ok && e.alive
}

// PollerStatus describes one entry of the tenant table.
type PollerStatus struct {
	TenantID  string    `json:"tenant_id"`
	PollerID  string    `json:"poller_id"`
	Alive     bool      `json:"alive"`
	StartedAt time.Time `json:"started_at"`
}

// Status lists every entry, including pollers that are still stopping.
func (m *Manager) Status() []PollerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]PollerStatus, 0, len(m.tenants))
	for id, e := range m.tenants {
		out = append(out, PollerStatus{TenantID: id, PollerID: e.pollerID, Alive: e.alive, StartedAt: e.startedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out
}
