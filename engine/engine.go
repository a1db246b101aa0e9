// Package engine composes a property backend, a database Manager and the
// autosave loop from a single Config.
//
//	e, err := engine.New(&cfg)
//	defer e.Close(ctx)
//	players, err := database.Open[Player](ctx, e.Manager(), "players")
//	go e.Run(ctx)
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tailored-agentic-units/propstore/database"
	"github.com/tailored-agentic-units/propstore/metrics"
	"github.com/tailored-agentic-units/propstore/observability"
	"github.com/tailored-agentic-units/propstore/property"
)

// Option configures an Engine after config-driven initialization.
type Option func(*Engine)

// WithBackend overrides the config-created property store. The Engine
// still closes it on Close.
func WithBackend(s property.Store) Option {
	return func(e *Engine) { e.backend = s }
}

// WithObserver overrides the observer named in the config.
func WithObserver(o observability.Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithRegisterer registers the persistence collectors with r.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(e *Engine) { e.registerer = r }
}

// Engine owns the backend and the Manager of every store opened on it.
type Engine struct {
	backend    property.Store
	manager    *database.Manager
	observer   observability.Observer
	registerer prometheus.Registerer
	autosave   *autosave
}

// New creates an Engine from configuration.
func New(cfg *Config, opts ...Option) (*Engine, error) {
	period, err := cfg.AutosavePeriod()
	if err != nil {
		return nil, err
	}

	observer, err := observability.GetObserver(cfg.Observer)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve observer: %w", err)
	}

	e := &Engine{observer: observer}
	for _, opt := range opts {
		opt(e)
	}

	if e.backend == nil {
		e.backend, err = property.NewStore(&cfg.Property)
		if err != nil {
			return nil, fmt.Errorf("failed to create property store: %w", err)
		}
	}

	if e.registerer != nil {
		for _, c := range metrics.Collectors() {
			if err := e.registerer.Register(c); err != nil {
				var already prometheus.AlreadyRegisteredError
				if !errors.As(err, &already) {
					e.backend.Close()
					return nil, fmt.Errorf("failed to register metrics: %w", err)
				}
			}
		}
	}

	managerOpts := append(cfg.Database.Options(), database.WithManagerObserver(e.observer))
	e.manager = database.NewManager(e.backend, managerOpts...)
	e.autosave = &autosave{period: period}

	return e, nil
}

// Manager returns the registry stores are opened against.
func (e *Engine) Manager() *database.Manager {
	return e.manager
}

// Backend returns the property store.
func (e *Engine) Backend() property.Store {
	return e.backend
}

// Start launches the autosave loop in the background. It is a no-op when
// autosave is disabled or already running.
func (e *Engine) Start(ctx context.Context) {
	if e.autosave.start(ctx, e.manager) {
		observability.Emit(ctx, e.observer, EventStart, observability.LevelInfo, "engine.Start", map[string]any{
			"autosave": e.autosave.period.String(),
			"limit":    e.backend.Limit(),
		})
	}
}

// Run blocks in the autosave loop until ctx is done, then flushes once
// more. With autosave disabled it waits for ctx and flushes.
func (e *Engine) Run(ctx context.Context) error {
	if e.autosave.period == 0 {
		<-ctx.Done()
		return e.manager.Flush(context.WithoutCancel(ctx))
	}
	return e.manager.Run(ctx, e.autosave.period)
}

// Close stops a loop launched by Start, flushes every dirty store and
// closes the backend. Flush and close errors are joined.
func (e *Engine) Close(ctx context.Context) error {
	errs := []error{e.autosave.stop()}

	errs = append(errs, e.manager.Flush(ctx))
	if err := e.backend.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close property store: %w", err))
	}

	err := errors.Join(errs...)
	observability.Emit(ctx, e.observer, EventClose, observability.LevelInfo, "engine.Close", map[string]any{
		"stores": len(e.manager.Names()),
		"failed": err != nil,
	})
	return err
}
