package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/tailored-agentic-units/propstore/metrics"
	"github.com/tailored-agentic-units/propstore/observability"
	"github.com/tailored-agentic-units/propstore/property"
)

// Persister is the part of a store the Manager needs to flush it.
type Persister interface {
	Name() string
	Dirty() bool
	Save(ctx context.Context, force bool) error
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerObserver sets the observer stores inherit and the manager
// reports to. The default is a SlogObserver over slog.Default.
func WithManagerObserver(obs observability.Observer) ManagerOption {
	return func(m *Manager) { m.observer = obs }
}

// WithDefaultRatios sets the chunk size ladder stores inherit.
func WithDefaultRatios(ratios ...float64) ManagerOption {
	return func(m *Manager) { m.ratios = ratios }
}

// WithDefaultArrayField sets the array-aware repair field stores inherit.
func WithDefaultArrayField(field string) ManagerOption {
	return func(m *Manager) { m.arrayField = field }
}

// Manager is the registry of every store sharing a backend. Store names
// are unique within a Manager since they partition the backend key space.
type Manager struct {
	backend    property.Store
	observer   observability.Observer
	ratios     []float64
	arrayField string

	mu     sync.Mutex
	stores map[string]Persister
}

// NewManager creates a Manager writing through backend.
func NewManager(backend property.Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		backend:  backend,
		observer: observability.NewSlogObserver(slog.Default()),
		stores:   make(map[string]Persister),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Backend returns the property store shared by the registered stores.
func (m *Manager) Backend() property.Store {
	return m.backend
}

// Register adds p to the registry. Open registers stores itself.
func (m *Manager) Register(p Persister) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.stores[p.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateName, p.Name())
	}
	m.stores[p.Name()] = p
	return nil
}

func (m *Manager) unregister(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stores, name)
}

// Lookup returns the store registered under name.
func (m *Manager) Lookup(name string) (Persister, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.stores[name]
	return p, ok
}

// Names returns the registered store names in sorted order.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.stores))
	for name := range m.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Flush saves every dirty store. Clean stores cost nothing.
func (m *Manager) Flush(ctx context.Context) error {
	return m.FlushAll(ctx, false)
}

// FlushAll saves every registered store, forcing the write when force is
// set. Every store is attempted; the failures are joined.
func (m *Manager) FlushAll(ctx context.Context, force bool) error {
	stores := m.snapshot()

	var (
		errs  []error
		dirty int
	)
	for _, p := range stores {
		if !force && !p.Dirty() {
			continue
		}
		dirty++
		if err := p.Save(ctx, force); err != nil {
			errs = append(errs, fmt.Errorf("flush %s: %w", p.Name(), err))
		}
	}

	metrics.AutosaveFlushes.Inc()
	err := errors.Join(errs...)
	if err != nil {
		observability.Emit(ctx, m.observer, EventFlushFailed, observability.LevelError, "database.Manager", map[string]any{
			"stores": len(stores),
			"failed": len(errs),
			"error":  err.Error(),
		})
		return err
	}
	observability.Emit(ctx, m.observer, EventFlush, observability.LevelVerbose, "database.Manager", map[string]any{
		"stores": len(stores),
		"saved":  dirty,
		"forced": force,
	})
	return nil
}

// Run flushes dirty stores every period until ctx is done, then performs a
// final flush so mutations made since the last tick are not lost. Flush
// failures during the loop are reported and retried on the next tick; only
// the final flush error is returned.
func (m *Manager) Run(ctx context.Context, period time.Duration) error {
	if period <= 0 {
		return fmt.Errorf("invalid autosave period %s", period)
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	observability.Emit(ctx, m.observer, EventAutosaveStart, observability.LevelInfo, "database.Manager", map[string]any{
		"period": period.String(),
	})

	for {
		select {
		case <-ctx.Done():
			final := context.WithoutCancel(ctx)
			err := m.Flush(final)
			observability.Emit(final, m.observer, EventAutosaveStop, observability.LevelInfo, "database.Manager", nil)
			return err
		case <-ticker.C:
			// Failures are already reported by FlushAll.
			_ = m.Flush(ctx)
		}
	}
}

func (m *Manager) snapshot() []Persister {
	m.mu.Lock()
	defer m.mu.Unlock()

	stores := make([]Persister, 0, len(m.stores))
	for _, p := range m.stores {
		stores = append(stores, p)
	}
	sort.Slice(stores, func(i, j int) bool {
		return stores[i].Name() < stores[j].Name()
	})
	return stores
}
