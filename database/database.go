// Package database implements named, chunk-persisted key/value stores over a
// size-bounded property store.
//
// Each Database keeps its whole collection in memory. Mutations only touch
// the cache and mark the store dirty; Save serializes the cache to JSON,
// splits it into chunks that fit the property limit and commits the layout
// by writing the chunk count last. A Manager owns every store of a process
// and flushes the dirty ones on a fixed period.
//
//	m := database.NewManager(backend)
//	wallets, err := database.Open[Wallet](ctx, m, "wallets")
//	wallets.Set("alice", Wallet{Gold: 500})
//	go m.Run(ctx, 30*time.Second)
package database

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/tailored-agentic-units/propstore/chunk"
	"github.com/tailored-agentic-units/propstore/observability"
	"github.com/tailored-agentic-units/propstore/property"
)

// DefaultPayload seeds a store that has never been saved.
const DefaultPayload = "{}"

// Option configures a Database at Open.
type Option func(*options)

type options struct {
	def        string
	arrayField string
	ratios     []float64
	observer   observability.Observer
}

// WithDefault sets the serialized payload used for a fresh store and when
// a corrupt store has to be reinitialized.
func WithDefault(payload string) Option {
	return func(o *options) { o.def = payload }
}

// WithArrayField enables array-aware repair for the record array stored
// under field.
func WithArrayField(field string) Option {
	return func(o *options) { o.arrayField = field }
}

// WithRatios overrides the manager's chunk size ladder for this store.
func WithRatios(ratios ...float64) Option {
	return func(o *options) { o.ratios = ratios }
}

// WithObserver overrides the manager's observer for this store.
func WithObserver(obs observability.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// Database is a named collection of values of type V persisted in chunks.
// All methods are safe for concurrent use.
type Database[V any] struct {
	name       string
	def        string
	arrayField string
	backend    property.Store
	planner    chunk.Planner
	observer   observability.Observer

	mu     sync.RWMutex
	cache  map[string]V
	state  State
	index  int // chunk count currently committed in the backend
	report LoadReport
}

// Open creates the store called name, registers it with m and loads it
// from m's backend.
//
// A store whose persisted payload could not be salvaged is reset to its
// default; Open then returns the usable Database together with an error
// wrapping ErrReinitialized. Any other error leaves no store registered.
func Open[V any](ctx context.Context, m *Manager, name string, opts ...Option) (*Database[V], error) {
	if name == "" {
		return nil, ErrInvalidName
	}

	o := options{
		def:        DefaultPayload,
		arrayField: m.arrayField,
		ratios:     m.ratios,
		observer:   m.observer,
	}
	for _, opt := range opts {
		opt(&o)
	}

	planner := chunk.NewPlanner(m.backend.Limit(), property.Length)
	if len(o.ratios) > 0 {
		planner.Ratios = o.ratios
	}

	d := &Database[V]{
		name:       name,
		def:        o.def,
		arrayField: o.arrayField,
		backend:    m.backend,
		planner:    planner,
		observer:   o.observer,
	}

	if _, err := d.decode(d.def); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDefault, name, err)
	}

	if err := m.Register(d); err != nil {
		return nil, err
	}

	if err := d.load(ctx); err != nil {
		if errors.Is(err, ErrReinitialized) {
			return d, err
		}
		m.unregister(name)
		return nil, err
	}
	return d, nil
}

// Name returns the store name.
func (d *Database[V]) Name() string {
	return d.name
}

// Get returns the value stored under key.
func (d *Database[V]) Get(key string) (V, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	v, ok := d.cache[key]
	return v, ok
}

// Has reports whether key is present.
func (d *Database[V]) Has(key string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.cache[key]
	return ok
}

// Keys returns every key in ascending order.
func (d *Database[V]) Keys() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.sortedKeys()
}

// Values returns every value, ordered by key.
func (d *Database[V]) Values() []V {
	d.mu.RLock()
	defer d.mu.RUnlock()

	keys := d.sortedKeys()
	values := make([]V, 0, len(keys))
	for _, k := range keys {
		values = append(values, d.cache[k])
	}
	return values
}

// GetAll returns a copy of the whole collection.
func (d *Database[V]) GetAll() map[string]V {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return maps.Clone(d.cache)
}

// Len returns the number of keys.
func (d *Database[V]) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.cache)
}

// Set stores value under key. Nothing is written until the next Save.
func (d *Database[V]) Set(key string, value V) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cache[key] = value
	d.state = Dirty
}

// Delete removes key and reports whether it was present. Only a removal
// marks the store dirty.
func (d *Database[V]) Delete(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.cache[key]; !ok {
		return false
	}
	delete(d.cache, key)
	d.state = Dirty
	return true
}

// Clear empties the store and saves immediately, so no stale payload
// survives a crash right after the clear.
func (d *Database[V]) Clear(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cache = make(map[string]V)
	d.state = Dirty
	return d.save(ctx, true)
}

// State returns the persistence state of the cache.
func (d *Database[V]) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.state
}

// Dirty reports whether the cache holds mutations not yet saved.
func (d *Database[V]) Dirty() bool {
	return d.State() == Dirty
}

// Report returns the summary of the initial load.
func (d *Database[V]) Report() LoadReport {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.report
}

func (d *Database[V]) sortedKeys() []string {
	keys := make([]string, 0, len(d.cache))
	for k := range d.cache {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// encode serializes the cache. HTML characters are left unescaped so the
// payload matches what the host's own JSON serializer writes.
func (d *Database[V]) encode() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(d.cache); err != nil {
		return "", fmt.Errorf("encode %s: %w", d.name, err)
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

func (d *Database[V]) decode(payload string) (map[string]V, error) {
	var m map[string]V
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = make(map[string]V)
	}
	return m, nil
}

func (d *Database[V]) decodeValue(raw json.RawMessage) error {
	var v V
	return json.Unmarshal(raw, &v)
}

func (d *Database[V]) emit(ctx context.Context, typ observability.EventType, level observability.Level, source string, data map[string]any) {
	if data == nil {
		data = make(map[string]any, 1)
	}
	data["store"] = d.name
	observability.Emit(ctx, d.observer, typ, level, source, data)
}
