package database_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/tailored-agentic-units/propstore/chunk"
	"github.com/tailored-agentic-units/propstore/database"
	"github.com/tailored-agentic-units/propstore/observability"
	"github.com/tailored-agentic-units/propstore/property"
)

// recordingStore counts writes and can refuse values above a soft limit
// that is lower than the limit it advertises.
type recordingStore struct {
	property.Store

	mu      sync.Mutex
	sets    []string
	refuse  int   // when > 0, values measuring above refuse fail with ErrOversize
	failKey string // when set, writes to this key fail
}

func newRecordingStore(limit int) *recordingStore {
	return &recordingStore{Store: property.NewMemoryStore(limit)}
}

func (s *recordingStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	s.sets = append(s.sets, key)
	refuse, failKey := s.refuse, s.failKey
	s.mu.Unlock()

	if failKey != "" && key == failKey {
		return property.ErrSaveFailed
	}
	if refuse > 0 && property.Length(value) > refuse {
		return property.ErrOversize
	}
	return s.Store.Set(ctx, key, value)
}

func (s *recordingStore) writes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sets...)
}

func (s *recordingStore) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets = nil
}

// put writes raw properties straight into the backend.
func put(t *testing.T, s property.Store, kv ...string) {
	t.Helper()
	for i := 0; i+1 < len(kv); i += 2 {
		if err := s.Set(context.Background(), kv[i], kv[i+1]); err != nil {
			t.Fatalf("Set(%q) error = %v", kv[i], err)
		}
	}
}

// persisted reassembles the committed payload of name.
func persisted(t *testing.T, s property.Store, name string) (string, int) {
	t.Helper()
	ctx := context.Background()

	raw, ok, err := s.Get(ctx, chunk.IndexKey(name))
	if err != nil || !ok {
		t.Fatalf("index of %s: ok=%v err=%v", name, ok, err)
	}
	count, err := chunk.ParseIndex(raw)
	if err != nil {
		t.Fatal(err)
	}
	var b strings.Builder
	for i := 0; i < count; i++ {
		part, ok, err := s.Get(ctx, chunk.Key(name, i))
		if err != nil || !ok {
			t.Fatalf("chunk %d of %s: ok=%v err=%v", i, name, ok, err)
		}
		b.WriteString(part)
	}
	return b.String(), count
}

func newManager(backend property.Store, events *[]observability.Event) *database.Manager {
	var obs observability.Observer = observability.NoOpObserver{}
	if events != nil {
		obs = &captureObserver{events: events}
	}
	return database.NewManager(backend, database.WithManagerObserver(obs))
}

type captureObserver struct {
	mu     sync.Mutex
	events *[]observability.Event
}

func (c *captureObserver) OnEvent(ctx context.Context, event observability.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	*c.events = append(*c.events, event)
}

func hasEvent(events []observability.Event, typ observability.EventType) bool {
	for _, e := range events {
		if e.Type == typ {
			return true
		}
	}
	return false
}

type wallet struct {
	Gold int `json:"gold"`
}
