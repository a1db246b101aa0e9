// Package blob keeps opaque per-entity blobs (serialized inventories, chest
// contents and the like) in a chunk-persisted Database. The store is not
// usable until Load has run; every earlier call fails with ErrNotLoaded so
// callers can tell "not ready" apart from "empty".
package blob

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/propstore/database"
)

var (
	// ErrNotLoaded is returned by every operation before Load completes.
	ErrNotLoaded = errors.New("blob store not loaded")
	// ErrNotFound is returned for an unknown entity id.
	ErrNotFound = errors.New("entity not found")
)

// Store maps entity ids to blobs.
type Store struct {
	manager *database.Manager
	name    string
	opts    []database.Option

	mu sync.RWMutex
	db *database.Database[string]
}

// New creates a Store that will persist under name once loaded.
func New(m *database.Manager, name string, opts ...database.Option) *Store {
	return &Store{manager: m, name: name, opts: opts}
}

// Load opens the backing Database. Loading twice is a no-op. A store
// reinitialized from its default is loaded; the ErrReinitialized error is
// still returned so the data loss is not silent.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}
	db, err := database.Open[string](ctx, s.manager, s.name, s.opts...)
	if db != nil {
		s.db = db
	}
	if err != nil {
		return fmt.Errorf("load blob store %s: %w", s.name, err)
	}
	return nil
}

// Loaded reports whether Load has completed.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db != nil
}

// Create stores data under a new UUIDv7 entity id and returns the id.
func (s *Store) Create(data string) (string, error) {
	db, err := s.database()
	if err != nil {
		return "", err
	}
	id := uuid.Must(uuid.NewV7()).String()
	db.Set(id, data)
	return id, nil
}

// Get returns the blob of entity id.
func (s *Store) Get(id string) (string, error) {
	db, err := s.database()
	if err != nil {
		return "", err
	}
	data, ok := db.Get(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return data, nil
}

// Put replaces the blob of entity id, creating it if needed.
func (s *Store) Put(id, data string) error {
	db, err := s.database()
	if err != nil {
		return err
	}
	db.Set(id, data)
	return nil
}

// Remove deletes entity id and reports whether it existed.
func (s *Store) Remove(id string) (bool, error) {
	db, err := s.database()
	if err != nil {
		return false, err
	}
	return db.Delete(id), nil
}

// IDs returns every entity id in ascending order.
func (s *Store) IDs() ([]string, error) {
	db, err := s.database()
	if err != nil {
		return nil, err
	}
	return db.Keys(), nil
}

// Save flushes pending changes immediately.
func (s *Store) Save(ctx context.Context) error {
	db, err := s.database()
	if err != nil {
		return err
	}
	return db.Save(ctx, false)
}

func (s *Store) database() (*database.Database[string], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotLoaded, s.name)
	}
	return s.db, nil
}
