package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tailored-agentic-units/propstore/chunk"
	"github.com/tailored-agentic-units/propstore/property"
)

// ChunkInfo describes one chunk slot named by an index.
type ChunkInfo struct {
	Key     string
	Length  int // Measured length; zero when absent.
	Present bool
}

// Inspection is a read-only view of a persisted store.
type Inspection struct {
	Name     string
	Indexed  bool   // The index key exists.
	Index    int    // Parsed chunk count.
	RawIndex string // Index value as stored.
	IndexErr error  // Set when RawIndex does not parse.
	Chunks   []ChunkInfo
	Stale    []string // Chunk keys at or beyond Index.
	Payload  string   // Concatenation of the present chunks.
	Err      error    // Why Payload does not decode as an object, if it doesn't.
}

// Healthy reports whether a load would succeed without repair.
func (in *Inspection) Healthy() bool {
	if !in.Indexed {
		return true
	}
	if in.IndexErr != nil || in.Err != nil {
		return false
	}
	for _, c := range in.Chunks {
		if !c.Present {
			return false
		}
	}
	return true
}

// Missing returns the keys of absent chunks.
func (in *Inspection) Missing() []string {
	var keys []string
	for _, c := range in.Chunks {
		if !c.Present {
			keys = append(keys, c.Key)
		}
	}
	return keys
}

// Inspect reads the persisted layout of store name without loading,
// repairing or writing anything.
func Inspect(ctx context.Context, backend property.Store, name string) (*Inspection, error) {
	in := &Inspection{Name: name}

	raw, ok, err := backend.Get(ctx, chunk.IndexKey(name))
	if err != nil {
		return nil, fmt.Errorf("inspect %s: read index: %w", name, err)
	}
	if !ok {
		return in, nil
	}
	in.Indexed = true
	in.RawIndex = raw

	if in.Index, in.IndexErr = chunk.ParseIndex(raw); in.IndexErr != nil {
		in.Index = 0
	}

	parts := make([]string, 0, in.Index)
	for i := 0; i < in.Index; i++ {
		key := chunk.Key(name, i)
		part, ok, err := backend.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("inspect %s: read chunk %d: %w", name, i, err)
		}
		in.Chunks = append(in.Chunks, ChunkInfo{Key: key, Length: property.Length(part), Present: ok})
		if ok {
			parts = append(parts, part)
		}
	}
	in.Payload = chunk.Join(parts)

	if in.IndexErr == nil {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(in.Payload), &obj); err != nil {
			in.Err = fmt.Errorf("%w: %v", ErrCorruptPayload, err)
		}
	}

	keys, err := backend.List(ctx, name+":")
	if err != nil {
		return nil, fmt.Errorf("inspect %s: list chunks: %w", name, err)
	}
	for _, key := range keys {
		n, err := strconv.Atoi(strings.TrimPrefix(key, name+":"))
		if err == nil && n >= in.Index {
			in.Stale = append(in.Stale, key)
		}
	}
	return in, nil
}

// Stores lists the names of every store with an index key in backend.
func Stores(ctx context.Context, backend property.Store) ([]string, error) {
	keys, err := backend.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}

	var names []string
	for _, key := range keys {
		if name, ok := strings.CutSuffix(key, "Index"); ok && name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
