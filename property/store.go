// Package property provides the flat, size-bounded property store that the
// persistence layer writes through. A property store maps string keys to
// string values whose length may not exceed Limit characters. It offers no
// transactions and no atomicity across keys.
package property

import "context"

// DefaultLimit is the maximum value length accepted by the host property
// store, measured in UTF-16 code units.
const DefaultLimit = 32767

// Store is a flat key/value property store with bounded value length.
// Implementations perform I/O on every call and keep no cache of their own.
type Store interface {
	// Get returns the value stored under key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set stores value under key. Values longer than Limit fail with ErrOversize.
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Missing keys are ignored.
	Delete(ctx context.Context, key string) error
	// List returns the keys starting with prefix in ascending order.
	List(ctx context.Context, prefix string) ([]string, error)
	// Limit is the maximum value length, measured with Length.
	Limit() int
	// Close releases the underlying resources.
	Close() error
}

// Length measures s the way the host property store does: in UTF-16 code
// units. Runes outside the basic multilingual plane count twice.
func Length(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

func checkLength(key, value string, limit int) error {
	if n := Length(value); n > limit {
		return oversize(key, n, limit)
	}
	return nil
}
