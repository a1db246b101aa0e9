package property

import (
	"fmt"
	"path/filepath"
)

// Backend names accepted by Config.Backend.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSqlite = "sqlite"
	BackendBolt   = "bolt"
)

// Config holds property store initialization parameters.
type Config struct {
	Backend string `json:"backend,omitempty"` // memory, file, sqlite or bolt.
	Path    string `json:"path,omitempty"`    // Directory for file, database file for sqlite and bolt.
	Limit   int    `json:"limit,omitempty"`   // Maximum value length; zero means DefaultLimit.
}

// DefaultConfig returns an in-memory store with the host limit.
func DefaultConfig() Config {
	return Config{
		Backend: BackendMemory,
		Limit:   DefaultLimit,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Backend != "" {
		c.Backend = source.Backend
	}
	if source.Path != "" {
		c.Path = source.Path
	}
	if source.Limit > 0 {
		c.Limit = source.Limit
	}
}

// NewStore creates a Store from configuration.
func NewStore(cfg *Config) (Store, error) {
	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemoryStore(limit), nil
	case BackendFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("%s backend requires a path", cfg.Backend)
		}
		return NewFileStore(cfg.Path, limit)
	case BackendSqlite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("%s backend requires a path", cfg.Backend)
		}
		return NewSqliteStore(dbPath(cfg.Path, "properties.db"), limit)
	case BackendBolt:
		if cfg.Path == "" {
			return nil, fmt.Errorf("%s backend requires a path", cfg.Backend)
		}
		return NewBoltStore(dbPath(cfg.Path, "properties.bolt"), limit)
	default:
		return nil, fmt.Errorf("%w: %q (supported: memory, file, sqlite, bolt)", ErrUnknownKind, cfg.Backend)
	}
}

// dbPath treats a path without an extension as a directory holding the
// database file.
func dbPath(path, file string) string {
	if filepath.Ext(path) == "" {
		return filepath.Join(path, file)
	}
	return path
}
