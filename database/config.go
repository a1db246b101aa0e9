package database

// Config holds the store defaults a Manager hands to every Database it
// opens. Per-store Options override them.
type Config struct {
	Ratios     []float64 `json:"ratios,omitempty"`      // Chunk size ladder as fractions of the backend limit.
	ArrayField string    `json:"array_field,omitempty"` // Top-level array repaired element-wise on corruption.
}

// DefaultConfig returns the standard ladder and no array-aware repair.
func DefaultConfig() Config {
	return Config{}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if len(source.Ratios) > 0 {
		c.Ratios = source.Ratios
	}
	if source.ArrayField != "" {
		c.ArrayField = source.ArrayField
	}
}

// Options converts the configuration into ManagerOptions.
func (c *Config) Options() []ManagerOption {
	var opts []ManagerOption
	if len(c.Ratios) > 0 {
		opts = append(opts, WithDefaultRatios(c.Ratios...))
	}
	if c.ArrayField != "" {
		opts = append(opts, WithDefaultArrayField(c.ArrayField))
	}
	return opts
}
