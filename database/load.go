package database

import (
	"context"
	"fmt"
	"sort"

	"github.com/tailored-agentic-units/propstore/chunk"
	"github.com/tailored-agentic-units/propstore/metrics"
	"github.com/tailored-agentic-units/propstore/observability"
	"github.com/tailored-agentic-units/propstore/repair"
)

// load populates the cache from the backend. A store without an index is
// fresh and is seeded with the default payload. Chunks that fail to decode
// go through the repair strategies; only backend read/write failures and
// reinitialization are returned as errors.
func (d *Database[V]) load(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	raw, ok, err := d.backend.Get(ctx, chunk.IndexKey(d.name))
	if err != nil {
		return fmt.Errorf("load %s: read index: %w", d.name, err)
	}
	if !ok {
		return d.seed(ctx)
	}

	count, err := chunk.ParseIndex(raw)
	if err != nil {
		d.emit(ctx, EventCorrupt, observability.LevelWarning, "database.load", map[string]any{
			"error": err.Error(),
		})
		return d.salvage(ctx, "", 0, nil)
	}

	parts := make([]string, 0, count)
	var missing []int
	for i := 0; i < count; i++ {
		part, ok, err := d.backend.Get(ctx, chunk.Key(d.name, i))
		if err != nil {
			return fmt.Errorf("load %s: read chunk %d: %w", d.name, i, err)
		}
		if !ok {
			missing = append(missing, i)
			metrics.MissingChunksTotal.WithLabelValues(d.name).Inc()
			d.emit(ctx, EventMissingChunk, observability.LevelWarning, "database.load", map[string]any{
				"chunk": i,
				"index": count,
				"error": ErrMissingChunk.Error(),
			})
			continue
		}
		parts = append(parts, part)
	}

	payload := chunk.Join(parts)
	cache, err := d.decode(payload)
	if err != nil {
		d.emit(ctx, EventCorrupt, observability.LevelWarning, "database.load", map[string]any{
			"bytes": len(payload),
			"error": fmt.Sprintf("%v: %v", ErrCorruptPayload, err),
		})
		return d.salvage(ctx, payload, count, missing)
	}

	d.cache = cache
	d.state = Clean
	d.index = count
	d.report = LoadReport{Outcome: OutcomeClean, Chunks: count, Missing: missing, Bytes: len(payload)}
	d.loaded(ctx)
	return nil
}

// seed initializes a store that has never been saved.
func (d *Database[V]) seed(ctx context.Context) error {
	cache, err := d.decode(d.def)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidDefault, d.name, err)
	}
	if err := d.write(ctx, "", d.def); err != nil {
		return fmt.Errorf("load %s: seed: %w", d.name, err)
	}

	d.cache = cache
	d.state = Clean
	d.report = LoadReport{Outcome: OutcomeFresh, Chunks: d.index, Bytes: len(d.def)}
	d.emit(ctx, EventFresh, observability.LevelInfo, "database.load", map[string]any{
		"chunks": d.index,
	})
	d.loaded(ctx)
	return nil
}

// salvage recovers what it can from payload. A repaired cache is marked
// dirty so the next flush rewrites a clean layout; a reinitialized one is
// saved at once.
func (d *Database[V]) salvage(ctx context.Context, payload string, count int, missing []int) error {
	strategies := make([]repair.Strategy, 0, 4)
	strategies = append(strategies, repair.EntryFilter{Keep: d.decodeValue})
	if d.arrayField != "" {
		strategies = append(strategies, repair.ArrayAware{Field: d.arrayField})
	}
	strategies = append(strategies, repair.BraceMatch{}, repair.Reinitialize{Default: d.def})

	accept := func(p string) error {
		_, err := d.decode(p)
		return err
	}
	res, err := repair.Run(payload, accept, strategies...)
	if err != nil {
		// Reinitialize always succeeds and the default was validated at Open.
		return fmt.Errorf("load %s: %w", d.name, err)
	}

	cache, _ := d.decode(res.Payload)
	d.cache = cache
	d.index = count
	d.state = Dirty
	metrics.RepairsTotal.WithLabelValues(d.name, res.Strategy).Inc()

	rejected := make([]string, 0, len(res.Attempts))
	for _, a := range res.Attempts {
		rejected = append(rejected, a.Strategy)
	}

	if !res.Reinitialized() {
		d.report = LoadReport{
			Outcome:  OutcomeRepaired,
			Chunks:   count,
			Missing:  missing,
			Bytes:    len(payload),
			Strategy: res.Strategy,
		}
		data := map[string]any{
			"strategy": res.Strategy,
			"rejected": rejected,
			"bytes":    len(payload),
			"kept":     len(res.Payload),
			"keys":     len(cache),
		}
		if res.Strategy == repair.NameEntryFilter {
			d.report.Dropped = d.dropped(payload)
			data["dropped"] = d.report.Dropped
		}
		d.emit(ctx, EventRepair, observability.LevelWarning, "database.load", data)
		d.loaded(ctx)
		return nil
	}

	d.report = LoadReport{
		Outcome:  OutcomeReinitialized,
		Chunks:   count,
		Missing:  missing,
		Bytes:    len(payload),
		Strategy: res.Strategy,
	}
	d.emit(ctx, EventReinitialize, observability.LevelError, "database.load", map[string]any{
		"rejected":  rejected,
		"discarded": len(payload),
	})
	d.loaded(ctx)

	if err := d.save(ctx, true); err != nil {
		return fmt.Errorf("load %s: persist default: %w", d.name, err)
	}
	return fmt.Errorf("%w: %s: %d bytes discarded", ErrReinitialized, d.name, len(payload))
}

// dropped lists the keys of payload that did not make it into the cache.
func (d *Database[V]) dropped(payload string) []string {
	entries, err := repair.Entries(payload)
	if err != nil {
		return nil
	}
	var keys []string
	for key := range entries {
		if _, ok := d.cache[key]; !ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func (d *Database[V]) loaded(ctx context.Context) {
	metrics.LoadsTotal.WithLabelValues(d.name, string(d.report.Outcome)).Inc()
	d.emit(ctx, EventLoad, observability.LevelVerbose, "database.load", map[string]any{
		"outcome": string(d.report.Outcome),
		"chunks":  d.report.Chunks,
		"bytes":   d.report.Bytes,
		"keys":    len(d.cache),
	})
}
