package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/propstore/chunk"
	"github.com/tailored-agentic-units/propstore/metrics"
	"github.com/tailored-agentic-units/propstore/observability"
	"github.com/tailored-agentic-units/propstore/property"
)

// Save persists the cache when it is dirty, or unconditionally when force
// is set.
//
// Chunks are written first and the index last; the index write is the
// commit point. When the backend rejects a chunk as oversize the layout is
// redone with the next smaller chunk size. If every size fails, Save
// returns an error wrapping chunk.ErrOversizeChunk, the index is left as it
// was and the store stays dirty.
func (d *Database[V]) Save(ctx context.Context, force bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.save(ctx, force)
}

func (d *Database[V]) save(ctx context.Context, force bool) error {
	if d.state == Clean && !force {
		return nil
	}

	start := time.Now()
	saveID := uuid.Must(uuid.NewV7()).String()

	payload, err := d.encode()
	if err == nil {
		err = d.write(ctx, saveID, payload)
	}
	if err != nil {
		metrics.SaveFailuresTotal.WithLabelValues(d.name).Inc()
		d.emit(ctx, EventSaveFailed, observability.LevelError, "database.Save", map[string]any{
			"save_id": saveID,
			"error":   err.Error(),
		})
		return err
	}

	d.state = Clean

	elapsed := time.Since(start)
	metrics.SavesTotal.WithLabelValues(d.name).Inc()
	metrics.SavedBytesTotal.WithLabelValues(d.name).Add(float64(len(payload)))
	metrics.SaveDurationSeconds.WithLabelValues(d.name).Observe(elapsed.Seconds())
	metrics.Chunks.WithLabelValues(d.name).Set(float64(d.index))

	d.emit(ctx, EventSave, observability.LevelVerbose, "database.Save", map[string]any{
		"save_id":  saveID,
		"bytes":    len(payload),
		"chunks":   d.index,
		"forced":   force,
		"duration": elapsed.String(),
	})
	return nil
}

// write lays out payload and commits it, walking down the chunk size
// ladder whenever the backend refuses a chunk as oversize.
func (d *Database[V]) write(ctx context.Context, saveID, payload string) error {
	from := 0
	for {
		layout, err := d.planner.Plan(payload, from)
		if err != nil {
			return fmt.Errorf("save %s: %w", d.name, err)
		}

		err = d.writeChunks(ctx, layout.Chunks)
		if errors.Is(err, property.ErrOversize) {
			metrics.SaveFallbacksTotal.WithLabelValues(d.name).Inc()
			d.emit(ctx, EventSaveFallback, observability.LevelWarning, "database.Save", map[string]any{
				"save_id":    saveID,
				"chunk_size": layout.Size,
				"error":      err.Error(),
			})
			from = layout.Attempt + 1
			continue
		}
		if err != nil {
			return fmt.Errorf("save %s: %w", d.name, err)
		}

		count := len(layout.Chunks)
		if err := d.backend.Set(ctx, chunk.IndexKey(d.name), chunk.FormatIndex(count)); err != nil {
			return fmt.Errorf("save %s: commit index: %w", d.name, err)
		}

		d.prune(ctx, count)
		d.index = count
		return nil
	}
}

func (d *Database[V]) writeChunks(ctx context.Context, chunks []string) error {
	for i, c := range chunks {
		if err := d.backend.Set(ctx, chunk.Key(d.name, i), c); err != nil {
			return err
		}
	}
	return nil
}

// prune removes chunks left beyond the new count by a larger earlier
// layout. They are unreachable once the index is committed, so failures
// are only reported.
func (d *Database[V]) prune(ctx context.Context, count int) {
	for i := count; i < d.index; i++ {
		if err := d.backend.Delete(ctx, chunk.Key(d.name, i)); err != nil {
			d.emit(ctx, EventPruneFailed, observability.LevelWarning, "database.Save", map[string]any{
				"chunk": i,
				"error": err.Error(),
			})
		}
	}
}
