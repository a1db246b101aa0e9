// Package metrics declares the Prometheus collectors of the persistence
// layer. Collectors are package-level so every Database in the process
// reports into the same series, labelled by store name.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Key constants are exported primarily for documentation reasons. Typically,
// they will not be used programmatically outside of defining the collectors.
const (
	SavesTotalKey          = "propstore_saves_total"
	SaveFailuresTotalKey   = "propstore_save_failures_total"
	SaveFallbacksTotalKey  = "propstore_save_fallbacks_total"
	SavedBytesTotalKey     = "propstore_saved_bytes_total"
	SaveDurationSecondsKey = "propstore_save_duration_seconds"
	ChunksKey              = "propstore_chunks"
	LoadsTotalKey          = "propstore_loads_total"
	MissingChunksTotalKey  = "propstore_missing_chunks_total"
	RepairsTotalKey        = "propstore_repairs_total"
	AutosaveFlushesKey     = "propstore_autosave_flushes_total"
)

// Collectors for store saves.
var (
	SavesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: SavesTotalKey,
		Help: "Cumulative number of committed saves.",
	}, []string{"store"})
	SaveFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: SaveFailuresTotalKey,
		Help: "Cumulative number of saves that returned an error without committing.",
	}, []string{"store"})
	SaveFallbacksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: SaveFallbacksTotalKey,
		Help: "Cumulative number of chunk sizes abandoned because a chunk was rejected as oversize.",
	}, []string{"store"})
	SavedBytesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: SavedBytesTotalKey,
		Help: "Cumulative number of serialized payload bytes committed.",
	}, []string{"store"})
	SaveDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: SaveDurationSecondsKey,
		Help: "Duration of committed saves.",
	}, []string{"store"})
	Chunks = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: ChunksKey,
		Help: "Chunk count of the last committed layout.",
	}, []string{"store"})
)

// Collectors for store loads and repairs.
var (
	LoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: LoadsTotalKey,
		Help: "Cumulative number of loads by outcome (fresh, clean, repaired, reinitialized).",
	}, []string{"store", "outcome"})
	MissingChunksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: MissingChunksTotalKey,
		Help: "Cumulative number of chunk keys found absent during load.",
	}, []string{"store"})
	RepairsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: RepairsTotalKey,
		Help: "Cumulative number of corrupt payloads handled, by strategy.",
	}, []string{"store", "strategy"})
	AutosaveFlushes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: AutosaveFlushesKey,
		Help: "Cumulative number of autosave passes over all registered stores.",
	})
)

// Collectors returns every collector of the package, for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		SavesTotal,
		SaveFailuresTotal,
		SaveFallbacksTotal,
		SavedBytesTotal,
		SaveDurationSeconds,
		Chunks,
		LoadsTotal,
		MissingChunksTotal,
		RepairsTotal,
		AutosaveFlushes,
	}
}
