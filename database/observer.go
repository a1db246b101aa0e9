package database

import "github.com/tailored-agentic-units/propstore/observability"

// Event types emitted by stores and the manager.
const (
	EventLoad          observability.EventType = "database.load"
	EventFresh         observability.EventType = "database.fresh"
	EventMissingChunk  observability.EventType = "database.chunk.missing"
	EventCorrupt       observability.EventType = "database.corrupt"
	EventRepair        observability.EventType = "database.repair"
	EventReinitialize  observability.EventType = "database.reinitialize"
	EventSave          observability.EventType = "database.save"
	EventSaveFallback  observability.EventType = "database.save.fallback"
	EventSaveFailed    observability.EventType = "database.save.failed"
	EventPruneFailed   observability.EventType = "database.prune.failed"
	EventFlush         observability.EventType = "manager.flush"
	EventFlushFailed   observability.EventType = "manager.flush.failed"
	EventAutosaveStart observability.EventType = "manager.autosave.start"
	EventAutosaveStop  observability.EventType = "manager.autosave.stop"
)
