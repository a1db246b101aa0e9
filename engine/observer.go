package engine

import "github.com/tailored-agentic-units/propstore/observability"

// Engine event types.
const (
	EventStart observability.EventType = "engine.start"
	EventClose observability.EventType = "engine.close"
)
