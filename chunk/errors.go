package chunk

import "errors"

var (
	// ErrOversizeChunk is returned when no candidate chunk size keeps every
	// chunk within the property limit.
	ErrOversizeChunk = errors.New("chunk exceeds property limit at every candidate size")
	// ErrInvalidIndex is returned for an unparseable chunk count.
	ErrInvalidIndex = errors.New("invalid chunk index")
)
