package database

import "errors"

// Sentinel errors for store operations.
var (
	// ErrDuplicateName is returned when a name is already registered with
	// the Manager. It indicates a programming error.
	ErrDuplicateName = errors.New("store name already registered")
	// ErrInvalidName is returned for an empty store name.
	ErrInvalidName = errors.New("invalid store name")
	// ErrInvalidDefault is returned when the default payload does not decode
	// into the store's value type.
	ErrInvalidDefault = errors.New("invalid default payload")
	// ErrMissingChunk is reported (never returned) when a chunk key named by
	// the index is absent.
	ErrMissingChunk = errors.New("missing chunk")
	// ErrCorruptPayload is reported when reassembled chunks fail to decode.
	ErrCorruptPayload = errors.New("corrupt payload")
	// ErrReinitialized is returned alongside a usable Database when the
	// persisted payload could not be salvaged and was replaced by the
	// default. The discarded data is gone.
	ErrReinitialized = errors.New("store reinitialized from default")
)
