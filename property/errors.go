package property

import (
	"errors"
	"fmt"
)

// Sentinel errors for property store operations.
var (
	ErrOversize    = errors.New("value exceeds property limit")
	ErrLoadFailed  = errors.New("load failed")
	ErrSaveFailed  = errors.New("save failed")
	ErrUnknownKind = errors.New("unknown property backend")
)

func oversize(key string, n, limit int) error {
	return fmt.Errorf("%w: %s: %d > %d", ErrOversize, key, n, limit)
}
