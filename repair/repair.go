// Package repair salvages serialized payloads that fail to parse. Each
// Strategy inspects the raw text and proposes a shorter payload that parses;
// Run tries strategies in a fixed priority order and returns the first
// proposal the caller accepts.
package repair

import (
	"errors"
	"fmt"
)

// Strategy names reported in Result.Strategy.
const (
	NameEntryFilter  = "entry-filter"
	NameArrayAware   = "array-aware"
	NameBraceMatch   = "brace-match"
	NameReinitialize = "reinitialize"
)

// ErrUnrecoverable is returned when a strategy (or every strategy passed to
// Run) cannot produce an acceptable payload.
var ErrUnrecoverable = errors.New("payload unrecoverable")

// Strategy proposes a repaired payload for raw.
type Strategy interface {
	Name() string
	Repair(raw string) (string, error)
}

// Attempt records why a strategy was passed over.
type Attempt struct {
	Strategy string
	Err      error
}

// Result is the payload produced by the first accepted strategy.
type Result struct {
	Strategy string
	Payload  string
	Attempts []Attempt // Strategies tried and rejected before Strategy.
}

// Reinitialized reports whether the repair discarded the original payload.
func (r Result) Reinitialized() bool {
	return r.Strategy == NameReinitialize
}

// Run applies strategies in order. accept, when non-nil, validates each
// proposal (for example by decoding it into the caller's type); a rejected
// proposal moves on to the next strategy.
func Run(raw string, accept func(payload string) error, strategies ...Strategy) (Result, error) {
	var attempts []Attempt

	for _, s := range strategies {
		payload, err := s.Repair(raw)
		if err == nil && accept != nil {
			if aerr := accept(payload); aerr != nil {
				err = fmt.Errorf("%w: rejected: %v", ErrUnrecoverable, aerr)
			}
		}
		if err != nil {
			attempts = append(attempts, Attempt{Strategy: s.Name(), Err: err})
			continue
		}
		return Result{Strategy: s.Name(), Payload: payload, Attempts: attempts}, nil
	}

	return Result{Attempts: attempts}, fmt.Errorf("%w: %d strategies failed", ErrUnrecoverable, len(attempts))
}

// Reinitialize replaces the payload with Default. It never fails.
type Reinitialize struct {
	Default string
}

func (Reinitialize) Name() string { return NameReinitialize }

func (r Reinitialize) Repair(string) (string, error) {
	return r.Default, nil
}
