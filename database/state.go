package database

// State is the persistence state of a store's cache.
//
//	Clean --Set/Delete/Clear--> Dirty --Save--> Clean
//
// A forced save moves either state to Clean.
type State int

const (
	Clean State = iota
	Dirty
)

func (s State) String() string {
	switch s {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	default:
		return "unknown"
	}
}

// Outcome describes how a store reached its state at load time.
type Outcome string

const (
	OutcomeFresh         Outcome = "fresh"
	OutcomeClean         Outcome = "clean"
	OutcomeRepaired      Outcome = "repaired"
	OutcomeReinitialized Outcome = "reinitialized"
)

// LoadReport summarizes the initial load of a store.
type LoadReport struct {
	Outcome  Outcome
	Chunks   int      // Chunk count named by the index.
	Missing  []int    // Chunk numbers that were absent.
	Bytes    int      // Length of the reassembled payload.
	Strategy string   // Repair strategy applied, if any.
	Dropped  []string // Keys discarded because their values did not decode.
}
