package chunk

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// DefaultRatios is the descending ladder of chunk sizes, as fractions of the
// property limit, tried when laying out a payload.
var DefaultRatios = []float64{0.95, 0.90, 0.85, 0.80, 0.75}

// Measure reports the length of a chunk as the property store counts it.
type Measure func(string) int

// Layout is a validated split of a payload.
type Layout struct {
	Size    int      // Chunk size in measured units.
	Attempt int      // Index of Size in Planner.Candidates.
	Chunks  []string // Chunks in order; each measures at most Planner.Limit.
}

// Planner selects the largest candidate chunk size whose chunks all fit the
// property limit. Payloads are split by Measure, so a chunk never measures
// more than its candidate size; the lower rungs of the ladder absorb stores
// that refuse values below their advertised limit.
type Planner struct {
	Limit   int
	Ratios  []float64
	Measure Measure
}

// NewPlanner creates a Planner for limit using DefaultRatios and measure.
func NewPlanner(limit int, measure Measure) Planner {
	return Planner{Limit: limit, Ratios: DefaultRatios, Measure: measure}
}

// Candidates returns the chunk sizes derived from Ratios, largest first,
// deduplicated and never below one. Ratios may be given in any order.
func (p Planner) Candidates() []int {
	ratios := p.Ratios
	if len(ratios) == 0 {
		ratios = DefaultRatios
	}
	ratios = slices.SortedFunc(slices.Values(ratios), func(a, b float64) int {
		return cmp.Compare(b, a)
	})

	sizes := make([]int, 0, len(ratios))
	for _, r := range ratios {
		size := int(math.Floor(float64(p.Limit)*r + 1e-9))
		if size < 1 {
			size = 1
		}
		if n := len(sizes); n > 0 && sizes[n-1] <= size {
			continue
		}
		sizes = append(sizes, size)
	}
	return sizes
}

// Plan lays out payload with the first candidate, starting at index from,
// whose every chunk measures within Limit.
func (p Planner) Plan(payload string, from int) (Layout, error) {
	measure := p.Measure
	if measure == nil {
		measure = func(s string) int { return len([]rune(s)) }
	}

	candidates := p.Candidates()
	for attempt := from; attempt < len(candidates); attempt++ {
		size := candidates[attempt]
		chunks := SplitMeasured(payload, size, measure)
		if p.fits(chunks, measure) {
			return Layout{Size: size, Attempt: attempt, Chunks: chunks}, nil
		}
	}
	return Layout{}, fmt.Errorf("%w: limit %d, %d candidates from %d", ErrOversizeChunk, p.Limit, len(candidates), from)
}

func (p Planner) fits(chunks []string, measure Measure) bool {
	for _, c := range chunks {
		if measure(c) > p.Limit {
			return false
		}
	}
	return true
}
