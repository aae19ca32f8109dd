package searcher

const MaxDepth = 12

const MinScoreToExpand = -1e9 // Never prunes

// Heuristics decides when a path stops growing. Both checks are pure.
type Heuristics struct {
	MaxDepth         int
	MinScoreToExpand float64
}

func DefaultHeuristics() Heuristics {
	return Heuristics{MaxDepth: MaxDepth, MinScoreToExpand: MinScoreToExpand}
}

// ShouldStop reports that a state at depth may not be expanded further.
func (h Heuristics) ShouldStop(depth int) bool {
	return depth >= h.MaxDepth
}

// ShouldExpand reports whether a state with this reward may be expanded.
func (h Heuristics) ShouldExpand(reward float64) bool {
	return reward >= h.MinScoreToExpand
}
