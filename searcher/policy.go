package searcher

import "math"

// Hyperparameters for MCTS

const Exploration = 1.4 // UCB exploration constant c

const Iterations = 64 // Default iteration budget

const Candidates = 8 // Default candidate quota

// ucb scores a child for selection: q + c*sqrt(ln(max(1, N+1))/n).
// Unvisited children score +Inf so they are tried first.
func ucb(q float64, n, parentN int, c float64) float64 {
	if n == 0 {
		return math.Inf(1)
	}
	lnN := math.Log(math.Max(1, float64(parentN+1)))
	return q + c*math.Sqrt(lnN/float64(n))
}
