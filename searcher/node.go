package searcher

import (
	"math"

	"tqa/reasoning"
	"tqa/utils"
)

// Node is one position in the search tree. Child keys are positions in the
// planner's most recent proposal for this node, not action identities.
type Node struct {
	state     *reasoning.State
	parent    *Node
	children  map[int]*Node
	visits    int
	value     float64     // running mean of backed up rewards
	eval      *Evaluation // evaluation made when the node was created
	collected bool
}

func newNode(parent *Node, state *reasoning.State) *Node {
	return &Node{
		state:    state,
		parent:   parent,
		children: make(map[int]*Node),
	}
}

func (n *Node) State() *reasoning.State { return n.state }
func (n *Node) Parent() *Node           { return n.parent }
func (n *Node) Visits() int             { return n.visits }
func (n *Node) Value() float64          { return n.value }
func (n *Node) NumChildren() int        { return len(n.children) }

func (n *Node) Child(idx int) (*Node, bool) {
	c, ok := n.children[idx]
	return c, ok
}

// Backup records one reward and returns the parent.
func (n *Node) Backup(reward float64) *Node {
	n.visits++
	n.value += (reward - n.value) / float64(n.visits)
	return n.parent
}

// pickChild returns the key of the child with the highest UCB score. Keys are
// scanned in ascending order and the first maximum wins.
func (n *Node) pickChild(c float64) int {
	if len(n.children) == 0 {
		panic("node has no children to select")
	}

	maxKey := -1
	maxScore := math.Inf(-1)
	for _, key := range utils.SortedKeys(n.children) {
		child := n.children[key]
		score := ucb(child.value, child.visits, n.visits, c)
		if math.IsInf(score, 1) {
			return key
		}
		if maxKey == -1 || score > maxScore {
			maxScore = score
			maxKey = key
		}
	}
	return maxKey
}

// untried returns the first proposal position not yet used as a child key,
// or 0 when every position is taken. Selection descends until a node has no
// children, so expansion always happens on a leaf and this returns 0 there:
// only the top-ranked proposal of each expansion is ever executed.
func (n *Node) untried(proposals int) int {
	for i := 0; i < proposals; i++ {
		if _, ok := n.children[i]; !ok {
			return i
		}
	}
	return 0
}
