package reasoning

import (
	"maps"
	"slices"

	"tqa/table"
)

// GoldAnswerKey is the memory key holding the expected answer while grading.
// Actions and prompts never read it.
const GoldAnswerKey = "gold_answer"

// Memory is the scratch space shared between steps of one path. Values must be
// replaced, not mutated in place: forks share nested values.
type Memory map[string]any

// State is one point of a reasoning path. Once a State is stored in the search
// tree it is never mutated; transitions Fork first.
type State struct {
	Table    *table.View
	View     *table.View
	Question string
	Memory   Memory
	Path     *Path
	Done     bool
	Answer   any
	Depth    int
}

func NewState(question string, t *table.View) *State {
	return &State{
		Table:    t,
		View:     t,
		Question: question,
		Memory:   Memory{},
		Path:     NewPath(),
	}
}

// Fork returns an independent copy. Table views are shared, memory and the
// path's steps and meta are copied one level deep.
func (s *State) Fork() *State {
	mem := maps.Clone(s.Memory)
	if mem == nil {
		mem = Memory{}
	}
	path := s.Path.Clone()
	if path.Meta == nil {
		path.Meta = Meta{}
	}
	return &State{
		Table:    s.Table,
		View:     s.View,
		Question: s.Question,
		Memory:   mem,
		Path:     path,
		Done:     s.Done,
		Answer:   s.Answer,
		Depth:    s.Depth,
	}
}

func (m Memory) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// VisibleKeys returns the sorted keys actions and prompts may see.
func (m Memory) VisibleKeys() []string {
	return slices.DeleteFunc(slices.Sorted(maps.Keys(m)), func(k string) bool { return k == GoldAnswerKey })
}
