package agent

import (
	"encoding/json"
	"fmt"

	"tqa/reasoning"
	"tqa/utils"
)

// CandidateStep is the prompt form of one step.
type CandidateStep struct {
	T           int                  `json:"t"`
	ActionType  string               `json:"action_type"`
	Spec        reasoning.ActionSpec `json:"action_spec"`
	Observation string               `json:"observation_brief"`
	Error       string               `json:"error,omitempty"`
	Score       *float64             `json:"step_score,omitempty"`
}

// Candidate is the prompt form of a path. Decisions refer to it by ID.
type Candidate struct {
	ID          string          `json:"id"`
	TotalScore  float64         `json:"total_score"`
	Terminal    bool            `json:"terminal"`
	FinalAnswer any             `json:"final_answer"`
	Meta        reasoning.Meta  `json:"meta"`
	Steps       []CandidateStep `json:"steps"`
}

func candidateID(i int) string {
	return fmt.Sprintf("path_%d", i)
}

func NewCandidate(p *reasoning.Path, i int) Candidate {
	steps := make([]CandidateStep, len(p.Steps))
	for t, st := range p.Steps {
		brief, err := json.Marshal(st.Observation)
		if err != nil {
			brief = []byte(fmt.Sprint(st.Observation))
		}
		steps[t] = CandidateStep{
			T:           t,
			ActionType:  st.Spec.Type(),
			Spec:        st.Spec,
			Observation: utils.Truncate(string(brief), 600),
			Error:       st.Error,
			Score:       st.Score,
		}
	}
	return Candidate{
		ID:          candidateID(i),
		TotalScore:  p.TotalScore,
		Terminal:    p.Terminal,
		FinalAnswer: p.FinalAnswer,
		Meta:        p.Meta,
		Steps:       steps,
	}
}

func NewCandidates(paths []*reasoning.Path) []Candidate {
	out := make([]Candidate, len(paths))
	for i, p := range paths {
		out[i] = NewCandidate(p, i)
	}
	return out
}

// best returns the index of the highest scoring path, the first on ties.
func best(paths []*reasoning.Path) int {
	idx := 0
	for i, p := range paths {
		if p.TotalScore > paths[idx].TotalScore {
			idx = i
		}
	}
	return idx
}
