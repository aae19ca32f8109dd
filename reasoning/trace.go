package reasoning

import "maps"

// Well-known path metadata keys.
const (
	MetaPruned          = "pruned"
	MetaDeadEnd         = "dead_end"
	MetaDepthLimit      = "depth_limit"
	MetaCritique        = "critique"
	MetaDebateCritiques = "debate_critiques"
)

// ActionSpec is a declarative action invocation: a "type" tag plus fields.
type ActionSpec map[string]any

func (s ActionSpec) Type() string {
	t, _ := s["type"].(string)
	return t
}

// Observation is the structured result of one action execution.
type Observation map[string]any

// FailureObservation describes an action that could not be built or applied.
func FailureObservation(errType, msg string, penalty float64) Observation {
	return Observation{
		"ok":         false,
		"error_type": errType,
		"error":      msg,
		"penalty":    penalty,
	}
}

// OK reports whether the action succeeded. Observations without an "ok"
// field count as successful.
func (o Observation) OK() bool {
	ok, present := o["ok"].(bool)
	return !present || ok
}

func (o Observation) ErrorMessage() string {
	msg, _ := o["error"].(string)
	return msg
}

func (o Observation) Penalty() float64 {
	p, _ := o["penalty"].(float64)
	return p
}

type Step struct {
	Spec        ActionSpec  `json:"action"`
	Observation Observation `json:"observation"`
	Error       string      `json:"error,omitempty"`
	Score       *float64    `json:"score,omitempty"`
}

// Meta is path-level metadata.
type Meta map[string]any

// Merge copies every entry of other into m, overwriting existing keys.
func (m Meta) Merge(other map[string]any) {
	maps.Copy(m, other)
}

func (m Meta) Flag(key string) bool {
	v, _ := m[key].(bool)
	return v
}

type Path struct {
	Steps       []Step  `json:"steps"`
	Terminal    bool    `json:"terminal"`
	FinalAnswer any     `json:"final_answer"`
	TotalScore  float64 `json:"total_score"`
	Meta        Meta    `json:"meta"`
}

func NewPath() *Path {
	return &Path{Meta: Meta{}}
}

// Clone copies the step list and metadata map. Observations and specs are shared.
func (p *Path) Clone() *Path {
	return &Path{
		Steps:       append([]Step(nil), p.Steps...),
		Terminal:    p.Terminal,
		FinalAnswer: p.FinalAnswer,
		TotalScore:  p.TotalScore,
		Meta:        maps.Clone(p.Meta),
	}
}

func (p *Path) Append(step Step) {
	p.Steps = append(p.Steps, step)
}

// LastObservation returns the observation of the most recent step, or nil.
func (p *Path) LastObservation() Observation {
	if len(p.Steps) == 0 {
		return nil
	}
	return p.Steps[len(p.Steps)-1].Observation
}
