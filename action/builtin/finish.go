package builtin

import (
	"context"

	"tqa/action"
	"tqa/reasoning"
)

// Finish ends a path with an answer taken from memory or given literally.
type Finish struct {
	AnswerFrom string `json:"answer_from"`
	Literal    any    `json:"literal"`
}

func (a *Finish) Type() string { return TypeFinish }

func (a *Finish) Validate() error {
	if a.AnswerFrom == reasoning.GoldAnswerKey {
		return action.Invalid("answer_from may not read %q", reasoning.GoldAnswerKey)
	}
	return nil
}

func (a *Finish) Apply(_ context.Context, s *reasoning.State) (*reasoning.State, reasoning.Observation, error) {
	answer := a.Literal
	if a.AnswerFrom != "" {
		v, ok := s.Memory[a.AnswerFrom]
		if !ok {
			return nil, nil, action.Failed("answer_from variable %q not found in memory", a.AnswerFrom)
		}
		answer = v
	}

	s.Answer = answer
	s.Done = true
	s.Path.Terminal = true
	s.Path.FinalAnswer = answer

	return s, reasoning.Observation{
		"answer":       answer,
		"answer_from":  a.AnswerFrom,
		"literal_used": a.AnswerFrom == "",
	}, nil
}
