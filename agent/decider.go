package agent

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"tqa/llm"
	"tqa/meta"
	"tqa/prompt"
	"tqa/reasoning"
	"tqa/utils"
)

// Decider selects one of several candidate paths: the LLM debates them, then
// picks one by ID. Without a client, or when the pick gives a non-numeric
// answer to a numeric question, the highest scoring path wins.
type Decider struct {
	client      llm.Client
	prompts     *prompt.Library
	retries     int
	useVerifier bool
}

func NewDecider(client llm.Client, prompts *prompt.Library, useVerifier bool) *Decider {
	if prompts == nil {
		prompts = prompt.Default()
	}
	return &Decider{client: client, prompts: prompts, retries: meta.LLM_RETRIES, useVerifier: useVerifier}
}

func (d *Decider) Decide(ctx context.Context, question string, paths []*reasoning.Path) (int, error) {
	if len(paths) <= 1 {
		return 0, nil
	}
	if d.client == nil {
		return best(paths), nil
	}

	idx, err := d.ask(ctx, question, paths)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		log.Warn().Err(err).Msg("LLM decision failed, selecting the highest scoring path")
		return best(paths), nil
	}

	if d.useVerifier {
		if v := Verify(question, paths[idx].FinalAnswer); v.WantsNumber && !v.Numeric {
			log.Debug().Int("selected", idx).Msg("selected answer is not numeric, selecting the highest scoring path")
			return best(paths), nil
		}
	}
	return idx, nil
}

func (d *Decider) ask(ctx context.Context, question string, paths []*reasoning.Path) (int, error) {
	candidates := NewCandidates(paths)
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	vars := map[string]any{"Question": question, "Candidates": candidates, "IDs": ids}

	system, user, err := d.prompts.Render(prompt.Debate, vars)
	if err != nil {
		return 0, err
	}
	debate, err := llm.ChatJSON(ctx, d.client, system, user, d.retries, llm.WithTemperature(0.2), llm.WithMaxTokens(1200))
	if err != nil {
		return 0, err
	}

	vars["Debate"] = debate
	if system, user, err = d.prompts.Render(prompt.Decide, vars); err != nil {
		return 0, err
	}
	out, err := llm.ChatObject(ctx, d.client, system, user, d.retries, llm.WithTemperature(0.2), llm.WithMaxTokens(1200))
	if err != nil {
		return 0, err
	}

	selected, _ := out["selected_id"].(string)
	if i := utils.FindIndex(ids, strings.TrimSpace(selected)); i >= 0 {
		return i, nil
	}
	log.Debug().Str("selected_id", selected).Msg("unknown candidate id, selecting the highest scoring path")
	return best(paths), nil
}
