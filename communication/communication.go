// Package communication holds what the HTTP and MCP surfaces of an engine
// share.
package communication

import (
	"context"
	"errors"
	"net/http"

	"tqa/engine"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// Summary is the short form of a result returned by tools.
type Summary struct {
	RunID      string  `json:"run_id"`
	Answer     any     `json:"answer"`
	Correct    *bool   `json:"correct,omitempty"`
	Chosen     int     `json:"chosen"`
	Score      float64 `json:"score"`
	Candidates int     `json:"candidates"`
	ElapsedMS  int64   `json:"elapsed_ms"`
}

func Summarize(res *engine.Result) Summary {
	s := Summary{
		RunID:      res.RunID,
		Answer:     res.Answer,
		Correct:    res.Correct,
		Chosen:     res.Chosen,
		Candidates: len(res.Candidates),
		ElapsedMS:  res.Elapsed.Milliseconds(),
	}
	if res.Chosen >= 0 && res.Chosen < len(res.Candidates) {
		s.Score = res.Candidates[res.Chosen].TotalScore
	}
	return s
}

// StatusFor maps engine errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrNoStore):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}
