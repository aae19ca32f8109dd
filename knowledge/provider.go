package knowledge

import "context"

type Item struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

type Result struct {
	Query string `json:"query"`
	Items []Item `json:"items"`
	Note  string `json:"note,omitempty"`
}

// Provider looks up background knowledge for a query or term.
type Provider interface {
	Search(ctx context.Context, query string, topk int) (Result, error)
}
