package llm

import "errors"

var (
	ErrConfig    = errors.New("llm config error")
	ErrRequest   = errors.New("llm request failed")
	ErrRateLimit = errors.New("llm rate limited")
	ErrParse     = errors.New("llm output is not valid JSON")
)
