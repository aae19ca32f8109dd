package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"
)

var jsonBlock = regexp.MustCompile(`(?s)(\{.*\}|\[.*\])`)

const strictReminder = "\n\nIMPORTANT: Output MUST be STRICT JSON only. No explanations."

var retryBackoff = 600 * time.Millisecond

// ExtractJSON returns the outermost JSON object or array in text.
func ExtractJSON(text string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("%w: empty output", ErrParse)
	}
	block := jsonBlock.FindString(text)
	if block == "" {
		return "", fmt.Errorf("%w: no JSON object or array found", ErrParse)
	}
	return block, nil
}

func ParseJSON(text string) (any, error) {
	block, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal([]byte(block), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return out, nil
}

// ChatJSON asks for a JSON reply. Unparseable replies and failed requests are
// retried up to retries more times with a stricter system prompt and a linear
// backoff.
func ChatJSON(ctx context.Context, c Client, system, user string, retries int, opts ...Option) (any, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: no client configured", ErrConfig)
	}
	prompt := system
	var lastErr error
	for i := 0; i <= retries; i++ {
		raw, err := c.Chat(ctx, prompt, user, opts...)
		if err == nil {
			var out any
			if out, err = ParseJSON(raw); err == nil {
				return out, nil
			}
		}
		if !errors.Is(err, ErrParse) && !errors.Is(err, ErrRequest) && !errors.Is(err, ErrRateLimit) {
			return nil, err
		}
		lastErr = err
		if i == retries {
			break
		}

		prompt = system + strictReminder
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryBackoff * time.Duration(i+1)):
		}
	}
	return nil, fmt.Errorf("%w: failed after %d attempts: %v", ErrParse, retries+1, lastErr)
}

// ChatObject is ChatJSON for replies that must be a JSON object.
func ChatObject(ctx context.Context, c Client, system, user string, retries int, opts ...Option) (map[string]any, error) {
	out, err := ChatJSON(ctx, c, system, user, retries, opts...)
	if err != nil {
		return nil, err
	}
	obj, ok := out.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a JSON object, got %T", ErrParse, out)
	}
	return obj, nil
}
