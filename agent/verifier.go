package agent

import (
	"fmt"
	"strconv"
	"strings"
)

var numericCues = []string{"how many", "total", "sum", "average", "amount", "cost", "number"}

// Verdict is the outcome of the deterministic answer checks.
type Verdict struct {
	Numeric     bool `json:"numeric"`
	WantsNumber bool `json:"wants_number"`
}

// Verify checks whether the question asks for a number and whether answer is
// one.
func Verify(question string, answer any) Verdict {
	return Verdict{Numeric: isNumeric(answer), WantsNumber: wantsNumber(question)}
}

func wantsNumber(question string) bool {
	q := strings.ToLower(question)
	for _, cue := range numericCues {
		if strings.Contains(q, cue) {
			return true
		}
	}
	return false
}

func isNumeric(answer any) bool {
	if answer == nil {
		return false
	}
	s := strings.ReplaceAll(strings.TrimSpace(answerString(answer)), ",", "")
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// MatchesGold compares an answer with a gold answer as trimmed strings.
func MatchesGold(answer, gold any) bool {
	if answer == nil || gold == nil {
		return false
	}
	return strings.TrimSpace(answerString(answer)) == strings.TrimSpace(answerString(gold))
}

// answerString formats an answer the way it is compared with gold answers.
func answerString(answer any) string {
	switch a := answer.(type) {
	case float64:
		return strconv.FormatFloat(a, 'f', -1, 64)
	case string:
		return a
	default:
		return fmt.Sprint(a)
	}
}
