package verdict

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// rawResponse absorbs every field any of the three historical detector
// shapes has carried. Pointer fields distinguish "absent" from zero values,
// which is what shape detection keys on.
type rawResponse struct {
	// Legacy shape
	Fraud   *flexBool `json:"fraud"`
	Score   *float64  `json:"score"`
	Comment *string   `json:"comment"`

	// Tiered shape
	Action          *string  `json:"action"`
	Reply           *string  `json:"reply"`
	RiskScore       *float64 `json:"risk_score"`
	Reasons         []string `json:"reasons"`
	Recommendations []string `json:"recommendations"`
}

// flexBool accepts JSON true/false as well as 0/1. Early detector builds
// serialized the fraud flag as an integer.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true", "1":
		*b = true
	case "false", "0", "null":
		*b = false
	default:
		return fmt.Errorf("invalid boolean value %q", data)
	}
	return nil
}

// Normalize maps a raw 2xx detector response body onto the canonical Verdict.
//
// It is total over syntactically valid JSON objects: missing or unrecognized
// fields degrade to ActionUnknown instead of failing. The only error case is
// a body that cannot be parsed as JSON at all.
//
// Shape precedence when fields overlap: an explicit action wins over a fraud
// flag, which wins over the minimal reply-only fallback.
func Normalize(body []byte) (Verdict, error) {
	var raw rawResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return Verdict{}, fmt.Errorf("unparsable detector response: %w", err)
	}

	v := Verdict{
		Score:   pickScore(raw),
		Message: pickMessage(raw),
		Reasons: copyList(raw.Reasons),
	}

	switch {
	case raw.Action != nil:
		v.Action = ParseAction(*raw.Action)
	case raw.Fraud != nil:
		// The legacy shape cannot distinguish severity, so a positive fraud
		// flag maps to warn, never straight to block.
		if bool(*raw.Fraud) {
			v.Action = ActionWarn
		} else {
			v.Action = ActionAllow
		}
	default:
		// No classification attempted. Fail open: unknown, not fraud.
		v.Action = ActionUnknown
	}

	v.IsFraud = v.Action == ActionWarn || v.Action == ActionBlock

	// Recommendations accompany warn verdicts only; they are passed through,
	// never fabricated.
	if v.Action == ActionWarn && len(raw.Recommendations) > 0 {
		v.Recommendations = copyList(raw.Recommendations)
	}

	return v, nil
}

func pickScore(raw rawResponse) float64 {
	if raw.RiskScore != nil {
		return *raw.RiskScore
	}
	if raw.Score != nil {
		return *raw.Score
	}
	return 0
}

func pickMessage(raw rawResponse) string {
	if raw.Reply != nil {
		return *raw.Reply
	}
	if raw.Comment != nil {
		return *raw.Comment
	}
	return ""
}

// copyList returns a non-nil copy so repeated normalization of the same body
// yields structurally equal verdicts and callers cannot alias the input.
func copyList(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
