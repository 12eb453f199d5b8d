// Package verdict defines the canonical result of a fraud-classification call
// and the normalizer that maps the detector service's historical response
// shapes onto it.
//
// The detector has shipped three wire shapes over its lifetime: a legacy
// boolean-fraud shape, a tiered shape with an explicit action, and a minimal
// reply-only shape. All three collapse into the single Verdict below; callers
// never see which shape the service answered with.
package verdict

import "strings"

// Action is the discrete severity tier driving presentation.
type Action string

const (
	ActionAllow   Action = "allow"
	ActionWarn    Action = "warn"
	ActionBlock   Action = "block"
	ActionUnknown Action = "unknown"
)

// ParseAction maps a wire action string to a tier. Unrecognized strings
// degrade to ActionUnknown rather than failing.
func ParseAction(s string) Action {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionAllow:
		return ActionAllow
	case ActionWarn:
		return ActionWarn
	case ActionBlock:
		return ActionBlock
	default:
		return ActionUnknown
	}
}

// Verdict is the canonical, normalized result of one classification call.
//
// Exactly one of TransportError and Action is set: a verdict either carries
// the service's classification or records that the call itself failed.
type Verdict struct {
	Action          Action   `json:"action,omitempty"`
	IsFraud         bool     `json:"isFraud"`
	Score           float64  `json:"score"`
	Message         string   `json:"message,omitempty"`
	Reasons         []string `json:"reasons"`
	Recommendations []string `json:"recommendations,omitempty"`
	TransportError  string   `json:"transportError,omitempty"`
}

// Failed reports whether this verdict records a transport failure rather
// than a classification.
func (v Verdict) Failed() bool {
	return v.TransportError != ""
}

// Outcome returns the metrics label for this verdict.
func (v Verdict) Outcome() string {
	if v.Failed() {
		return "transport_error"
	}
	return string(v.Action)
}

// TransportVerdict builds the synthetic verdict used when the detector call
// fails. It carries only the operator-safe message.
func TransportVerdict(msg string) Verdict {
	return Verdict{TransportError: msg, Reasons: []string{}}
}
