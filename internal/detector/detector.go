// Package detector is a stand-in fraud classifier for local development and
// end-to-end tests. It scores deterministically so demos are repeatable, and
// it can answer in any of the three wire shapes the real service has shipped,
// which is what exercises the client's normalizer.
package detector

import (
	"strings"
)

// Shape selects which historical response shape the detector answers with.
type Shape string

const (
	ShapeLegacy  Shape = "legacy"  // {fraud, score, comment}
	ShapeTiered  Shape = "tiered"  // {action, reply, risk_score, reasons, recommendations}
	ShapeMinimal Shape = "minimal" // {reply, risk_score}
)

// Request is the inbound classification request.
type Request struct {
	UserID      string   `json:"user_id"`
	RequestText string   `json:"request_text" binding:"required"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

// assessment is the internal scoring result before shaping.
type assessment struct {
	fraud   bool
	block   bool
	score   float64
	comment string
	reasons []string
}

// Score thresholds for the demo heuristic.
const (
	warnScore  = 75
	blockScore = 95
)

// classify applies the demo heuristic: identities flagged as suspicious score
// high, urgent-transfer language pushes a request over the block line,
// everything else passes.
func classify(req Request) assessment {
	a := assessment{score: 5, comment: "Request looks routine."}

	if strings.Contains(strings.ToLower(req.UserID), "suspicious") {
		a.fraud = true
		a.score = warnScore
		a.comment = "This account has been flagged for review."
		a.reasons = append(a.reasons, "sender account flagged by prior reports")
	}

	text := strings.ToLower(req.RequestText)
	for _, phrase := range []string{"wire transfer", "gift card", "urgent payment", "reset all"} {
		if strings.Contains(text, phrase) {
			a.fraud = true
			a.block = true
			a.score = blockScore
			a.comment = "This request matches known fraud patterns."
			a.reasons = append(a.reasons, "request contains high-risk phrase: "+phrase)
		}
	}

	if a.fraud && req.Latitude == nil {
		a.reasons = append(a.reasons, "no location data provided")
	}

	return a
}

// respond renders an assessment in the configured wire shape.
func respond(shape Shape, a assessment) map[string]interface{} {
	switch shape {
	case ShapeLegacy:
		return map[string]interface{}{
			"fraud":   a.fraud,
			"score":   a.score,
			"comment": a.comment,
		}
	case ShapeMinimal:
		return map[string]interface{}{
			"reply":      a.comment,
			"risk_score": a.score,
		}
	default: // tiered
		action := "allow"
		if a.block {
			action = "block"
		} else if a.fraud {
			action = "warn"
		}
		resp := map[string]interface{}{
			"action":     action,
			"reply":      a.comment,
			"risk_score": a.score,
			"reasons":    a.reasons,
		}
		if action == "warn" {
			resp["recommendations"] = []string{
				"Verify the account holder through a second channel.",
				"Do not act on payment instructions in this request.",
			}
		}
		return resp
	}
}
