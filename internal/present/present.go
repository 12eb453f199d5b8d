// Package present maps verdicts onto the visual treatments the page chrome
// renders. This is the only place action tiers are consumed for anything
// other than storage.
package present

import (
	"fmt"

	"github.com/securehome/intake/internal/verdict"
)

// Treatment is one of the mutually exclusive visual states.
type Treatment string

const (
	TreatmentSuccess Treatment = "success"
	TreatmentWarning Treatment = "warning"
	TreatmentBlocked Treatment = "blocked"
	TreatmentNeutral Treatment = "neutral"
	TreatmentError   Treatment = "error"
)

// View is the renderable content for one verdict.
type View struct {
	Treatment       Treatment `json:"treatment"`
	Title           string    `json:"title"`
	Message         string    `json:"message,omitempty"`
	ScoreLabel      string    `json:"scoreLabel,omitempty"`
	Reasons         []string  `json:"reasons,omitempty"`
	Recommendations []string  `json:"recommendations,omitempty"`
}

// Render selects the treatment for a verdict. Declarative and side-effect
// free; every verdict, including transport failures and unclassified
// actions, maps to something renderable.
func Render(v verdict.Verdict) View {
	if v.Failed() {
		return View{
			Treatment: TreatmentError,
			Title:     "Something went wrong",
			Message:   v.TransportError,
		}
	}

	view := View{
		Message:    v.Message,
		ScoreLabel: fmt.Sprintf("Risk score: %g", v.Score),
		Reasons:    v.Reasons,
	}

	switch v.Action {
	case verdict.ActionAllow:
		view.Treatment = TreatmentSuccess
		view.Title = "Your request has been submitted successfully and is considered safe."
	case verdict.ActionWarn:
		view.Treatment = TreatmentWarning
		view.Title = "Your request needs a closer look."
		view.Recommendations = v.Recommendations
	case verdict.ActionBlock:
		view.Treatment = TreatmentBlocked
		view.Title = "Your request was declined."
	default:
		view.Treatment = TreatmentNeutral
		view.Title = "Your request has been received."
	}

	return view
}
