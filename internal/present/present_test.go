package present

import (
	"testing"

	"github.com/securehome/intake/internal/verdict"
	"github.com/stretchr/testify/assert"
)

func TestRender_TreatmentPerAction(t *testing.T) {
	tests := []struct {
		name string
		in   verdict.Verdict
		want Treatment
	}{
		{"allow", verdict.Verdict{Action: verdict.ActionAllow, Score: 5, Message: "ok"}, TreatmentSuccess},
		{"warn", verdict.Verdict{Action: verdict.ActionWarn, IsFraud: true, Score: 60}, TreatmentWarning},
		{"block", verdict.Verdict{Action: verdict.ActionBlock, IsFraud: true, Score: 97}, TreatmentBlocked},
		{"unknown", verdict.Verdict{Action: verdict.ActionUnknown, Score: 42}, TreatmentNeutral},
		{"transport failure", verdict.TransportVerdict("Sorry, something went wrong. Please try again."), TreatmentError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := Render(tt.in)
			assert.Equal(t, tt.want, view.Treatment)
			assert.NotEmpty(t, view.Title)
		})
	}
}

func TestRender_TransportErrorCarriesMessageOnly(t *testing.T) {
	view := Render(verdict.TransportVerdict("Sorry, something went wrong. Please try again."))

	assert.Equal(t, TreatmentError, view.Treatment)
	assert.Equal(t, "Sorry, something went wrong. Please try again.", view.Message)
	assert.Empty(t, view.ScoreLabel)
	assert.Empty(t, view.Reasons)
	assert.Empty(t, view.Recommendations)
}

func TestRender_WarnIncludesRecommendations(t *testing.T) {
	view := Render(verdict.Verdict{
		Action:          verdict.ActionWarn,
		IsFraud:         true,
		Score:           60,
		Message:         "Needs review",
		Reasons:         []string{"new account"},
		Recommendations: []string{"verify identity"},
	})

	assert.Equal(t, TreatmentWarning, view.Treatment)
	assert.Equal(t, []string{"new account"}, view.Reasons)
	assert.Equal(t, []string{"verify identity"}, view.Recommendations)
	assert.Equal(t, "Risk score: 60", view.ScoreLabel)
}

func TestRender_NonWarnOmitsRecommendations(t *testing.T) {
	for _, action := range []verdict.Action{verdict.ActionAllow, verdict.ActionBlock, verdict.ActionUnknown} {
		view := Render(verdict.Verdict{Action: action, Recommendations: []string{"stray"}})
		assert.Empty(t, view.Recommendations, "action %s", action)
	}
}

func TestRender_ScoreLabelFormatting(t *testing.T) {
	assert.Equal(t, "Risk score: 5", Render(verdict.Verdict{Action: verdict.ActionAllow, Score: 5}).ScoreLabel)
	assert.Equal(t, "Risk score: 12.5", Render(verdict.Verdict{Action: verdict.ActionAllow, Score: 12.5}).ScoreLabel)
}
