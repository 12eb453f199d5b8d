// Package intake holds the per-session state of the support-request flow:
// the identity and draft being edited, the optional captured location, and
// the verdicts that came back.
//
// A session runs in one of two modes, fixed at deployment time: latest-result
// mode keeps only the most recent verdict, history mode appends every
// submission/verdict pair to an ever-growing exchange log.
package intake

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/securehome/intake/internal/geo"
	"github.com/securehome/intake/internal/transport"
	"github.com/securehome/intake/internal/verdict"
)

// Mode selects how settled verdicts are retained.
type Mode string

const (
	ModeLatest  Mode = "latest"
	ModeHistory Mode = "history"
)

// Role identifies who produced an exchange entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Exchange is one logged turn in history mode. User entries carry the
// submitted text; assistant entries carry the verdict.
type Exchange struct {
	Role    Role             `json:"role"`
	Text    string           `json:"text"`
	Verdict *verdict.Verdict `json:"verdict,omitempty"`
}

// Status is the submission lifecycle state exposed to the presentation layer.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusPending Status = "pending"
	StatusSettled Status = "settled"
)

// Snapshot is the read-only view-model handed to the page chrome. The chrome
// renders it and forwards user intents back; it never mutates session state.
type Snapshot struct {
	Status       Status           `json:"status"`
	Identity     string           `json:"identity"`
	Draft        string           `json:"draft"`
	CanSubmit    bool             `json:"canSubmit"`
	Verdict      *verdict.Verdict `json:"verdict,omitempty"`
	History      []Exchange       `json:"history,omitempty"`
	LocationNote string           `json:"locationNote,omitempty"`
}

// Sentinel errors for submissions rejected before any I/O.
var (
	// ErrInputInvalid means the identity or draft failed validation. No
	// verdict is produced; the submission simply does not proceed.
	ErrInputInvalid = errors.New("intake: identity or request text invalid")

	// ErrSubmissionPending means a submission is already in flight. The new
	// one is rejected without a detector call.
	ErrSubmissionPending = errors.New("intake: submission already pending")
)

// Checker is the transport client seam. It always returns a renderable
// verdict; the error is operator context only.
type Checker interface {
	Check(ctx context.Context, sub transport.Submission) (verdict.Verdict, error)
}

// validIdentity reports whether the identity is syntactically email-like.
func validIdentity(identity string) bool {
	if identity == "" {
		return false
	}
	_, err := mail.ParseAddress(identity)
	return err == nil
}

// buildSubmission assembles the payload from trimmed inputs plus the
// location, if one was present at call time. Pure: no I/O, no partial state.
func buildSubmission(identity, draft string, loc geo.Location, hasLoc bool) transport.Submission {
	sub := transport.Submission{
		UserID:      strings.TrimSpace(identity),
		RequestText: strings.TrimSpace(draft),
	}
	if hasLoc {
		lat, lon := loc.Latitude, loc.Longitude
		sub.Latitude = &lat
		sub.Longitude = &lon
	}
	return sub
}
