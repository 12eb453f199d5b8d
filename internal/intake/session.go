package intake

import (
	"context"
	"strings"
	"sync"

	"github.com/securehome/intake/internal/geo"
	"github.com/securehome/intake/internal/logging"
	"github.com/securehome/intake/internal/metrics"
	"github.com/securehome/intake/internal/verdict"
)

// Session is one user's intake state. All mutation happens under a single
// mutex; the only concurrency guard the flow needs is "no second submission
// while one is pending".
type Session struct {
	mode           Mode
	demoIdentities []string
	checker        Checker
	probe          *geo.Probe

	mu       sync.Mutex
	identity string
	draft    string
	pending  bool
	settled  bool
	latest   *verdict.Verdict
	history  []Exchange
}

// SessionOption configures a session.
type SessionOption func(*Session)

// WithMode selects latest-result or history retention.
func WithMode(mode Mode) SessionOption {
	return func(s *Session) {
		s.mode = mode
	}
}

// WithDemoIdentities sets the selectable demo identities. The first one
// becomes the initial identity, matching the prefilled form field.
func WithDemoIdentities(ids []string) SessionOption {
	return func(s *Session) {
		s.demoIdentities = ids
		if len(ids) > 0 {
			s.identity = ids[0]
		}
	}
}

// NewSession creates a session over the given checker. probe may be nil when
// no geolocation capability is configured.
func NewSession(checker Checker, probe *geo.Probe, opts ...SessionOption) *Session {
	s := &Session{
		mode:    ModeLatest,
		checker: checker,
		probe:   probe,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetIdentity replaces the identity under edit.
func (s *Session) SetIdentity(identity string) {
	s.mu.Lock()
	s.identity = identity
	s.mu.Unlock()
}

// SelectDemoIdentity sets the identity to the i-th configured demo identity.
// Out-of-range selections are ignored.
func (s *Session) SelectDemoIdentity(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.demoIdentities) {
		return
	}
	s.identity = s.demoIdentities[i]
}

// SetDraft replaces the request text under composition.
func (s *Session) SetDraft(draft string) {
	s.mu.Lock()
	s.draft = draft
	s.mu.Unlock()
}

// Submit sends the current draft to the detector and settles the result into
// the session. It blocks until the call settles; the serialization guard
// rejects overlapping calls, so at most one detector call is ever in flight
// per session.
//
// The draft clears once the attempt completes, success or failure.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		metrics.SubmissionsRejectedTotal.WithLabelValues("pending").Inc()
		return ErrSubmissionPending
	}
	if !validIdentity(strings.TrimSpace(s.identity)) || strings.TrimSpace(s.draft) == "" {
		s.mu.Unlock()
		metrics.SubmissionsRejectedTotal.WithLabelValues("invalid_input").Inc()
		return ErrInputInvalid
	}

	var loc geo.Location
	var hasLoc bool
	if s.probe != nil {
		loc, hasLoc = s.probe.Result()
	}
	sub := buildSubmission(s.identity, s.draft, loc, hasLoc)
	s.pending = true
	s.mu.Unlock()

	// The detector call runs outside the lock so reads stay responsive.
	v, err := s.checker.Check(ctx, sub)
	if err != nil {
		logging.L(ctx).Warn("submission settled with transport error", "error", err)
	}
	metrics.SubmissionsTotal.WithLabelValues(v.Outcome()).Inc()

	s.mu.Lock()
	s.pending = false
	s.settled = true
	s.draft = "" // cleared regardless of outcome
	switch s.mode {
	case ModeHistory:
		// User turn first, then the assistant verdict. Append-only.
		s.history = append(s.history,
			Exchange{Role: RoleUser, Text: sub.RequestText},
			Exchange{Role: RoleAssistant, Text: v.Message, Verdict: &v},
		)
	default:
		s.latest = &v
	}
	s.mu.Unlock()

	return nil
}

// CanSubmit reports whether a new submission would be accepted right now.
func (s *Session) CanSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.pending
}

// Snapshot returns a read-only copy of the session for rendering. The
// history slice is copied, never aliased.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Status:    StatusIdle,
		Identity:  s.identity,
		Draft:     s.draft,
		CanSubmit: !s.pending,
	}
	switch {
	case s.pending:
		snap.Status = StatusPending
	case s.settled:
		snap.Status = StatusSettled
	}

	if s.latest != nil {
		v := *s.latest
		snap.Verdict = &v
	}
	if s.mode == ModeHistory && len(s.history) > 0 {
		snap.History = make([]Exchange, len(s.history))
		copy(snap.History, s.history)
	}
	if s.probe != nil {
		snap.LocationNote = s.probe.ErrMessage()
	}

	return snap
}

// Mode returns the retention mode this session was created with.
func (s *Session) Mode() Mode {
	return s.mode
}
