// Package geo implements the best-effort geolocation probe.
//
// The probe runs once at session start, races independently of the
// submission path, and never blocks it: submissions go out with whatever
// location state exists at submit time, including none at all.
package geo

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/securehome/intake/internal/logging"
	"github.com/securehome/intake/internal/metrics"
)

// Location is a captured coordinate pair in degrees.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ErrorCode classifies why a probe failed. Provider-specific error values
// never leak past this package; they are collapsed into one of these codes.
type ErrorCode string

const (
	CodePermissionDenied    ErrorCode = "permission_denied"
	CodePositionUnavailable ErrorCode = "position_unavailable"
	CodeTimeout             ErrorCode = "timeout"
	CodeUnknown             ErrorCode = "unknown"
	CodeUnsupported         ErrorCode = "unsupported"
)

// Canonical user-facing messages, one per code.
var messages = map[ErrorCode]string{
	CodePermissionDenied:    "User denied the request for geolocation.",
	CodePositionUnavailable: "Location information is unavailable.",
	CodeTimeout:             "The request to get user location timed out.",
	CodeUnknown:             "An unknown error occurred.",
	CodeUnsupported:         "Geolocation is not available on this host.",
}

// Message returns the canonical user-facing text for a code.
func (c ErrorCode) Message() string {
	if m, ok := messages[c]; ok {
		return m
	}
	return messages[CodeUnknown]
}

// Sentinel errors providers return to signal a specific failure class.
var (
	ErrPermissionDenied    = errors.New("geo: permission denied")
	ErrPositionUnavailable = errors.New("geo: position unavailable")
	ErrUnsupported         = errors.New("geo: not supported")
)

// Classify maps a provider error onto an ErrorCode.
func Classify(err error) ErrorCode {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return CodePermissionDenied
	case errors.Is(err, ErrPositionUnavailable):
		return CodePositionUnavailable
	case errors.Is(err, ErrUnsupported):
		return CodeUnsupported
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	default:
		return CodeUnknown
	}
}

// Provider acquires the host's location once.
type Provider interface {
	Locate(ctx context.Context) (Location, error)
}

// Probe runs a single asynchronous location read and caches the outcome.
type Probe struct {
	provider Provider
	timeout  time.Duration

	mu      sync.Mutex
	started bool
	done    bool
	loc     Location
	present bool
	errMsg  string
}

// NewProbe creates a probe over the given provider. A nil provider means the
// capability is absent on this host; Start records that outcome immediately.
func NewProbe(provider Provider, timeout time.Duration) *Probe {
	return &Probe{provider: provider, timeout: timeout}
}

// Start launches the one-shot probe. Subsequent calls are no-ops: there is
// never a retry, and a session probes at most once.
func (p *Probe) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	if p.provider == nil {
		p.settleFailure(ctx, CodeUnsupported)
		return
	}

	go func() {
		probeCtx := ctx
		if p.timeout > 0 {
			var cancel context.CancelFunc
			probeCtx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}

		loc, err := p.provider.Locate(probeCtx)
		if err != nil {
			p.settleFailure(ctx, Classify(err))
			return
		}

		p.mu.Lock()
		p.done = true
		p.loc = loc
		p.present = true
		p.errMsg = "" // success clears any prior error
		p.mu.Unlock()

		metrics.GeoProbesTotal.WithLabelValues("success").Inc()
		logging.L(ctx).Debug("geolocation captured",
			"latitude", loc.Latitude, "longitude", loc.Longitude)
	}()
}

func (p *Probe) settleFailure(ctx context.Context, code ErrorCode) {
	p.mu.Lock()
	p.done = true
	p.present = false
	p.errMsg = code.Message()
	p.mu.Unlock()

	metrics.GeoProbesTotal.WithLabelValues(string(code)).Inc()
	logging.L(ctx).Info("geolocation unavailable", "code", string(code))
}

// Result returns the captured location and whether one is present.
// It never blocks: while the probe is in flight the location is absent.
func (p *Probe) Result() (Location, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loc, p.present
}

// ErrMessage returns the canonical failure message for display, or "" if the
// probe succeeded or has not settled.
func (p *Probe) ErrMessage() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errMsg
}
