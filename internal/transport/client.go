// Package transport sends submissions to the fraud detector service.
//
// One call per submission: no retry, no redelivery. Failure never escapes to
// the caller as anything but a synthetic transport verdict, so every
// submission terminates in something renderable.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/securehome/intake/internal/logging"
	"github.com/securehome/intake/internal/metrics"
	"github.com/securehome/intake/internal/verdict"
)

// UserErrorMessage is the only transport-failure text shown to users. Raw
// error internals stay in logs.
const UserErrorMessage = "Sorry, something went wrong. Please try again."

// maxResponseSize caps how much of a detector response is read (1MB).
const maxResponseSize = 1 << 20

// Submission is the outbound unit handed to the detector. Location fields
// are pointers so an absent location is omitted from the wire payload
// entirely; the detector treats missing coordinates as "unknown", not zero.
type Submission struct {
	UserID      string   `json:"user_id,omitempty"`
	RequestText string   `json:"request_text"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

// Client performs the single-attempt POST to the detector endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a detector client for the given endpoint.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check submits one request to the detector and returns the normalized
// verdict. The verdict is always usable: transport failures and malformed
// bodies both come back as a transport-error verdict. The returned error
// carries the underlying cause for operator logging and is non-nil only
// alongside such a synthetic verdict.
func (c *Client) Check(ctx context.Context, sub Submission) (verdict.Verdict, error) {
	body, err := json.Marshal(sub)
	if err != nil {
		// Submission is plain data; this cannot happen in practice.
		return verdict.TransportVerdict(UserErrorMessage), fmt.Errorf("encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return verdict.TransportVerdict(UserErrorMessage), fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.TransportFailuresTotal.Inc()
		logging.L(ctx).Warn("detector call failed", "error", err)
		return verdict.TransportVerdict(UserErrorMessage), fmt.Errorf("detector call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.TransportFailuresTotal.Inc()
		logging.L(ctx).Warn("detector returned non-2xx", "status", resp.StatusCode)
		return verdict.TransportVerdict(UserErrorMessage),
			fmt.Errorf("detector status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		metrics.TransportFailuresTotal.Inc()
		logging.L(ctx).Warn("reading detector response failed", "error", err)
		return verdict.TransportVerdict(UserErrorMessage), fmt.Errorf("read response: %w", err)
	}

	v, err := verdict.Normalize(raw)
	if err != nil {
		// A 2xx with an unparsable body is its own failure class: same
		// user-visible outcome, distinct operator signal.
		metrics.MalformedResponsesTotal.Inc()
		logging.L(ctx).Error("malformed detector response", "error", err, "bytes", len(raw))
		return verdict.TransportVerdict(UserErrorMessage), fmt.Errorf("normalize response: %w", err)
	}

	return v, nil
}
