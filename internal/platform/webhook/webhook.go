// Package webhook delivers signed JSON events to configured HTTP receivers.
// Each receiver gets exactly one attempt per event.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	SignatureHeader = "X-Webhook-Signature"
	EventIDHeader   = "X-Webhook-Event-ID"
	TimestampHeader = "X-Webhook-Timestamp"
)

// Event is the envelope posted to every receiver.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent marshals payload into a fresh envelope.
func NewEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal webhook payload: %w", err)
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Result is the outcome of delivering one event to one receiver.
type Result struct {
	URL        string        `json:"url"`
	Success    bool          `json:"success"`
	StatusCode int           `json:"status_code"`
	Duration   time.Duration `json:"duration_ns"`
	Error      string        `json:"error,omitempty"`
}

// SignPayload computes an HMAC-SHA256 signature of the payload using the given secret,
// returning the hex-encoded result.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature returns true when the hex-encoded signature matches the HMAC-SHA256
// of payload under the given secret.
func VerifySignature(payload []byte, secret, signature string) bool {
	expected := SignPayload(payload, secret)
	return hmac.Equal([]byte(expected), []byte(strings.TrimPrefix(signature, "sha256=")))
}

type Option func(*Deliverer)

// WithHTTPClient overrides the default HTTP client used for deliveries.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Deliverer) { d.httpClient = c }
}

type Deliverer struct {
	urls       []string
	secret     string
	httpClient *http.Client
}

// NewDeliverer validates every receiver URL up front.
func NewDeliverer(urls []string, secret string, opts ...Option) (*Deliverer, error) {
	for _, u := range urls {
		if err := validateURL(u); err != nil {
			return nil, fmt.Errorf("webhook %q: %w", u, err)
		}
	}
	d := &Deliverer{
		urls:       urls,
		secret:     secret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url host is required")
	}
	return nil
}

// Receivers reports how many URLs are configured.
func (d *Deliverer) Receivers() int { return len(d.urls) }

// Deliver posts evt to every receiver in order and returns one result each.
func (d *Deliverer) Deliver(ctx context.Context, evt Event) []Result {
	payload, err := json.Marshal(evt)
	results := make([]Result, 0, len(d.urls))
	for _, u := range d.urls {
		if err != nil {
			results = append(results, Result{URL: u, Error: err.Error()})
			continue
		}
		results = append(results, d.post(ctx, u, evt, payload))
	}
	return results
}

func (d *Deliverer) post(ctx context.Context, target string, evt Event, payload []byte) Result {
	res := Result{URL: target}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		res.Error = err.Error()
		return res
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, "sha256="+SignPayload(payload, d.secret))
	req.Header.Set(EventIDHeader, evt.ID)
	req.Header.Set(TimestampHeader, evt.Timestamp.Format(time.RFC3339))

	start := time.Now()
	resp, err := d.httpClient.Do(req)
	res.Duration = time.Since(start)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	res.StatusCode = resp.StatusCode
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		res.Success = true
	} else {
		res.Error = fmt.Sprintf("non-2xx response: %d", resp.StatusCode)
	}
	return res
}
