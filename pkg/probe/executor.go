package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"clipvault/pkg/logger"
	"clipvault/pkg/ratelimit"
)

// StatusNoResponse is the status of a probe that got no HTTP response
const StatusNoResponse = 0

// DefaultTimeout bounds a single probe
const DefaultTimeout = 30 * time.Second

// Outcome is the result of one probe. Status is the HTTP status of the
// exchange, or StatusNoResponse; Err is kept for logging only.
type Outcome struct {
	Code     string
	Status   int
	Err      error
	Duration time.Duration
}

// Executor POSTs candidate codes to the probe endpoint
type Executor struct {
	url        string
	headers    http.Header
	httpClient *http.Client
	timeout    time.Duration
	limiter    ratelimit.Limiter
	logger     logger.Logger
}

// Option configures an Executor
type Option func(*Executor)

// WithHTTPClient sets the HTTP client used for probes
func WithHTTPClient(c *http.Client) Option {
	return func(e *Executor) { e.httpClient = c }
}

// WithTimeout sets the per-probe timeout
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLimiter throttles probes on the client side
func WithLimiter(l ratelimit.Limiter) Option {
	return func(e *Executor) {
		if l != nil {
			e.limiter = l
		}
	}
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExecutor creates an Executor posting to url with headers
func NewExecutor(url string, headers http.Header, opts ...Option) *Executor {
	e := &Executor{
		url:        url,
		headers:    headers.Clone(),
		httpClient: http.DefaultClient,
		timeout:    DefaultTimeout,
		limiter:    ratelimit.Unlimited{},
		logger:     logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.headers == nil {
		e.headers = make(http.Header)
	}
	e.headers.Set("Content-Type", "application/json")
	e.logger = e.logger.WithField("component", "probe")
	return e
}

type probeRequest struct {
	InviteCode string `json:"invite_code"`
}

// Probe sends one code and reports the outcome. It never fails: transport
// errors, timeouts and cancellation all become StatusNoResponse.
func (e *Executor) Probe(ctx context.Context, code string) Outcome {
	start := time.Now()
	noResponse := func(err error) Outcome {
		return Outcome{Code: code, Status: StatusNoResponse, Err: err, Duration: time.Since(start)}
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return noResponse(err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	body, err := json.Marshal(probeRequest{InviteCode: code})
	if err != nil {
		return noResponse(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return noResponse(err)
	}
	req.Header = e.headers.Clone()

	resp, err := e.httpClient.Do(req)
	if err != nil {
		e.logger.WithError(err).DebugWithFields("Probe got no response", map[string]interface{}{
			"code": code,
		})
		return noResponse(err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	outcome := Outcome{Code: code, Status: resp.StatusCode, Duration: time.Since(start)}
	e.logger.DebugWithFields("Probe completed", map[string]interface{}{
		"code":        code,
		"status":      resp.StatusCode,
		"duration_ms": outcome.Duration.Milliseconds(),
	})
	return outcome
}
