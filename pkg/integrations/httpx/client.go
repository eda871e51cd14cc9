// Package httpx is the JSON HTTP client shared by the outbound integrations
// (GitLab, Jira, the automation runner).
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/emergent-company/testmind/pkg/logger"
	"github.com/emergent-company/testmind/pkg/metrics"
	"github.com/emergent-company/testmind/pkg/tracing"
)

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 64 << 10

// HTTPError is a non-2xx response.
type HTTPError struct {
	Service string
	Method  string
	URL     string
	Status  int
	Body    string
	// Parsed is the decoded JSON body, when the body was JSON.
	Parsed any
}

func (e *HTTPError) Error() string {
	msg := strings.TrimSpace(e.Body)
	if len(msg) > 300 {
		msg = msg[:300] + "..."
	}
	return fmt.Sprintf("%s: %s %s: %d %s: %s", e.Service, e.Method, e.URL, e.Status, http.StatusText(e.Status), msg)
}

// Options configures a Client.
type Options struct {
	Service string
	BaseURL string
	Timeout time.Duration
	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64
	Burst     int
	// MaxAttempts bounds retried calls, including the first attempt.
	MaxAttempts int
	// InitialBackoff is the first retry delay; it doubles on each retry.
	InitialBackoff time.Duration
	// Authorize decorates every request, e.g. with a token header.
	Authorize func(*http.Request)
	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
}

// Client sends JSON requests to one base URL.
type Client struct {
	opts    Options
	http    *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

func New(opts Options, log *slog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	c := &Client{
		opts: opts,
		http: &http.Client{Timeout: opts.Timeout, Transport: opts.Transport},
		log:  log.With(logger.Scope("httpx." + opts.Service)),
	}
	if opts.RateLimit > 0 {
		burst := max(opts.Burst, 1)
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c
}

// Request is one call. Body, when non-nil, is sent as JSON; Out, when
// non-nil, receives the decoded JSON response.
type Request struct {
	Method string
	Path   string
	Body   any
	Out    any
	// Retry enables exponential backoff on network and timeout errors.
	Retry bool
}

// Do sends req. Non-2xx responses return *HTTPError and are never retried.
func (c *Client) Do(ctx context.Context, req Request) error {
	ctx, span := tracing.Start(ctx, c.opts.Service+".request",
		attribute.String("http.method", req.Method),
		attribute.String("http.route", req.Path),
	)
	defer span.End()

	var payload []byte
	if req.Body != nil {
		var err error
		if payload, err = json.Marshal(req.Body); err != nil {
			return fmt.Errorf("%s: encode request: %w", c.opts.Service, err)
		}
	}

	attempt := 0
	op := func() error {
		attempt++
		err := c.once(ctx, req, payload)
		if err == nil || !req.Retry || !Retryable(err) {
			if err != nil {
				return backoff.Permanent(err)
			}
			return nil
		}
		return err
	}

	var policy backoff.BackOff = backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(c.opts.InitialBackoff),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxElapsedTime(0),
	)
	policy = backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.opts.MaxAttempts-1)), ctx)

	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		c.log.Warn("request failed, retrying",
			slog.String("path", req.Path),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", wait),
			logger.Error(err))
	})

	result := "ok"
	if err != nil {
		result = "error"
		tracing.Fail(span, err)
	}
	metrics.IntegrationRequests.WithLabelValues(c.opts.Service, result).Inc()
	return err
}

func (c *Client) once(ctx context.Context, req Request, payload []byte) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	url := c.opts.BaseURL + req.Path
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", c.opts.Service, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.opts.Authorize != nil {
		c.opts.Authorize(httpReq)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		httpErr := &HTTPError{
			Service: c.opts.Service,
			Method:  req.Method,
			URL:     url,
			Status:  resp.StatusCode,
			Body:    string(raw),
		}
		var parsed any
		if json.Unmarshal(raw, &parsed) == nil {
			httpErr.Parsed = parsed
		}
		return httpErr
	}

	if req.Out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(req.Out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: decode response: %w", c.opts.Service, err)
	}
	return nil
}

// Retryable reports whether err is a network or timeout failure. HTTP
// status errors and cancellation are not retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
