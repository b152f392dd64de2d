// Package upstream wraps outbound provider calls with retries, exponential
// backoff, a circuit breaker and request metrics.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/oaracle/oaracle/pkg/metrics"
)

const maxBodyBytes = 4 << 20

var (
	ErrRateLimited      = errors.New("rate limited")
	ErrServerError      = errors.New("server error")
	ErrUnexpectedStatus = errors.New("unexpected status code")
	ErrCircuitOpen      = errors.New("circuit breaker open")
)

// Options tune a Client.
type Options struct {
	Timeout     time.Duration
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	MaxFailures uint32
	OpenTimeout time.Duration
	Header      http.Header
}

// Client issues GET requests to one named upstream.
type Client struct {
	name    string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	opts    Options
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewClient builds a resilient client for the upstream called name.
func NewClient(name string, opts Options, m *metrics.Metrics, logger *slog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 200 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 5 * time.Second
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}
	maxFailures := opts.MaxFailures
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "upstream", name, "from", from.String(), "to", to.String())
		},
	})
	return &Client{
		name:    name,
		http:    &http.Client{Timeout: opts.Timeout},
		breaker: breaker,
		opts:    opts,
		metrics: m,
		logger:  logger.With("component", "upstream."+name),
	}
}

// Get fetches rawURL and returns the response body of a 2xx answer.
// Network failures, 429 and 5xx responses are retried; other 4xx are not.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	start := time.Now()
	body, err := c.get(ctx, rawURL)
	c.metrics.UpstreamDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())

	outcome := metrics.OutcomeSuccess
	switch {
	case err != nil:
		outcome = metrics.OutcomeError
	case len(body) == 0:
		outcome = metrics.OutcomeEmpty
	}
	c.metrics.UpstreamRequests.WithLabelValues(c.name, outcome).Inc()
	return body, err
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	var attempt int
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build %s request: %w", c.name, err)
		}
		for k, values := range c.opts.Header {
			for _, v := range values {
				req.Header.Add(k, v)
			}
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.do(req)
		})
		if err == nil {
			return result.([]byte), nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s: %w: %v", c.name, ErrCircuitOpen, err)
		}
		if !retryable(err) || attempt >= c.opts.MaxRetries {
			return nil, fmt.Errorf("%s: %w", c.name, err)
		}

		delay := c.opts.BaseBackoff << attempt
		if delay > c.opts.MaxBackoff {
			delay = c.opts.MaxBackoff
		}
		c.logger.Debug("retrying upstream request", "attempt", attempt+1, "delay", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		attempt++
	}
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %d", ErrServerError, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("%w: status=%d body=%s", ErrUnexpectedStatus, resp.StatusCode, string(snippet))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !errors.Is(err, ErrUnexpectedStatus)
}
