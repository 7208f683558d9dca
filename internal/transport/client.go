// Package transport provides the shared HTTP client for upstream data
// sources: authentication, client-side rate limiting, and retry with
// exponential backoff on transient failures.
package transport

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/opencivic/roster/pkg/errors"
	"github.com/opencivic/roster/pkg/logging"
)

// Defaults applied when no option overrides them.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultRetries     = 3
	DefaultBackoffBase = 500 * time.Millisecond
	DefaultUserAgent   = "roster/1.0"
)

// Client wraps http.Client with authentication, rate limiting, and retries.
type Client struct {
	http      *http.Client
	auth      Authenticator
	apiKey    string
	limiter   *rate.Limiter
	retries   int
	backoff   time.Duration
	userAgent string
}

// Option configures a Client.
type Option func(*Client) error

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return errors.NewConfigError("transport", "timeout must be positive", nil)
		}
		c.http.Timeout = d
		return nil
	}
}

// WithAuth sets the authenticator and the key it applies.
func WithAuth(auth Authenticator, apiKey string) Option {
	return func(c *Client) error {
		c.auth = auth
		c.apiKey = apiKey
		return nil
	}
}

// WithRateLimit caps outgoing requests at n per second.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) error {
		if perSecond <= 0 {
			return errors.NewConfigError("transport", "rate limit must be positive", nil)
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		return nil
	}
}

// WithRetries sets how many times a request is retried after a retryable
// failure. Zero disables retrying.
func WithRetries(n int) Option {
	return func(c *Client) error {
		if n < 0 {
			return errors.NewConfigError("transport", "retries must not be negative", nil)
		}
		c.retries = n
		return nil
	}
}

// WithBackoff sets the base delay for exponential backoff between retries.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return errors.NewConfigError("transport", "backoff must be positive", nil)
		}
		c.backoff = d
		return nil
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) error {
		c.userAgent = ua
		return nil
	}
}

// WithHTTPClient replaces the underlying http.Client. Used by tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.http = hc
		return nil
	}
}

// New creates a transport client.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		http:      &http.Client{Timeout: DefaultTimeout},
		auth:      &NoAuth{},
		retries:   DefaultRetries,
		backoff:   DefaultBackoffBase,
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Do performs the request with rate limiting, authentication, and retries.
// The response body is the caller's to close. Requests are retried on
// network errors, 429, and 5xx responses; other statuses are returned
// as-is for the caller to interpret.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		c.auth.Apply(req, c.apiKey)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			delay := c.backoff << (attempt - 1)
			logging.Ctx(ctx).Debug().
				Int("attempt", attempt).
				Dur("delay", delay).
				Str("url", req.URL.String()).
				Msg("retrying request")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctxErr(ctx)
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, ctxErr(ctx)
			}
		}

		resp, err := c.http.Do(req.Clone(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctxErr(ctx)
			}
			lastErr = err
			continue
		}

		if !retryable(resp.StatusCode) {
			return resp, nil
		}

		resp.Body.Close()
		lastErr = &errors.APIError{
			Source:     req.URL.Host,
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Endpoint:   req.URL.Path,
		}
	}

	return nil, lastErr
}

// Get performs a GET request against the given URL.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.NewValidationError("url", url, err.Error())
	}
	return c.Do(ctx, req)
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func ctxErr(ctx context.Context) error {
	if ctx.Err() == context.DeadlineExceeded {
		return errors.ErrTimeout
	}
	return errors.ErrCanceled
}
