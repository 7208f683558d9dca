// Package detail fetches authoritative per-business records from the
// comptroller detail API, one identifier at a time or in concurrent
// batches.
package detail

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/opencivic/roster/internal/transport"
	"github.com/opencivic/roster/pkg/errors"
	"github.com/opencivic/roster/pkg/logging"
	"github.com/opencivic/roster/pkg/records"
)

const sourceName = "detail"

// Client fetches detail records by identifier.
type Client struct {
	transport *transport.Client
	baseURL   string
	workers   int
}

// Option configures a Client.
type Option func(*Client) error

// WithWorkers bounds batch fetch concurrency.
func WithWorkers(n int) Option {
	return func(c *Client) error {
		if n <= 0 {
			return errors.NewConfigError(sourceName, "workers must be positive", nil)
		}
		c.workers = n
		return nil
	}
}

// New creates a detail client.
func New(t *transport.Client, baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.NewConfigError(sourceName, "base URL is required", nil)
	}
	c := &Client{
		transport: t,
		baseURL:   baseURL,
		workers:   8,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Tag identifies detail records in merge priority decisions.
func (c *Client) Tag() records.SourceTag {
	return records.SourceDetail
}

// Fetch returns the detail record for one identifier. Unknown identifiers
// return ErrNotFound.
func (c *Client) Fetch(ctx context.Context, id records.Identifier) (records.Record, error) {
	endpoint := fmt.Sprintf("%s/taxpayer/%s", c.baseURL, id)

	resp, err := c.transport.Get(ctx, endpoint)
	if err != nil {
		return records.Record{}, err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return records.Record{}, fmt.Errorf("taxpayer %s: %w", id, errors.ErrNotFound)
	}

	var r records.Record
	if err := transport.Decode(resp, sourceName, &r); err != nil {
		return records.Record{}, err
	}
	return r, nil
}

// FetchBatch fetches many identifiers with bounded concurrency. Fetched
// records come back in input order; per-identifier failures land in the
// error map without aborting the batch. Only context cancellation stops
// a batch early.
func (c *Client) FetchBatch(ctx context.Context, ids []records.Identifier) ([]records.Record, map[records.Identifier]error, error) {
	log := logging.Ctx(ctx)

	results := make([]*records.Record, len(ids))
	failures := make(map[records.Identifier]error)

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, c.workers)

	for i, id := range ids {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(i int, id records.Identifier) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			r, err := c.Fetch(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[id] = err
				return
			}
			results[i] = &r
		}(i, id)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		if err == context.DeadlineExceeded {
			return nil, nil, errors.ErrTimeout
		}
		return nil, nil, errors.ErrCanceled
	}

	out := make([]records.Record, 0, len(ids))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}

	log.Info().
		Int("requested", len(ids)).
		Int("fetched", len(out)).
		Int("failed", len(failures)).
		Msg("detail batch complete")
	return out, failures, nil
}
