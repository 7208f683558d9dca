// Package registry fetches the business registry roll from a Socrata
// open-data endpoint, paging through the dataset with SoQL limit/offset
// queries.
package registry

import (
	"context"
	"fmt"
	"net/url"

	"github.com/opencivic/roster/internal/transport"
	"github.com/opencivic/roster/pkg/errors"
	"github.com/opencivic/roster/pkg/logging"
	"github.com/opencivic/roster/pkg/records"
)

const sourceName = "registry"

// Client pages through a Socrata dataset.
type Client struct {
	transport *transport.Client
	baseURL   string
	datasetID string
	pageSize  int
	where     string
}

// Option configures a Client.
type Option func(*Client) error

// WithPageSize sets the SoQL $limit used per page.
func WithPageSize(n int) Option {
	return func(c *Client) error {
		if n <= 0 {
			return errors.NewConfigError(sourceName, "page size must be positive", nil)
		}
		c.pageSize = n
		return nil
	}
}

// WithWhere restricts the roll with a SoQL $where clause.
func WithWhere(where string) Option {
	return func(c *Client) error {
		c.where = where
		return nil
	}
}

// New creates a registry client for one dataset.
func New(t *transport.Client, baseURL, datasetID string, opts ...Option) (*Client, error) {
	if baseURL == "" || datasetID == "" {
		return nil, errors.NewConfigError(sourceName, "base URL and dataset ID are required", nil)
	}
	c := &Client{
		transport: t,
		baseURL:   baseURL,
		datasetID: datasetID,
		pageSize:  1000,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Tag identifies registry records in merge priority decisions.
func (c *Client) Tag() records.SourceTag {
	return records.SourceRegistry
}

// Fetch pages through the dataset until a short page signals the end.
// Rows keep their upstream field order.
func (c *Client) Fetch(ctx context.Context) ([]records.Record, error) {
	log := logging.Ctx(ctx)

	var all []records.Record
	for offset := 0; ; offset += c.pageSize {
		page, err := c.fetchPage(ctx, offset)
		if err != nil {
			return nil, fmt.Errorf("registry page at offset %d: %w", offset, err)
		}

		all = append(all, page...)
		log.Debug().
			Int("offset", offset).
			Int("page", len(page)).
			Int("total", len(all)).
			Msg("fetched registry page")

		if len(page) < c.pageSize {
			break
		}
	}

	log.Info().Int("records", len(all)).Msg("registry roll fetched")
	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, offset int) ([]records.Record, error) {
	query := url.Values{}
	query.Set("$limit", fmt.Sprintf("%d", c.pageSize))
	query.Set("$offset", fmt.Sprintf("%d", offset))
	query.Set("$order", ":id")
	if c.where != "" {
		query.Set("$where", c.where)
	}

	endpoint := fmt.Sprintf("%s/%s.json?%s", c.baseURL, c.datasetID, query.Encode())

	var page []records.Record
	if err := c.transport.GetJSON(ctx, endpoint, sourceName, &page); err != nil {
		return nil, err
	}
	return page, nil
}
