// Package places enriches business records with phone numbers and
// formatted addresses from the Google Places text search API.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/opencivic/roster/internal/transport"
	"github.com/opencivic/roster/pkg/errors"
	"github.com/opencivic/roster/pkg/logging"
	"github.com/opencivic/roster/pkg/records"
)

const sourceName = "places"

// fieldMask limits the response to the fields we fold into records.
const fieldMask = "places.displayName,places.formattedAddress,places.nationalPhoneNumber"

// Client performs text searches against the Places API.
type Client struct {
	transport *transport.Client
	baseURL   string
}

// New creates a places client.
func New(t *transport.Client, baseURL string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.NewConfigError(sourceName, "base URL is required", nil)
	}
	return &Client{transport: t, baseURL: baseURL}, nil
}

// Tag identifies enrichment fields in merge priority decisions.
func (c *Client) Tag() records.SourceTag {
	return records.SourcePlaces
}

type searchRequest struct {
	TextQuery string `json:"textQuery"`
}

type searchResponse struct {
	Places []struct {
		DisplayName struct {
			Text string `json:"text"`
		} `json:"displayName"`
		FormattedAddress    string `json:"formattedAddress"`
		NationalPhoneNumber string `json:"nationalPhoneNumber"`
	} `json:"places"`
}

// Enrich looks the business up by name and address and fills empty phone
// and address fields from the first match. Existing values are never
// overwritten. Matched values are also recorded under places_ prefixed
// fields so the enrichment source stays visible after merging. The
// second return reports whether a match was found.
func (c *Client) Enrich(ctx context.Context, r records.Record) (records.Record, bool, error) {
	query := searchQuery(r)
	if query == "" {
		return r, false, nil
	}

	result, err := c.search(ctx, query)
	if err != nil {
		return r, false, err
	}
	if len(result.Places) == 0 {
		logging.Ctx(ctx).Debug().Str("query", query).Msg("no place match")
		return r, false, nil
	}

	place := result.Places[0]
	out := r.Clone()
	fill(&out, "phone", place.NationalPhoneNumber)
	fill(&out, "street_address", place.FormattedAddress)
	tag(&out, "places_name", place.DisplayName.Text)
	tag(&out, "places_address", place.FormattedAddress)
	tag(&out, "places_phone", place.NationalPhoneNumber)
	return out, true, nil
}

func (c *Client) search(ctx context.Context, query string) (*searchResponse, error) {
	body, err := json.Marshal(searchRequest{TextQuery: query})
	if err != nil {
		return nil, errors.NewParseError("json", "", "encoding search request", err)
	}

	endpoint := fmt.Sprintf("%s/places:searchText", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewValidationError("url", endpoint, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.transport.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	var result searchResponse
	if err := transport.Decode(resp, sourceName, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// searchQuery builds the text query from name, city, and state. Records
// without a business name cannot be searched.
func searchQuery(r records.Record) string {
	name := r.GetString("business_name")
	if strings.TrimSpace(name) == "" {
		return ""
	}

	parts := []string{name}
	for _, field := range []string{"street_address", "city", "state"} {
		if v := r.GetString(field); strings.TrimSpace(v) != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

func fill(r *records.Record, field, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	if existing, ok := r.Get(field); ok && !records.IsEmpty(existing) {
		return
	}
	r.Set(field, value)
}

// tag writes a provenance field regardless of existing record content.
func tag(r *records.Record, field, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	r.Set(field, value)
}
