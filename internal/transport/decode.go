package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/opencivic/roster/pkg/errors"
	"github.com/opencivic/roster/pkg/logging"
)

// maxErrorBody caps how much of an error response body is kept for the
// error message.
const maxErrorBody = 2048

// Decode reads and decodes a JSON response body into target, closing the
// body. Non-2xx responses become APIErrors carrying the given source name.
func Decode(resp *http.Response, source string, target any) error {
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Default().Warn().Err(err).Msg("failed to close response body")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &errors.APIError{
			Source:     source,
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewIOError("read", "response body", err)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return errors.NewParseError("json", "", "decoding response", err)
	}
	return nil
}

// GetJSON performs a GET and decodes the JSON response into target.
func (c *Client) GetJSON(ctx context.Context, url, source string, target any) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	return Decode(resp, source, target)
}
