package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencivic/roster/internal/transport"
	"github.com/opencivic/roster/pkg/errors"
	"github.com/opencivic/roster/pkg/records"
)

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	tc, err := transport.New(transport.WithRetries(0))
	require.NoError(t, err)
	c, err := New(tc, srv.URL, "test-data", opts...)
	require.NoError(t, err)
	return c
}

func TestFetchPaginates(t *testing.T) {
	// 5 rows served 2 at a time.
	rows := make([]map[string]any, 5)
	for i := range rows {
		rows[i] = map[string]any{
			"taxpayer_number": fmt.Sprintf("%05d", i),
			"taxpayer_name":   fmt.Sprintf("Business %d", i),
		}
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/test-data.json", r.URL.Path)
		limit, _ := strconv.Atoi(r.URL.Query().Get("$limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("$offset"))

		end := min(offset+limit, len(rows))
		if offset > len(rows) {
			offset = len(rows)
		}
		json.NewEncoder(w).Encode(rows[offset:end])
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithPageSize(2))

	got, err := c.Fetch(context.Background())
	require.NoError(t, err)

	require.Len(t, got, 5)
	assert.Equal(t, "Business 0", got[0].GetString("taxpayer_name"))
	assert.Equal(t, "Business 4", got[4].GetString("taxpayer_name"))
}

func TestFetchPreservesFieldOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"zebra":"1","alpha":"2","middle":"3"}]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)

	got, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"zebra", "alpha", "middle"}, got[0].Names())
}

func TestFetchWhereClause(t *testing.T) {
	var gotWhere string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotWhere = r.URL.Query().Get("$where")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithWhere("taxpayer_city = 'AUSTIN'"))

	_, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "taxpayer_city = 'AUSTIN'", gotWhere)
}

func TestFetchAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"no such column"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)

	_, err := c.Fetch(context.Background())
	require.Error(t, err)

	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "registry", apiErr.Source)
}

func TestNewValidation(t *testing.T) {
	tc, err := transport.New()
	require.NoError(t, err)

	_, err = New(tc, "", "data")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = New(tc, "http://example.com", "data", WithPageSize(0))
	require.Error(t, err)
}

func TestTag(t *testing.T) {
	tc, err := transport.New()
	require.NoError(t, err)
	c, err := New(tc, "http://example.com", "data")
	require.NoError(t, err)
	assert.Equal(t, records.SourceRegistry, c.Tag())
}
