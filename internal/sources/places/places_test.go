package places

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencivic/roster/internal/transport"
	"github.com/opencivic/roster/pkg/records"
)

func rec(pairs ...string) records.Record {
	var r records.Record
	for i := 0; i+1 < len(pairs); i += 2 {
		r.Set(pairs[i], pairs[i+1])
	}
	return r
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	tc, err := transport.New(transport.WithRetries(0))
	require.NoError(t, err)
	c, err := New(tc, srv.URL)
	require.NoError(t, err)
	return c
}

func TestEnrichFillsEmptyFields(t *testing.T) {
	var gotQuery, gotMask string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/places:searchText", r.URL.Path)
		gotMask = r.Header.Get("X-Goog-FieldMask")

		body, _ := io.ReadAll(r.Body)
		var req map[string]string
		json.Unmarshal(body, &req)
		gotQuery = req["textQuery"]

		w.Write([]byte(`{"places":[{"displayName":{"text":"Acme Corp"},` +
			`"formattedAddress":"100 Main St, Austin, TX 78701","nationalPhoneNumber":"(512) 555-0100"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)

	in := rec("business_name", "Acme Corp", "city", "Austin", "state", "TX")
	out, found, err := c.Enrich(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, found)

	assert.Equal(t, "Acme Corp, Austin, TX", gotQuery)
	assert.Contains(t, gotMask, "nationalPhoneNumber")

	assert.Equal(t, "(512) 555-0100", out.GetString("phone"))
	assert.Equal(t, "100 Main St, Austin, TX 78701", out.GetString("street_address"))
	assert.Equal(t, "Acme Corp", out.GetString("places_name"))
	assert.Equal(t, "100 Main St, Austin, TX 78701", out.GetString("places_address"))
	assert.Equal(t, "(512) 555-0100", out.GetString("places_phone"))

	// Input untouched.
	assert.False(t, in.Has("phone"))
}

func TestEnrichNeverOverwrites(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"places":[{"nationalPhoneNumber":"(512) 555-9999","formattedAddress":"elsewhere"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)

	in := rec("business_name", "Acme", "phone", "(512) 555-0100", "street_address", "")
	out, found, err := c.Enrich(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, found)

	assert.Equal(t, "(512) 555-0100", out.GetString("phone"))
	assert.Equal(t, "elsewhere", out.GetString("street_address"), "empty field filled")
	assert.Equal(t, "(512) 555-9999", out.GetString("places_phone"),
		"provenance field carries the match even when the record keeps its own value")
}

func TestEnrichNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)

	in := rec("business_name", "Nonexistent LLC")
	out, found, err := c.Enrich(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, found)
	assert.True(t, out.Equal(in))
}

func TestEnrichSkipsNamelessRecords(t *testing.T) {
	var called bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := newTestClient(t, srv)

	in := rec("city", "Austin")
	_, found, err := c.Enrich(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, found)
	assert.False(t, called)
}
