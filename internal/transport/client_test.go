package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencivic/roster/pkg/errors"
)

func TestAuthenticators(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://example.com/data?page=2", nil)
	require.NoError(t, err)

	(&BearerAuth{}).Apply(req, "secret")
	assert.Equal(t, "Bearer secret", req.Header.Get("Authorization"))

	(&HeaderAuth{Header: "X-App-Token"}).Apply(req, "tok")
	assert.Equal(t, "tok", req.Header.Get("X-App-Token"))

	(&QueryAuth{Param: "key"}).Apply(req, "qk")
	assert.Equal(t, "qk", req.URL.Query().Get("key"))
	assert.Equal(t, "2", req.URL.Query().Get("page"), "existing params preserved")
}

func TestClientAppliesAuthAndHeaders(t *testing.T) {
	var gotToken, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-App-Token")
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c, err := New(WithAuth(&HeaderAuth{Header: "X-App-Token"}, "tok-123"))
	require.NoError(t, err)

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, c.GetJSON(context.Background(), srv.URL, "test", &out))
	assert.True(t, out.OK)
	assert.Equal(t, "tok-123", gotToken)
	assert.Equal(t, DefaultUserAgent, gotUA)
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, err := New(WithRetries(3), WithBackoff(time.Millisecond))
	require.NoError(t, err)

	resp, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientRetriesExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := New(WithRetries(1), WithBackoff(time.Millisecond))
	require.NoError(t, err)

	_, err = c.Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.IsRateLimited(err))
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := New(WithRetries(3), WithBackoff(time.Millisecond))
	require.NoError(t, err)

	resp, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := New(WithRetries(5), WithBackoff(time.Second))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err = c.Get(ctx, srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrCanceled)
}

func TestDecodeNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"malformed query"}`))
	}))
	defer srv.Close()

	c, err := New()
	require.NoError(t, err)

	var out map[string]any
	err = c.GetJSON(context.Background(), srv.URL, "registry", &out)
	require.Error(t, err)

	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "registry", apiErr.Source)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "malformed query")
}

func TestOptionValidation(t *testing.T) {
	_, err := New(WithRateLimit(-1))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = New(WithTimeout(0))
	require.Error(t, err)

	_, err = New(WithRetries(-1))
	require.Error(t, err)
}
