package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyTransport fails the first n round trips with a network error.
type flakyTransport struct {
	failures int32
	calls    atomic.Int32
	next     http.RoundTripper
}

func (f *flakyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if f.calls.Add(1) <= f.failures {
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	}
	return f.next.RoundTrip(r)
}

func newTestClient(url string, transport http.RoundTripper, attempts int) *Client {
	return New(Options{
		Service:        "test",
		BaseURL:        url + "/",
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		Transport:      transport,
		Authorize:      func(r *http.Request) { r.Header.Set("PRIVATE-TOKEN", "t0k") },
	}, slog.Default())
}

func TestClient_DoDecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/items", r.URL.Path)
		assert.Equal(t, "t0k", r.Header.Get("PRIVATE-TOKEN"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["name"]})
	}))
	defer srv.Close()

	var out struct {
		Echo string `json:"echo"`
	}
	err := newTestClient(srv.URL, nil, 1).Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/api/items",
		Body:   map[string]string{"name": "login"},
		Out:    &out,
	})
	require.NoError(t, err)
	assert.Equal(t, "login", out.Echo)
}

func TestClient_HTTPErrorNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"message":"branch exists"}`)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL, nil, 3).Do(context.Background(), Request{Method: http.MethodPost, Path: "/x", Retry: true})

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	assert.Equal(t, map[string]any{"message": "branch exists"}, httpErr.Parsed)
	assert.Contains(t, err.Error(), "branch exists")
	assert.Equal(t, int32(1), hits.Load())
}

func TestClient_RetriesNetworkErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	tests := []struct {
		name      string
		failures  int32
		retry     bool
		wantErr   bool
		wantCalls int32
	}{
		{name: "recovers on second attempt", failures: 1, retry: true, wantCalls: 2},
		{name: "recovers on third attempt", failures: 2, retry: true, wantCalls: 3},
		{name: "gives up after max attempts", failures: 5, retry: true, wantErr: true, wantCalls: 3},
		{name: "no retry when disabled", failures: 1, retry: false, wantErr: true, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &flakyTransport{failures: tt.failures, next: http.DefaultTransport}
			err := newTestClient(srv.URL, tr, 3).Do(context.Background(), Request{Method: http.MethodGet, Path: "/", Retry: tt.retry})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, tr.calls.Load())
		})
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "http error", err: &HTTPError{Status: 503}, want: false},
		{name: "cancelled", err: context.Canceled, want: false},
		{name: "net error", err: &net.OpError{Op: "read", Err: errors.New("reset")}, want: true},
		{name: "unexpected eof", err: io.ErrUnexpectedEOF, want: true},
		{name: "plain error", err: errors.New("bad json"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}
