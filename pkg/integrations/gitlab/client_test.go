package gitlab

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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/testmind/internal/config"
	"github.com/emergent-company/testmind/pkg/integrations/httpx"
)

func testConfig(baseURL string) *config.GitLabConfig {
	return &config.GitLabConfig{
		BaseURL:    baseURL,
		Token:      "glpat",
		ProjectID:  "qa/web",
		BaseBranch: "main",
		MaxRetries: 3,
	}
}

func TestClient_NotConfigured(t *testing.T) {
	c := newClient(&config.GitLabConfig{}, nil, slog.Default())

	_, err := c.CreateBranch(context.Background(), "b", "")
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = c.CreateIssue(context.Background(), IssueInput{Title: "x"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestClient_CreateBranch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v4/projects/qa%2Fweb/repository/branches", r.URL.EscapedPath())
		assert.Equal(t, "glpat", r.Header.Get("PRIVATE-TOKEN"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"branch": "auto/login", "ref": "main"}, body)
		_, _ = io.WriteString(w, `{"name":"auto/login","commit":{"id":"abc"}}`)
	}))
	defer srv.Close()

	b, err := newClient(testConfig(srv.URL), nil, slog.Default()).CreateBranch(context.Background(), "auto/login", "")
	require.NoError(t, err)
	assert.Equal(t, "auto/login", b.Name)
	assert.Equal(t, "abc", b.Commit.ID)
}

func TestClient_UploadFileFallsBackToUpdate(t *testing.T) {
	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		assert.Equal(t, "/api/v4/projects/qa%2Fweb/repository/files/tests%2Flogin.yaml", r.URL.EscapedPath())
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"message":"A file with this name already exists"}`)
			return
		}
		_, _ = io.WriteString(w, `{"file_path":"tests/login.yaml","branch":"auto/login"}`)
	}))
	defer srv.Close()

	f, err := newClient(testConfig(srv.URL), nil, slog.Default()).
		UploadFile(context.Background(), "auto/login", "tests/login.yaml", "web: {}", "Add login script")
	require.NoError(t, err)
	assert.Equal(t, "tests/login.yaml", f.FilePath)
	assert.Equal(t, []string{http.MethodPost, http.MethodPut}, methods)
}

type failingTransport struct {
	calls atomic.Int32
}

func (f *failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	f.calls.Add(1)
	return nil, &net.OpError{Op: "dial", Err: errors.New("timeout")}
}

func TestClient_RetryPolicy(t *testing.T) {
	tr := &failingTransport{}
	c := newClient(testConfig("http://gitlab.invalid"), tr, slog.Default())
	ctx := context.Background()

	_, err := c.CreateBranch(ctx, "b", "")
	require.Error(t, err)
	assert.Equal(t, int32(3), tr.calls.Load(), "branch creation retries")

	tr.calls.Store(0)
	_, err = c.CreateIssue(ctx, IssueInput{Title: "Login fails"})
	require.Error(t, err)
	assert.Equal(t, int32(1), tr.calls.Load(), "issue creation does not retry")
}

func TestClient_CreateIssueHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"message":"403 Forbidden"}`)
	}))
	defer srv.Close()

	_, err := newClient(testConfig(srv.URL), nil, slog.Default()).CreateIssue(context.Background(), IssueInput{Title: "x"})
	var httpErr *httpx.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusForbidden, httpErr.Status)
	assert.Equal(t, "gitlab", httpErr.Service)
}
