package jira

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/testmind/internal/config"
)

func TestADF(t *testing.T) {
	doc := ADF("Login fails\nafter submit\n\n\nExpected: dashboard")

	assert.Equal(t, "doc", doc.Type)
	assert.Equal(t, 1, doc.Version)
	require.Len(t, doc.Content, 2)

	first := doc.Content[0]
	assert.Equal(t, "paragraph", first.Type)
	require.Len(t, first.Content, 3)
	assert.Equal(t, "Login fails", first.Content[0].Text)
	assert.Equal(t, "hardBreak", first.Content[1].Type)
	assert.Equal(t, "after submit", first.Content[2].Text)

	assert.Equal(t, "Expected: dashboard", doc.Content[1].Content[0].Text)
}

func TestADF_Empty(t *testing.T) {
	doc := ADF("  \n\n ")
	assert.NotNil(t, doc.Content)
	assert.Empty(t, doc.Content)

	b, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"doc","version":1}`, string(b))
}

func TestClient_CreateIssue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/3/issue", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "qa@example.com", user)
		assert.Equal(t, "tok", pass)

		var body struct {
			Fields struct {
				Project     map[string]string `json:"project"`
				Summary     string            `json:"summary"`
				IssueType   map[string]string `json:"issuetype"`
				Description Node              `json:"description"`
				Labels      []string          `json:"labels"`
			} `json:"fields"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "QA", body.Fields.Project["key"])
		assert.Equal(t, "Bug", body.Fields.IssueType["name"])
		assert.Equal(t, "Login Test failed", body.Fields.Summary)
		assert.Equal(t, "doc", body.Fields.Description.Type)
		assert.Equal(t, []string{"testmind"}, body.Fields.Labels)

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"10001","key":"QA-7"}`)
	}))
	defer srv.Close()

	c := newClient(&config.JiraConfig{
		BaseURL: srv.URL, Email: "qa@example.com", APIToken: "tok", ProjectKey: "QA", IssueType: "Bug",
	}, nil, slog.Default())

	issue, err := c.CreateIssue(context.Background(), IssueInput{
		Summary:     "Login Test failed",
		Description: "Step 2 failed",
		Labels:      []string{"testmind"},
	})
	require.NoError(t, err)
	assert.Equal(t, "QA-7", issue.Key)
	assert.Equal(t, srv.URL+"/browse/QA-7", c.BrowseURL("QA-7"))
}

func TestClient_NotConfigured(t *testing.T) {
	c := newClient(&config.JiraConfig{}, nil, slog.Default())
	_, err := c.CreateIssue(context.Background(), IssueInput{Summary: "x"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
