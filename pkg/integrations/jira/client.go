// Package jira files issues through the Jira Cloud REST v3 API.
package jira

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/emergent-company/testmind/internal/config"
	"github.com/emergent-company/testmind/pkg/integrations/httpx"
)

// ErrNotConfigured is returned when Jira credentials are missing.
var ErrNotConfigured = errors.New("jira integration is not configured")

// Node is an Atlassian Document Format node.
type Node struct {
	Type    string         `json:"type"`
	Version int            `json:"version,omitempty"`
	Text    string         `json:"text,omitempty"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []Node         `json:"content,omitempty"`
}

// ADF converts plain text into an ADF document. Blank lines separate
// paragraphs; single newlines become hard breaks.
func ADF(text string) Node {
	doc := Node{Type: "doc", Version: 1, Content: []Node{}}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.Trim(block, "\n")
		if strings.TrimSpace(block) == "" {
			continue
		}
		para := Node{Type: "paragraph"}
		for i, line := range strings.Split(block, "\n") {
			if i > 0 {
				para.Content = append(para.Content, Node{Type: "hardBreak"})
			}
			if line != "" {
				para.Content = append(para.Content, Node{Type: "text", Text: line})
			}
		}
		doc.Content = append(doc.Content, para)
	}
	return doc
}

// IssueInput describes an issue to create.
type IssueInput struct {
	Summary     string
	Description string
	Labels      []string
}

// Issue is the create-issue response.
type Issue struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

type Client struct {
	cfg  *config.JiraConfig
	http *httpx.Client
}

func NewClient(cfg *config.Config, log *slog.Logger) *Client {
	return newClient(&cfg.Jira, nil, log)
}

func newClient(cfg *config.JiraConfig, transport http.RoundTripper, log *slog.Logger) *Client {
	email, token := cfg.Email, cfg.APIToken
	return &Client{
		cfg: cfg,
		http: httpx.New(httpx.Options{
			Service:   "jira",
			BaseURL:   strings.TrimRight(cfg.BaseURL, "/") + "/rest/api/3",
			RateLimit: cfg.RateLimit,
			Burst:     2,
			Transport: transport,
			Authorize: func(r *http.Request) {
				r.SetBasicAuth(email, token)
			},
		}, log),
	}
}

func (c *Client) Configured() bool {
	return c.cfg.IsConfigured()
}

// CreateIssue creates an issue in the configured project. It is not retried.
func (c *Client) CreateIssue(ctx context.Context, in IssueInput) (*Issue, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	fields := map[string]any{
		"project":     map[string]string{"key": c.cfg.ProjectKey},
		"summary":     in.Summary,
		"issuetype":   map[string]string{"name": c.cfg.IssueType},
		"description": ADF(in.Description),
	}
	if len(in.Labels) > 0 {
		fields["labels"] = in.Labels
	}

	var out Issue
	err := c.http.Do(ctx, httpx.Request{
		Method: http.MethodPost,
		Path:   "/issue",
		Body:   map[string]any{"fields": fields},
		Out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// BrowseURL returns the web link of an issue key.
func (c *Client) BrowseURL(key string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/browse/" + key
}
