// Package gitlab is a small GitLab REST v4 client for pushing automation
// scripts and filing issues.
package gitlab

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/emergent-company/testmind/internal/config"
	"github.com/emergent-company/testmind/pkg/integrations/httpx"
)

// ErrNotConfigured is returned when no GitLab token or project is set.
var ErrNotConfigured = errors.New("gitlab integration is not configured")

type Branch struct {
	Name   string `json:"name"`
	WebURL string `json:"web_url"`
	Commit struct {
		ID string `json:"id"`
	} `json:"commit"`
}

type File struct {
	FilePath string `json:"file_path"`
	Branch   string `json:"branch"`
}

type Issue struct {
	ID     int    `json:"id"`
	IID    int    `json:"iid"`
	Title  string `json:"title"`
	WebURL string `json:"web_url"`
}

// IssueInput describes an issue to create.
type IssueInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Labels      []string `json:"-"`
}

type Client struct {
	cfg  *config.GitLabConfig
	http *httpx.Client
}

func NewClient(cfg *config.Config, log *slog.Logger) *Client {
	return newClient(&cfg.GitLab, nil, log)
}

func newClient(cfg *config.GitLabConfig, transport http.RoundTripper, log *slog.Logger) *Client {
	token := cfg.Token
	return &Client{
		cfg: cfg,
		http: httpx.New(httpx.Options{
			Service:     "gitlab",
			BaseURL:     strings.TrimRight(cfg.BaseURL, "/") + "/api/v4",
			RateLimit:   cfg.RateLimit,
			Burst:       2,
			MaxAttempts: cfg.MaxRetries,
			Transport:   transport,
			Authorize: func(r *http.Request) {
				r.Header.Set("PRIVATE-TOKEN", token)
			},
		}, log),
	}
}

func (c *Client) Configured() bool {
	return c.cfg.IsConfigured()
}

func (c *Client) projectPath() string {
	return "/projects/" + url.PathEscape(c.cfg.ProjectID)
}

// CreateBranch creates branch from ref (the configured base branch when
// empty). Network failures are retried.
func (c *Client) CreateBranch(ctx context.Context, branch, ref string) (*Branch, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if ref == "" {
		ref = c.cfg.BaseBranch
	}
	var out Branch
	err := c.http.Do(ctx, httpx.Request{
		Method: http.MethodPost,
		Path:   c.projectPath() + "/repository/branches",
		Body:   map[string]string{"branch": branch, "ref": ref},
		Out:    &out,
		Retry:  true,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadFile commits content to path on branch, updating the file when it
// already exists. Network failures are retried.
func (c *Client) UploadFile(ctx context.Context, branch, path, content, message string) (*File, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	body := map[string]string{
		"branch":         branch,
		"content":        content,
		"commit_message": message,
	}
	filePath := c.projectPath() + "/repository/files/" + url.PathEscape(strings.TrimPrefix(path, "/"))

	var out File
	err := c.http.Do(ctx, httpx.Request{Method: http.MethodPost, Path: filePath, Body: body, Out: &out, Retry: true})
	var httpErr *httpx.HTTPError
	if errors.As(err, &httpErr) && httpErr.Status == http.StatusBadRequest && strings.Contains(httpErr.Body, "already exists") {
		err = c.http.Do(ctx, httpx.Request{Method: http.MethodPut, Path: filePath, Body: body, Out: &out, Retry: true})
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateIssue files an issue. It is not retried, so a lost response never
// produces a duplicate issue.
func (c *Client) CreateIssue(ctx context.Context, in IssueInput) (*Issue, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	body := map[string]string{"title": in.Title, "description": in.Description}
	if len(in.Labels) > 0 {
		body["labels"] = strings.Join(in.Labels, ",")
	}
	var out Issue
	err := c.http.Do(ctx, httpx.Request{
		Method: http.MethodPost,
		Path:   c.projectPath() + "/issues",
		Body:   body,
		Out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
