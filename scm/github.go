// Package scm talks to the source-control host's REST API.
package scm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

const commentsPerPage = 100

// User is the author of a comment.
type User struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

// IssueComment is a comment on an issue or pull request.
type IssueComment struct {
	ID   int64  `json:"id"`
	Body string `json:"body"`
	User *User  `json:"user"`
}

// GitHubClient is a lightweight GitHub REST API client covering issue
// comments.
type GitHubClient struct {
	baseURL string
	http    *http.Client
}

// NewGitHubClient creates a GitHubClient for the API at baseURL (for
// example https://api.github.com) authenticating with token.
func NewGitHubClient(baseURL, token string, base http.RoundTripper) *GitHubClient {
	if base == nil {
		base = http.DefaultTransport
	}
	return &GitHubClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Transport: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
				Base:   otelhttp.NewTransport(base),
			},
		},
	}
}

// ListComments returns every comment on the pull request, oldest first.
func (c *GitHubClient) ListComments(ctx context.Context, owner, repo string, number int) ([]IssueComment, error) {
	var all []IssueComment
	for page := 1; ; page++ {
		path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments?per_page=%d&page=%d", owner, repo, number, commentsPerPage, page)
		resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}
		var comments []IssueComment
		if err := json.Unmarshal(resp, &comments); err != nil {
			return nil, fmt.Errorf("github: failed to decode comments response: %w", err)
		}
		all = append(all, comments...)
		if len(comments) < commentsPerPage {
			return all, nil
		}
	}
}

// CreateComment posts a new comment on the pull request.
func (c *GitHubClient) CreateComment(ctx context.Context, owner, repo string, number int, body string) (*IssueComment, error) {
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", owner, repo, number)
	resp, err := c.doRequest(ctx, http.MethodPost, path, map[string]any{"body": body})
	if err != nil {
		return nil, err
	}
	var comment IssueComment
	if err := json.Unmarshal(resp, &comment); err != nil {
		return nil, fmt.Errorf("github: failed to decode comment response: %w", err)
	}
	return &comment, nil
}

// UpdateComment replaces the body of an existing comment.
func (c *GitHubClient) UpdateComment(ctx context.Context, owner, repo string, id int64, body string) (*IssueComment, error) {
	path := fmt.Sprintf("/repos/%s/%s/issues/comments/%d", owner, repo, id)
	resp, err := c.doRequest(ctx, http.MethodPatch, path, map[string]any{"body": body})
	if err != nil {
		return nil, err
	}
	var comment IssueComment
	if err := json.Unmarshal(resp, &comment); err != nil {
		return nil, fmt.Errorf("github: failed to decode comment response: %w", err)
	}
	return &comment, nil
}

// doRequest performs an authenticated request against the GitHub API.
func (c *GitHubClient) doRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("github: failed to encode request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("github: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("github: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("github: API error %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
