// Package jira is a small REST client for the Jira operations the triage
// pipeline needs: searching issues and updating fields.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds every request made by Client.
const DefaultTimeout = 30 * time.Second

const maxErrorBody = 512

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("jira: status %d: %s", e.StatusCode, e.Body)
}

// NamedRef is the {"name": ...} shape Jira uses for components, teams, etc.
type NamedRef struct {
	Name string `json:"name"`
}

// Issue is the subset of an issue used to build the triage prompt.
type Issue struct {
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

type IssueFields struct {
	Summary     string     `json:"summary"`
	Description string     `json:"description"`
	Components  []NamedRef `json:"components"`
	IssueType   *NamedRef  `json:"issuetype,omitempty"`
	Status      *NamedRef  `json:"status,omitempty"`
	Priority    *NamedRef  `json:"priority,omitempty"`
}

type searchResponse struct {
	Total  int     `json:"total"`
	Issues []Issue `json:"issues"`
}

// Client talks to one Jira server with a personal access token.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
}

type ClientOption func(*Client)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.http = c }
}

// NewClient validates serverURL and token; it makes no network calls.
func NewClient(serverURL, token string, opts ...ClientOption) (*Client, error) {
	if strings.TrimSpace(serverURL) == "" {
		return nil, errors.New("jira: server url is empty")
	}
	if token == "" {
		return nil, errors.New("jira: token is empty")
	}
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("jira: parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("jira: unsupported scheme %q", u.Scheme)
	}

	c := &Client{
		baseURL: u,
		token:   token,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// UpdateIssue sets fields on issue key in a single request.
func (c *Client) UpdateIssue(ctx context.Context, key string, fields map[string]any) error {
	body, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return fmt.Errorf("jira: encode update: %w", err)
	}
	_, err = c.do(ctx, http.MethodPut, "/rest/api/2/issue/"+url.PathEscape(key), nil, body)
	return err
}

// SearchIssues runs jql and returns at most limit issues.
func (c *Client) SearchIssues(ctx context.Context, jql string, limit int) ([]Issue, error) {
	q := url.Values{}
	q.Set("jql", jql)
	q.Set("maxResults", strconv.Itoa(limit))
	q.Set("fields", "summary,description,components,issuetype,status,priority")

	b, err := c.do(ctx, http.MethodGet, "/rest/api/2/search", q, nil)
	if err != nil {
		return nil, err
	}
	var resp searchResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		return nil, fmt.Errorf("jira: decode search: %w", err)
	}
	return resp.Issues, nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body []byte) ([]byte, error) {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = q.Encode()

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), r)
	if err != nil {
		return nil, fmt.Errorf("jira: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jira: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("jira: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(respBody))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody] + "..."
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: msg}
	}
	return respBody, nil
}
