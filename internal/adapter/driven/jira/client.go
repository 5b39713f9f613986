// Package jira implements the IssueTracker port against the Jira REST API.
package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/ericfisherdev/dorametrics/internal/domain/model"
	"github.com/ericfisherdev/dorametrics/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.IssueTracker = (*Client)(nil)

// jiraTimeLayout is the timestamp format Jira uses for created and resolutiondate.
const jiraTimeLayout = "2006-01-02T15:04:05.000-0700"

// Client reads ticket state from Jira. Requests carry a bearer token from the
// configured token source and are throttled by a shared limiter.
type Client struct {
	baseURL    string
	httpClient *http.Client
	transport  http.RoundTripper // below the token transport; nil means http.DefaultTransport.
	limiter    *rate.Limiter
}

// Option configures the Client.
type Option func(*Client)

// WithRateLimit sets the requests-per-second limit for issue lookups.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
		}
	}
}

// WithBaseTransport sets the transport below the token transport.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = rt
	}
}

// NewClient creates a Client for the API rooted at baseURL. Tokens are reused
// until they expire.
func NewClient(baseURL string, tokens oauth2.TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		limiter: rate.NewLimiter(5, 5),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.httpClient = &http.Client{
		Timeout: 30 * time.Second,
		Transport: &oauth2.Transport{
			Source: oauth2.ReuseTokenSource(nil, tokens),
			Base:   c.transport,
		},
	}
	return c
}

type issueResponse struct {
	Key    string `json:"key"`
	Fields struct {
		Created        string  `json:"created"`
		ResolutionDate *string `json:"resolutiondate"`
	} `json:"fields"`
}

// GetIssue returns the creation and resolution time of the ticket.
// Returns driven.ErrIssueNotFound on 404 and driven.ErrUnauthorized on 401/403.
func (c *Client) GetIssue(ctx context.Context, key string) (*model.Issue, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/issue/%s?fields=created,resolutiondate", c.baseURL, url.PathEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request for %s: %w", key, err)
	}
	req.Header.Set("Accept", "application/json")

	slog.Debug("fetching issue", "ticket", key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch issue %s: %w", key, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("issue %s: %w", key, driven.ErrIssueNotFound)
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("issue %s (status %d): %w", key, resp.StatusCode, driven.ErrUnauthorized)
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch issue %s: status %d: %s", key, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var body issueResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode issue %s: %w", key, err)
	}

	return mapIssue(key, body)
}

func mapIssue(key string, body issueResponse) (*model.Issue, error) {
	created, err := parseTime(body.Fields.Created)
	if err != nil {
		return nil, fmt.Errorf("issue %s created: %w", key, err)
	}

	issue := &model.Issue{Key: key, CreatedAt: created}
	if body.Key != "" {
		issue.Key = body.Key
	}

	if body.Fields.ResolutionDate != nil && *body.Fields.ResolutionDate != "" {
		resolved, err := parseTime(*body.Fields.ResolutionDate)
		if err != nil {
			return nil, fmt.Errorf("issue %s resolutiondate: %w", key, err)
		}
		issue.ResolvedAt = &resolved
	}

	return issue, nil
}

// parseTime accepts Jira's own layout and RFC 3339.
func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{jiraTimeLayout, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format: %q", s)
}
