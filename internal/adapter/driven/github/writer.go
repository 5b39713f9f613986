package github

import (
	"context"
	"fmt"
	"log/slog"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/dorametrics/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.SourceControlWriter = (*Client)(nil)
	_ driven.CredentialChecker   = (*Client)(nil)
)

// CheckCredentials verifies that the configured token is accepted by GitHub.
func (c *Client) CheckCredentials(ctx context.Context) error {
	user, resp, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return fmt.Errorf("github token validation failed: %w", err)
	}

	logRateLimit(resp, "user", 0, 1)
	slog.Debug("github token valid", "login", user.GetLogin())
	return nil
}

// AddLabels adds labels to a pull request, keeping the ones it already has.
func (c *Client) AddLabels(ctx context.Context, repoFullName string, prNumber int, labels []string) error {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}

	_, resp, err := c.gh.Issues.AddLabelsToIssue(ctx, owner, repo, prNumber, labels)
	if err != nil {
		return fmt.Errorf("adding labels to %s#%d: %w", repoFullName, prNumber, err)
	}

	logRateLimit(resp, repoFullName+"/labels", 0, len(labels))
	return nil
}

// CreateIssueComment creates a top-level (non-diff) comment on a pull request.
func (c *Client) CreateIssueComment(ctx context.Context, repoFullName string, prNumber int, body string) error {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}

	_, resp, err := c.gh.Issues.CreateComment(ctx, owner, repo, prNumber, &gh.IssueComment{
		Body: gh.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("creating issue comment on %s#%d: %w", repoFullName, prNumber, err)
	}

	logRateLimit(resp, repoFullName+"/comments", 0, 1)
	return nil
}
