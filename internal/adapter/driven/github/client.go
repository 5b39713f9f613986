// Package github implements the source-control ports using the go-github library.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/dorametrics/internal/domain/model"
	"github.com/ericfisherdev/dorametrics/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SourceControlProvider = (*Client)(nil)

// DefaultPullRequestLimit is used when a non-positive limit is configured.
const DefaultPullRequestLimit = 50

// Client implements the driven.SourceControlProvider port using the go-github library.
type Client struct {
	gh    *gh.Client
	limit int // closed pull requests inspected per repository.
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
func NewClient(token string, limit int) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Client{gh: client, limit: normalizeLimit(limit)}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string, limit int) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{gh: client, limit: normalizeLimit(limit)}, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultPullRequestLimit
	}
	return limit
}

// LatestPullRequestNumber returns the number of the most recently created
// closed pull request, or 0 when there is none.
func (c *Client) LatestPullRequestNumber(ctx context.Context, target model.RepositoryTarget) (int, error) {
	owner, repo, err := splitRepo(target.FullName())
	if err != nil {
		return 0, err
	}

	opts := &gh.PullRequestListOptions{
		State:       "closed",
		Sort:        "created",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: 1},
	}

	prs, resp, err := c.gh.PullRequests.List(ctx, owner, repo, opts)
	if err != nil {
		return 0, fmt.Errorf("listing latest pull request for %s: %w", target.FullName(), err)
	}

	logRateLimit(resp, target.FullName()+"/latest", 0, len(prs))

	if len(prs) == 0 {
		return 0, nil
	}
	return prs[0].GetNumber(), nil
}

// ListMergedPullRequests inspects the most recent closed pull requests of the
// target, up to the client's limit, and returns the merged ones with their
// commits, comments and production deployment.
func (c *Client) ListMergedPullRequests(ctx context.Context, target model.RepositoryTarget) ([]model.PullRequestFact, error) {
	owner, repo, err := splitRepo(target.FullName())
	if err != nil {
		return nil, err
	}

	opts := &gh.PullRequestListOptions{
		State:     "closed",
		Sort:      "created",
		Direction: "desc",
		ListOptions: gh.ListOptions{
			PerPage: min(c.limit, 100),
		},
	}

	var closed []*gh.PullRequest
	for len(closed) < c.limit {
		prs, resp, err := c.gh.PullRequests.List(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("listing pull requests for %s (page %d): %w", target.FullName(), opts.Page, err)
		}

		logRateLimit(resp, target.FullName(), opts.Page, len(prs))
		closed = append(closed, prs...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	if len(closed) > c.limit {
		closed = closed[:c.limit]
	}

	facts := []model.PullRequestFact{}
	var failed []error
	for _, pr := range closed {
		if pr.MergedAt == nil {
			continue
		}

		fact, err := c.buildFact(ctx, owner, repo, target, pr)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			slog.Error("skipping pull request", "repo", target.FullName(), "pr", pr.GetNumber(), "error", err)
			failed = append(failed, fmt.Errorf("pull request #%d: %w", pr.GetNumber(), err))
			continue
		}
		facts = append(facts, fact)
	}

	if len(failed) > 0 {
		return facts, fmt.Errorf("%w: %d pull requests of %s: %w",
			driven.ErrIncompleteScan, len(failed), target.FullName(), errors.Join(failed...))
	}
	return facts, nil
}

// buildFact fetches everything derivation needs about one merged pull request.
func (c *Client) buildFact(ctx context.Context, owner, repo string, target model.RepositoryTarget, pr *gh.PullRequest) (model.PullRequestFact, error) {
	fact := mapPullRequest(pr, target.Name)

	commits, err := c.fetchCommits(ctx, owner, repo, fact.Number)
	if err != nil {
		return fact, err
	}
	fact.Commits = commits

	reviewComments, err := c.fetchReviewComments(ctx, owner, repo, fact.Number)
	if err != nil {
		return fact, err
	}
	issueComments, err := c.fetchIssueComments(ctx, owner, repo, fact.Number)
	if err != nil {
		return fact, err
	}
	fact.Comments = append(reviewComments, issueComments...)

	fact.Deployment, err = c.findDeployment(ctx, owner, repo, target, pr)
	if err != nil {
		return fact, err
	}

	return fact, nil
}

// fetchCommits retrieves all commits of a pull request.
// It handles pagination automatically.
func (c *Client) fetchCommits(ctx context.Context, owner, repo string, number int) ([]model.Commit, error) {
	opts := &gh.ListOptions{PerPage: 100}
	var all []model.Commit

	for {
		commits, resp, err := c.gh.PullRequests.ListCommits(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("listing commits for %s/%s#%d (page %d): %w", owner, repo, number, opts.Page, err)
		}

		for _, rc := range commits {
			all = append(all, model.Commit{
				Message:    rc.GetCommit().GetMessage(),
				AuthoredAt: rc.GetCommit().GetAuthor().GetDate().Time,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// fetchReviewComments retrieves the bodies of all review comments (inline code comments) of a pull request.
func (c *Client) fetchReviewComments(ctx context.Context, owner, repo string, number int) ([]string, error) {
	opts := &gh.PullRequestListCommentsOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}
	var bodies []string

	for {
		comments, resp, err := c.gh.PullRequests.ListComments(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("listing review comments for %s/%s#%d (page %d): %w", owner, repo, number, opts.Page, err)
		}

		for _, comment := range comments {
			bodies = append(bodies, comment.GetBody())
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return bodies, nil
}

// fetchIssueComments retrieves the bodies of all general PR-level comments (from the Issues API).
func (c *Client) fetchIssueComments(ctx context.Context, owner, repo string, number int) ([]string, error) {
	opts := &gh.IssueListCommentsOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}
	var bodies []string

	for {
		comments, resp, err := c.gh.Issues.ListComments(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("listing issue comments for %s/%s#%d (page %d): %w", owner, repo, number, opts.Page, err)
		}

		for _, comment := range comments {
			bodies = append(bodies, comment.GetBody())
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return bodies, nil
}

// findDeployment looks for the successful run of the target's deploy workflow
// on the merge commit and, within it, the first successful job whose name
// contains the target's deploy job. Returns nil, nil when none exists yet.
func (c *Client) findDeployment(ctx context.Context, owner, repo string, target model.RepositoryTarget, pr *gh.PullRequest) (*model.Deployment, error) {
	sha := pr.GetMergeCommitSHA()
	if sha == "" || target.Workflow == "" {
		return nil, nil
	}

	branch := pr.GetBase().GetRef()
	if branch == "" {
		branch = "main"
	}

	runs, resp, err := c.gh.Actions.ListRepositoryWorkflowRuns(ctx, owner, repo, &gh.ListWorkflowRunsOptions{
		Branch:      branch,
		Status:      "success",
		HeadSHA:     sha,
		ListOptions: gh.ListOptions{PerPage: 100},
	})
	if err != nil {
		return nil, fmt.Errorf("listing workflow runs for %s/%s@%s: %w", owner, repo, sha, err)
	}

	logRateLimit(resp, target.FullName()+"/workflow-runs", 0, len(runs.WorkflowRuns))

	var run *gh.WorkflowRun
	for _, r := range runs.WorkflowRuns {
		if strings.EqualFold(r.GetName(), target.Workflow) {
			run = r
			break
		}
	}
	if run == nil {
		return nil, nil
	}

	jobs, resp, err := c.gh.Actions.ListWorkflowJobs(ctx, owner, repo, run.GetID(), &gh.ListWorkflowJobsOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	})
	if err != nil {
		return nil, fmt.Errorf("listing jobs of run %d for %s/%s: %w", run.GetID(), owner, repo, err)
	}

	logRateLimit(resp, target.FullName()+"/jobs", 0, len(jobs.Jobs))

	jobName := strings.ToLower(target.Job)
	for _, job := range jobs.Jobs {
		if job.GetConclusion() != "success" || job.CompletedAt == nil {
			continue
		}
		if strings.Contains(strings.ToLower(job.GetName()), jobName) {
			return &model.Deployment{
				Environment: model.Production,
				DeployedAt:  job.GetCompletedAt().Time,
			}, nil
		}
	}

	slog.Warn("deploy workflow succeeded without a matching deploy job",
		"repo", target.FullName(), "pr", pr.GetNumber(), "run", run.GetID(), "job", target.Job)
	return nil, nil
}

// mapPullRequest converts a go-github PullRequest to a domain PullRequestFact.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapPullRequest(pr *gh.PullRequest, repoName string) model.PullRequestFact {
	labels := make([]string, 0, len(pr.Labels))
	for _, l := range pr.Labels {
		labels = append(labels, l.GetName())
	}

	return model.PullRequestFact{
		Number:      pr.GetNumber(),
		Repo:        repoName,
		Title:       pr.GetTitle(),
		Description: pr.GetBody(),
		Author:      pr.GetUser().GetLogin(),
		Branch:      pr.GetHead().GetRef(),
		Labels:      labels,
		MergedAt:    pr.GetMergedAt().Time,
	}
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Remaining < 100 && resp.Rate.Limit > 0 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// splitRepo splits a "owner/repo" string into its two components.
func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
