package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/dorametrics/internal/domain/model"
)

// ErrIncompleteScan is wrapped by ListMergedPullRequests when some pull
// requests could not be fetched. The returned slice holds the others.
var ErrIncompleteScan = errors.New("incomplete pull request scan")

// SourceControlProvider defines the driven port for reading merged pull
// requests and their production deploys.
type SourceControlProvider interface {
	// ListMergedPullRequests returns the most recent merged pull requests of the
	// target. Pull requests without a production deploy have a nil Deployment.
	// A pull request whose details fail to load is left out and reported
	// through an error wrapping ErrIncompleteScan.
	ListMergedPullRequests(ctx context.Context, target model.RepositoryTarget) ([]model.PullRequestFact, error)
	// LatestPullRequestNumber returns the number of the most recently created
	// closed pull request, or 0 when the repository has none.
	LatestPullRequestNumber(ctx context.Context, target model.RepositoryTarget) (int, error)
}

// SourceControlWriter defines the driven port for the few mutations the scan
// requests of the source-control system.
type SourceControlWriter interface {
	AddLabels(ctx context.Context, repoFullName string, number int, labels []string) error
	CreateIssueComment(ctx context.Context, repoFullName string, number int, body string) error
}

// TeamDirectory resolves GitHub logins to owning teams.
type TeamDirectory interface {
	FetchTeamMembers(ctx context.Context) ([]model.TeamMember, error)
}
