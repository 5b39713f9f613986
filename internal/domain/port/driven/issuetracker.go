package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/dorametrics/internal/domain/model"
)

// Sentinel errors returned by IssueTracker implementations.
var (
	// ErrIssueNotFound indicates the ticket key does not exist.
	ErrIssueNotFound = errors.New("issue not found")

	// ErrUnauthorized indicates the tracker rejected the credentials.
	ErrUnauthorized = errors.New("issue tracker unauthorized")
)

// IssueTracker defines the driven port for reading ticket state.
type IssueTracker interface {
	GetIssue(ctx context.Context, key string) (*model.Issue, error)
}

// CredentialChecker is implemented by adapters that can verify their
// credentials up front, before a run writes anything.
type CredentialChecker interface {
	CheckCredentials(ctx context.Context) error
}
