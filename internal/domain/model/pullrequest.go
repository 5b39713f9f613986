package model

import "time"

// PullRequestFact is a merged pull request as reported by the source-control
// provider. It is never mutated after the scan except for the classification
// and reference fields, which are set once by the scan service.
type PullRequestFact struct {
	Number      int
	Repo        string
	Title       string
	Description string
	Author      string
	Branch      string
	Team        string // Empty when the author is not on the roster.
	Labels      []string
	Comments    []string // Review comments followed by issue comments.
	Commits     []Commit // Not guaranteed to be sorted.
	MergedAt    time.Time
	Deployment  *Deployment // nil until a production deploy of the merge commit exists.

	// Set during the scan.
	IsCorrective     bool
	ReferencedPull   *int
	ReferencedTicket *string
}

// Commit is a single commit in a pull request.
type Commit struct {
	Message    string
	AuthoredAt time.Time
}

// Deployment is the production deploy that shipped a pull request.
type Deployment struct {
	Environment string
	DeployedAt  time.Time
}

// IsDeployed reports whether the pull request has reached production.
func (pr PullRequestFact) IsDeployed() bool {
	return pr.Deployment != nil
}

// HasLabel reports whether the pull request carries the named label.
func (pr PullRequestFact) HasLabel(name string) bool {
	for _, l := range pr.Labels {
		if l == name {
			return true
		}
	}
	return false
}

// CommitMessages returns the commit messages in the order they were fetched.
func (pr PullRequestFact) CommitMessages() []string {
	msgs := make([]string, 0, len(pr.Commits))
	for _, c := range pr.Commits {
		msgs = append(msgs, c.Message)
	}
	return msgs
}
