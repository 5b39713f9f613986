package application

import (
	"time"

	"github.com/ericfisherdev/dorametrics/internal/domain/model"
)

// LastCommit returns the commit with the latest AuthoredAt. On ties the first
// one encountered wins. Returns false for an empty slice.
func LastCommit(commits []model.Commit) (model.Commit, bool) {
	if len(commits) == 0 {
		return model.Commit{}, false
	}
	last := commits[0]
	for _, c := range commits[1:] {
		if c.AuthoredAt.After(last.AuthoredAt) {
			last = c
		}
	}
	return last, true
}

// LeadTime returns the minutes from the last commit of a deployed pull
// request to its production deploy. A pull request without commits is
// measured from its merge time. Negative values are returned unchanged.
func LeadTime(pr model.PullRequestFact) model.Minutes {
	var changedAt time.Time
	if last, ok := LastCommit(pr.Commits); ok {
		changedAt = last.AuthoredAt
	} else {
		changedAt = pr.MergedAt
	}
	return model.MinutesBetween(changedAt, pr.Deployment.DeployedAt)
}
