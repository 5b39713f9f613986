package application

import "github.com/ericfisherdev/dorametrics/internal/domain/model"

// References holds the cross-references found on a corrective pull request.
type References struct {
	Pull   *int
	Ticket *string
}

// ResolveReferences looks for a pull reference and a ticket reference in the
// comments, then the commit messages, then the description. For each kind the
// first source with a match wins; the two kinds are resolved independently.
func ResolveReferences(pr model.PullRequestFact, projectKey string) References {
	sources := [][]string{
		pr.Comments,
		pr.CommitMessages(),
		{pr.Description},
	}

	var refs References
	for _, texts := range sources {
		if refs.Pull == nil {
			refs.Pull = FindPullReference(texts...)
		}
		if refs.Ticket == nil {
			refs.Ticket = FindIssueReference(projectKey, texts...)
		}
	}
	return refs
}
