package model

// RepositoryTarget is a repository whose production deploys are measured.
// Workflow is the exact name of the deploy workflow and Job a case-insensitive
// substring of the job that deploys to production.
type RepositoryTarget struct {
	Owner    string `yaml:"-"`
	Name     string `yaml:"name"`
	Workflow string `yaml:"workflow"`
	Job      string `yaml:"job"`
}

// FullName returns "owner/name".
func (r RepositoryTarget) FullName() string {
	return r.Owner + "/" + r.Name
}

// RepositoryScanCache records what the last scan of a repository saw, so the
// next run can skip repositories that have not changed.
type RepositoryScanCache struct {
	Repo                    string
	LatestPullRequestNumber int
	HasUnresolvedCorrective bool
	// HasPendingPullRequests is set when a merged pull request was not yet
	// deployed or could not be fetched completely.
	HasPendingPullRequests bool
}

// NeedsRescan reports whether the repository must be scanned again even if
// no new pull request was closed.
func (c RepositoryScanCache) NeedsRescan() bool {
	return c.HasUnresolvedCorrective || c.HasPendingPullRequests
}
