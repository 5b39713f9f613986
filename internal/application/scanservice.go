package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/dorametrics/internal/domain/model"
	"github.com/ericfisherdev/dorametrics/internal/domain/port/driven"
)

// ScanOptions configures a ScanService.
type ScanOptions struct {
	ProjectKey    string
	Concurrency   int
	ReminderTeams []string
	ReminderBody  string
}

// ScanService collects merged pull requests from the source-control provider,
// classifies them and resolves their references.
type ScanService struct {
	provider driven.SourceControlProvider
	writer   driven.SourceControlWriter // nil disables labels and reminders.
	teams    driven.TeamDirectory       // nil leaves Team empty.
	cache    driven.ScanCacheStore
	strategy ReferenceResolutionStrategy
	opts     ScanOptions
}

// NewScanService creates a ScanService.
func NewScanService(
	provider driven.SourceControlProvider,
	writer driven.SourceControlWriter,
	teams driven.TeamDirectory,
	cache driven.ScanCacheStore,
	strategy ReferenceResolutionStrategy,
	opts ScanOptions,
) *ScanService {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &ScanService{
		provider: provider,
		writer:   writer,
		teams:    teams,
		cache:    cache,
		strategy: strategy,
		opts:     opts,
	}
}

// ScanResult is the outcome of a scan. Cache holds the scan-cache entries to
// store once the pull requests have been fully processed.
type ScanResult struct {
	PullRequests []model.PullRequestFact
	Cache        []model.RepositoryScanCache
}

// repoScan is the outcome of scanning one repository.
type repoScan struct {
	prs   []model.PullRequestFact
	entry model.RepositoryScanCache
	ok    bool
}

// Scan scans all targets concurrently and returns the pull requests found.
// A repository that fails is logged and keeps its previous cache entry. The
// cache is not written; pass result.Cache to SaveCache once the pull requests
// are persisted.
func (s *ScanService) Scan(ctx context.Context, targets []model.RepositoryTarget) (ScanResult, error) {
	var result ScanResult

	cached, err := s.cache.ListAll(ctx)
	if err != nil {
		slog.Error("load scan cache failed, scanning everything", "error", err)
		cached = nil
	}
	cacheByRepo := make(map[string]model.RepositoryScanCache, len(cached))
	for _, c := range cached {
		cacheByRepo[c.Repo] = c
	}

	teamByLogin := map[string]string{}
	if s.teams != nil {
		members, err := s.teams.FetchTeamMembers(ctx)
		if err != nil {
			return result, fmt.Errorf("fetch team members: %w", err)
		}
		for _, m := range members {
			teamByLogin[strings.ToLower(m.GitHubUsername)] = m.Team
		}
		slog.Info("team roster loaded", "members", len(members))
	}

	results := make([]repoScan, len(targets))
	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, target := range targets {
		g.Go(func() error {
			prev, hasPrev := cacheByRepo[target.Name]
			scan, err := s.scanRepo(ctx, target, prev, hasPrev, teamByLogin)
			if err != nil {
				slog.Error("repo scan failed", "repo", target.FullName(), "error", err)
				return nil
			}
			results[i] = scan
			return nil
		})
	}
	_ = g.Wait()

	result.Cache = make([]model.RepositoryScanCache, 0, len(targets))
	for i, r := range results {
		if !r.ok {
			if prev, ok := cacheByRepo[targets[i].Name]; ok {
				result.Cache = append(result.Cache, prev)
			}
			continue
		}
		result.PullRequests = append(result.PullRequests, r.prs...)
		result.Cache = append(result.Cache, r.entry)
	}

	return result, ctx.Err()
}

// SaveCache replaces the stored scan cache with entries.
func (s *ScanService) SaveCache(ctx context.Context, entries []model.RepositoryScanCache) error {
	if err := s.cache.ReplaceAll(ctx, entries); err != nil {
		return fmt.Errorf("write scan cache: %w", err)
	}
	slog.Debug("scan cache saved", "repositories", len(entries))
	return nil
}

// scanRepo scans one repository unless the cache shows nothing changed.
func (s *ScanService) scanRepo(
	ctx context.Context,
	target model.RepositoryTarget,
	prev model.RepositoryScanCache,
	hasPrev bool,
	teamByLogin map[string]string,
) (repoScan, error) {
	latest, err := s.provider.LatestPullRequestNumber(ctx, target)
	if err != nil {
		return repoScan{}, err
	}

	if hasPrev && prev.LatestPullRequestNumber == latest && !prev.NeedsRescan() {
		slog.Info("no new pull requests since last scan, skipping", "repo", target.FullName(), "latest", latest)
		return repoScan{entry: prev, ok: true}, nil
	}

	entry := model.RepositoryScanCache{Repo: target.Name, LatestPullRequestNumber: latest}

	prs, err := s.provider.ListMergedPullRequests(ctx, target)
	switch {
	case errors.Is(err, driven.ErrIncompleteScan):
		slog.Warn("repo scanned partially", "repo", target.FullName(), "error", err)
		entry.HasPendingPullRequests = true
	case err != nil:
		return repoScan{}, err
	}

	for i := range prs {
		pr := &prs[i]
		pr.Team = teamByLogin[strings.ToLower(pr.Author)]

		if !pr.IsDeployed() {
			entry.HasPendingPullRequests = true
		}

		c := Classify(pr.Labels, pr.Branch)
		pr.IsCorrective = c.IsCorrective
		if c.NeedsLabel {
			s.applyCorrectiveLabel(ctx, target, pr)
		}

		refs := ResolveReferences(*pr, s.opts.ProjectKey)
		pr.ReferencedPull = refs.Pull
		pr.ReferencedTicket = refs.Ticket

		if pr.IsCorrective && !s.strategy.HasReference(*pr) {
			entry.HasUnresolvedCorrective = true
			s.remindReference(ctx, target, *pr)
		}
	}

	slog.Info("repo scanned",
		"repo", target.FullName(),
		"merged", len(prs),
		"latest", latest,
		"unresolved_corrective", entry.HasUnresolvedCorrective,
		"pending", entry.HasPendingPullRequests,
	)

	return repoScan{prs: prs, entry: entry, ok: true}, nil
}

// applyCorrectiveLabel adds the corrective label. Failure does not change the
// classification.
func (s *ScanService) applyCorrectiveLabel(ctx context.Context, target model.RepositoryTarget, pr *model.PullRequestFact) {
	if s.writer == nil {
		return
	}
	if err := s.writer.AddLabels(ctx, target.FullName(), pr.Number, []string{model.CorrectiveLabel}); err != nil {
		slog.Warn("add corrective label failed", "repo", target.FullName(), "pr", pr.Number, "error", err)
		return
	}
	pr.Labels = append(pr.Labels, model.CorrectiveLabel)
	slog.Info("corrective label added", "repo", target.FullName(), "pr", pr.Number, "branch", pr.Branch)
}

// remindReference asks the author for a reference, once, if their team opted in.
func (s *ScanService) remindReference(ctx context.Context, target model.RepositoryTarget, pr model.PullRequestFact) {
	if s.writer == nil || s.opts.ReminderBody == "" || pr.Team == "" {
		return
	}
	if !slices.ContainsFunc(s.opts.ReminderTeams, func(t string) bool { return strings.EqualFold(t, pr.Team) }) {
		return
	}
	if slices.Contains(pr.Comments, s.opts.ReminderBody) {
		return
	}
	if err := s.writer.CreateIssueComment(ctx, target.FullName(), pr.Number, s.opts.ReminderBody); err != nil {
		slog.Warn("reference reminder failed", "repo", target.FullName(), "pr", pr.Number, "error", err)
		return
	}
	slog.Info("reference reminder posted", "repo", target.FullName(), "pr", pr.Number, "team", pr.Team)
}
