package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/dorametrics/internal/domain/model"
	"github.com/ericfisherdev/dorametrics/internal/domain/port/driven"
)

// GracePeriod is how long a corrective deploy without a reference is held
// back, giving authors time to add one.
const GracePeriod = 48 * time.Hour

// ReferenceResolutionStrategy turns a deployed corrective pull request into a
// CorrectiveDeploy row according to one resolution scheme.
type ReferenceResolutionStrategy interface {
	Scheme() model.ResolutionScheme
	// HasReference reports whether pr carries the reference this scheme is
	// primarily keyed on.
	HasReference(pr model.PullRequestFact) bool
	// CorrectiveDeploy builds the row for pr. It returns nil, nil when the row
	// is suppressed for this run. batch holds the successful deploys derived
	// in the current run for pr's repository.
	CorrectiveDeploy(ctx context.Context, pr model.PullRequestFact, batch map[model.DeployKey]model.SuccessfulDeploy, now time.Time) (*model.CorrectiveDeploy, error)
}

// NewStrategy returns the strategy for the configured scheme.
func NewStrategy(scheme model.ResolutionScheme, deploys driven.SuccessfulDeployStore) (ReferenceResolutionStrategy, error) {
	switch scheme {
	case model.SchemePull:
		return NewPullReferenceStrategy(deploys), nil
	case model.SchemeTicket:
		return NewTicketReferenceStrategy(deploys), nil
	default:
		return nil, fmt.Errorf("unsupported resolution scheme %q", scheme)
	}
}

// withinGracePeriod reports whether pr was deployed less than GracePeriod
// before now.
func withinGracePeriod(pr model.PullRequestFact, now time.Time) bool {
	return now.Sub(pr.Deployment.DeployedAt) < GracePeriod
}

func newCorrectiveDeploy(pr model.PullRequestFact) model.CorrectiveDeploy {
	return model.CorrectiveDeploy{
		Pull:             pr.Number,
		Repo:             pr.Repo,
		ReferencedPull:   pr.ReferencedPull,
		ReferencedTicket: pr.ReferencedTicket,
		Team:             pr.Team,
		DeployedAt:       pr.Deployment.DeployedAt,
	}
}

// pullRecovery computes time to recovery from the deploy of a referenced pull
// request.
type pullRecovery struct {
	deploys driven.SuccessfulDeployStore
}

// recoveryTime looks the referenced deploy up in batch first and in the store
// second. It returns nil when neither has it.
func (p pullRecovery) recoveryTime(ctx context.Context, pr model.PullRequestFact, batch map[model.DeployKey]model.SuccessfulDeploy) (*model.Minutes, error) {
	key := model.DeployKey{Repo: pr.Repo, Pull: *pr.ReferencedPull}

	referenced, ok := batch[key]
	if !ok {
		stored, err := p.deploys.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("look up referenced deploy %s: %w", key, err)
		}
		if stored == nil {
			slog.Warn("referenced pull request has no successful deploy",
				"repo", pr.Repo, "pr", pr.Number, "referenced_pull", key.Pull)
			return nil, nil
		}
		referenced = *stored
	}

	ttr := model.MinutesBetween(referenced.DeployedAt, pr.Deployment.DeployedAt)
	if ttr < 0 {
		slog.Warn("negative time to recovery",
			"repo", pr.Repo, "pr", pr.Number, "referenced_pull", key.Pull, "minutes", ttr.String())
	}
	slog.Info("corrective deploy recovery time",
		"repo", pr.Repo, "pr", pr.Number, "referenced_pull", key.Pull,
		"referenced_deployed_at", referenced.DeployedAt, "minutes", ttr.String())
	return &ttr, nil
}

// PullReferenceStrategy resolves recovery time at creation from the deploy of
// the pull request the fix references.
type PullReferenceStrategy struct {
	recovery pullRecovery
}

// NewPullReferenceStrategy creates a PullReferenceStrategy that falls back to
// deploys for references outside the current batch.
func NewPullReferenceStrategy(deploys driven.SuccessfulDeployStore) *PullReferenceStrategy {
	return &PullReferenceStrategy{recovery: pullRecovery{deploys: deploys}}
}

// Scheme implements ReferenceResolutionStrategy.
func (s *PullReferenceStrategy) Scheme() model.ResolutionScheme { return model.SchemePull }

// HasReference implements ReferenceResolutionStrategy.
func (s *PullReferenceStrategy) HasReference(pr model.PullRequestFact) bool {
	return pr.ReferencedPull != nil
}

// CorrectiveDeploy implements ReferenceResolutionStrategy.
func (s *PullReferenceStrategy) CorrectiveDeploy(ctx context.Context, pr model.PullRequestFact, batch map[model.DeployKey]model.SuccessfulDeploy, now time.Time) (*model.CorrectiveDeploy, error) {
	row := newCorrectiveDeploy(pr)

	if pr.ReferencedPull == nil {
		if withinGracePeriod(pr, now) {
			slog.Info("corrective deploy has no referenced pull request yet, holding back",
				"repo", pr.Repo, "pr", pr.Number, "deployed_at", pr.Deployment.DeployedAt)
			return nil, nil
		}
		slog.Warn("corrective deploy has no referenced pull request", "repo", pr.Repo, "pr", pr.Number)
		return &row, nil
	}

	ttr, err := s.recovery.recoveryTime(ctx, pr, batch)
	if err != nil {
		return nil, err
	}
	row.TimeToRecovery = ttr
	return &row, nil
}

// TicketReferenceStrategy records the referenced ticket and leaves recovery
// time to the incident reconciler. A fix that references a pull request but
// no ticket gets its recovery time from the pull reference instead.
type TicketReferenceStrategy struct {
	fallback pullRecovery
}

// NewTicketReferenceStrategy creates a TicketReferenceStrategy.
func NewTicketReferenceStrategy(deploys driven.SuccessfulDeployStore) *TicketReferenceStrategy {
	return &TicketReferenceStrategy{fallback: pullRecovery{deploys: deploys}}
}

// Scheme implements ReferenceResolutionStrategy.
func (s *TicketReferenceStrategy) Scheme() model.ResolutionScheme { return model.SchemeTicket }

// HasReference implements ReferenceResolutionStrategy.
func (s *TicketReferenceStrategy) HasReference(pr model.PullRequestFact) bool {
	return pr.ReferencedTicket != nil
}

// CorrectiveDeploy implements ReferenceResolutionStrategy.
func (s *TicketReferenceStrategy) CorrectiveDeploy(ctx context.Context, pr model.PullRequestFact, batch map[model.DeployKey]model.SuccessfulDeploy, now time.Time) (*model.CorrectiveDeploy, error) {
	row := newCorrectiveDeploy(pr)

	if pr.ReferencedTicket != nil {
		return &row, nil
	}

	if pr.ReferencedPull != nil {
		ttr, err := s.fallback.recoveryTime(ctx, pr, batch)
		if err != nil {
			return nil, err
		}
		row.TimeToRecovery = ttr
		return &row, nil
	}

	if withinGracePeriod(pr, now) {
		slog.Info("corrective deploy has no referenced ticket yet, holding back",
			"repo", pr.Repo, "pr", pr.Number, "deployed_at", pr.Deployment.DeployedAt)
		return nil, nil
	}
	slog.Warn("corrective deploy has no referenced ticket", "repo", pr.Repo, "pr", pr.Number)
	return &row, nil
}
