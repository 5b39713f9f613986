package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/dorametrics/internal/domain/model"
	"github.com/ericfisherdev/dorametrics/internal/domain/port/driven"
)

// DeployRows are the deploy facts derived in one run.
type DeployRows struct {
	Successful []model.SuccessfulDeploy
	Corrective []model.CorrectiveDeploy
}

// PersistResult reports the inserts of one Persist call.
type PersistResult struct {
	SuccessfulCandidates int
	CorrectiveCandidates int
	Successful           driven.InsertReport
	Corrective           driven.InsertReport
}

// Complete reports whether every candidate row was stored or already present.
func (r PersistResult) Complete() bool {
	return len(r.Successful.Failed) == 0 && len(r.Corrective.Failed) == 0
}

// MetricsService derives deploy facts from scanned pull requests and stores
// the new ones.
type MetricsService struct {
	successful driven.SuccessfulDeployStore
	corrective driven.CorrectiveDeployStore
	strategy   ReferenceResolutionStrategy
}

// NewMetricsService creates a MetricsService.
func NewMetricsService(
	successful driven.SuccessfulDeployStore,
	corrective driven.CorrectiveDeployStore,
	strategy ReferenceResolutionStrategy,
) *MetricsService {
	return &MetricsService{
		successful: successful,
		corrective: corrective,
		strategy:   strategy,
	}
}

// Derive builds a SuccessfulDeploy for every deployed pull request and a
// CorrectiveDeploy for every deployed corrective one. Pull requests that are
// not deployed are skipped. now is the run's snapshot of the wall clock.
//
// A corrective pull request whose row cannot be built is skipped and logged.
// If ctx is canceled, the rows derived so far are returned with ctx's error.
func (s *MetricsService) Derive(ctx context.Context, prs []model.PullRequestFact, now time.Time) (DeployRows, error) {
	var rows DeployRows
	batch := make(map[model.DeployKey]model.SuccessfulDeploy, len(prs))

	for _, pr := range prs {
		if !pr.IsDeployed() {
			continue
		}

		leadTime := LeadTime(pr)
		if leadTime < 0 {
			slog.Warn("negative lead time", "repo", pr.Repo, "pr", pr.Number, "minutes", leadTime.String())
		}
		slog.Info("successful deploy", "repo", pr.Repo, "pr", pr.Number, "lead_time", leadTime.String())

		deploy := model.SuccessfulDeploy{
			Pull:       pr.Number,
			Repo:       pr.Repo,
			Team:       pr.Team,
			DeployedAt: pr.Deployment.DeployedAt,
			LeadTime:   leadTime,
		}
		rows.Successful = append(rows.Successful, deploy)
		if _, ok := batch[deploy.Key()]; !ok {
			batch[deploy.Key()] = deploy
		}
	}

	for _, pr := range prs {
		if !pr.IsDeployed() || !pr.IsCorrective {
			continue
		}
		if err := ctx.Err(); err != nil {
			return rows, err
		}

		row, err := s.strategy.CorrectiveDeploy(ctx, pr, batch, now)
		if err != nil {
			slog.Error("corrective deploy skipped", "repo", pr.Repo, "pr", pr.Number, "error", err)
			continue
		}
		if row != nil {
			rows.Corrective = append(rows.Corrective, *row)
		}
	}

	return rows, nil
}

// Persist inserts the rows whose keys are not stored yet. Existing keys for
// both tables are read before the first insert.
func (s *MetricsService) Persist(ctx context.Context, rows DeployRows) (PersistResult, error) {
	result := PersistResult{
		SuccessfulCandidates: len(rows.Successful),
		CorrectiveCandidates: len(rows.Corrective),
	}

	successfulKeys := make([]model.DeployKey, 0, len(rows.Successful))
	for _, r := range rows.Successful {
		successfulKeys = append(successfulKeys, r.Key())
	}
	correctiveKeys := make([]model.DeployKey, 0, len(rows.Corrective))
	for _, r := range rows.Corrective {
		correctiveKeys = append(correctiveKeys, r.Key())
	}

	existingSuccessful, err := s.successful.ExistingKeys(ctx, successfulKeys)
	if err != nil {
		return result, fmt.Errorf("read existing successful deploys: %w", err)
	}
	existingCorrective, err := s.corrective.ExistingKeys(ctx, correctiveKeys)
	if err != nil {
		return result, fmt.Errorf("read existing corrective deploys: %w", err)
	}

	newSuccessful := FilterNew(rows.Successful, model.SuccessfulDeploy.Key, existingSuccessful)
	newCorrective := FilterNew(rows.Corrective, model.CorrectiveDeploy.Key, existingCorrective)
	slog.Info("filtered deploys to insert",
		"successful", len(newSuccessful), "successful_candidates", len(rows.Successful),
		"corrective", len(newCorrective), "corrective_candidates", len(rows.Corrective),
	)

	result.Successful, err = s.successful.Insert(ctx, newSuccessful)
	logInsertReport("successful_deploys", result.Successful)
	if err != nil {
		return result, fmt.Errorf("insert successful deploys: %w", err)
	}

	result.Corrective, err = s.corrective.Insert(ctx, newCorrective)
	logInsertReport("corrective_deploys", result.Corrective)
	if err != nil {
		return result, fmt.Errorf("insert corrective deploys: %w", err)
	}

	return result, nil
}

// logInsertReport logs an insert outcome, one error line per rejected row.
func logInsertReport(table string, report driven.InsertReport) {
	for _, f := range report.Failed {
		slog.Error("row rejected", "table", table, "key", f.Key, "reason", f.Reason)
	}
	slog.Info("rows inserted", "table", table, "inserted", report.Inserted, "failed", len(report.Failed))
}
