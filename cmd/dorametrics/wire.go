package main

import (
	"context"
	"fmt"
	"log/slog"

	githubadapter "github.com/ericfisherdev/dorametrics/internal/adapter/driven/github"
	jiraadapter "github.com/ericfisherdev/dorametrics/internal/adapter/driven/jira"
	sqliteadapter "github.com/ericfisherdev/dorametrics/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/dorametrics/internal/adapter/driven/texas"
	"github.com/ericfisherdev/dorametrics/internal/application"
	"github.com/ericfisherdev/dorametrics/internal/config"
	"github.com/ericfisherdev/dorametrics/internal/domain/model"
	"github.com/ericfisherdev/dorametrics/internal/domain/port/driven"
)

// stores groups the SQLite-backed ports.
type stores struct {
	db         *sqliteadapter.DB
	successful *sqliteadapter.SuccessfulDeployRepo
	corrective *sqliteadapter.CorrectiveDeployRepo
	incidents  *sqliteadapter.IncidentRepo
	cache      *sqliteadapter.ScanCacheRepo
}

// openStores opens the database (dual reader/writer with WAL mode) and runs
// migrations on the writer connection.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	slog.Info("database opened", "path", db.Path())

	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("migrations complete")

	return &stores{
		db:         db,
		successful: sqliteadapter.NewSuccessfulDeployRepo(db),
		corrective: sqliteadapter.NewCorrectiveDeployRepo(db),
		incidents:  sqliteadapter.NewIncidentRepo(db),
		cache:      sqliteadapter.NewScanCacheRepo(db),
	}, nil
}

func (s *stores) Close() {
	if err := s.db.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// buildPipeline wires the adapters for a full run under cfg.
func buildPipeline(cfg *config.Config, s *stores) (*application.PipelineService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	targets, err := config.LoadRepositories(cfg.RepositoriesFile, cfg.GitHubOwner)
	if err != nil {
		return nil, err
	}

	gh := githubadapter.NewClient(cfg.GitHubToken, cfg.PullRequestLimit)
	checks := []driven.CredentialChecker{gh}

	var teams driven.TeamDirectory
	if cfg.TeamRoster != "" {
		roster, err := githubadapter.NewTeamRoster(gh, cfg.TeamRoster)
		if err != nil {
			return nil, err
		}
		teams = roster
	}

	strategy, err := application.NewStrategy(cfg.Scheme, s.successful)
	if err != nil {
		return nil, err
	}

	scanner := application.NewScanService(gh, gh, teams, s.cache, strategy, application.ScanOptions{
		ProjectKey:    cfg.ProjectKey,
		Concurrency:   cfg.ScanConcurrency,
		ReminderTeams: cfg.ReminderTeams,
		ReminderBody:  cfg.ReminderMessage,
	})
	metrics := application.NewMetricsService(s.successful, s.corrective, strategy)

	var reconciler *application.ReconcileService
	if cfg.Scheme == model.SchemeTicket {
		tokens := texas.NewTokenSource(cfg.TokenEndpoint, cfg.TokenScope, nil)
		tracker := jiraadapter.NewClient(cfg.JiraURL, tokens, jiraadapter.WithRateLimit(cfg.JiraRate))
		reconciler = application.NewReconcileService(s.corrective, s.incidents, tracker, cfg.JiraConcurrency)
		checks = append(checks, tokens)
	}

	slog.Info("pipeline configured",
		"scheme", cfg.Scheme,
		"repositories", len(targets),
		"pull_request_limit", cfg.PullRequestLimit,
		"team_roster", cfg.TeamRoster != "",
	)

	return application.NewPipelineService(scanner, metrics, reconciler, checks, targets), nil
}

func logRunReport(report application.RunReport) {
	args := []any{
		"pull_requests", report.PullRequests,
		"successful_candidates", report.Deploys.SuccessfulCandidates,
		"successful_inserted", report.Deploys.Successful.Inserted,
		"corrective_candidates", report.Deploys.CorrectiveCandidates,
		"corrective_inserted", report.Deploys.Corrective.Inserted,
	}
	if r := report.Reconcile; r != nil {
		args = append(args,
			"tickets_checked", r.Candidates,
			"incidents_inserted", r.Insert.Inserted,
			"tickets_unresolved", r.Unresolved,
			"ticket_lookups_failed", r.Failed,
		)
	}
	slog.Info("run summary", args...)
}

func runFailed(step string, err error) error {
	return fmt.Errorf("%s: %w", step, err)
}
