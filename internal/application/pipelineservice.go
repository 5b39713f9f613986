// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/dorametrics/internal/domain/model"
	"github.com/ericfisherdev/dorametrics/internal/domain/port/driven"
)

// ErrPreflight marks a run that did not start because a credential or
// configuration check failed. Nothing was written.
var ErrPreflight = errors.New("preflight check failed")

// RunReport summarizes one pipeline run.
type RunReport struct {
	StartedAt    time.Time
	Duration     time.Duration
	PullRequests int
	Deploys      PersistResult
	Reconcile    *ReconcileResult // nil when the scheme does not reconcile.
}

// runRequest represents a manual run trigger.
type runRequest struct {
	done chan runResult
}

type runResult struct {
	report RunReport
	err    error
}

// PipelineService runs scan, derivation, persistence and reconciliation, on a
// schedule or on demand.
type PipelineService struct {
	scanner    *ScanService
	metrics    *MetricsService
	reconciler *ReconcileService // nil disables reconciliation.
	checks     []driven.CredentialChecker
	targets    []model.RepositoryTarget
	now        func() time.Time
	runCh      chan runRequest
}

// NewPipelineService creates a PipelineService. reconciler may be nil.
func NewPipelineService(
	scanner *ScanService,
	metrics *MetricsService,
	reconciler *ReconcileService,
	checks []driven.CredentialChecker,
	targets []model.RepositoryTarget,
) *PipelineService {
	return &PipelineService{
		scanner:    scanner,
		metrics:    metrics,
		reconciler: reconciler,
		checks:     checks,
		targets:    targets,
		now:        time.Now,
		runCh:      make(chan runRequest),
	}
}

// WithClock replaces the wall clock used to snapshot "now" for each run.
func (s *PipelineService) WithClock(now func() time.Time) *PipelineService {
	s.now = now
	return s
}

// RunOnce executes one complete run. The wall clock is read once, at the
// start, and used for every grace-period decision of the run.
func (s *PipelineService) RunOnce(ctx context.Context) (RunReport, error) {
	report := RunReport{StartedAt: s.now()}

	for _, c := range s.checks {
		if err := c.CheckCredentials(ctx); err != nil {
			return report, fmt.Errorf("%w: %w", ErrPreflight, err)
		}
	}

	scan, err := s.scanner.Scan(ctx, s.targets)
	report.PullRequests = len(scan.PullRequests)
	if err != nil {
		return report, fmt.Errorf("scan: %w", err)
	}

	rows, err := s.metrics.Derive(ctx, scan.PullRequests, report.StartedAt)
	if err != nil {
		return report, fmt.Errorf("derive: %w", err)
	}

	report.Deploys, err = s.metrics.Persist(ctx, rows)
	if err != nil {
		return report, fmt.Errorf("persist: %w", err)
	}

	// The scan cache only advances once every derived row is stored, so the
	// repositories holding unstored rows are scanned again next run.
	if report.Deploys.Complete() {
		if err := s.scanner.SaveCache(ctx, scan.Cache); err != nil {
			slog.Error("save scan cache failed", "error", err)
		}
	} else {
		slog.Warn("scan cache not advanced, some deploys were not stored",
			"successful_failed", len(report.Deploys.Successful.Failed),
			"corrective_failed", len(report.Deploys.Corrective.Failed),
		)
	}

	if s.reconciler != nil {
		result, err := s.reconciler.Reconcile(ctx)
		report.Reconcile = &result
		if err != nil {
			return report, fmt.Errorf("reconcile: %w", err)
		}
	}

	report.Duration = s.now().Sub(report.StartedAt)
	slog.Info("run complete",
		"pull_requests", report.PullRequests,
		"successful_inserted", report.Deploys.Successful.Inserted,
		"corrective_inserted", report.Deploys.Corrective.Inserted,
		"duration", report.Duration.Round(time.Millisecond),
	)
	return report, nil
}

// Reconcile runs only the reconciliation step.
func (s *PipelineService) Reconcile(ctx context.Context) (ReconcileResult, error) {
	if s.reconciler == nil {
		return ReconcileResult{}, errors.New("reconciliation is disabled for this resolution scheme")
	}
	for _, c := range s.checks {
		if err := c.CheckCredentials(ctx); err != nil {
			return ReconcileResult{}, fmt.Errorf("%w: %w", ErrPreflight, err)
		}
	}
	return s.reconciler.Reconcile(ctx)
}

// Start runs immediately and then on every interval until ctx is canceled.
// It also serves manual run requests from TriggerRun.
func (s *PipelineService) Start(ctx context.Context, interval time.Duration) {
	if _, err := s.RunOnce(ctx); err != nil {
		slog.Error("initial run failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("pipeline stopped")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				slog.Error("scheduled run failed", "error", err)
			}
		case req := <-s.runCh:
			report, err := s.RunOnce(ctx)
			req.done <- runResult{report: report, err: err}
		}
	}
}

// TriggerRun asks a started pipeline for an immediate run and waits for it.
func (s *PipelineService) TriggerRun(ctx context.Context) (RunReport, error) {
	req := runRequest{done: make(chan runResult, 1)}

	select {
	case s.runCh <- req:
	case <-ctx.Done():
		return RunReport{}, ctx.Err()
	}

	select {
	case res := <-req.done:
		return res.report, res.err
	case <-ctx.Done():
		return RunReport{}, ctx.Err()
	}
}
