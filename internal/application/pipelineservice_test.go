package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/dorametrics/internal/application"
	"github.com/ericfisherdev/dorametrics/internal/domain/model"
	"github.com/ericfisherdev/dorametrics/internal/domain/port/driven"
)

type pipelineFixture struct {
	provider   *mockProvider
	successful *mockSuccessfulStore
	corrective *mockCorrectiveStore
	incidents  *mockIncidentStore
	tracker    *mockTracker
	checker    *mockChecker
	cache      *mockScanCache
	svc        *application.PipelineService
}

// newPipelineFixture wires a ticket-scheme pipeline around in-memory mocks.
// The clock is frozen 72 hours after baseTime.
func newPipelineFixture(withReconcile bool) *pipelineFixture {
	f := &pipelineFixture{
		provider:   newMockProvider(),
		successful: newMockSuccessfulStore(),
		incidents:  newMockIncidentStore(),
		tracker:    newMockTracker(),
		checker:    &mockChecker{},
		cache:      &mockScanCache{},
	}
	f.corrective = &mockCorrectiveStore{incidents: f.incidents}

	strategy := application.NewTicketReferenceStrategy(f.successful)
	scanner := application.NewScanService(f.provider, &mockWriter{}, nil, f.cache, strategy,
		application.ScanOptions{ProjectKey: "FAGSYSTEM", Concurrency: 2})
	metrics := application.NewMetricsService(f.successful, f.corrective, strategy)

	var reconciler *application.ReconcileService
	if withReconcile {
		reconciler = application.NewReconcileService(f.corrective, f.incidents, f.tracker, 2)
	}

	f.svc = application.NewPipelineService(scanner, metrics, reconciler,
		[]driven.CredentialChecker{f.checker},
		[]model.RepositoryTarget{target("svc-api")},
	).WithClock(func() time.Time { return at(72 * 60) })
	return f
}

func (f *pipelineFixture) seed() {
	feature := deployedPR("svc-api", 40, at(0))
	feature.Commits = []model.Commit{{AuthoredAt: at(-30)}}

	fix := deployedPR("svc-api", 50, at(37))
	fix.Branch = "hotfix/null-check"
	fix.Description = "Fixes FAGSYSTEM-9, regression from #40"

	f.provider.latest["svc-api"] = 50
	f.provider.prs["svc-api"] = []model.PullRequestFact{fix, feature}
	f.tracker.issues["FAGSYSTEM-9"] = model.Issue{Key: "FAGSYSTEM-9", CreatedAt: at(10), ResolvedAt: ptr(at(70))}
}

func TestPipelineService_RunOnce(t *testing.T) {
	f := newPipelineFixture(true)
	f.seed()

	report, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, at(72*60), report.StartedAt)
	assert.Equal(t, 2, report.PullRequests)
	assert.Equal(t, 2, report.Deploys.Successful.Inserted)
	assert.Equal(t, 1, report.Deploys.Corrective.Inserted)
	require.NotNil(t, report.Reconcile)
	assert.Equal(t, 1, report.Reconcile.Insert.Inserted)

	require.Len(t, f.corrective.rows, 1)
	assert.Equal(t, ptr("FAGSYSTEM-9"), f.corrective.rows[0].ReferencedTicket)
	assert.Nil(t, f.corrective.rows[0].TimeToRecovery)

	require.Len(t, f.incidents.inserted, 1)
	assert.Equal(t, "60.00", f.incidents.inserted[0].TimeToRecovery.String())
}

func TestPipelineService_RunOnce_SecondRunWritesNothing(t *testing.T) {
	f := newPipelineFixture(true)
	f.seed()

	_, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)

	report, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Zero(t, report.Deploys.Successful.Inserted)
	assert.Zero(t, report.Deploys.Corrective.Inserted)
	assert.Zero(t, report.Reconcile.Candidates)
	assert.Len(t, f.successful.rows, 2)
	assert.Len(t, f.incidents.inserted, 1)
}

func TestPipelineService_RunOnce_FailedPersistRetriedNextRun(t *testing.T) {
	f := newPipelineFixture(true)
	f.seed()
	f.successful.insertErr = errors.New("database is locked")

	_, err := f.svc.RunOnce(context.Background())
	require.ErrorContains(t, err, "database is locked")
	assert.Empty(t, f.cache.replaced)
	assert.Empty(t, f.successful.rows)

	f.successful.insertErr = nil

	report, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, f.provider.listCalls["svc-api"])
	assert.Equal(t, 2, report.Deploys.Successful.Inserted)
	assert.Equal(t, 1, report.Deploys.Corrective.Inserted)
	assert.Len(t, f.successful.rows, 2)
	assert.Len(t, f.cache.replaced, 1)
}

func TestPipelineService_RunOnce_RejectedRowsKeepCache(t *testing.T) {
	f := newPipelineFixture(false)
	f.seed()
	f.successful.rejectAll = "database is locked"

	report, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Deploys.Successful.Failed, 2)
	assert.Empty(t, f.cache.replaced)

	f.successful.rejectAll = ""

	report, err = f.svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Deploys.Successful.Inserted)
	assert.Len(t, f.cache.replaced, 1)
}

func TestPipelineService_RunOnce_CacheWriteFailureDoesNotFailRun(t *testing.T) {
	f := newPipelineFixture(false)
	f.seed()
	f.cache.replaceErr = errors.New("disk I/O error")

	report, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Deploys.Successful.Inserted)
}

func TestPipelineService_RunOnce_StoresDeployOfPreviouslyPendingPullRequest(t *testing.T) {
	f := newPipelineFixture(false)
	f.provider.latest["svc-api"] = 40
	f.provider.prs["svc-api"] = []model.PullRequestFact{{Number: 40, Repo: "svc-api", MergedAt: at(-10)}}

	report, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Deploys.Successful.Inserted)

	// Deployed since, with no newer pull request merged.
	f.provider.prs["svc-api"] = []model.PullRequestFact{deployedPR("svc-api", 40, at(0))}

	report, err = f.svc.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, f.provider.listCalls["svc-api"])
	assert.Equal(t, 1, report.Deploys.Successful.Inserted)
	assert.Contains(t, f.successful.rows, model.DeployKey{Repo: "svc-api", Pull: 40})
}

func TestPipelineService_RunOnce_PreflightFailure(t *testing.T) {
	f := newPipelineFixture(true)
	f.seed()
	f.checker.err = errors.New("bad credentials")

	_, err := f.svc.RunOnce(context.Background())

	assert.ErrorIs(t, err, application.ErrPreflight)
	assert.ErrorContains(t, err, "bad credentials")
	assert.Zero(t, f.provider.listCalls["svc-api"])
	assert.Empty(t, f.successful.rows)
}

func TestPipelineService_RunOnce_WithoutReconciler(t *testing.T) {
	f := newPipelineFixture(false)
	f.seed()

	report, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Nil(t, report.Reconcile)
	assert.Empty(t, f.tracker.calls)
}

func TestPipelineService_Reconcile(t *testing.T) {
	f := newPipelineFixture(true)
	f.corrective.rows = []model.CorrectiveDeploy{ticketDeploy("svc-api", 50, "FAGSYSTEM-9")}
	f.tracker.issues["FAGSYSTEM-9"] = model.Issue{Key: "FAGSYSTEM-9", CreatedAt: at(0), ResolvedAt: ptr(at(5))}

	result, err := f.svc.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Insert.Inserted)
	assert.Equal(t, 1, f.checker.calls)
}

func TestPipelineService_Reconcile_Disabled(t *testing.T) {
	f := newPipelineFixture(false)

	_, err := f.svc.Reconcile(context.Background())
	assert.Error(t, err)
}

func TestPipelineService_TriggerRun(t *testing.T) {
	f := newPipelineFixture(true)
	f.seed()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.svc.Start(ctx, time.Hour)
		close(done)
	}()

	// The initial run inside Start has already stored everything by the time
	// the triggered run is served.
	report, err := f.svc.TriggerRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, at(72*60), report.StartedAt)
	assert.Zero(t, report.Deploys.Successful.Inserted)
	assert.Len(t, f.successful.rows, 2)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop after cancel")
	}
}

func TestPipelineService_TriggerRun_NotStarted(t *testing.T) {
	f := newPipelineFixture(true)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.svc.TriggerRun(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
