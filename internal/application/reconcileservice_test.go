package application_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/dorametrics/internal/application"
	"github.com/ericfisherdev/dorametrics/internal/domain/model"
	"github.com/ericfisherdev/dorametrics/internal/domain/port/driven"
)

func ticketDeploy(repo string, pull int, ticket string) model.CorrectiveDeploy {
	return model.CorrectiveDeploy{
		Pull:             pull,
		Repo:             repo,
		ReferencedTicket: ptr(ticket),
		Team:             "team-a",
		DeployedAt:       at(0),
	}
}

func setupReconcile(deploys ...model.CorrectiveDeploy) (*application.ReconcileService, *mockTracker, *mockIncidentStore) {
	incidents := newMockIncidentStore()
	corrective := &mockCorrectiveStore{rows: deploys, incidents: incidents}
	tracker := newMockTracker()
	return application.NewReconcileService(corrective, incidents, tracker, 4), tracker, incidents
}

func TestRecoveredIncidentFor(t *testing.T) {
	deploy := ticketDeploy("svc-api", 50, "OPS-1")

	assert.Nil(t, application.RecoveredIncidentFor(deploy, model.Issue{Key: "OPS-1", CreatedAt: at(0)}))
	assert.Nil(t, application.RecoveredIncidentFor(model.CorrectiveDeploy{}, model.Issue{CreatedAt: at(0), ResolvedAt: ptr(at(5))}))

	got := application.RecoveredIncidentFor(deploy, model.Issue{Key: "OPS-1", CreatedAt: at(0), ResolvedAt: ptr(at(125))})
	require.NotNil(t, got)
	assert.Equal(t, model.RecoveredIncident{
		Ticket:         "OPS-1",
		Repo:           "svc-api",
		Team:           "team-a",
		DetectedAt:     at(0),
		RecoveredAt:    at(125),
		TimeToRecovery: 125,
	}, *got)
}

func TestReconcileService_ResolvedTicket(t *testing.T) {
	svc, tracker, incidents := setupReconcile(ticketDeploy("svc-api", 50, "FAGSYSTEM-9"))
	tracker.issues["FAGSYSTEM-9"] = model.Issue{Key: "FAGSYSTEM-9", CreatedAt: at(0), ResolvedAt: ptr(at(90))}

	result, err := svc.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Candidates)
	assert.Equal(t, 1, result.Insert.Inserted)
	require.Len(t, incidents.inserted, 1)
	assert.Equal(t, "90.00", incidents.inserted[0].TimeToRecovery.String())

	// Reconciled tickets are not offered again.
	result, err = svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Candidates)
	assert.Equal(t, 1, tracker.calls["FAGSYSTEM-9"])
}

func TestReconcileService_UnresolvedTicketOfferedAgain(t *testing.T) {
	svc, tracker, incidents := setupReconcile(ticketDeploy("svc-api", 50, "FAGSYSTEM-9"))
	tracker.issues["FAGSYSTEM-9"] = model.Issue{Key: "FAGSYSTEM-9", CreatedAt: at(0)}

	result, err := svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Unresolved)
	assert.Empty(t, incidents.inserted)

	tracker.issues["FAGSYSTEM-9"] = model.Issue{Key: "FAGSYSTEM-9", CreatedAt: at(0), ResolvedAt: ptr(at(300))}

	result, err = svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Unresolved)
	assert.Equal(t, 1, result.Insert.Inserted)
	assert.Equal(t, 2, tracker.calls["FAGSYSTEM-9"])
}

func TestReconcileService_SharedTicketLookedUpOnce(t *testing.T) {
	svc, tracker, incidents := setupReconcile(
		ticketDeploy("svc-api", 50, "OPS-7"),
		ticketDeploy("svc-web", 12, "OPS-7"),
	)
	tracker.issues["OPS-7"] = model.Issue{Key: "OPS-7", CreatedAt: at(0), ResolvedAt: ptr(at(10))}

	result, err := svc.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Candidates)
	assert.Equal(t, 1, tracker.calls["OPS-7"])
	require.Len(t, incidents.inserted, 1)
	assert.Equal(t, "svc-api", incidents.inserted[0].Repo)
}

func TestReconcileService_FailedLookupDoesNotBlockOthers(t *testing.T) {
	svc, tracker, incidents := setupReconcile(
		ticketDeploy("svc-api", 50, "OPS-1"),
		ticketDeploy("svc-api", 51, "OPS-2"),
	)
	tracker.issues["OPS-2"] = model.Issue{Key: "OPS-2", CreatedAt: at(0), ResolvedAt: ptr(at(10))}

	result, err := svc.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	require.Len(t, incidents.inserted, 1)
	assert.Equal(t, "OPS-2", incidents.inserted[0].Ticket)
}

func TestReconcileService_UnauthorizedAborts(t *testing.T) {
	svc, tracker, incidents := setupReconcile(
		ticketDeploy("svc-api", 50, "OPS-1"),
		ticketDeploy("svc-api", 51, "OPS-2"),
	)
	tracker.issues["OPS-2"] = model.Issue{Key: "OPS-2", CreatedAt: at(0), ResolvedAt: ptr(at(10))}
	tracker.errs["OPS-1"] = fmt.Errorf("token rejected: %w", driven.ErrUnauthorized)

	_, err := svc.Reconcile(context.Background())

	assert.ErrorIs(t, err, driven.ErrUnauthorized)
	assert.Zero(t, incidents.insertCalls)
}

func TestReconcileService_ListError(t *testing.T) {
	corrective := &mockCorrectiveStore{listErr: errors.New("no such table")}
	svc := application.NewReconcileService(corrective, newMockIncidentStore(), newMockTracker(), 1)

	_, err := svc.Reconcile(context.Background())
	assert.ErrorContains(t, err, "no such table")
}

func TestReconcileService_NothingPending(t *testing.T) {
	svc, _, incidents := setupReconcile()

	result, err := svc.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Zero(t, result.Candidates)
	assert.Empty(t, incidents.inserted)
}
