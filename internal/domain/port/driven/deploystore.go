package driven

import (
	"context"

	"github.com/ericfisherdev/dorametrics/internal/domain/model"
)

// InsertFailure describes one row the store rejected.
type InsertFailure struct {
	Key    string
	Reason string
}

// InsertReport is the outcome of a bulk insert. Rows not listed in Failed were
// durably inserted.
type InsertReport struct {
	Inserted int
	Failed   []InsertFailure
}

// SuccessfulDeployStore defines the driven port for successful deploy facts.
type SuccessfulDeployStore interface {
	// ExistingKeys returns which of the given keys are already stored.
	ExistingKeys(ctx context.Context, keys []model.DeployKey) (map[model.DeployKey]struct{}, error)
	// Get returns the stored row for the key, or nil, nil if absent.
	Get(ctx context.Context, key model.DeployKey) (*model.SuccessfulDeploy, error)
	Insert(ctx context.Context, rows []model.SuccessfulDeploy) (InsertReport, error)
	// List returns rows for one repository, or all rows when repo is empty.
	List(ctx context.Context, repo string) ([]model.SuccessfulDeploy, error)
}

// CorrectiveDeployStore defines the driven port for corrective deploy facts.
type CorrectiveDeployStore interface {
	ExistingKeys(ctx context.Context, keys []model.DeployKey) (map[model.DeployKey]struct{}, error)
	Insert(ctx context.Context, rows []model.CorrectiveDeploy) (InsertReport, error)
	List(ctx context.Context, repo string) ([]model.CorrectiveDeploy, error)
	// ListUnreconciled returns corrective deploys that reference a ticket with
	// no recovered incident recorded yet.
	ListUnreconciled(ctx context.Context) ([]model.CorrectiveDeploy, error)
}

// IncidentStore defines the driven port for recovered incident facts, keyed
// by ticket.
type IncidentStore interface {
	ExistingTickets(ctx context.Context, tickets []string) (map[string]struct{}, error)
	Insert(ctx context.Context, rows []model.RecoveredIncident) (InsertReport, error)
	List(ctx context.Context) ([]model.RecoveredIncident, error)
}

// ScanCacheStore defines the driven port for the repository scan cache.
type ScanCacheStore interface {
	ListAll(ctx context.Context) ([]model.RepositoryScanCache, error)
	// ReplaceAll swaps the whole cache for the given entries.
	ReplaceAll(ctx context.Context, entries []model.RepositoryScanCache) error
}
