package driven

import (
	"context"

	"github.com/ericfisherdev/dorametrics/internal/domain/model"
)

// FactSink receives complete snapshots of the fact tables for offline analysis.
type FactSink interface {
	WriteSuccessfulDeploys(ctx context.Context, rows []model.SuccessfulDeploy) error
	WriteCorrectiveDeploys(ctx context.Context, rows []model.CorrectiveDeploy) error
	WriteRecoveredIncidents(ctx context.Context, rows []model.RecoveredIncident) error
}
