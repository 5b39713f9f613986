package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/dorametrics/internal/domain/port/driven"
)

// ExportResult counts the rows handed to the sink per table.
type ExportResult struct {
	SuccessfulDeploys int
	CorrectiveDeploys int
	Incidents         int
}

// ExportService copies the stored fact tables to a FactSink.
type ExportService struct {
	successful driven.SuccessfulDeployStore
	corrective driven.CorrectiveDeployStore
	incidents  driven.IncidentStore
}

// NewExportService creates an ExportService.
func NewExportService(
	successful driven.SuccessfulDeployStore,
	corrective driven.CorrectiveDeployStore,
	incidents driven.IncidentStore,
) *ExportService {
	return &ExportService{successful: successful, corrective: corrective, incidents: incidents}
}

// Export writes every stored row to sink.
func (s *ExportService) Export(ctx context.Context, sink driven.FactSink) (ExportResult, error) {
	var result ExportResult

	successful, err := s.successful.List(ctx, "")
	if err != nil {
		return result, fmt.Errorf("list successful deploys: %w", err)
	}
	if err := sink.WriteSuccessfulDeploys(ctx, successful); err != nil {
		return result, fmt.Errorf("export successful deploys: %w", err)
	}
	result.SuccessfulDeploys = len(successful)

	corrective, err := s.corrective.List(ctx, "")
	if err != nil {
		return result, fmt.Errorf("list corrective deploys: %w", err)
	}
	if err := sink.WriteCorrectiveDeploys(ctx, corrective); err != nil {
		return result, fmt.Errorf("export corrective deploys: %w", err)
	}
	result.CorrectiveDeploys = len(corrective)

	incidents, err := s.incidents.List(ctx)
	if err != nil {
		return result, fmt.Errorf("list recovered incidents: %w", err)
	}
	if err := sink.WriteRecoveredIncidents(ctx, incidents); err != nil {
		return result, fmt.Errorf("export recovered incidents: %w", err)
	}
	result.Incidents = len(incidents)

	slog.Info("export complete",
		"successful_deploys", result.SuccessfulDeploys,
		"corrective_deploys", result.CorrectiveDeploys,
		"recovered_incidents", result.Incidents,
	)

	return result, nil
}
