// Package parquet exports the fact tables to Parquet files using
// github.com/parquet-go/parquet-go.
package parquet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/ericfisherdev/dorametrics/internal/domain/model"
	"github.com/ericfisherdev/dorametrics/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.FactSink = (*Sink)(nil)

// File names written into the output directory, one per fact table.
const (
	SuccessfulDeploysFile = "successful_deploys.parquet"
	CorrectiveDeploysFile = "corrective_deploys.parquet"
	IncidentsFile         = "recovered_incidents.parquet"
)

// SuccessfulDeployRow maps to the successful_deploys table.
type SuccessfulDeployRow struct {
	Pull       int64     `parquet:"pull,snappy"`
	Repo       string    `parquet:"repo,snappy"`
	Team       *string   `parquet:"team,optional,snappy"`
	DeployedAt time.Time `parquet:"deployed_at,snappy"`
	LeadTime   float64   `parquet:"lead_time,snappy"`
}

// CorrectiveDeployRow maps to the corrective_deploys table.
type CorrectiveDeployRow struct {
	Pull             int64     `parquet:"pull,snappy"`
	Repo             string    `parquet:"repo,snappy"`
	ReferencedPull   *int64    `parquet:"referenced_pull,optional,snappy"`
	ReferencedTicket *string   `parquet:"referenced_ticket,optional,snappy"`
	Team             *string   `parquet:"team,optional,snappy"`
	DeployedAt       time.Time `parquet:"deployed_at,snappy"`
	TimeToRecovery   *float64  `parquet:"time_to_recovery,optional,snappy"`
}

// IncidentRow maps to the recovered_incidents table.
type IncidentRow struct {
	Ticket         string    `parquet:"jira,snappy"`
	Repo           string    `parquet:"repo,snappy"`
	Team           *string   `parquet:"team,optional,snappy"`
	DetectedAt     time.Time `parquet:"detected_at,snappy"`
	RecoveredAt    time.Time `parquet:"recovered_at,snappy"`
	TimeToRecovery float64   `parquet:"time_to_recovery,snappy"`
}

// Sink writes each fact table to its own file in a directory.
type Sink struct {
	dir string
}

// NewSink creates a Sink writing into dir, creating it if needed.
func NewSink(dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}
	return &Sink{dir: dir}, nil
}

// WriteSuccessfulDeploys writes rows to SuccessfulDeploysFile.
func (s *Sink) WriteSuccessfulDeploys(_ context.Context, rows []model.SuccessfulDeploy) error {
	out := make([]SuccessfulDeployRow, 0, len(rows))
	for _, d := range rows {
		out = append(out, SuccessfulDeployRow{
			Pull:       int64(d.Pull),
			Repo:       d.Repo,
			Team:       optionalString(d.Team),
			DeployedAt: d.DeployedAt,
			LeadTime:   float64(d.LeadTime),
		})
	}
	return writeFile(filepath.Join(s.dir, SuccessfulDeploysFile), out)
}

// WriteCorrectiveDeploys writes rows to CorrectiveDeploysFile.
func (s *Sink) WriteCorrectiveDeploys(_ context.Context, rows []model.CorrectiveDeploy) error {
	out := make([]CorrectiveDeployRow, 0, len(rows))
	for _, d := range rows {
		row := CorrectiveDeployRow{
			Pull:             int64(d.Pull),
			Repo:             d.Repo,
			ReferencedTicket: d.ReferencedTicket,
			Team:             optionalString(d.Team),
			DeployedAt:       d.DeployedAt,
		}
		if d.ReferencedPull != nil {
			p := int64(*d.ReferencedPull)
			row.ReferencedPull = &p
		}
		if d.TimeToRecovery != nil {
			m := float64(*d.TimeToRecovery)
			row.TimeToRecovery = &m
		}
		out = append(out, row)
	}
	return writeFile(filepath.Join(s.dir, CorrectiveDeploysFile), out)
}

// WriteRecoveredIncidents writes rows to IncidentsFile.
func (s *Sink) WriteRecoveredIncidents(_ context.Context, rows []model.RecoveredIncident) error {
	out := make([]IncidentRow, 0, len(rows))
	for _, i := range rows {
		out = append(out, IncidentRow{
			Ticket:         i.Ticket,
			Repo:           i.Repo,
			Team:           optionalString(i.Team),
			DetectedAt:     i.DetectedAt,
			RecoveredAt:    i.RecoveredAt,
			TimeToRecovery: float64(i.TimeToRecovery),
		})
	}
	return writeFile(filepath.Join(s.dir, IncidentsFile), out)
}

// writeFile writes data to path with a schema inferred from T's struct tags.
func writeFile[T any](path string, data []T) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close %s writer: %w", filepath.Base(path), err)
	}

	return file.Sync()
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
