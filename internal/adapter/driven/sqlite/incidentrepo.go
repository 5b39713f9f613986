package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ericfisherdev/dorametrics/internal/domain/model"
	"github.com/ericfisherdev/dorametrics/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.IncidentStore = (*IncidentRepo)(nil)

// ticketChunk keeps IN lists well below SQLite's bound parameter limit.
const ticketChunk = 500

// IncidentRepo is the SQLite implementation of the IncidentStore port.
type IncidentRepo struct {
	db *DB
}

// NewIncidentRepo creates a new IncidentRepo backed by the given DB.
func NewIncidentRepo(db *DB) *IncidentRepo {
	return &IncidentRepo{db: db}
}

// ExistingTickets returns which of tickets already have a recovered incident.
func (r *IncidentRepo) ExistingTickets(ctx context.Context, tickets []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})

	for start := 0; start < len(tickets); start += ticketChunk {
		end := min(start+ticketChunk, len(tickets))
		args := make([]any, 0, end-start)
		for _, t := range tickets[start:end] {
			args = append(args, t)
		}

		query := fmt.Sprintf(`SELECT jira FROM recovered_incidents WHERE jira IN (%s)`, placeholders(len(args)))
		if err := r.collectTickets(ctx, query, args, existing); err != nil {
			return nil, err
		}
	}

	return existing, nil
}

func (r *IncidentRepo) collectTickets(ctx context.Context, query string, args []any, into map[string]struct{}) error {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query existing incidents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ticket string
		if err := rows.Scan(&ticket); err != nil {
			return fmt.Errorf("scan incident ticket: %w", err)
		}
		into[ticket] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate incident tickets: %w", err)
	}
	return nil
}

// Insert adds incidents one by one. A ticket already present is reported as a failure.
func (r *IncidentRepo) Insert(ctx context.Context, rows []model.RecoveredIncident) (driven.InsertReport, error) {
	const query = `
		INSERT INTO recovered_incidents (jira, repo, team, detected_at, recovered_at, time_to_recovery)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	return insertEach(ctx, r.db, query, rows,
		func(i model.RecoveredIncident) string { return i.Ticket },
		func(i model.RecoveredIncident) []any {
			return []any{
				i.Ticket, i.Repo, toNullString(i.Team),
				formatTime(i.DetectedAt), formatTime(i.RecoveredAt),
				float64(i.TimeToRecovery),
			}
		},
	)
}

// List returns every recovered incident, most recently recovered first.
func (r *IncidentRepo) List(ctx context.Context) ([]model.RecoveredIncident, error) {
	const query = `
		SELECT jira, repo, team, detected_at, recovered_at, time_to_recovery
		FROM recovered_incidents
		ORDER BY recovered_at DESC, jira
	`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list recovered incidents: %w", err)
	}
	defer rows.Close()

	incidents := []model.RecoveredIncident{}
	for rows.Next() {
		var inc model.RecoveredIncident
		var team sql.NullString
		var detectedAt, recoveredAt string
		var ttr float64

		if err := rows.Scan(&inc.Ticket, &inc.Repo, &team, &detectedAt, &recoveredAt, &ttr); err != nil {
			return nil, fmt.Errorf("scan recovered incident: %w", err)
		}

		if inc.DetectedAt, err = parseTime(detectedAt); err != nil {
			return nil, fmt.Errorf("parse detected_at: %w", err)
		}
		if inc.RecoveredAt, err = parseTime(recoveredAt); err != nil {
			return nil, fmt.Errorf("parse recovered_at: %w", err)
		}
		inc.Team = team.String
		inc.TimeToRecovery = model.Minutes(ttr)

		incidents = append(incidents, inc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recovered incidents: %w", err)
	}

	return incidents, nil
}
