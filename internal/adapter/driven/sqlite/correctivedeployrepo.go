package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ericfisherdev/dorametrics/internal/domain/model"
	"github.com/ericfisherdev/dorametrics/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CorrectiveDeployStore = (*CorrectiveDeployRepo)(nil)

// CorrectiveDeployRepo is the SQLite implementation of the CorrectiveDeployStore port.
type CorrectiveDeployRepo struct {
	db *DB
}

// NewCorrectiveDeployRepo creates a new CorrectiveDeployRepo backed by the given DB.
func NewCorrectiveDeployRepo(db *DB) *CorrectiveDeployRepo {
	return &CorrectiveDeployRepo{db: db}
}

const correctiveDeployColumns = `cd.pull, cd.repo, cd.referenced_pull, cd.referenced_ticket, cd.team, cd.deployed_at, cd.time_to_recovery`

// ExistingKeys returns which of keys are already stored.
func (r *CorrectiveDeployRepo) ExistingKeys(ctx context.Context, keys []model.DeployKey) (map[model.DeployKey]struct{}, error) {
	return existingDeployKeys(ctx, r.db, "corrective_deploys", keys)
}

// Insert adds rows one by one. A duplicate key is reported as a failure.
func (r *CorrectiveDeployRepo) Insert(ctx context.Context, rows []model.CorrectiveDeploy) (driven.InsertReport, error) {
	const query = `
		INSERT INTO corrective_deploys (pull, repo, referenced_pull, referenced_ticket, team, deployed_at, time_to_recovery)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	return insertEach(ctx, r.db, query, rows,
		func(d model.CorrectiveDeploy) string { return d.Key().String() },
		func(d model.CorrectiveDeploy) []any {
			return []any{
				d.Pull, d.Repo,
				toNullInt(d.ReferencedPull), toNullStringPtr(d.ReferencedTicket),
				toNullString(d.Team), formatTime(d.DeployedAt),
				toNullMinutes(d.TimeToRecovery),
			}
		},
	)
}

// List returns the corrective deploys of repo, or of every repository when
// repo is empty, newest first.
func (r *CorrectiveDeployRepo) List(ctx context.Context, repo string) ([]model.CorrectiveDeploy, error) {
	query := `SELECT ` + correctiveDeployColumns + `
		FROM corrective_deploys cd
		WHERE ? = '' OR cd.repo = ?
		ORDER BY cd.deployed_at DESC, cd.repo, cd.pull`

	rows, err := r.db.Reader.QueryContext(ctx, query, repo, repo)
	if err != nil {
		return nil, fmt.Errorf("list corrective deploys: %w", err)
	}
	return collectCorrectiveDeploys(rows)
}

// ListUnreconciled returns corrective deploys that reference a ticket for
// which no recovered incident has been stored yet, oldest first.
func (r *CorrectiveDeployRepo) ListUnreconciled(ctx context.Context) ([]model.CorrectiveDeploy, error) {
	query := `SELECT ` + correctiveDeployColumns + `
		FROM corrective_deploys cd
		LEFT JOIN recovered_incidents ri ON ri.jira = cd.referenced_ticket
		WHERE cd.referenced_ticket IS NOT NULL AND ri.jira IS NULL
		ORDER BY cd.deployed_at, cd.repo, cd.pull`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list unreconciled corrective deploys: %w", err)
	}
	return collectCorrectiveDeploys(rows)
}

func collectCorrectiveDeploys(rows *sql.Rows) ([]model.CorrectiveDeploy, error) {
	defer rows.Close()

	deploys := []model.CorrectiveDeploy{}
	for rows.Next() {
		d, err := scanCorrectiveDeploy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan corrective deploy: %w", err)
		}
		deploys = append(deploys, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate corrective deploys: %w", err)
	}

	return deploys, nil
}

func scanCorrectiveDeploy(s scanner) (*model.CorrectiveDeploy, error) {
	var d model.CorrectiveDeploy
	var refPull sql.NullInt64
	var refTicket, team sql.NullString
	var deployedAt string
	var ttr sql.NullFloat64

	if err := s.Scan(&d.Pull, &d.Repo, &refPull, &refTicket, &team, &deployedAt, &ttr); err != nil {
		return nil, err
	}

	var err error
	d.DeployedAt, err = parseTime(deployedAt)
	if err != nil {
		return nil, fmt.Errorf("parse deployed_at: %w", err)
	}
	d.ReferencedPull = fromNullInt(refPull)
	d.ReferencedTicket = fromNullString(refTicket)
	d.Team = team.String
	d.TimeToRecovery = fromNullMinutes(ttr)

	return &d, nil
}
