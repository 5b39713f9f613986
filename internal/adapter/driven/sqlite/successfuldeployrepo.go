package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/dorametrics/internal/domain/model"
	"github.com/ericfisherdev/dorametrics/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SuccessfulDeployStore = (*SuccessfulDeployRepo)(nil)

// SuccessfulDeployRepo is the SQLite implementation of the SuccessfulDeployStore port.
type SuccessfulDeployRepo struct {
	db *DB
}

// NewSuccessfulDeployRepo creates a new SuccessfulDeployRepo backed by the given DB.
func NewSuccessfulDeployRepo(db *DB) *SuccessfulDeployRepo {
	return &SuccessfulDeployRepo{db: db}
}

// ExistingKeys returns which of keys are already stored.
func (r *SuccessfulDeployRepo) ExistingKeys(ctx context.Context, keys []model.DeployKey) (map[model.DeployKey]struct{}, error) {
	return existingDeployKeys(ctx, r.db, "successful_deploys", keys)
}

// Get returns the deploy with the given key. Returns nil, nil if it does not exist.
func (r *SuccessfulDeployRepo) Get(ctx context.Context, key model.DeployKey) (*model.SuccessfulDeploy, error) {
	const query = `SELECT pull, repo, team, deployed_at, lead_time FROM successful_deploys WHERE repo = ? AND pull = ?`

	d, err := scanSuccessfulDeploy(r.db.Reader.QueryRowContext(ctx, query, key.Repo, key.Pull))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get successful deploy %s: %w", key, err)
	}

	return d, nil
}

// Insert adds rows one by one. A duplicate key is reported as a failure.
func (r *SuccessfulDeployRepo) Insert(ctx context.Context, rows []model.SuccessfulDeploy) (driven.InsertReport, error) {
	const query = `INSERT INTO successful_deploys (pull, repo, team, deployed_at, lead_time) VALUES (?, ?, ?, ?, ?)`

	return insertEach(ctx, r.db, query, rows,
		func(d model.SuccessfulDeploy) string { return d.Key().String() },
		func(d model.SuccessfulDeploy) []any {
			return []any{d.Pull, d.Repo, toNullString(d.Team), formatTime(d.DeployedAt), float64(d.LeadTime)}
		},
	)
}

// List returns the deploys of repo, or of every repository when repo is
// empty, newest first.
func (r *SuccessfulDeployRepo) List(ctx context.Context, repo string) ([]model.SuccessfulDeploy, error) {
	const query = `
		SELECT pull, repo, team, deployed_at, lead_time
		FROM successful_deploys
		WHERE ? = '' OR repo = ?
		ORDER BY deployed_at DESC, repo, pull
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, repo, repo)
	if err != nil {
		return nil, fmt.Errorf("list successful deploys: %w", err)
	}
	defer rows.Close()

	deploys := []model.SuccessfulDeploy{}
	for rows.Next() {
		d, err := scanSuccessfulDeploy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan successful deploy: %w", err)
		}
		deploys = append(deploys, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate successful deploys: %w", err)
	}

	return deploys, nil
}

func scanSuccessfulDeploy(s scanner) (*model.SuccessfulDeploy, error) {
	var d model.SuccessfulDeploy
	var team sql.NullString
	var deployedAt string
	var leadTime float64

	if err := s.Scan(&d.Pull, &d.Repo, &team, &deployedAt, &leadTime); err != nil {
		return nil, err
	}

	var err error
	d.DeployedAt, err = parseTime(deployedAt)
	if err != nil {
		return nil, fmt.Errorf("parse deployed_at: %w", err)
	}
	d.Team = team.String
	d.LeadTime = model.Minutes(leadTime)

	return &d, nil
}
