package sqlite

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/dorametrics/internal/domain/model"
	"github.com/ericfisherdev/dorametrics/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ScanCacheStore = (*ScanCacheRepo)(nil)

// ScanCacheRepo is the SQLite implementation of the ScanCacheStore port.
type ScanCacheRepo struct {
	db *DB
}

// NewScanCacheRepo creates a new ScanCacheRepo backed by the given DB.
func NewScanCacheRepo(db *DB) *ScanCacheRepo {
	return &ScanCacheRepo{db: db}
}

// ListAll returns every cached repository state ordered by repository name.
func (r *ScanCacheRepo) ListAll(ctx context.Context) ([]model.RepositoryScanCache, error) {
	const query = `SELECT repo, latest_pull_request, has_unresolved_corrective, has_pending_pull_requests
		FROM repository_scan_cache ORDER BY repo`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list scan cache: %w", err)
	}
	defer rows.Close()

	entries := []model.RepositoryScanCache{}
	for rows.Next() {
		var e model.RepositoryScanCache
		var unresolved, pending int
		if err := rows.Scan(&e.Repo, &e.LatestPullRequestNumber, &unresolved, &pending); err != nil {
			return nil, fmt.Errorf("scan scan cache entry: %w", err)
		}
		e.HasUnresolvedCorrective = unresolved != 0
		e.HasPendingPullRequests = pending != 0
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scan cache: %w", err)
	}

	return entries, nil
}

// ReplaceAll swaps the whole cache for entries in a single transaction.
func (r *ScanCacheRepo) ReplaceAll(ctx context.Context, entries []model.RepositoryScanCache) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	if _, err := tx.ExecContext(ctx, `DELETE FROM repository_scan_cache`); err != nil {
		return fmt.Errorf("clear scan cache: %w", err)
	}

	const insertQuery = `INSERT INTO repository_scan_cache
		(repo, latest_pull_request, has_unresolved_corrective, has_pending_pull_requests)
		VALUES (?, ?, ?, ?)`
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, insertQuery,
			e.Repo, e.LatestPullRequestNumber, boolToInt(e.HasUnresolvedCorrective), boolToInt(e.HasPendingPullRequests),
		); err != nil {
			return fmt.Errorf("insert scan cache entry %s: %w", e.Repo, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit scan cache: %w", err)
	}

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
