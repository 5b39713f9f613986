package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/dorametrics/internal/domain/model"
	"github.com/ericfisherdev/dorametrics/internal/domain/port/driven"
)

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// timeLayout is RFC 3339 with fixed-width nanoseconds, so TEXT columns sort
// chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime renders timestamps as UTC with full precision so they survive a
// round trip unchanged.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}

func toNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func toNullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func toNullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func toNullMinutes(m *model.Minutes) sql.NullFloat64 {
	if m == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: float64(*m), Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func fromNullInt(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	n := int(ni.Int64)
	return &n
}

func fromNullMinutes(nf sql.NullFloat64) *model.Minutes {
	if !nf.Valid {
		return nil
	}
	m := model.Minutes(nf.Float64)
	return &m
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// insertEach runs one INSERT per row on the writer so a rejected row does not
// take the rest of the batch with it. Only a canceled context stops the loop.
func insertEach[R any](ctx context.Context, db *DB, query string, rows []R, key func(R) string, args func(R) []any) (driven.InsertReport, error) {
	var report driven.InsertReport
	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if _, err := db.Writer.ExecContext(ctx, query, args(r)...); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			report.Failed = append(report.Failed, driven.InsertFailure{Key: key(r), Reason: err.Error()})
			continue
		}
		report.Inserted++
	}
	return report, nil
}

// existingDeployKeys returns which keys are present in table. It reads every
// key of the repositories involved and intersects in memory.
func existingDeployKeys(ctx context.Context, db *DB, table string, keys []model.DeployKey) (map[model.DeployKey]struct{}, error) {
	existing := make(map[model.DeployKey]struct{})
	if len(keys) == 0 {
		return existing, nil
	}

	wanted := make(map[model.DeployKey]struct{}, len(keys))
	repoSet := make(map[string]struct{})
	var repos []any
	for _, k := range keys {
		wanted[k] = struct{}{}
		if _, ok := repoSet[k.Repo]; !ok {
			repoSet[k.Repo] = struct{}{}
			repos = append(repos, k.Repo)
		}
	}

	query := fmt.Sprintf(`SELECT repo, pull FROM %s WHERE repo IN (%s)`, table, placeholders(len(repos)))
	rows, err := db.Reader.QueryContext(ctx, query, repos...)
	if err != nil {
		return nil, fmt.Errorf("query %s keys: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var k model.DeployKey
		if err := rows.Scan(&k.Repo, &k.Pull); err != nil {
			return nil, fmt.Errorf("scan %s key: %w", table, err)
		}
		if _, ok := wanted[k]; ok {
			existing[k] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s keys: %w", table, err)
	}

	return existing, nil
}
