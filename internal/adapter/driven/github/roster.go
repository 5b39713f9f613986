package github

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ericfisherdev/dorametrics/internal/domain/model"
	"github.com/ericfisherdev/dorametrics/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TeamDirectory = (*TeamRoster)(nil)

// TeamRoster reads the github-user to team mapping from a CSV file kept in a
// repository. The file has a header row naming at least the githubUsername
// and team columns.
type TeamRoster struct {
	client *Client
	owner  string
	repo   string
	path   string
}

// NewTeamRoster creates a TeamRoster for a location of the form
// "owner/repo/path/to/file.csv".
func NewTeamRoster(client *Client, location string) (*TeamRoster, error) {
	parts := strings.SplitN(location, "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, fmt.Errorf("invalid roster location %q: expected owner/repo/path", location)
	}
	return &TeamRoster{client: client, owner: parts[0], repo: parts[1], path: parts[2]}, nil
}

// FetchTeamMembers downloads and parses the roster.
func (r *TeamRoster) FetchTeamMembers(ctx context.Context) ([]model.TeamMember, error) {
	file, _, resp, err := r.client.gh.Repositories.GetContents(ctx, r.owner, r.repo, r.path, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching roster %s/%s/%s: %w", r.owner, r.repo, r.path, err)
	}
	if file == nil {
		return nil, fmt.Errorf("roster %s/%s/%s is a directory", r.owner, r.repo, r.path)
	}

	logRateLimit(resp, r.owner+"/"+r.repo+"/contents", 0, 1)

	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decoding roster: %w", err)
	}

	return parseRoster(strings.NewReader(content))
}

// parseRoster reads roster rows, skipping rows without a username or team.
func parseRoster(in io.Reader) ([]model.TeamMember, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading roster header: %w", err)
	}

	userCol, teamCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case "githubUsername":
			userCol = i
		case "team":
			teamCol = i
		}
	}
	if userCol < 0 || teamCol < 0 {
		return nil, fmt.Errorf("roster header %v lacks githubUsername or team column", header)
	}

	members := []model.TeamMember{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading roster row: %w", err)
		}
		if userCol >= len(record) || teamCol >= len(record) {
			continue
		}

		user := strings.TrimSpace(record[userCol])
		team := strings.TrimSpace(record[teamCol])
		if user == "" || team == "" {
			continue
		}
		members = append(members, model.TeamMember{GitHubUsername: user, Team: team})
	}

	return members, nil
}
