package application_test

import (
	"context"
	"sync"
	"time"

	"github.com/ericfisherdev/dorametrics/internal/domain/model"
	"github.com/ericfisherdev/dorametrics/internal/domain/port/driven"
)

// --- Helpers ---

func ptr[T any](v T) *T { return &v }

var baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return baseTime.Add(time.Duration(minutes) * time.Minute)
}

func deployedPR(repo string, number int, deployedAt time.Time) model.PullRequestFact {
	return model.PullRequestFact{
		Number:   number,
		Repo:     repo,
		MergedAt: deployedAt.Add(-10 * time.Minute),
		Deployment: &model.Deployment{
			Environment: model.Production,
			DeployedAt:  deployedAt,
		},
	}
}

// opLog records store calls in order across mocks.
type opLog struct {
	mu  sync.Mutex
	ops []string
}

func (l *opLog) add(op string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = append(l.ops, op)
}

// --- Store mocks ---

type mockSuccessfulStore struct {
	rows      map[model.DeployKey]model.SuccessfulDeploy
	getErr    error
	insertErr error
	rejectAll string // reports every row as failed with this reason.
	getCalls  int
	log       *opLog
}

func newMockSuccessfulStore(rows ...model.SuccessfulDeploy) *mockSuccessfulStore {
	m := &mockSuccessfulStore{rows: map[model.DeployKey]model.SuccessfulDeploy{}}
	for _, r := range rows {
		m.rows[r.Key()] = r
	}
	return m
}

func (m *mockSuccessfulStore) ExistingKeys(_ context.Context, keys []model.DeployKey) (map[model.DeployKey]struct{}, error) {
	m.log.add("successful.existing")
	out := map[model.DeployKey]struct{}{}
	for _, k := range keys {
		if _, ok := m.rows[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out, nil
}

func (m *mockSuccessfulStore) Get(_ context.Context, key model.DeployKey) (*model.SuccessfulDeploy, error) {
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	r, ok := m.rows[key]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *mockSuccessfulStore) Insert(_ context.Context, rows []model.SuccessfulDeploy) (driven.InsertReport, error) {
	m.log.add("successful.insert")
	if m.insertErr != nil {
		return driven.InsertReport{}, m.insertErr
	}
	if m.rejectAll != "" {
		var report driven.InsertReport
		for _, r := range rows {
			report.Failed = append(report.Failed, driven.InsertFailure{Key: r.Key().String(), Reason: m.rejectAll})
		}
		return report, nil
	}
	for _, r := range rows {
		m.rows[r.Key()] = r
	}
	return driven.InsertReport{Inserted: len(rows)}, nil
}

func (m *mockSuccessfulStore) List(_ context.Context, _ string) ([]model.SuccessfulDeploy, error) {
	out := make([]model.SuccessfulDeploy, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	return out, nil
}

type mockCorrectiveStore struct {
	rows      []model.CorrectiveDeploy
	incidents *mockIncidentStore // consulted by ListUnreconciled.
	listErr   error
	log       *opLog
}

func (m *mockCorrectiveStore) ExistingKeys(_ context.Context, keys []model.DeployKey) (map[model.DeployKey]struct{}, error) {
	m.log.add("corrective.existing")
	out := map[model.DeployKey]struct{}{}
	for _, k := range keys {
		for _, r := range m.rows {
			if r.Key() == k {
				out[k] = struct{}{}
			}
		}
	}
	return out, nil
}

func (m *mockCorrectiveStore) Insert(_ context.Context, rows []model.CorrectiveDeploy) (driven.InsertReport, error) {
	m.log.add("corrective.insert")
	m.rows = append(m.rows, rows...)
	return driven.InsertReport{Inserted: len(rows)}, nil
}

func (m *mockCorrectiveStore) List(_ context.Context, _ string) ([]model.CorrectiveDeploy, error) {
	return m.rows, m.listErr
}

func (m *mockCorrectiveStore) ListUnreconciled(_ context.Context) ([]model.CorrectiveDeploy, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []model.CorrectiveDeploy
	for _, r := range m.rows {
		if r.ReferencedTicket == nil {
			continue
		}
		if m.incidents != nil {
			if _, ok := m.incidents.byTicket[*r.ReferencedTicket]; ok {
				continue
			}
		}
		out = append(out, r)
	}
	return out, nil
}

type mockIncidentStore struct {
	byTicket    map[string]model.RecoveredIncident
	inserted    []model.RecoveredIncident
	insertCalls int
}

func newMockIncidentStore() *mockIncidentStore {
	return &mockIncidentStore{byTicket: map[string]model.RecoveredIncident{}}
}

func (m *mockIncidentStore) ExistingTickets(_ context.Context, tickets []string) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	for _, t := range tickets {
		if _, ok := m.byTicket[t]; ok {
			out[t] = struct{}{}
		}
	}
	return out, nil
}

func (m *mockIncidentStore) Insert(_ context.Context, rows []model.RecoveredIncident) (driven.InsertReport, error) {
	m.insertCalls++
	for _, r := range rows {
		m.byTicket[r.Ticket] = r
		m.inserted = append(m.inserted, r)
	}
	return driven.InsertReport{Inserted: len(rows)}, nil
}

func (m *mockIncidentStore) List(_ context.Context) ([]model.RecoveredIncident, error) {
	return m.inserted, nil
}

type mockScanCache struct {
	entries    []model.RepositoryScanCache
	replaced   [][]model.RepositoryScanCache
	replaceErr error
}

func (m *mockScanCache) ListAll(_ context.Context) ([]model.RepositoryScanCache, error) {
	return m.entries, nil
}

func (m *mockScanCache) ReplaceAll(_ context.Context, entries []model.RepositoryScanCache) error {
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.replaced = append(m.replaced, entries)
	m.entries = entries
	return nil
}

// --- Source control mocks ---

type mockProvider struct {
	mu        sync.Mutex
	latest    map[string]int
	prs       map[string][]model.PullRequestFact
	errs      map[string]error
	partial   map[string]error // returned with the pull requests.
	listCalls map[string]int
}

func newMockProvider() *mockProvider {
	return &mockProvider{
		latest:    map[string]int{},
		prs:       map[string][]model.PullRequestFact{},
		errs:      map[string]error{},
		partial:   map[string]error{},
		listCalls: map[string]int{},
	}
}

func (m *mockProvider) LatestPullRequestNumber(_ context.Context, target model.RepositoryTarget) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs[target.Name]; err != nil {
		return 0, err
	}
	return m.latest[target.Name], nil
}

func (m *mockProvider) ListMergedPullRequests(_ context.Context, target model.RepositoryTarget) ([]model.PullRequestFact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls[target.Name]++
	// Copy so the scan's in-place updates never leak between runs.
	src := m.prs[target.Name]
	out := make([]model.PullRequestFact, len(src))
	copy(out, src)
	return out, m.partial[target.Name]
}

type labelCall struct {
	Repo   string
	Number int
	Labels []string
}

type commentCall struct {
	Repo   string
	Number int
	Body   string
}

type mockWriter struct {
	mu       sync.Mutex
	labelErr error
	labels   []labelCall
	comments []commentCall
}

func (m *mockWriter) AddLabels(_ context.Context, repo string, number int, labels []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.labelErr != nil {
		return m.labelErr
	}
	m.labels = append(m.labels, labelCall{Repo: repo, Number: number, Labels: labels})
	return nil
}

func (m *mockWriter) CreateIssueComment(_ context.Context, repo string, number int, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.comments = append(m.comments, commentCall{Repo: repo, Number: number, Body: body})
	return nil
}

type mockTeams struct {
	members []model.TeamMember
	err     error
}

func (m *mockTeams) FetchTeamMembers(_ context.Context) ([]model.TeamMember, error) {
	return m.members, m.err
}

// --- Issue tracker mocks ---

type mockTracker struct {
	mu     sync.Mutex
	issues map[string]model.Issue
	errs   map[string]error
	calls  map[string]int
}

func newMockTracker() *mockTracker {
	return &mockTracker{
		issues: map[string]model.Issue{},
		errs:   map[string]error{},
		calls:  map[string]int{},
	}
}

func (m *mockTracker) GetIssue(_ context.Context, key string) (*model.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[key]++
	if err := m.errs[key]; err != nil {
		return nil, err
	}
	issue, ok := m.issues[key]
	if !ok {
		return nil, driven.ErrIssueNotFound
	}
	return &issue, nil
}

type mockChecker struct {
	err   error
	calls int
}

func (m *mockChecker) CheckCredentials(_ context.Context) error {
	m.calls++
	return m.err
}

// --- Sink mock ---

type mockSink struct {
	successful []model.SuccessfulDeploy
	corrective []model.CorrectiveDeploy
	incidents  []model.RecoveredIncident
	err        error
}

func (m *mockSink) WriteSuccessfulDeploys(_ context.Context, rows []model.SuccessfulDeploy) error {
	m.successful = rows
	return m.err
}

func (m *mockSink) WriteCorrectiveDeploys(_ context.Context, rows []model.CorrectiveDeploy) error {
	m.corrective = rows
	return nil
}

func (m *mockSink) WriteRecoveredIncidents(_ context.Context, rows []model.RecoveredIncident) error {
	m.incidents = rows
	return nil
}
