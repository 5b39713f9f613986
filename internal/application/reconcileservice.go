package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/dorametrics/internal/domain/model"
	"github.com/ericfisherdev/dorametrics/internal/domain/port/driven"
)

// detachedInsertTimeout bounds the insert of already computed incidents after
// the run's context was canceled.
const detachedInsertTimeout = 10 * time.Second

// ReconcileResult reports one reconcile pass.
type ReconcileResult struct {
	Candidates int
	Unresolved int
	Failed     int
	Insert     driven.InsertReport
}

// ReconcileService emits a RecoveredIncident the first time the ticket of a
// stored corrective deploy is seen resolved.
type ReconcileService struct {
	corrective  driven.CorrectiveDeployStore
	incidents   driven.IncidentStore
	tracker     driven.IssueTracker
	concurrency int
}

// NewReconcileService creates a ReconcileService that looks up at most
// concurrency tickets at a time.
func NewReconcileService(
	corrective driven.CorrectiveDeployStore,
	incidents driven.IncidentStore,
	tracker driven.IssueTracker,
	concurrency int,
) *ReconcileService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ReconcileService{
		corrective:  corrective,
		incidents:   incidents,
		tracker:     tracker,
		concurrency: concurrency,
	}
}

// RecoveredIncidentFor builds the incident for deploy from the state of its
// ticket. It returns nil while the ticket is unresolved.
func RecoveredIncidentFor(deploy model.CorrectiveDeploy, issue model.Issue) *model.RecoveredIncident {
	if deploy.ReferencedTicket == nil || !issue.IsResolved() {
		return nil
	}
	return &model.RecoveredIncident{
		Ticket:         *deploy.ReferencedTicket,
		Repo:           deploy.Repo,
		Team:           deploy.Team,
		DetectedAt:     issue.CreatedAt,
		RecoveredAt:    *issue.ResolvedAt,
		TimeToRecovery: model.MinutesBetween(issue.CreatedAt, *issue.ResolvedAt),
	}
}

// Reconcile checks every unreconciled corrective deploy against the tracker.
// Unresolved tickets and failed lookups are left for the next run. An
// ErrUnauthorized from the tracker aborts the pass before anything is written.
func (s *ReconcileService) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var result ReconcileResult

	pending, err := s.corrective.ListUnreconciled(ctx)
	if err != nil {
		return result, fmt.Errorf("list unreconciled corrective deploys: %w", err)
	}
	withTicket := pending[:0]
	for _, d := range pending {
		if d.ReferencedTicket != nil {
			withTicket = append(withTicket, d)
		}
	}
	// Several fixes may reference one ticket; look each ticket up once.
	pending = FilterNew(withTicket, func(d model.CorrectiveDeploy) string { return *d.ReferencedTicket }, nil)
	result.Candidates = len(pending)

	found := make([]*model.RecoveredIncident, len(pending))
	outcomes := make([]lookupOutcome, len(pending))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, deploy := range pending {
		g.Go(func() error {
			ticket := *deploy.ReferencedTicket
			issue, err := s.tracker.GetIssue(gctx, ticket)
			switch {
			case errors.Is(err, driven.ErrUnauthorized):
				return fmt.Errorf("get issue %s: %w", ticket, err)
			case gctx.Err() != nil:
				outcomes[i] = lookupAbandoned
				return nil
			case err != nil:
				slog.Error("issue lookup failed", "ticket", ticket, "repo", deploy.Repo, "error", err)
				outcomes[i] = lookupFailed
				return nil
			}

			incident := RecoveredIncidentFor(deploy, *issue)
			if incident == nil {
				slog.Info("ticket not resolved yet", "ticket", ticket, "repo", deploy.Repo)
				outcomes[i] = lookupUnresolved
				return nil
			}
			if incident.TimeToRecovery < 0 {
				slog.Warn("negative time to recovery", "ticket", ticket, "minutes", incident.TimeToRecovery.String())
			}
			slog.Info("recovered incident", "ticket", ticket, "repo", deploy.Repo,
				"time_to_recovery", incident.TimeToRecovery.String())
			found[i] = incident
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	var incidents []model.RecoveredIncident
	for i, o := range outcomes {
		switch o {
		case lookupUnresolved:
			result.Unresolved++
		case lookupFailed:
			result.Failed++
		}
		if found[i] != nil {
			incidents = append(incidents, *found[i])
		}
	}

	insertCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		insertCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), detachedInsertTimeout)
		defer cancel()
	}

	tickets := make([]string, 0, len(incidents))
	for _, inc := range incidents {
		tickets = append(tickets, inc.Ticket)
	}
	existing, err := s.incidents.ExistingTickets(insertCtx, tickets)
	if err != nil {
		return result, fmt.Errorf("read existing incidents: %w", err)
	}
	incidents = FilterNew(incidents, func(r model.RecoveredIncident) string { return r.Ticket }, existing)

	result.Insert, err = s.incidents.Insert(insertCtx, incidents)
	logInsertReport("recovered_incidents", result.Insert)
	if err != nil {
		return result, fmt.Errorf("insert recovered incidents: %w", err)
	}

	return result, nil
}

type lookupOutcome int

const (
	lookupDone lookupOutcome = iota
	lookupUnresolved
	lookupFailed
	lookupAbandoned
)
