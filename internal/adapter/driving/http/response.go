package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/dorametrics/internal/application"
	"github.com/ericfisherdev/dorametrics/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// minutes renders a duration in minutes as a JSON number with two decimals.
type minutes model.Minutes

// MarshalJSON implements json.Marshaler.
func (m minutes) MarshalJSON() ([]byte, error) {
	return []byte(model.Minutes(m).String()), nil
}

// DeployResponse is the JSON representation of a successful deploy.
type DeployResponse struct {
	Pull       int     `json:"pull"`
	Repo       string  `json:"repo"`
	Team       string  `json:"team,omitempty"`
	DeployedAt string  `json:"deployed_at"`
	LeadTime   minutes `json:"lead_time"`
}

// CorrectiveDeployResponse is the JSON representation of a corrective deploy.
type CorrectiveDeployResponse struct {
	Pull             int      `json:"pull"`
	Repo             string   `json:"repo"`
	ReferencedPull   *int     `json:"referenced_pull"`
	ReferencedTicket *string  `json:"referenced_ticket"`
	Team             string   `json:"team,omitempty"`
	DeployedAt       string   `json:"deployed_at"`
	TimeToRecovery   *minutes `json:"time_to_recovery"`
}

// IncidentResponse is the JSON representation of a recovered incident.
type IncidentResponse struct {
	Ticket         string  `json:"ticket"`
	Repo           string  `json:"repo"`
	Team           string  `json:"team,omitempty"`
	DetectedAt     string  `json:"detected_at"`
	RecoveredAt    string  `json:"recovered_at"`
	TimeToRecovery minutes `json:"time_to_recovery"`
}

// RunResponse summarizes a triggered run.
type RunResponse struct {
	StartedAt           string `json:"started_at"`
	DurationMs          int64  `json:"duration_ms"`
	PullRequests        int    `json:"pull_requests"`
	SuccessfulInserted  int    `json:"successful_inserted"`
	CorrectiveInserted  int    `json:"corrective_inserted"`
	FailedInserts       int    `json:"failed_inserts"`
	IncidentsInserted   int    `json:"incidents_inserted"`
	UnresolvedTickets   int    `json:"unresolved_tickets"`
	FailedTicketLookups int    `json:"failed_ticket_lookups"`
	Reconciled          bool   `json:"reconciled"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func toDeployResponse(d model.SuccessfulDeploy) DeployResponse {
	return DeployResponse{
		Pull:       d.Pull,
		Repo:       d.Repo,
		Team:       d.Team,
		DeployedAt: formatTime(d.DeployedAt),
		LeadTime:   minutes(d.LeadTime),
	}
}

func toCorrectiveDeployResponse(d model.CorrectiveDeploy) CorrectiveDeployResponse {
	resp := CorrectiveDeployResponse{
		Pull:             d.Pull,
		Repo:             d.Repo,
		ReferencedPull:   d.ReferencedPull,
		ReferencedTicket: d.ReferencedTicket,
		Team:             d.Team,
		DeployedAt:       formatTime(d.DeployedAt),
	}
	if d.TimeToRecovery != nil {
		m := minutes(*d.TimeToRecovery)
		resp.TimeToRecovery = &m
	}
	return resp
}

func toIncidentResponse(i model.RecoveredIncident) IncidentResponse {
	return IncidentResponse{
		Ticket:         i.Ticket,
		Repo:           i.Repo,
		Team:           i.Team,
		DetectedAt:     formatTime(i.DetectedAt),
		RecoveredAt:    formatTime(i.RecoveredAt),
		TimeToRecovery: minutes(i.TimeToRecovery),
	}
}

func toRunResponse(r application.RunReport) RunResponse {
	resp := RunResponse{
		StartedAt:          formatTime(r.StartedAt),
		DurationMs:         r.Duration.Milliseconds(),
		PullRequests:       r.PullRequests,
		SuccessfulInserted: r.Deploys.Successful.Inserted,
		CorrectiveInserted: r.Deploys.Corrective.Inserted,
		FailedInserts:      len(r.Deploys.Successful.Failed) + len(r.Deploys.Corrective.Failed),
	}
	if r.Reconcile != nil {
		resp.Reconciled = true
		resp.IncidentsInserted = r.Reconcile.Insert.Inserted
		resp.UnresolvedTickets = r.Reconcile.Unresolved
		resp.FailedTicketLookups = r.Reconcile.Failed
		resp.FailedInserts += len(r.Reconcile.Insert.Failed)
	}
	return resp
}
