package model

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Minutes is a duration in minutes rounded to two decimals.
type Minutes float64

// MinutesBetween returns to-from in minutes, rounded to two decimals.
// Negative results are returned as-is.
func MinutesBetween(from, to time.Time) Minutes {
	ms := float64(to.Sub(from).Milliseconds())
	return Minutes(math.Round(ms/60000*100) / 100)
}

// String renders the value with exactly two decimals.
func (m Minutes) String() string {
	return strconv.FormatFloat(float64(m), 'f', 2, 64)
}

// DeployKey is the natural key of deploy facts.
type DeployKey struct {
	Repo string
	Pull int
}

func (k DeployKey) String() string {
	return fmt.Sprintf("%s#%d", k.Repo, k.Pull)
}

// SuccessfulDeploy is one production deploy of a merged pull request.
type SuccessfulDeploy struct {
	Pull       int
	Repo       string
	Team       string
	DeployedAt time.Time
	LeadTime   Minutes
}

// Key returns the natural key of the row.
func (d SuccessfulDeploy) Key() DeployKey {
	return DeployKey{Repo: d.Repo, Pull: d.Pull}
}

// CorrectiveDeploy is the production deploy of a bugfix or hotfix pull request.
// TimeToRecovery is nil when it cannot be computed at creation time.
type CorrectiveDeploy struct {
	Pull             int
	Repo             string
	ReferencedPull   *int
	ReferencedTicket *string
	Team             string
	DeployedAt       time.Time
	TimeToRecovery   *Minutes
}

// Key returns the natural key of the row.
func (d CorrectiveDeploy) Key() DeployKey {
	return DeployKey{Repo: d.Repo, Pull: d.Pull}
}

// RecoveredIncident is emitted once per ticket, the first time the ticket
// referenced by a corrective deploy is seen resolved.
type RecoveredIncident struct {
	Ticket         string
	Repo           string
	Team           string
	DetectedAt     time.Time
	RecoveredAt    time.Time
	TimeToRecovery Minutes
}
