package model

import "fmt"

// ResolutionScheme selects how a corrective deploy is tied to what it fixes.
type ResolutionScheme string

const (
	// SchemePull resolves recovery time from the deploy of a referenced pull request.
	SchemePull ResolutionScheme = "pull"
	// SchemeTicket defers recovery time to the resolution of a referenced ticket.
	SchemeTicket ResolutionScheme = "ticket"
)

// ParseResolutionScheme validates a configured scheme name.
func ParseResolutionScheme(s string) (ResolutionScheme, error) {
	switch ResolutionScheme(s) {
	case SchemePull, SchemeTicket:
		return ResolutionScheme(s), nil
	default:
		return "", fmt.Errorf("unknown resolution scheme %q: expected %q or %q", s, SchemePull, SchemeTicket)
	}
}

// Production is the only deploy environment measured.
const Production = "prod"

// CorrectiveLabel is the label that marks a pull request as a fix.
const CorrectiveLabel = "bug"
