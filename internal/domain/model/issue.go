package model

import "time"

// Issue is the state of an issue-tracker ticket.
type Issue struct {
	Key        string
	CreatedAt  time.Time
	ResolvedAt *time.Time // nil while unresolved.
}

// IsResolved reports whether the ticket has a resolution date.
func (i Issue) IsResolved() bool {
	return i.ResolvedAt != nil
}
