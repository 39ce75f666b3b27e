package models

import "time"

// TroubleCode is a diagnostic trouble code identifier such as "P0301".
type TroubleCode string

func (c TroubleCode) String() string {
	return string(c)
}

// DTCEntry represents a diagnostic trouble code with description.
type DTCEntry struct {
	Code        TroubleCode
	Description string
}

// Outcome is the result kind of a single check.
type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeNotConnected Outcome = "not_connected"
	OutcomeQueryFailed  Outcome = "query_failed"
)

// CheckRecord is one completed check as it is stored in history.
type CheckRecord struct {
	ID        string
	CheckedAt time.Time
	Outcome   Outcome
	Entries   []DTCEntry
}
