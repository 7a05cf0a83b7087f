package models

import (
	"time"

	"github.com/uptrace/bun"
)

type CheckinLog struct {
	bun.BaseModel `bun:"table:checkin_logs"`

	ID          int64     `json:"id" bun:"id,pk,autoincrement"`
	BookingID   int64     `json:"booking_id" bun:"booking_id,notnull"`
	ScannedBy   int64     `json:"scanned_by" bun:"scanned_by,notnull"`
	CheckinTime time.Time `json:"checkin_time" bun:"checkin_time,notnull"`
}

type CheckinOutcome string

const (
	OutcomeCheckedIn   CheckinOutcome = "checked_in"
	OutcomeAlreadyUsed CheckinOutcome = "already_used"
	OutcomeNotFound    CheckinOutcome = "not_found"
	OutcomeCancelled   CheckinOutcome = "cancelled"
)

type CheckinResult struct {
	Outcome     CheckinOutcome `json:"outcome"`
	TicketID    string         `json:"ticket_id"`
	BookingID   int64          `json:"booking_id,omitempty"`
	EventID     int64          `json:"event_id,omitempty"`
	CheckedInAt *time.Time     `json:"checked_in_at,omitempty"`
}

func (r CheckinResult) Admitted() bool {
	return r.Outcome == OutcomeCheckedIn
}

// Message is the human readable line shown on the scan page.
func (r CheckinResult) Message() string {
	switch r.Outcome {
	case OutcomeCheckedIn:
		return "Attendance marked for " + r.TicketID
	case OutcomeAlreadyUsed:
		return "Ticket " + r.TicketID + " has already been used"
	case OutcomeCancelled:
		return "Ticket " + r.TicketID + " was cancelled"
	default:
		return "Ticket not found"
	}
}
