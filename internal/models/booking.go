package models

import (
	"time"

	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingSuccess   BookingStatus = "SUCCESS"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingCheckedIn BookingStatus = "CHECKED_IN"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingSuccess, BookingCancelled, BookingCheckedIn:
		return true
	}
	return false
}

// Admissible reports whether a ticket in this status may still be scanned in.
func (s BookingStatus) Admissible() bool {
	return s == BookingPending || s == BookingSuccess
}

type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID                int64         `json:"id" bun:"id,pk,autoincrement"`
	AccountID         int64         `json:"account_id" bun:"account_id,notnull"`
	EventID           int64         `json:"event_id" bun:"event_id,notnull"`
	Status            BookingStatus `json:"status" bun:"status,notnull"`
	TicketID          string        `json:"ticket_id" bun:"ticket_id,unique,notnull"`
	QRCodePath        string        `json:"qr_code_path,omitempty" bun:"qr_code_path,nullzero"`
	PaymentScreenshot string        `json:"payment_screenshot,omitempty" bun:"payment_screenshot,nullzero"`
	CreatedAt         time.Time     `json:"created_at" bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time     `json:"updated_at" bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	CheckedInAt       *time.Time    `json:"checked_in_at,omitempty" bun:"checked_in_at"`

	Event   *Event   `json:"event,omitempty" bun:"rel:belongs-to,join:event_id=id"`
	Account *Account `json:"-" bun:"rel:belongs-to,join:account_id=id"`
}

// PaymentLink is returned by the UPI payment page flow.
type PaymentLink struct {
	Booking *Booking `json:"booking"`
	UPILink string   `json:"upi_link"`
	QRPath  string   `json:"qr_path"`
}
