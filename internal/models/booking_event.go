package models

import "time"

const (
	BookingEventCreated   = "booking.created"
	BookingEventConfirmed = "booking.confirmed"
	BookingEventCheckedIn = "booking.checked_in"
	BookingEventCancelled = "booking.cancelled"
)

// BookingEvent is the Kafka message value for booking lifecycle changes.
type BookingEvent struct {
	Type      string        `json:"type"`
	BookingID int64         `json:"booking_id"`
	TicketID  string        `json:"ticket_id"`
	EventID   int64         `json:"event_id"`
	AccountID int64         `json:"account_id"`
	Status    BookingStatus `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
}

func NewBookingEvent(eventType string, b *Booking) BookingEvent {
	return BookingEvent{
		Type:      eventType,
		BookingID: b.ID,
		TicketID:  b.TicketID,
		EventID:   b.EventID,
		AccountID: b.AccountID,
		Status:    b.Status,
		Timestamp: time.Now().UTC(),
	}
}
