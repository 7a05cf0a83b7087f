package db

import (
	"context"

	"qr-entry/internal/models"
)

// GetTotalTicketsCount returns the number of bookings ever issued.
func (d *DB) GetTotalTicketsCount(ctx context.Context) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Booking)(nil)).
		Count(ctx)
}

// CountBookingsForEvent counts an event's bookings, all statuses included.
// Capacity is advisory, so nothing compares this against Event.Capacity.
func (d *DB) CountBookingsForEvent(ctx context.Context, eventID int64) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Booking)(nil)).
		Where("event_id = ?", eventID).
		Count(ctx)
}
