package analytics

import (
	"context"
	"database/sql"
	"strings"

	"qr-entry/internal/models"

	"github.com/uptrace/bun"
)

// DB handles analytics database operations
type DB struct {
	Bun *bun.DB
}

// NewDB creates a new analytics DB handler
func NewDB(db *bun.DB) *DB {
	return &DB{Bun: db}
}

type statusCount struct {
	Status models.BookingStatus `bun:"status"`
	Count  int                  `bun:"count"`
}

// CountBookingsByStatus groups the bookings of eventIDs by status.
func (d *DB) CountBookingsByStatus(ctx context.Context, eventIDs []int64) (map[models.BookingStatus]int, error) {
	counts := make(map[models.BookingStatus]int)
	if len(eventIDs) == 0 {
		return counts, nil
	}
	var rows []statusCount
	err := d.Bun.NewSelect().
		TableExpr("bookings").
		ColumnExpr("status").
		ColumnExpr("COUNT(*) AS count").
		Where("event_id IN (?)", bun.In(eventIDs)).
		GroupExpr("status").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// SumSuccessfulPayments totals SUCCESS payment rows for eventIDs.
func (d *DB) SumSuccessfulPayments(ctx context.Context, eventIDs []int64) (float64, error) {
	if len(eventIDs) == 0 {
		return 0, nil
	}
	// SQLite hands back an integer SUM for whole amounts; NullFloat64 converts either.
	var total sql.NullFloat64
	err := d.Bun.NewRaw(`
		SELECT SUM(p.amount)
		FROM payments p
		JOIN bookings b ON b.id = p.booking_id
		WHERE b.event_id IN (?) AND p.status = ?`,
		bun.In(eventIDs), models.PaymentSuccess).
		Scan(ctx, &total)
	if err != nil {
		return 0, err
	}
	return total.Float64, nil
}

// ListCheckins returns the check-in ledger for eventIDs, oldest first.
func (d *DB) ListCheckins(ctx context.Context, eventIDs []int64) ([]models.CheckinLog, error) {
	logs := []models.CheckinLog{}
	if len(eventIDs) == 0 {
		return logs, nil
	}
	err := d.Bun.NewSelect().
		Model(&logs).
		Where("booking_id IN (SELECT id FROM bookings WHERE event_id IN (?))", bun.In(eventIDs)).
		Order("checkin_time ASC").
		Scan(ctx)
	return logs, err
}

// BookingSortField defines the valid fields for sorting an event's bookings
type BookingSortField string

const (
	BookingSortByCreatedAt BookingSortField = "created_at"
	BookingSortByTicketID  BookingSortField = "ticket_id"
	BookingSortByStatus    BookingSortField = "status"
)

type BookingListOptions struct {
	Status   models.BookingStatus
	SortBy   string
	SortDesc bool
	Limit    int
	Offset   int
}

// ListEventBookings returns one event's bookings with their purchasers.
func (d *DB) ListEventBookings(ctx context.Context, eventID int64, opts BookingListOptions) ([]models.Booking, error) {
	bookings := []models.Booking{}
	q := d.Bun.NewSelect().
		Model(&bookings).
		Relation("Account").
		Where("booking.event_id = ?", eventID)

	if opts.Status != "" {
		q = q.Where("booking.status = ?", opts.Status)
	}

	direction := "ASC"
	if opts.SortDesc {
		direction = "DESC"
	}
	switch BookingSortField(strings.ToLower(opts.SortBy)) {
	case BookingSortByTicketID:
		q = q.Order("booking.ticket_id " + direction)
	case BookingSortByStatus:
		q = q.Order("booking.status "+direction, "booking.id ASC")
	case BookingSortByCreatedAt:
		q = q.Order("booking.created_at "+direction, "booking.id "+direction)
	default:
		q = q.Order("booking.created_at DESC", "booking.id DESC")
	}

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	err := q.Scan(ctx)
	return bookings, err
}
