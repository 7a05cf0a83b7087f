package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"qr-entry/internal/database"
	"qr-entry/internal/models"

	"github.com/uptrace/bun"
)

// ErrTicketIDTaken signals a ticket_id unique violation so the caller can retry with a new id.
var ErrTicketIDTaken = errors.New("ticket id already taken")

type DB struct {
	Bun *bun.DB
}

// CreateBooking inserts b and fills in its ID.
func (d *DB) CreateBooking(ctx context.Context, b *models.Booking) error {
	_, err := d.Bun.NewInsert().Model(b).Exec(ctx)
	switch {
	case err == nil:
		return nil
	case database.IsUniqueViolation(err, "ticket_id"):
		return fmt.Errorf("%w: %s", ErrTicketIDTaken, b.TicketID)
	case database.IsUniqueViolation(err, "account_id"):
		return models.ErrAlreadyBooked
	default:
		return err
	}
}

func (d *DB) GetBookingByID(ctx context.Context, id int64) (*models.Booking, error) {
	var booking models.Booking
	err := d.Bun.NewSelect().
		Model(&booking).
		Relation("Event").
		Where("booking.id = ?", id).
		Limit(1).
		Scan(ctx)
	if database.IsNoRows(err) {
		return nil, models.ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (d *DB) GetBookingByTicketID(ctx context.Context, ticketID string) (*models.Booking, error) {
	return getByTicketID(ctx, d.Bun, ticketID)
}

func getByTicketID(ctx context.Context, idb bun.IDB, ticketID string) (*models.Booking, error) {
	var booking models.Booking
	err := idb.NewSelect().
		Model(&booking).
		Relation("Event").
		Where("booking.ticket_id = ?", ticketID).
		Limit(1).
		Scan(ctx)
	if database.IsNoRows(err) {
		return nil, models.ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// FindActiveBooking returns the holder's non-cancelled booking for an event.
func (d *DB) FindActiveBooking(ctx context.Context, accountID, eventID int64) (*models.Booking, error) {
	var booking models.Booking
	err := d.Bun.NewSelect().
		Model(&booking).
		Relation("Event").
		Where("booking.account_id = ?", accountID).
		Where("booking.event_id = ?", eventID).
		Where("booking.status <> ?", models.BookingCancelled).
		Limit(1).
		Scan(ctx)
	if database.IsNoRows(err) {
		return nil, models.ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (d *DB) ListBookingsByAccount(ctx context.Context, accountID int64) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.Bun.NewSelect().
		Model(&bookings).
		Relation("Event").
		Where("booking.account_id = ?", accountID).
		Order("booking.created_at DESC", "booking.id DESC").
		Scan(ctx)
	return bookings, err
}

// ListBookingsByOrganizer returns bookings for every event the organiser owns.
func (d *DB) ListBookingsByOrganizer(ctx context.Context, organizerID int64) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.Bun.NewSelect().
		Model(&bookings).
		Relation("Event").
		Relation("Account").
		Where("event.organizer_id = ?", organizerID).
		Order("booking.created_at DESC", "booking.id DESC").
		Scan(ctx)
	return bookings, err
}

func (d *DB) SetQRCodePath(ctx context.Context, bookingID int64, path string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("qr_code_path = ?", path).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", bookingID).
		Exec(ctx)
	return err
}

// TransitionStatus moves a booking to `to` only while its status is one of `from`.
// It reports whether the row changed.
func (d *DB) TransitionStatus(ctx context.Context, bookingID int64, from []models.BookingStatus, to models.BookingStatus) (bool, error) {
	return transition(ctx, d.Bun, bookingID, from, to)
}

func transition(ctx context.Context, idb bun.IDB, bookingID int64, from []models.BookingStatus, to models.BookingStatus) (bool, error) {
	res, err := idb.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", bookingID).
		Where("status IN (?)", bun.In(from)).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RecordPayment writes payment and, when to is set, applies the conditional
// transition in the same transaction. The payment row is written even when
// the transition does not apply. A pending attempt with the same gateway id
// (a Stripe intent, say) is settled in place instead of duplicated.
func (d *DB) RecordPayment(ctx context.Context, payment *models.Payment, from []models.BookingStatus, to models.BookingStatus) (bool, error) {
	var changed bool
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if to != "" {
			var err error
			changed, err = transition(ctx, tx, payment.BookingID, from, to)
			if err != nil {
				return fmt.Errorf("transition booking %d: %w", payment.BookingID, err)
			}
		}
		settled, err := settleAttempt(ctx, tx, payment)
		if err != nil || settled {
			return err
		}
		if _, err := tx.NewInsert().Model(payment).Exec(ctx); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		return nil
	})
	return changed, err
}

func settleAttempt(ctx context.Context, tx bun.Tx, payment *models.Payment) (bool, error) {
	if payment.GatewayPaymentID == "" {
		return false, nil
	}
	var existing models.Payment
	err := tx.NewSelect().
		Model(&existing).
		Where("booking_id = ?", payment.BookingID).
		Where("gateway = ?", payment.Gateway).
		Where("gateway_payment_id = ?", payment.GatewayPaymentID).
		Where("status = ?", models.PaymentInitiated).
		Limit(1).
		Scan(ctx)
	if database.IsNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find pending attempt %s: %w", payment.GatewayPaymentID, err)
	}
	if payment.UpdatedAt.IsZero() {
		payment.UpdatedAt = time.Now().UTC()
	}
	_, err = tx.NewUpdate().
		Model((*models.Payment)(nil)).
		Set("status = ?", payment.Status).
		Set("amount = ?", payment.Amount).
		Set("updated_at = ?", payment.UpdatedAt).
		Where("id = ?", existing.ID).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("settle payment %d: %w", existing.ID, err)
	}
	payment.ID = existing.ID
	payment.CreatedAt = existing.CreatedAt
	return true, nil
}

// AttachScreenshot stores the screenshot reference, marks the booking SUCCESS
// and appends the manual payment, all or nothing. It reports false when the
// booking is no longer payable.
func (d *DB) AttachScreenshot(ctx context.Context, bookingID int64, screenshot string, payment *models.Payment) (bool, error) {
	var attached bool
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Booking)(nil)).
			Set("payment_screenshot = ?", screenshot).
			Set("status = ?", models.BookingSuccess).
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", bookingID).
			Where("status IN (?)", bun.In([]models.BookingStatus{models.BookingPending, models.BookingSuccess})).
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n != 1 {
			return nil
		}
		attached = true
		_, err = tx.NewInsert().Model(payment).Exec(ctx)
		return err
	})
	return attached, err
}

// CheckIn atomically moves an admissible ticket to CHECKED_IN and appends the
// check-in log. It returns the booking as seen after the attempt and whether
// this call performed the transition.
func (d *DB) CheckIn(ctx context.Context, ticketID string, scannedBy int64, at time.Time) (*models.Booking, bool, error) {
	var (
		booking   *models.Booking
		checkedIn bool
	)
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Booking)(nil)).
			Set("status = ?", models.BookingCheckedIn).
			Set("checked_in_at = ?", at).
			Set("updated_at = ?", at).
			Where("ticket_id = ?", ticketID).
			Where("status IN (?)", bun.In([]models.BookingStatus{models.BookingPending, models.BookingSuccess})).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("check-in update: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}

		booking, err = getByTicketID(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if n != 1 {
			return nil
		}

		entry := &models.CheckinLog{BookingID: booking.ID, ScannedBy: scannedBy, CheckinTime: at}
		if _, err := tx.NewInsert().Model(entry).Exec(ctx); err != nil {
			return fmt.Errorf("insert check-in log: %w", err)
		}
		checkedIn = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return booking, checkedIn, nil
}

func (d *DB) ListCheckinLogs(ctx context.Context, bookingID int64) ([]models.CheckinLog, error) {
	var logs []models.CheckinLog
	err := d.Bun.NewSelect().
		Model(&logs).
		Where("booking_id = ?", bookingID).
		Order("checkin_time ASC").
		Scan(ctx)
	return logs, err
}
