package storage

import (
	"context"
	"fmt"
	"time"

	"qr-entry/internal/database"
	"qr-entry/internal/logger"
	"qr-entry/internal/models"

	"github.com/uptrace/bun"
)

// PostgreSQLStore keeps payment rows in the shared bun database.
type PostgreSQLStore struct {
	db  *bun.DB
	log *logger.Logger
}

func NewPostgreSQLStore(db *bun.DB, log *logger.Logger) *PostgreSQLStore {
	return &PostgreSQLStore{db: db, log: log}
}

func (s *PostgreSQLStore) SavePayment(ctx context.Context, payment *models.Payment) error {
	if _, err := s.db.NewInsert().Model(payment).Exec(ctx); err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save payment for booking %d: %v", payment.BookingID, err))
		return fmt.Errorf("save payment: %w", err)
	}
	s.log.LogDatabase("INSERT", "payments", fmt.Sprintf("payment %d (%s, %s) saved", payment.ID, payment.Gateway, payment.Status))
	return nil
}

func (s *PostgreSQLStore) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.NewSelect().
		Model(&payment).
		Relation("Booking").
		Relation("Booking.Event").
		Where("payment.id = ?", id).
		Limit(1).
		Scan(ctx)
	if database.IsNoRows(err) {
		return nil, models.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment %d: %w", id, err)
	}
	return &payment, nil
}

func (s *PostgreSQLStore) UpdatePayment(ctx context.Context, payment *models.Payment) error {
	payment.UpdatedAt = time.Now().UTC()
	res, err := s.db.NewUpdate().
		Model(payment).
		Column("gateway_payment_id", "amount", "status", "screenshot", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update payment %d: %w", payment.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrPaymentNotFound
	}
	s.log.LogDatabase("UPDATE", "payments", fmt.Sprintf("payment %d now %s", payment.ID, payment.Status))
	return nil
}

// ListPaymentsByBooking returns every attempt for a booking, oldest first.
func (s *PostgreSQLStore) ListPaymentsByBooking(ctx context.Context, bookingID int64) ([]models.Payment, error) {
	payments := []models.Payment{}
	err := s.db.NewSelect().
		Model(&payments).
		Where("booking_id = ?", bookingID).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payments for booking %d: %w", bookingID, err)
	}
	return payments, nil
}

func (s *PostgreSQLStore) GetPaymentByGatewayID(ctx context.Context, gateway, gatewayPaymentID string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.NewSelect().
		Model(&payment).
		Where("gateway = ?", gateway).
		Where("gateway_payment_id = ?", gatewayPaymentID).
		Order("id DESC").
		Limit(1).
		Scan(ctx)
	if database.IsNoRows(err) {
		return nil, models.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s payment %s: %w", gateway, gatewayPaymentID, err)
	}
	return &payment, nil
}

func (s *PostgreSQLStore) TransitionPayment(ctx context.Context, id int64, from, to models.PaymentStatus) (bool, error) {
	res, err := s.db.NewUpdate().
		Model((*models.Payment)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("transition payment %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
