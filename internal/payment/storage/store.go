package storage

import (
	"context"

	"qr-entry/internal/models"
)

type Store interface {
	SavePayment(ctx context.Context, payment *models.Payment) error
	GetPayment(ctx context.Context, id int64) (*models.Payment, error)
	UpdatePayment(ctx context.Context, payment *models.Payment) error
	ListPaymentsByBooking(ctx context.Context, bookingID int64) ([]models.Payment, error)
	GetPaymentByGatewayID(ctx context.Context, gateway, gatewayPaymentID string) (*models.Payment, error)

	// TransitionPayment moves a payment to `to` only while it is still in `from`.
	TransitionPayment(ctx context.Context, id int64, from, to models.PaymentStatus) (bool, error)
}
