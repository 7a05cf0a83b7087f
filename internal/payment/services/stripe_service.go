package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"qr-entry/internal/logger"
	"qr-entry/internal/metrics"
	"qr-entry/internal/models"
	"qr-entry/internal/payment/storage"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

var (
	ErrStripeAPIError         = errors.New("stripe API error")
	ErrStripeClientInitFailed = errors.New("failed to initialize Stripe client")
	ErrStripeNotConfigured    = errors.New("stripe payments are not configured")
)

// IntentCreator is the slice of the Stripe API the service needs.
type IntentCreator interface {
	CreateIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeIntents struct {
	api *client.API
}

func (s stripeIntents) CreateIntent(_ context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return s.api.PaymentIntents.New(params)
}

// NewStripeIntents builds the live Stripe client.
func NewStripeIntents(secretKey string, log *logger.Logger) (IntentCreator, error) {
	if secretKey == "" {
		log.Error("STRIPE", "STRIPE_SECRET_KEY not set")
		return nil, ErrStripeClientInitFailed
	}
	sc := client.New(secretKey, nil)
	if sc == nil {
		return nil, ErrStripeClientInitFailed
	}
	log.Info("STRIPE", "Stripe client initialized")
	return stripeIntents{api: sc}, nil
}

type BookingLookup interface {
	GetBookingByID(ctx context.Context, id int64) (*models.Booking, error)
}

type PaymentService struct {
	Store    storage.Store
	Bookings BookingLookup
	Intents  IntentCreator
	Currency string
	Metrics  *metrics.Metrics
	Logger   *logger.Logger
}

func NewPaymentService(store storage.Store, bookings BookingLookup, intents IntentCreator, currency string, log *logger.Logger) *PaymentService {
	if currency == "" {
		currency = "inr"
	}
	return &PaymentService{Store: store, Bookings: bookings, Intents: intents, Currency: strings.ToLower(currency), Logger: log}
}

// CreateStripeIntent opens a card payment for the purchaser's pending booking
// and records it as an INITIATED stripe attempt.
func (s *PaymentService) CreateStripeIntent(ctx context.Context, purchaser models.Principal, bookingID int64) (*models.PaymentIntentResponse, error) {
	if s.Intents == nil {
		return nil, ErrStripeNotConfigured
	}
	booking, err := s.Bookings.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.AccountID != purchaser.AccountID {
		return nil, models.ErrForbidden
	}
	if booking.Status != models.BookingPending {
		return nil, models.ErrBookingNotPayable
	}
	if booking.Event == nil || booking.Event.Price <= 0 {
		return nil, models.NewValidationError("amount", "event has no price to charge")
	}

	amount := booking.Event.Price * 100
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(amount),
		Currency:    stripe.String(s.Currency),
		Description: stripe.String(booking.Event.Name),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("ticket_id", booking.TicketID)
	params.AddMetadata("booking_id", strconv.FormatInt(booking.ID, 10))

	intent, err := s.Intents.CreateIntent(ctx, params)
	if err != nil {
		s.Logger.Error("STRIPE", fmt.Sprintf("create intent for %s: %v", booking.TicketID, err))
		return nil, fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}

	payment := &models.Payment{
		BookingID:        booking.ID,
		Gateway:          models.GatewayStripe,
		GatewayPaymentID: intent.ID,
		Amount:           float64(booking.Event.Price),
		Status:           models.PaymentInitiated,
	}
	if err := s.Store.SavePayment(ctx, payment); err != nil {
		return nil, err
	}
	s.Metrics.PaymentRecorded(models.GatewayStripe, string(models.PaymentInitiated))
	s.Logger.LogPayment("INTENT_CREATED", booking.TicketID, intent.ID)

	return &models.PaymentIntentResponse{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Amount:          amount,
		Currency:        s.Currency,
	}, nil
}

// ListPayments shows a booking's attempts to its purchaser, its organiser and staff.
func (s *PaymentService) ListPayments(ctx context.Context, viewer models.Principal, bookingID int64) ([]models.Payment, error) {
	booking, err := s.Bookings.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.AccountID != viewer.AccountID && !viewer.CanManageEvent(booking.Event) {
		return nil, models.ErrForbidden
	}
	return s.Store.ListPaymentsByBooking(ctx, bookingID)
}

// VerifyPayment settles a manual payment after the organiser has looked at the
// screenshot. The booking itself is left as it is.
func (s *PaymentService) VerifyPayment(ctx context.Context, verifier models.Principal, paymentID int64, approved bool) (*models.Payment, error) {
	payment, err := s.Store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	var event *models.Event
	if payment.Booking != nil {
		event = payment.Booking.Event
	}
	if !verifier.CanManageEvent(event) {
		return nil, models.ErrForbidden
	}
	if payment.Status != models.PaymentInitiated {
		return nil, models.ErrPaymentAlreadyVerified
	}

	to := models.PaymentFailed
	if approved {
		to = models.PaymentSuccess
	}
	ok, err := s.Store.TransitionPayment(ctx, payment.ID, models.PaymentInitiated, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.ErrPaymentAlreadyVerified
	}
	payment.Status = to
	s.Metrics.PaymentRecorded(payment.Gateway, string(to))
	s.Logger.LogPayment("VERIFIED", fmt.Sprintf("payment-%d", payment.ID), fmt.Sprintf("%s by account %d", to, verifier.AccountID))
	return payment, nil
}
