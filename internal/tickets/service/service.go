package tickets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"qr-entry/internal/config"
	"qr-entry/internal/logger"
	"qr-entry/internal/media"
	"qr-entry/internal/metrics"
	"qr-entry/internal/models"
	"qr-entry/internal/tickets/db"
	qr "qr-entry/internal/tickets/qr_genrator"
	"qr-entry/internal/utils"
)

const maxTicketIDAttempts = 5

type TicketDBLayer interface {
	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBookingByID(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingByTicketID(ctx context.Context, ticketID string) (*models.Booking, error)
	FindActiveBooking(ctx context.Context, accountID, eventID int64) (*models.Booking, error)
	ListBookingsByAccount(ctx context.Context, accountID int64) ([]models.Booking, error)
	ListBookingsByOrganizer(ctx context.Context, organizerID int64) ([]models.Booking, error)
	SetQRCodePath(ctx context.Context, bookingID int64, path string) error
	TransitionStatus(ctx context.Context, bookingID int64, from []models.BookingStatus, to models.BookingStatus) (bool, error)
	RecordPayment(ctx context.Context, payment *models.Payment, from []models.BookingStatus, to models.BookingStatus) (bool, error)
	AttachScreenshot(ctx context.Context, bookingID int64, screenshot string, payment *models.Payment) (bool, error)
	CheckIn(ctx context.Context, ticketID string, scannedBy int64, at time.Time) (*models.Booking, bool, error)
	GetTotalTicketsCount(ctx context.Context) (int, error)
}

type EventLookup interface {
	GetEventByID(ctx context.Context, id int64) (*models.Event, error)
}

// ArtifactGenerator renders a QR payload to qr_codes/<filename>.
type ArtifactGenerator interface {
	Generate(payload, filename string) (string, error)
}

type FileStore interface {
	Save(rel string, data []byte) (string, error)
	Open(rel string) (io.ReadCloser, error)
	Remove(rel string) error
}

type BookingPublisher interface {
	PublishBookingEvent(ctx context.Context, topic string, evt models.BookingEvent) error
}

type CheckinFeed interface {
	EmitCheckin(eventID int64, result models.CheckinResult)
}

type GuestAccounts interface {
	EnsureGuest(ctx context.Context, name, email string) (*models.Account, error)
}

type TicketService struct {
	DB        TicketDBLayer
	Events    EventLookup
	QR        ArtifactGenerator
	Files     FileStore
	Publisher BookingPublisher
	Feed      CheckinFeed
	Guests    GuestAccounts
	Topics    config.TopicConfig
	Metrics   *metrics.Metrics
	Logger    *logger.Logger

	// NewTicketID and Now are replaceable in tests.
	NewTicketID    func() string
	Now            func() time.Time
	MaxUploadBytes int64
}

func NewTicketService(store TicketDBLayer, events EventLookup, gen ArtifactGenerator, files FileStore, log *logger.Logger) *TicketService {
	return &TicketService{
		DB:             store,
		Events:         events,
		QR:             gen,
		Files:          files,
		Logger:         log,
		NewTicketID:    utils.GenerateTicketID,
		Now:            time.Now,
		MaxUploadBytes: 5 << 20,
	}
}

func (s *TicketService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func (s *TicketService) ticketID() string {
	if s.NewTicketID == nil {
		return utils.GenerateTicketID()
	}
	return s.NewTicketID()
}

// CreateBooking books eventID for the purchaser. When the booking is stored but
// its QR cannot be written, the booking is returned together with the error.
func (s *TicketService) CreateBooking(ctx context.Context, purchaser models.Principal, eventID int64) (*models.Booking, error) {
	event, err := s.Events.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	booking, err := s.insertBooking(ctx, purchaser.AccountID, event)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, s.Topics.BookingCreated, models.BookingEventCreated, booking)

	if err := s.assignTicketQR(ctx, booking); err != nil {
		return booking, err
	}
	return booking, nil
}

func (s *TicketService) insertBooking(ctx context.Context, accountID int64, event *models.Event) (*models.Booking, error) {
	for attempt := 1; attempt <= maxTicketIDAttempts; attempt++ {
		now := s.now()
		booking := &models.Booking{
			AccountID: accountID,
			EventID:   event.ID,
			Status:    models.BookingPending,
			TicketID:  s.ticketID(),
			CreatedAt: now,
			UpdatedAt: now,
		}
		err := s.DB.CreateBooking(ctx, booking)
		if err == nil {
			booking.Event = event
			s.Metrics.BookingCreated()
			s.Logger.LogBooking("CREATED", booking.TicketID, fmt.Sprintf("account %d booked event %d", accountID, event.ID))
			return booking, nil
		}
		if !errors.Is(err, db.ErrTicketIDTaken) {
			return nil, err
		}
		s.Metrics.TicketIDConflict()
		s.Logger.Warn("BOOKING", fmt.Sprintf("ticket id %s taken, retrying (%d/%d)", booking.TicketID, attempt, maxTicketIDAttempts))
	}
	return nil, models.ErrTicketIDExhausted
}

func (s *TicketService) assignTicketQR(ctx context.Context, booking *models.Booking) error {
	path, err := s.QR.Generate(booking.TicketID, qr.TicketFilename(booking.TicketID))
	if err != nil {
		s.Logger.LogBooking("QR_FAILED", booking.TicketID, err.Error())
		return fmt.Errorf("generate ticket QR: %w", err)
	}
	if err := s.DB.SetQRCodePath(ctx, booking.ID, path); err != nil {
		return fmt.Errorf("store QR path: %w", err)
	}
	booking.QRCodePath = path
	return nil
}

// CreatePaymentLink returns a UPI payment link and QR for eventID, reusing the
// purchaser's pending booking when there is one.
func (s *TicketService) CreatePaymentLink(ctx context.Context, purchaser models.Principal, eventID int64) (*models.PaymentLink, error) {
	event, err := s.Events.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.UPIID == "" {
		return nil, models.NewValidationError("upi_id", "event does not accept UPI payments")
	}

	booking, err := s.DB.FindActiveBooking(ctx, purchaser.AccountID, eventID)
	switch {
	case err == nil:
		if booking.Status != models.BookingPending {
			return nil, models.ErrAlreadyBooked
		}
		booking.Event = event
	case errors.Is(err, models.ErrBookingNotFound):
		booking, err = s.CreateBooking(ctx, purchaser, eventID)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	link := qr.UPILink(event.UPIID, event.Name, event.Price)
	path, err := s.QR.Generate(link, qr.PaymentFilename(booking.TicketID))
	if err != nil {
		return nil, fmt.Errorf("generate payment QR: %w", err)
	}
	s.Logger.LogPayment("LINK_CREATED", booking.TicketID, fmt.Sprintf("UPI link for event %d", eventID))
	return &models.PaymentLink{Booking: booking, UPILink: link, QRPath: path}, nil
}

// GetBooking is visible to the purchaser, the event organiser and staff.
func (s *TicketService) GetBooking(ctx context.Context, viewer models.Principal, bookingID int64) (*models.Booking, error) {
	booking, err := s.DB.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.AccountID != viewer.AccountID && !viewer.CanManageEvent(booking.Event) {
		return nil, models.ErrForbidden
	}
	return booking, nil
}

func (s *TicketService) ListMyBookings(ctx context.Context, viewer models.Principal) ([]models.Booking, error) {
	bookings, err := s.DB.ListBookingsByAccount(ctx, viewer.AccountID)
	if err != nil {
		return nil, fmt.Errorf("list bookings for account %d: %w", viewer.AccountID, err)
	}
	return bookings, nil
}

// ListOrganizerBookings returns bookings across every event the organiser owns.
func (s *TicketService) ListOrganizerBookings(ctx context.Context, organiser models.Principal) ([]models.Booking, error) {
	if !organiser.IsOrganiser() && !organiser.IsStaff {
		return nil, models.ErrForbidden
	}
	bookings, err := s.DB.ListBookingsByOrganizer(ctx, organiser.AccountID)
	if err != nil {
		return nil, fmt.Errorf("list bookings for organiser %d: %w", organiser.AccountID, err)
	}
	return bookings, nil
}

// OpenQRCode streams the ticket QR image. The caller closes the reader.
func (s *TicketService) OpenQRCode(ctx context.Context, viewer models.Principal, bookingID int64) (io.ReadCloser, *models.Booking, error) {
	booking, err := s.GetBooking(ctx, viewer, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if booking.QRCodePath == "" {
		return nil, booking, models.ErrQRNotAssigned
	}
	rc, err := s.Files.Open(booking.QRCodePath)
	if err != nil {
		s.Logger.LogBooking("QR_MISSING", booking.TicketID, err.Error())
		return nil, booking, fmt.Errorf("%w: %v", models.ErrQRNotAssigned, err)
	}
	return rc, booking, nil
}

// OpenPaymentQR streams the UPI payment QR produced by CreatePaymentLink.
func (s *TicketService) OpenPaymentQR(ctx context.Context, viewer models.Principal, bookingID int64) (io.ReadCloser, *models.Booking, error) {
	booking, err := s.GetBooking(ctx, viewer, bookingID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.Files.Open(path.Join(media.QRCodeDir, qr.PaymentFilename(booking.TicketID)))
	if err != nil {
		return nil, booking, fmt.Errorf("%w: %v", models.ErrQRNotAssigned, err)
	}
	return rc, booking, nil
}

// CancelBooking is allowed for the purchaser and the event organiser. Used tickets stay used.
func (s *TicketService) CancelBooking(ctx context.Context, actor models.Principal, bookingID int64) (*models.Booking, error) {
	booking, err := s.DB.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.AccountID != actor.AccountID && !actor.CanManageEvent(booking.Event) {
		return nil, models.ErrForbidden
	}

	changed, err := s.DB.TransitionStatus(ctx, booking.ID,
		[]models.BookingStatus{models.BookingPending, models.BookingSuccess}, models.BookingCancelled)
	if err != nil {
		return nil, fmt.Errorf("cancel booking %d: %w", bookingID, err)
	}
	if !changed {
		return nil, models.ErrBookingNotCancellable
	}

	booking.Status = models.BookingCancelled
	s.Logger.LogBooking("CANCELLED", booking.TicketID, fmt.Sprintf("by account %d", actor.AccountID))
	s.publish(ctx, s.Topics.BookingCancelled, models.BookingEventCancelled, booking)
	return booking, nil
}

func (s *TicketService) publish(ctx context.Context, topic, eventType string, booking *models.Booking) {
	if s.Publisher == nil || topic == "" {
		return
	}
	if err := s.Publisher.PublishBookingEvent(ctx, topic, models.NewBookingEvent(eventType, booking)); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("%s for %s not published: %v", eventType, booking.TicketID, err))
	}
}
