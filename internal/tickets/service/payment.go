package tickets

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"qr-entry/internal/media"
	"qr-entry/internal/models"
	"qr-entry/internal/utils"

	"github.com/gabriel-vasile/mimetype"
)

// PaymentConfirmation is a gateway's report about one ticket.
type PaymentConfirmation struct {
	TicketID         string
	Status           string
	Gateway          string
	GatewayPaymentID string
	Amount           float64
}

// ConfirmPayment applies a gateway report. SUCCESS moves a pending booking to
// SUCCESS and is a no-op for bookings already paid or used; FAILED only records
// the attempt.
func (s *TicketService) ConfirmPayment(ctx context.Context, c PaymentConfirmation) (*models.Booking, error) {
	status, ok := models.ParsePaymentStatus(c.Status)
	if !ok || status == models.PaymentInitiated {
		return nil, models.NewValidationError("status", "must be SUCCESS or FAILED")
	}
	if strings.TrimSpace(c.TicketID) == "" {
		return nil, models.NewValidationError("ticket_id", "is required")
	}

	booking, err := s.DB.GetBookingByTicketID(ctx, c.TicketID)
	if err != nil {
		return nil, err
	}
	if status == models.PaymentSuccess && booking.Status == models.BookingCancelled {
		s.Logger.LogPayment("REJECTED", booking.TicketID, "payment reported for a cancelled booking")
		return booking, models.ErrBookingNotPayable
	}

	gateway := c.Gateway
	if gateway == "" {
		gateway = models.GatewayWebhook
	}
	amount := c.Amount
	if amount == 0 && booking.Event != nil {
		amount = float64(booking.Event.Price)
	}
	payment := &models.Payment{
		BookingID:        booking.ID,
		Gateway:          gateway,
		GatewayPaymentID: c.GatewayPaymentID,
		Amount:           amount,
		Status:           status,
		CreatedAt:        s.now(),
		UpdatedAt:        s.now(),
	}

	if status == models.PaymentFailed {
		if _, err := s.DB.RecordPayment(ctx, payment, nil, ""); err != nil {
			return nil, fmt.Errorf("record failed payment for %s: %w", booking.TicketID, err)
		}
		s.Metrics.PaymentRecorded(gateway, string(status))
		s.Logger.LogPayment("FAILED", booking.TicketID, "gateway reported a failed payment")
		return booking, nil
	}

	changed, err := s.DB.RecordPayment(ctx, payment, []models.BookingStatus{models.BookingPending}, models.BookingSuccess)
	if err != nil {
		return nil, fmt.Errorf("confirm payment for %s: %w", booking.TicketID, err)
	}
	s.Metrics.PaymentRecorded(gateway, string(status))

	if !changed {
		// Lost a race or already settled: report whatever the booking is now.
		current, err := s.DB.GetBookingByTicketID(ctx, booking.TicketID)
		if err != nil {
			return nil, err
		}
		if current.Status == models.BookingCancelled {
			return current, models.ErrBookingNotPayable
		}
		s.Logger.LogPayment("ALREADY_CONFIRMED", current.TicketID, "status "+string(current.Status))
		return current, nil
	}

	booking.Status = models.BookingSuccess
	s.Logger.LogPayment("CONFIRMED", booking.TicketID, "via "+gateway)
	s.publish(ctx, s.Topics.BookingConfirmed, models.BookingEventConfirmed, booking)
	return booking, nil
}

// UploadPaymentScreenshot stores a payment proof from the purchaser and marks
// the booking paid. The manual payment row stays INITIATED until an organiser verifies it.
func (s *TicketService) UploadPaymentScreenshot(ctx context.Context, purchaser models.Principal, bookingID int64, file io.Reader) (*models.Booking, error) {
	booking, err := s.DB.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.AccountID != purchaser.AccountID {
		return nil, models.ErrForbidden
	}
	if booking.Status == models.BookingCancelled || booking.Status == models.BookingCheckedIn {
		return nil, models.ErrBookingNotPayable
	}

	data, ext, err := s.readImage(file)
	if err != nil {
		return nil, err
	}
	rel := path.Join(media.ScreenshotDir, booking.TicketID+"_"+utils.GenerateFileToken()+ext)
	saved, err := s.Files.Save(rel, data)
	if err != nil {
		return nil, fmt.Errorf("store screenshot: %w", err)
	}

	var amount float64
	if booking.Event != nil {
		amount = float64(booking.Event.Price)
	}
	payment := &models.Payment{
		BookingID:  booking.ID,
		Gateway:    models.GatewayManual,
		Amount:     amount,
		Status:     models.PaymentInitiated,
		Screenshot: saved,
		CreatedAt:  s.now(),
		UpdatedAt:  s.now(),
	}
	attached, err := s.DB.AttachScreenshot(ctx, booking.ID, saved, payment)
	if err != nil {
		s.discardUpload(booking.TicketID, saved)
		return nil, fmt.Errorf("attach screenshot to %s: %w", booking.TicketID, err)
	}
	if !attached {
		s.discardUpload(booking.TicketID, saved)
		s.Logger.LogPayment("SCREENSHOT_REJECTED", booking.TicketID, "booking changed state during upload")
		return nil, models.ErrBookingNotPayable
	}
	s.Metrics.PaymentRecorded(models.GatewayManual, string(models.PaymentInitiated))

	booking.Status = models.BookingSuccess
	booking.PaymentScreenshot = saved
	s.Logger.LogPayment("SCREENSHOT_UPLOADED", booking.TicketID, saved)
	s.publish(ctx, s.Topics.BookingConfirmed, models.BookingEventConfirmed, booking)
	return booking, nil
}

// discardUpload removes a stored screenshot that no booking ended up referencing.
func (s *TicketService) discardUpload(ticketID, rel string) {
	if err := s.Files.Remove(rel); err != nil {
		s.Logger.LogPayment("SCREENSHOT_ORPHANED", ticketID, err.Error())
	}
}

// readImage enforces the size limit and sniffs the content, ignoring any client supplied type.
func (s *TicketService) readImage(file io.Reader) ([]byte, string, error) {
	if file == nil {
		return nil, "", models.NewValidationError("payment_screenshot", "is required")
	}
	limit := s.MaxUploadBytes
	if limit <= 0 {
		limit = 5 << 20
	}
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, "", models.NewValidationError("payment_screenshot", "is required")
	}
	if int64(len(data)) > limit {
		return nil, "", models.NewValidationError("payment_screenshot", fmt.Sprintf("must be at most %d bytes", limit))
	}
	mt, err := mimetype.DetectReader(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("detect upload type: %w", err)
	}
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, "", models.NewValidationError("payment_screenshot", "must be an image, got "+mt.String())
	}
	return data, mt.Extension(), nil
}

// RegisterGuest books an event for someone without an account. The guest
// account is created or reused by email; an optional screenshot is handled
// exactly like an upload from a signed-in purchaser.
func (s *TicketService) RegisterGuest(ctx context.Context, reg models.GuestRegistration, screenshot io.Reader) (*models.Booking, error) {
	if err := utils.ValidateStruct(reg); err != nil {
		return nil, err
	}
	if s.Guests == nil {
		return nil, fmt.Errorf("guest registration is not configured")
	}
	account, err := s.Guests.EnsureGuest(ctx, reg.Name, reg.Email)
	if err != nil {
		return nil, err
	}
	guest := models.Principal{AccountID: account.ID, Username: account.Username, Role: models.RoleParticipant}

	booking, err := s.CreateBooking(ctx, guest, reg.EventID)
	if err != nil {
		return booking, err
	}
	s.Logger.LogBooking("GUEST_REGISTERED", booking.TicketID, fmt.Sprintf("%s for event %d", reg.Email, reg.EventID))

	if screenshot == nil {
		return booking, nil
	}
	return s.UploadPaymentScreenshot(ctx, guest, booking.ID, screenshot)
}
