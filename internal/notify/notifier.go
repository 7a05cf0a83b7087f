package notify

import (
	"context"
	"errors"
	"fmt"

	"qr-entry/internal/logger"
	"qr-entry/internal/metrics"
	"qr-entry/internal/models"
	qr "qr-entry/internal/tickets/qr_genrator"
	"qr-entry/internal/tickets/template"
)

type BookingLookup interface {
	GetBookingByID(ctx context.Context, id int64) (*models.Booking, error)
}

type AccountLookup interface {
	GetAccountByID(ctx context.Context, id int64) (*models.Account, error)
}

type FileReader interface {
	ReadFile(rel string) ([]byte, error)
}

type TicketRenderer interface {
	Generate(booking *models.Booking, holder string, qrCode []byte) ([]byte, error)
}

// Notifier emails purchasers their PDF ticket when a booking is created.
type Notifier struct {
	Bookings BookingLookup
	Accounts AccountLookup
	Files    FileReader
	PDF      TicketRenderer
	Mailer   Mailer
	Metrics  *metrics.Metrics
	Logger   *logger.Logger
}

func NewNotifier(bookings BookingLookup, accounts AccountLookup, files FileReader, mailer Mailer, log *logger.Logger) *Notifier {
	return &Notifier{
		Bookings: bookings,
		Accounts: accounts,
		Files:    files,
		PDF:      template.NewTicketPDFGenerator(),
		Mailer:   mailer,
		Logger:   log,
	}
}

// HandleBookingEvent is a kafka.BookingEventHandler. Only delivery failures are
// returned, so the consumer retries the send and nothing else.
func (n *Notifier) HandleBookingEvent(ctx context.Context, evt models.BookingEvent) error {
	if evt.Type != models.BookingEventCreated {
		return nil
	}

	booking, err := n.Bookings.GetBookingByID(ctx, evt.BookingID)
	if errors.Is(err, models.ErrBookingNotFound) {
		n.Logger.Warn("NOTIFY", fmt.Sprintf("booking %d for %s no longer exists", evt.BookingID, evt.TicketID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load booking %d: %w", evt.BookingID, err)
	}

	account, err := n.Accounts.GetAccountByID(ctx, booking.AccountID)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			n.Logger.Warn("NOTIFY", fmt.Sprintf("purchaser of %s not found", booking.TicketID))
			return nil
		}
		return fmt.Errorf("load account %d: %w", booking.AccountID, err)
	}
	if account.Email == "" {
		n.Metrics.TicketEmail("skipped")
		return nil
	}

	msg := Message{
		To:      account.Email,
		Subject: "Your Ticket for " + eventName(booking),
		Body:    ticketBody(account.Username, booking),
	}

	pdf, err := n.PDF.Generate(booking, account.Username, n.qrImage(booking))
	if err != nil {
		n.Logger.Error("NOTIFY", fmt.Sprintf("ticket PDF for %s: %v", booking.TicketID, err))
	} else {
		msg.Attachments = append(msg.Attachments, Attachment{
			Filename:    template.Filename(booking.TicketID),
			ContentType: "application/pdf",
			Data:        pdf,
		})
	}

	if err := n.Mailer.Send(msg); err != nil {
		n.Metrics.TicketEmail("failed")
		n.Logger.Error("NOTIFY", fmt.Sprintf("ticket email for %s: %v", booking.TicketID, err))
		return err
	}
	n.Metrics.TicketEmail("sent")
	n.Logger.LogBooking("EMAILED", booking.TicketID, "ticket sent to "+account.Email)
	return nil
}

// qrImage prefers the stored artifact. The event can arrive before the API has
// written it, and the payload is just the ticket id, so it is re-encoded then.
func (n *Notifier) qrImage(booking *models.Booking) []byte {
	if booking.QRCodePath != "" && n.Files != nil {
		if data, err := n.Files.ReadFile(booking.QRCodePath); err == nil {
			return data
		}
	}
	data, err := qr.Encode(booking.TicketID)
	if err != nil {
		n.Logger.Warn("NOTIFY", fmt.Sprintf("encode QR for %s: %v", booking.TicketID, err))
		return nil
	}
	return data
}

func eventName(b *models.Booking) string {
	if b.Event != nil {
		return b.Event.Name
	}
	return "your event"
}

func ticketBody(username string, b *models.Booking) string {
	return fmt.Sprintf(`Hi %s,

Your ticket booking was successful!

Please find your ticket attached as a PDF.

Event: %s
Ticket ID: %s
Status: %s

Show the QR code at the event entry.

Thank you for using QrEntry!
`, username, eventName(b), b.TicketID, b.Status)
}
