package ticket_api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"qr-entry/internal/auth"
	"qr-entry/internal/logger"
	"qr-entry/internal/models"
	tickets "qr-entry/internal/tickets/service"
	"qr-entry/internal/utils"
	"qr-entry/internal/web"

	"github.com/go-chi/chi/v5"
)

const screenshotField = "payment_screenshot"

type Handler struct {
	TicketService  *tickets.TicketService
	Pages          *web.Renderer
	Logger         *logger.Logger
	MaxUploadBytes int64
}

func NewHandler(svc *tickets.TicketService, pages *web.Renderer, maxUpload int64, log *logger.Logger) *Handler {
	return &Handler{TicketService: svc, Pages: pages, MaxUploadBytes: maxUpload, Logger: log}
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, models.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status := utils.WriteServiceError(w, err); status == http.StatusInternalServerError {
		h.Logger.Error("TICKET", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
	}
}

// BookEvent handles POST /api/book/{event_id}/.
func (h *Handler) BookEvent(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	eventID, err := pathID(r, "event_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	booking, err := h.TicketService.CreateBooking(r.Context(), p, eventID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		utils.WriteSuccess(w, http.StatusCreated, "Booking created", booking)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/api/bookings/%d/", booking.ID), http.StatusSeeOther)
}

// ListMyBookings handles GET /api/bookings/.
func (h *Handler) ListMyBookings(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	bookings, err := h.TicketService.ListMyBookings(r.Context(), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Bookings retrieved", bookings)
}

// ListOrganizerBookings handles GET /api/organizer/bookings/.
func (h *Handler) ListOrganizerBookings(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	bookings, err := h.TicketService.ListOrganizerBookings(r.Context(), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Bookings retrieved", bookings)
}

// GetBooking handles GET /api/bookings/{id}/.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	booking, err := h.TicketService.GetBooking(r.Context(), p, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Booking retrieved", booking)
}

// CancelBooking handles POST /api/bookings/{id}/cancel/.
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	booking, err := h.TicketService.CancelBooking(r.Context(), p, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Booking cancelled", booking)
}

// DownloadQR handles GET /api/qr/{booking_id}/.
func (h *Handler) DownloadQR(w http.ResponseWriter, r *http.Request) {
	h.streamQR(w, r, h.TicketService.OpenQRCode, ".png")
}

// DownloadPaymentQR handles GET /api/qr/{booking_id}/upi/.
func (h *Handler) DownloadPaymentQR(w http.ResponseWriter, r *http.Request) {
	h.streamQR(w, r, h.TicketService.OpenPaymentQR, "_upi.png")
}

type qrOpener func(ctx context.Context, viewer models.Principal, bookingID int64) (io.ReadCloser, *models.Booking, error)

func (h *Handler) streamQR(w http.ResponseWriter, r *http.Request, open qrOpener, suffix string) {
	p, _ := auth.PrincipalFrom(r.Context())
	id, err := pathID(r, "booking_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rc, booking, err := open(r.Context(), p, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s%s"`, booking.TicketID, suffix))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.Logger.Warn("TICKET", fmt.Sprintf("stream QR for %s: %v", booking.TicketID, err))
	}
}

type paymentLinkResponse struct {
	*models.PaymentLink
	QRURL string `json:"qr_url"`
}

// CreatePaymentLink handles POST /api/pay/{event_id}/.
func (h *Handler) CreatePaymentLink(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	eventID, err := pathID(r, "event_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	link, err := h.TicketService.CreatePaymentLink(r.Context(), p, eventID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Payment link created", paymentLinkResponse{
		PaymentLink: link,
		QRURL:       fmt.Sprintf("/api/qr/%d/upi/", link.Booking.ID),
	})
}

// parseUpload reads a multipart body and returns the optional screenshot part.
func (h *Handler) parseUpload(w http.ResponseWriter, r *http.Request) (multipart.File, error) {
	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = 5 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<20))
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, models.NewValidationError(screenshotField, fmt.Sprintf("must be at most %d bytes", limit))
		}
		return nil, models.NewValidationError("body", "must be multipart/form-data")
	}
	file, _, err := r.FormFile(screenshotField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", screenshotField, err)
	}
	return file, nil
}

// UploadPaymentScreenshot handles POST /api/payment/success/{booking_id}/.
func (h *Handler) UploadPaymentScreenshot(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	id, err := pathID(r, "booking_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	file, err := h.parseUpload(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if file == nil {
		h.fail(w, r, models.NewValidationError(screenshotField, "is required"))
		return
	}
	defer file.Close()

	booking, err := h.TicketService.UploadPaymentScreenshot(r.Context(), p, id, file)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Payment screenshot uploaded", booking)
}

// RegisterGuest handles POST /api/register/: name, email, event_id and an optional screenshot.
func (h *Handler) RegisterGuest(w http.ResponseWriter, r *http.Request) {
	file, err := h.parseUpload(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var screenshot io.Reader
	if file != nil {
		defer file.Close()
		screenshot = file
	}

	eventID, _ := strconv.ParseInt(r.FormValue("event_id"), 10, 64)
	reg := models.GuestRegistration{
		Name:    strings.TrimSpace(r.FormValue("name")),
		Email:   strings.TrimSpace(r.FormValue("email")),
		EventID: eventID,
	}
	booking, err := h.TicketService.RegisterGuest(r.Context(), reg, screenshot)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Registration complete", booking)
}
