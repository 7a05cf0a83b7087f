package analytics_api

import (
	"fmt"
	"net/http"
	"strconv"

	"qr-entry/internal/analytics"
	"qr-entry/internal/auth"
	"qr-entry/internal/logger"
	"qr-entry/internal/models"
	"qr-entry/internal/utils"

	"github.com/go-chi/chi/v5"
)

// Handler handles analytics HTTP endpoints
type Handler struct {
	Service *analytics.Service
	Logger  *logger.Logger
}

// NewHandler creates a new analytics handler
func NewHandler(service *analytics.Service, logger *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: logger}
}

// RegisterRoutes mounts the analytics endpoints. The caller applies authentication.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/events/{id}/stats/", h.GetEventStats)
	r.Get("/api/events/{id}/bookings/", h.GetEventBookings)
	r.Get("/api/organizer/stats/", h.GetOrganizerStats)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status := utils.WriteServiceError(w, err); status == http.StatusInternalServerError {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
	}
}

func eventID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, models.NewValidationError("id", "must be a positive integer")
	}
	return id, nil
}

// GetEventStats handles GET /api/events/{id}/stats/.
func (h *Handler) GetEventStats(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	id, err := eventID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	stats, err := h.Service.GetEventStats(r.Context(), p, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Event stats retrieved", stats)
}

type attendee struct {
	models.Booking
	Username string `json:"username"`
	Email    string `json:"email"`
}

// GetEventBookings handles GET /api/events/{id}/bookings/?status=&sort=&desc=&limit=&offset=.
func (h *Handler) GetEventBookings(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	id, err := eventID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	q := r.URL.Query()
	opts := analytics.BookingListOptions{
		Status: models.BookingStatus(q.Get("status")),
		SortBy: q.Get("sort"),
	}
	opts.SortDesc, _ = strconv.ParseBool(q.Get("desc"))
	if v := q.Get("limit"); v != "" {
		if opts.Limit, err = strconv.Atoi(v); err != nil || opts.Limit < 0 {
			h.fail(w, r, models.NewValidationError("limit", "must be a non-negative integer"))
			return
		}
	}
	if v := q.Get("offset"); v != "" {
		if opts.Offset, err = strconv.Atoi(v); err != nil || opts.Offset < 0 {
			h.fail(w, r, models.NewValidationError("offset", "must be a non-negative integer"))
			return
		}
	}

	bookings, err := h.Service.GetEventBookings(r.Context(), p, id, opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]attendee, 0, len(bookings))
	for _, b := range bookings {
		a := attendee{Booking: b}
		if b.Account != nil {
			a.Username, a.Email = b.Account.Username, b.Account.Email
		}
		out = append(out, a)
	}
	utils.WriteSuccess(w, http.StatusOK, "Bookings retrieved", out)
}

// GetOrganizerStats handles GET /api/organizer/stats/.
func (h *Handler) GetOrganizerStats(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	stats, err := h.Service.GetOrganizerStats(r.Context(), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Organizer stats retrieved", stats)
}
