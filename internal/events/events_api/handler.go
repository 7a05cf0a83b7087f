package events_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"qr-entry/internal/auth"
	events "qr-entry/internal/events/service"
	"qr-entry/internal/logger"
	"qr-entry/internal/models"
	"qr-entry/internal/utils"
	"qr-entry/internal/web"

	"github.com/go-chi/chi/v5"
)

// BookingCounter reports how many bookings an event has. Capacity is shown, never enforced.
type BookingCounter interface {
	CountBookingsForEvent(ctx context.Context, eventID int64) (int, error)
}

type Handler struct {
	EventService *events.EventService
	Bookings     BookingCounter
	Pages        *web.Renderer
	Logger       *logger.Logger
}

func NewHandler(svc *events.EventService, bookings BookingCounter, pages *web.Renderer, log *logger.Logger) *Handler {
	return &Handler{EventService: svc, Bookings: bookings, Pages: pages, Logger: log}
}

func eventID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, models.NewValidationError("id", "must be a positive integer")
	}
	return id, nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status := utils.WriteServiceError(w, err); status == http.StatusInternalServerError {
		h.Logger.Error("EVENT", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
	}
}

// ListEvents handles GET /api/events/.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	list, err := h.EventService.ListEvents(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	summaries := make([]models.EventSummary, 0, len(list))
	for i := range list {
		summaries = append(summaries, list[i].Summary())
	}
	utils.WriteSuccess(w, http.StatusOK, "Events retrieved", summaries)
}

// GetEvent handles GET /api/events/{id}/.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := eventID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	event, err := h.EventService.GetEvent(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Event retrieved", event.Summary())
}

// CreateEvent handles POST /api/events/.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	var in models.EventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Bad request", "invalid request body")
		return
	}
	event, err := h.EventService.CreateEvent(r.Context(), p, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Event created", event)
}

// UpdateEvent handles POST /api/events/{id}/.
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	id, err := eventID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var in models.EventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Bad request", "invalid request body")
		return
	}
	event, err := h.EventService.UpdateEvent(r.Context(), p, id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Event updated", event)
}

// ListMyEvents handles GET /api/organizer/events/.
func (h *Handler) ListMyEvents(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	list, err := h.EventService.ListOrganizerEvents(r.Context(), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Events retrieved", list)
}

// EventsPage handles GET /events/.
func (h *Handler) EventsPage(w http.ResponseWriter, r *http.Request) {
	list, err := h.EventService.ListEvents(r.Context())
	if err != nil {
		h.Logger.Error("EVENT", fmt.Sprintf("events page: %v", err))
		http.Error(w, "Could not load events", http.StatusInternalServerError)
		return
	}
	h.render(w, http.StatusOK, web.PageEvents, map[string]interface{}{"Events": list})
}

type eventPage struct {
	Event  *models.Event
	Booked int
}

// EventPage handles GET /events/{id}/.
func (h *Handler) EventPage(w http.ResponseWriter, r *http.Request) {
	id, err := eventID(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	event, err := h.EventService.GetEvent(r.Context(), id)
	if err != nil {
		if utils.StatusFor(err) == http.StatusNotFound {
			http.NotFound(w, r)
			return
		}
		h.Logger.Error("EVENT", fmt.Sprintf("event page %d: %v", id, err))
		http.Error(w, "Could not load event", http.StatusInternalServerError)
		return
	}
	page := eventPage{Event: event}
	if h.Bookings != nil {
		if page.Booked, err = h.Bookings.CountBookingsForEvent(r.Context(), id); err != nil {
			h.Logger.Warn("EVENT", fmt.Sprintf("count bookings for %d: %v", id, err))
		}
	}
	h.render(w, http.StatusOK, web.PageEvent, page)
}

func (h *Handler) render(w http.ResponseWriter, status int, page string, data interface{}) {
	if err := h.Pages.Render(w, status, page, data); err != nil {
		h.Logger.Error("EVENT", err.Error())
		http.Error(w, "Could not render page", http.StatusInternalServerError)
	}
}
