package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"qr-entry/internal/auth"
	"qr-entry/internal/logger"
	"qr-entry/internal/models"
	"qr-entry/internal/utils"

	"github.com/go-chi/chi/v5"
)

type EventLookup interface {
	GetEventByID(ctx context.Context, id int64) (*models.Event, error)
}

// Handler serves the live check-in feed of one event.
type Handler struct {
	Emitter *CheckinEventEmitter
	Events  EventLookup
	Logger  *logger.Logger
}

func NewHandler(emitter *CheckinEventEmitter, events EventLookup, log *logger.Logger) *Handler {
	return &Handler{Emitter: emitter, Events: events, Logger: log}
}

// StreamCheckins handles GET /api/events/{id}/checkins/stream/.
func (h *Handler) StreamCheckins(w http.ResponseWriter, r *http.Request) {
	eventID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Bad request", "invalid event id")
		return
	}
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", models.ErrUnauthorized.Error())
		return
	}
	event, err := h.Events.GetEventByID(r.Context(), eventID)
	if err != nil {
		if status := utils.WriteServiceError(w, err); status == http.StatusInternalServerError {
			h.Logger.Error("SSE", fmt.Sprintf("load event %d: %v", eventID, err))
		}
		return
	}
	if !p.CanManageEvent(event) {
		h.Logger.LogSecurity("SSE_FORBIDDEN", fmt.Sprintf("account %d on event %d", p.AccountID, eventID))
		utils.WriteError(w, http.StatusForbidden, "Forbidden", models.ErrForbidden.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.WriteError(w, http.StatusInternalServerError, "Internal server error", "streaming unsupported")
		return
	}

	setupSSEHeaders(w)
	ctx := r.Context()
	results := h.Emitter.Subscribe(ctx, eventID)
	h.Logger.Debug("SSE", fmt.Sprintf("account %d subscribed to check-ins of event %d", p.AccountID, eventID))

	fmt.Fprintf(w, "event: connected\ndata: {\"event_id\":%d}\n\n", eventID)
	flusher.Flush()

	for {
		select {
		case result, open := <-results:
			if !open {
				return
			}
			data, err := json.Marshal(result)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("marshal check-in: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: checkin\ndata: %s\n\n", data)
			flusher.Flush()
		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("client left check-in feed of event %d", eventID))
			return
		}
	}
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
