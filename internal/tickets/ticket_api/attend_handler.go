package ticket_api

import (
	"fmt"
	"net/http"
	"strings"

	"qr-entry/internal/auth"
	"qr-entry/internal/models"
	"qr-entry/internal/utils"
	"qr-entry/internal/web"

	"github.com/go-chi/chi/v5"
)

// AttendResponse is the body of POST /api/attend/{ticket_id}/.
type AttendResponse struct {
	Success bool                  `json:"success"`
	Outcome models.CheckinOutcome `json:"outcome"`
	Message string                `json:"message"`
	Data    models.CheckinResult  `json:"data"`
}

func outcomeStatus(outcome models.CheckinOutcome) int {
	switch outcome {
	case models.OutcomeCheckedIn:
		return http.StatusOK
	case models.OutcomeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusConflict
	}
}

// MarkAttendance handles POST /api/attend/{ticket_id}/.
func (h *Handler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	result, err := h.TicketService.MarkAttendance(r.Context(), p, chi.URLParam(r, "ticket_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, outcomeStatus(result.Outcome), AttendResponse{
		Success: result.Admitted(),
		Outcome: result.Outcome,
		Message: result.Message(),
		Data:    result,
	})
}

// AttendPage handles GET /attend/.
func (h *Handler) AttendPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, web.PageAttend, nil)
}

type scanOutcome struct {
	Admitted bool
	Message  string
}

// SubmitAttendance handles POST /api/attend/submit/ from the scan form.
func (h *Handler) SubmitAttendance(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	if err := r.ParseForm(); err != nil {
		h.render(w, http.StatusBadRequest, web.PageAttendResult, scanOutcome{Message: "Could not read the form"})
		return
	}
	result, err := h.TicketService.MarkAttendance(r.Context(), p, strings.TrimSpace(r.PostForm.Get("ticket_id")))
	if err != nil {
		status := utils.StatusFor(err)
		message := "Could not mark attendance"
		if status == http.StatusForbidden {
			message = "You cannot check in tickets for this event"
		} else {
			h.Logger.Error("CHECKIN", fmt.Sprintf("scan form: %v", err))
		}
		h.render(w, status, web.PageAttendResult, scanOutcome{Message: message})
		return
	}
	h.render(w, outcomeStatus(result.Outcome), web.PageAttendResult, scanOutcome{
		Admitted: result.Admitted(),
		Message:  result.Message(),
	})
}

func (h *Handler) render(w http.ResponseWriter, status int, page string, data interface{}) {
	if err := h.Pages.Render(w, status, page, data); err != nil {
		h.Logger.Error("TICKET", err.Error())
		http.Error(w, "Could not render page", http.StatusInternalServerError)
	}
}
