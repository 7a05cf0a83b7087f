package ticket_api

import (
	"net/http"

	"qr-entry/internal/utils"
)

// TicketCountResponse is the response format for the GetTotalTicketsCount endpoint
type TicketCountResponse struct {
	TotalCount int `json:"total_count"`
}

// GetTotalTicketsCount handles GET /api/tickets/count.
func (h *Handler) GetTotalTicketsCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.TicketService.GetTotalTicketsCount(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Ticket count retrieved", TicketCountResponse{TotalCount: count})
}
