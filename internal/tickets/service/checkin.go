package tickets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"qr-entry/internal/models"
)

// MarkAttendance admits a ticket at the door. An unknown ticket is an outcome,
// not an error; only a scanner without rights over the event gets ErrForbidden.
func (s *TicketService) MarkAttendance(ctx context.Context, scanner models.Principal, ticketID string) (models.CheckinResult, error) {
	ticketID = strings.TrimSpace(ticketID)
	result := models.CheckinResult{TicketID: ticketID, Outcome: models.OutcomeNotFound}
	if ticketID == "" {
		return s.recordOutcome(result), nil
	}

	booking, err := s.DB.GetBookingByTicketID(ctx, ticketID)
	if errors.Is(err, models.ErrBookingNotFound) {
		return s.recordOutcome(result), nil
	}
	if err != nil {
		return result, fmt.Errorf("look up ticket %s: %w", ticketID, err)
	}

	event := booking.Event
	if event == nil {
		if event, err = s.Events.GetEventByID(ctx, booking.EventID); err != nil {
			return result, err
		}
	}
	if !scanner.CanManageEvent(event) {
		s.Logger.LogSecurity("CHECKIN_FORBIDDEN", fmt.Sprintf("account %d scanned %s for event %d", scanner.AccountID, ticketID, event.ID))
		return result, models.ErrForbidden
	}

	updated, admitted, err := s.DB.CheckIn(ctx, ticketID, scanner.AccountID, s.now())
	if err != nil {
		return result, fmt.Errorf("check in %s: %w", ticketID, err)
	}

	result.BookingID = updated.ID
	result.EventID = updated.EventID
	result.CheckedInAt = updated.CheckedInAt
	switch {
	case admitted:
		result.Outcome = models.OutcomeCheckedIn
	case updated.Status == models.BookingCancelled:
		result.Outcome = models.OutcomeCancelled
	default:
		result.Outcome = models.OutcomeAlreadyUsed
	}

	if result.Admitted() {
		if s.Feed != nil {
			s.Feed.EmitCheckin(updated.EventID, result)
		}
		s.publish(ctx, s.Topics.BookingCheckedIn, models.BookingEventCheckedIn, updated)
	}
	return s.recordOutcome(result), nil
}

func (s *TicketService) recordOutcome(result models.CheckinResult) models.CheckinResult {
	s.Metrics.Checkin(string(result.Outcome))
	s.Logger.LogCheckin(string(result.Outcome), result.TicketID, result.Message())
	return result
}
