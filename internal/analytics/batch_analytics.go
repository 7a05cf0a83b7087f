package analytics

import (
	"context"
	"fmt"

	"qr-entry/internal/models"
)

// OrganizerStats aggregates attendance across every event an organiser owns.
type OrganizerStats struct {
	EventIDs []int64 `json:"event_ids"`
	AttendanceStats
}

// GetOrganizerStats returns the combined stats for the caller's events. An
// organiser without events gets zeroed stats, not an error.
func (s *Service) GetOrganizerStats(ctx context.Context, organiser models.Principal) (*OrganizerStats, error) {
	if !organiser.IsOrganiser() && !organiser.IsStaff {
		return nil, models.ErrForbidden
	}

	events, err := s.Events.ListEventsByOrganizer(ctx, organiser.AccountID)
	if err != nil {
		return nil, fmt.Errorf("list events for organiser %d: %w", organiser.AccountID, err)
	}
	ids := make([]int64, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}

	stats, err := s.aggregate(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("stats for organiser %d: %w", organiser.AccountID, err)
	}
	s.Logger.Debug("ANALYTICS", fmt.Sprintf("organiser %d stats over %d events", organiser.AccountID, len(ids)))
	return &OrganizerStats{EventIDs: ids, AttendanceStats: *stats}, nil
}
