package tickets

import (
	"context"
	"fmt"
)

// GetTotalTicketsCount returns the number of bookings ever made, cancelled ones included.
func (s *TicketService) GetTotalTicketsCount(ctx context.Context) (int, error) {
	count, err := s.DB.GetTotalTicketsCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("count tickets: %w", err)
	}
	return count, nil
}
