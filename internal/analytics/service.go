package analytics

import (
	"context"
	"fmt"

	"qr-entry/internal/logger"
	"qr-entry/internal/models"
	"qr-entry/internal/utils"
)

type StatsStore interface {
	CountBookingsByStatus(ctx context.Context, eventIDs []int64) (map[models.BookingStatus]int, error)
	SumSuccessfulPayments(ctx context.Context, eventIDs []int64) (float64, error)
	ListCheckins(ctx context.Context, eventIDs []int64) ([]models.CheckinLog, error)
	ListEventBookings(ctx context.Context, eventID int64, opts BookingListOptions) ([]models.Booking, error)
}

type EventLookup interface {
	GetEventByID(ctx context.Context, id int64) (*models.Event, error)
	ListEventsByOrganizer(ctx context.Context, organizerID int64) ([]models.Event, error)
}

// Service handles analytics operations
type Service struct {
	Store  StatsStore
	Events EventLookup
	Logger *logger.Logger
}

// NewService creates a new analytics service
func NewService(store StatsStore, events EventLookup, log *logger.Logger) *Service {
	return &Service{Store: store, Events: events, Logger: log}
}

// DailyCheckins is the number of admissions on one UTC day.
type DailyCheckins struct {
	Date     string `json:"date"`
	Checkins int    `json:"checkins"`
}

// AttendanceStats is shared by the per-event and organiser-wide views.
type AttendanceStats struct {
	TotalBookings    int                          `json:"total_bookings"`
	BookingsByStatus map[models.BookingStatus]int `json:"bookings_by_status"`
	PaidTotal        float64                      `json:"paid_total"`
	CheckedIn        int                          `json:"checked_in"`
	DailyCheckins    []DailyCheckins              `json:"daily_checkins"`
}

// EventStats represents attendance data for one event
type EventStats struct {
	EventID   int64  `json:"event_id"`
	EventName string `json:"event_name"`
	Capacity  int    `json:"capacity"`
	AttendanceStats
}

// GetEventStats is available to the organiser who owns the event and to staff.
func (s *Service) GetEventStats(ctx context.Context, viewer models.Principal, eventID int64) (*EventStats, error) {
	event, err := s.Events.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !viewer.CanManageEvent(event) {
		s.Logger.LogSecurity("STATS_FORBIDDEN", fmt.Sprintf("account %d requested stats for event %d", viewer.AccountID, eventID))
		return nil, models.ErrForbidden
	}

	stats, err := s.aggregate(ctx, []int64{event.ID})
	if err != nil {
		return nil, fmt.Errorf("stats for event %d: %w", eventID, err)
	}
	return &EventStats{
		EventID:         event.ID,
		EventName:       event.Name,
		Capacity:        event.Capacity,
		AttendanceStats: *stats,
	}, nil
}

// GetEventBookings lists the attendees of one event for its organiser or staff.
func (s *Service) GetEventBookings(ctx context.Context, viewer models.Principal, eventID int64, opts BookingListOptions) ([]models.Booking, error) {
	event, err := s.Events.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !viewer.CanManageEvent(event) {
		return nil, models.ErrForbidden
	}
	if opts.Status != "" && !opts.Status.Valid() {
		return nil, models.NewValidationError("status", "unknown booking status")
	}
	bookings, err := s.Store.ListEventBookings(ctx, eventID, opts)
	if err != nil {
		return nil, fmt.Errorf("list bookings for event %d: %w", eventID, err)
	}
	return bookings, nil
}

func (s *Service) aggregate(ctx context.Context, eventIDs []int64) (*AttendanceStats, error) {
	counts, err := s.Store.CountBookingsByStatus(ctx, eventIDs)
	if err != nil {
		return nil, err
	}
	paid, err := s.Store.SumSuccessfulPayments(ctx, eventIDs)
	if err != nil {
		return nil, err
	}
	checkins, err := s.Store.ListCheckins(ctx, eventIDs)
	if err != nil {
		return nil, err
	}

	stats := &AttendanceStats{
		BookingsByStatus: make(map[models.BookingStatus]int, 4),
		PaidTotal:        paid,
		CheckedIn:        len(checkins),
		DailyCheckins:    dailySeries(checkins),
	}
	for _, status := range []models.BookingStatus{models.BookingPending, models.BookingSuccess, models.BookingCancelled, models.BookingCheckedIn} {
		stats.BookingsByStatus[status] = counts[status]
		stats.TotalBookings += counts[status]
	}
	return stats, nil
}

// dailySeries buckets check-ins by UTC day. logs must be ordered by time.
func dailySeries(logs []models.CheckinLog) []DailyCheckins {
	series := []DailyCheckins{}
	for _, l := range logs {
		day := utils.DayKey(l.CheckinTime)
		if n := len(series); n > 0 && series[n-1].Date == day {
			series[n-1].Checkins++
			continue
		}
		series = append(series, DailyCheckins{Date: day, Checkins: 1})
	}
	return series
}
