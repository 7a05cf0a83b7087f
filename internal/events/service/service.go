package events

import (
	"context"
	"fmt"
	"strings"

	"qr-entry/internal/logger"
	"qr-entry/internal/models"
	"qr-entry/internal/utils"
)

type EventDBLayer interface {
	CreateEvent(ctx context.Context, e *models.Event) error
	GetEventByID(ctx context.Context, id int64) (*models.Event, error)
	ListEvents(ctx context.Context) ([]models.Event, error)
	ListEventsByOrganizer(ctx context.Context, organizerID int64) ([]models.Event, error)
	UpdateEvent(ctx context.Context, e *models.Event) error
}

type EventService struct {
	DB     EventDBLayer
	Logger *logger.Logger
}

func NewEventService(db EventDBLayer, log *logger.Logger) *EventService {
	return &EventService{DB: db, Logger: log}
}

func normalise(in models.EventInput) models.EventInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Location = strings.TrimSpace(in.Location)
	in.Description = strings.TrimSpace(in.Description)
	in.UPIID = strings.TrimSpace(in.UPIID)
	return in
}

// CreateEvent is limited to organisers and staff.
func (s *EventService) CreateEvent(ctx context.Context, organiser models.Principal, in models.EventInput) (*models.Event, error) {
	if !organiser.IsOrganiser() && !organiser.IsStaff {
		return nil, models.ErrForbidden
	}
	in = normalise(in)
	if err := utils.ValidateStruct(in); err != nil {
		return nil, err
	}

	event := &models.Event{
		OrganizerID: organiser.AccountID,
		Name:        in.Name,
		Date:        in.Date.UTC(),
		Location:    in.Location,
		Description: in.Description,
		Capacity:    in.Capacity,
		Price:       in.Price,
		UPIID:       in.UPIID,
	}
	if err := s.DB.CreateEvent(ctx, event); err != nil {
		return nil, err
	}
	s.Logger.Info("EVENT", fmt.Sprintf("event %d %q created by account %d", event.ID, event.Name, organiser.AccountID))
	return event, nil
}

// UpdateEvent is limited to the owning organiser and staff.
func (s *EventService) UpdateEvent(ctx context.Context, actor models.Principal, id int64, in models.EventInput) (*models.Event, error) {
	event, err := s.DB.GetEventByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanManageEvent(event) {
		return nil, models.ErrForbidden
	}
	in = normalise(in)
	if err := utils.ValidateStruct(in); err != nil {
		return nil, err
	}

	event.Name = in.Name
	event.Date = in.Date.UTC()
	event.Location = in.Location
	event.Description = in.Description
	event.Capacity = in.Capacity
	event.Price = in.Price
	event.UPIID = in.UPIID
	if err := s.DB.UpdateEvent(ctx, event); err != nil {
		return nil, err
	}
	s.Logger.Info("EVENT", fmt.Sprintf("event %d updated by account %d", event.ID, actor.AccountID))
	return event, nil
}

func (s *EventService) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	return s.DB.GetEventByID(ctx, id)
}

func (s *EventService) ListEvents(ctx context.Context) ([]models.Event, error) {
	events, err := s.DB.ListEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

func (s *EventService) ListOrganizerEvents(ctx context.Context, organiser models.Principal) ([]models.Event, error) {
	events, err := s.DB.ListEventsByOrganizer(ctx, organiser.AccountID)
	if err != nil {
		return nil, fmt.Errorf("list events for organiser %d: %w", organiser.AccountID, err)
	}
	return events, nil
}
