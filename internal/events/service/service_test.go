package events_test

import (
	"context"
	"testing"
	"time"

	events "qr-entry/internal/events/service"
	"qr-entry/internal/logger"
	"qr-entry/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockEventDBLayer struct {
	mock.Mock
}

func (m *MockEventDBLayer) CreateEvent(ctx context.Context, e *models.Event) error {
	args := m.Called(ctx, e)
	e.ID = 1
	return args.Error(0)
}

func (m *MockEventDBLayer) GetEventByID(ctx context.Context, id int64) (*models.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockEventDBLayer) ListEvents(ctx context.Context) ([]models.Event, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Event), args.Error(1)
}

func (m *MockEventDBLayer) ListEventsByOrganizer(ctx context.Context, organizerID int64) ([]models.Event, error) {
	args := m.Called(ctx, organizerID)
	return args.Get(0).([]models.Event), args.Error(1)
}

func (m *MockEventDBLayer) UpdateEvent(ctx context.Context, e *models.Event) error {
	return m.Called(ctx, e).Error(0)
}

var (
	organiser   = models.Principal{AccountID: 1, Role: models.RoleOrganiser}
	participant = models.Principal{AccountID: 2, Role: models.RoleParticipant}
)

func validInput() models.EventInput {
	return models.EventInput{
		Name:     "  Tech Meetup ",
		Date:     time.Date(2030, 6, 1, 18, 0, 0, 0, time.UTC),
		Location: "Hall A",
		Capacity: 100,
		Price:    250,
		UPIID:    "org@upi",
	}
}

func TestCreateEvent(t *testing.T) {
	mockDB := new(MockEventDBLayer)
	svc := events.NewEventService(mockDB, logger.NewDiscardLogger())
	mockDB.On("CreateEvent", mock.Anything, mock.MatchedBy(func(e *models.Event) bool {
		return e.Name == "Tech Meetup" && e.OrganizerID == organiser.AccountID
	})).Return(nil)

	event, err := svc.CreateEvent(context.Background(), organiser, validInput())
	require.NoError(t, err)
	assert.Equal(t, int64(1), event.ID)
	mockDB.AssertExpectations(t)
}

func TestCreateEvent_Rejections(t *testing.T) {
	mockDB := new(MockEventDBLayer)
	svc := events.NewEventService(mockDB, logger.NewDiscardLogger())

	_, err := svc.CreateEvent(context.Background(), participant, validInput())
	assert.ErrorIs(t, err, models.ErrForbidden)

	bad := validInput()
	bad.Capacity = 0
	_, err = svc.CreateEvent(context.Background(), organiser, bad)
	assert.ErrorIs(t, err, models.ErrValidation)

	mockDB.AssertNotCalled(t, "CreateEvent", mock.Anything, mock.Anything)
}

func TestUpdateEvent_OwnerOnly(t *testing.T) {
	mockDB := new(MockEventDBLayer)
	svc := events.NewEventService(mockDB, logger.NewDiscardLogger())
	existing := &models.Event{ID: 5, OrganizerID: organiser.AccountID, Name: "Old"}
	mockDB.On("GetEventByID", mock.Anything, int64(5)).Return(existing, nil)
	mockDB.On("UpdateEvent", mock.Anything, existing).Return(nil)

	_, err := svc.UpdateEvent(context.Background(), models.Principal{AccountID: 9, Role: models.RoleOrganiser}, 5, validInput())
	assert.ErrorIs(t, err, models.ErrForbidden)

	updated, err := svc.UpdateEvent(context.Background(), organiser, 5, validInput())
	require.NoError(t, err)
	assert.Equal(t, "Tech Meetup", updated.Name)
	assert.Equal(t, int64(250), updated.Price)
}

func TestGetEvent_NotFound(t *testing.T) {
	mockDB := new(MockEventDBLayer)
	svc := events.NewEventService(mockDB, logger.NewDiscardLogger())
	mockDB.On("GetEventByID", mock.Anything, int64(404)).Return(nil, models.ErrEventNotFound)

	_, err := svc.GetEvent(context.Background(), 404)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
