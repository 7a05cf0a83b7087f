package analytics

import (
	"context"
	"testing"
	"time"

	"qr-entry/internal/database/dbtest"
	eventsdb "qr-entry/internal/events/db"
	"qr-entry/internal/logger"
	"qr-entry/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type fixture struct {
	svc    *Service
	db     *bun.DB
	org    models.Principal
	other  models.Principal
	event  *models.Event
	second *models.Event
}

func newFixture(t *testing.T) fixture {
	bunDB := dbtest.New(t)
	org := dbtest.SeedAccount(t, bunDB, "org", models.RoleOrganiser, false)
	other := dbtest.SeedAccount(t, bunDB, "other", models.RoleOrganiser, false)
	event := dbtest.SeedEvent(t, bunDB, org.ID, "Launch", 200, "")
	second := dbtest.SeedEvent(t, bunDB, org.ID, "Afterparty", 50, "")

	return fixture{
		svc:    NewService(NewDB(bunDB), &eventsdb.DB{Bun: bunDB}, logger.NewDiscardLogger()),
		db:     bunDB,
		org:    models.Principal{AccountID: org.ID, Role: models.RoleOrganiser},
		other:  models.Principal{AccountID: other.ID, Role: models.RoleOrganiser},
		event:  event,
		second: second,
	}
}

var day1 = time.Date(2030, 6, 1, 18, 5, 0, 0, time.UTC)

func (f fixture) booking(t *testing.T, eventID int64, ticket string, status models.BookingStatus, created time.Time) *models.Booking {
	t.Helper()
	account := dbtest.SeedAccount(t, f.db, "buyer-"+ticket, models.RoleParticipant, false)
	b := &models.Booking{
		AccountID: account.ID,
		EventID:   eventID,
		TicketID:  ticket,
		Status:    status,
		CreatedAt: created,
		UpdatedAt: created,
	}
	_, err := f.db.NewInsert().Model(b).Exec(context.Background())
	require.NoError(t, err)
	return b
}

func (f fixture) payment(t *testing.T, bookingID int64, amount float64, status models.PaymentStatus) {
	t.Helper()
	p := &models.Payment{BookingID: bookingID, Gateway: models.GatewayWebhook, Amount: amount, Status: status}
	_, err := f.db.NewInsert().Model(p).Exec(context.Background())
	require.NoError(t, err)
}

func (f fixture) checkin(t *testing.T, bookingID int64, at time.Time) {
	t.Helper()
	l := &models.CheckinLog{BookingID: bookingID, ScannedBy: f.org.AccountID, CheckinTime: at}
	_, err := f.db.NewInsert().Model(l).Exec(context.Background())
	require.NoError(t, err)
}

func TestGetEventStats(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	a := f.booking(t, f.event.ID, "TKT-A", models.BookingCheckedIn, day1)
	b := f.booking(t, f.event.ID, "TKT-B", models.BookingCheckedIn, day1)
	c := f.booking(t, f.event.ID, "TKT-C", models.BookingSuccess, day1)
	f.booking(t, f.event.ID, "TKT-D", models.BookingPending, day1)
	f.booking(t, f.event.ID, "TKT-E", models.BookingCancelled, day1)
	other := f.booking(t, f.second.ID, "TKT-F", models.BookingCheckedIn, day1)

	f.payment(t, a.ID, 200, models.PaymentSuccess)
	f.payment(t, c.ID, 200, models.PaymentSuccess)
	f.payment(t, b.ID, 200, models.PaymentFailed)
	f.payment(t, other.ID, 50, models.PaymentSuccess)

	f.checkin(t, a.ID, day1)
	f.checkin(t, b.ID, day1.Add(24*time.Hour))
	f.checkin(t, other.ID, day1)

	stats, err := f.svc.GetEventStats(ctx, f.org, f.event.ID)
	require.NoError(t, err)

	assert.Equal(t, f.event.ID, stats.EventID)
	assert.Equal(t, 5, stats.TotalBookings)
	assert.Equal(t, map[models.BookingStatus]int{
		models.BookingPending:   1,
		models.BookingSuccess:   1,
		models.BookingCancelled: 1,
		models.BookingCheckedIn: 2,
	}, stats.BookingsByStatus)
	assert.InDelta(t, 400.0, stats.PaidTotal, 0.001)
	assert.Equal(t, 2, stats.CheckedIn)
	assert.Equal(t, []DailyCheckins{
		{Date: "2030-06-01", Checkins: 1},
		{Date: "2030-06-02", Checkins: 1},
	}, stats.DailyCheckins)
}

func TestGetEventStats_EmptyEvent(t *testing.T) {
	f := newFixture(t)

	stats, err := f.svc.GetEventStats(t.Context(), f.org, f.event.ID)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalBookings)
	assert.Zero(t, stats.PaidTotal)
	assert.NotNil(t, stats.DailyCheckins)
	assert.Len(t, stats.BookingsByStatus, 4)
}

func TestGetEventStats_Access(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	_, err := f.svc.GetEventStats(ctx, f.other, f.event.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)

	staff := models.Principal{AccountID: 4242, Role: models.RoleParticipant, IsStaff: true}
	_, err = f.svc.GetEventStats(ctx, staff, f.event.ID)
	assert.NoError(t, err)

	_, err = f.svc.GetEventStats(ctx, f.org, 9999)
	assert.ErrorIs(t, err, models.ErrEventNotFound)
}

func TestGetEventBookings_FiltersAndSorts(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	f.booking(t, f.event.ID, "TKT-B", models.BookingSuccess, day1)
	f.booking(t, f.event.ID, "TKT-A", models.BookingPending, day1.Add(time.Hour))
	f.booking(t, f.event.ID, "TKT-C", models.BookingSuccess, day1.Add(2*time.Hour))
	f.booking(t, f.second.ID, "TKT-Z", models.BookingSuccess, day1)

	all, err := f.svc.GetEventBookings(ctx, f.org, f.event.ID, BookingListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "TKT-C", all[0].TicketID, "newest first by default")
	require.NotNil(t, all[0].Account)
	assert.Equal(t, "buyer-TKT-C", all[0].Account.Username)

	paid, err := f.svc.GetEventBookings(ctx, f.org, f.event.ID, BookingListOptions{
		Status: models.BookingSuccess, SortBy: "ticket_id",
	})
	require.NoError(t, err)
	require.Len(t, paid, 2)
	assert.Equal(t, "TKT-B", paid[0].TicketID)
	assert.Equal(t, "TKT-C", paid[1].TicketID)

	page, err := f.svc.GetEventBookings(ctx, f.org, f.event.ID, BookingListOptions{SortBy: "ticket_id", Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "TKT-B", page[0].TicketID)

	_, err = f.svc.GetEventBookings(ctx, f.org, f.event.ID, BookingListOptions{Status: "REFUNDED"})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.svc.GetEventBookings(ctx, f.other, f.event.ID, BookingListOptions{})
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestGetOrganizerStats(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	a := f.booking(t, f.event.ID, "TKT-A", models.BookingCheckedIn, day1)
	b := f.booking(t, f.second.ID, "TKT-B", models.BookingSuccess, day1)
	f.payment(t, a.ID, 200, models.PaymentSuccess)
	f.payment(t, b.ID, 50, models.PaymentSuccess)
	f.checkin(t, a.ID, day1)

	stats, err := f.svc.GetOrganizerStats(ctx, f.org)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{f.event.ID, f.second.ID}, stats.EventIDs)
	assert.Equal(t, 2, stats.TotalBookings)
	assert.InDelta(t, 250.0, stats.PaidTotal, 0.001)
	assert.Equal(t, 1, stats.CheckedIn)

	empty, err := f.svc.GetOrganizerStats(ctx, f.other)
	require.NoError(t, err)
	assert.Empty(t, empty.EventIDs)
	assert.Zero(t, empty.TotalBookings)

	_, err = f.svc.GetOrganizerStats(ctx, models.Principal{AccountID: 77, Role: models.RoleParticipant})
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestDailySeries(t *testing.T) {
	logs := []models.CheckinLog{
		{CheckinTime: day1},
		{CheckinTime: day1.Add(time.Hour)},
		{CheckinTime: day1.Add(20 * time.Hour)},
	}
	assert.Equal(t, []DailyCheckins{
		{Date: "2030-06-01", Checkins: 2},
		{Date: "2030-06-02", Checkins: 1},
	}, dailySeries(logs))
	assert.Empty(t, dailySeries(nil))
}
