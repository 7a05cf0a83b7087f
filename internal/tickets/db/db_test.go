package db_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"qr-entry/internal/database/dbtest"
	"qr-entry/internal/models"
	"qr-entry/internal/tickets/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type fixture struct {
	ticketDB  *db.DB
	bunDB     *bun.DB
	organiser *models.Account
	holder    *models.Account
	event     *models.Event
}

func setupTestDB(t *testing.T) fixture {
	bunDB := dbtest.New(t)
	organiser := dbtest.SeedAccount(t, bunDB, "organiser", models.RoleOrganiser, false)
	holder := dbtest.SeedAccount(t, bunDB, "holder", models.RoleParticipant, false)
	event := dbtest.SeedEvent(t, bunDB, organiser.ID, "Tech Meetup", 250, "organiser@upi")
	return fixture{
		ticketDB:  &db.DB{Bun: bunDB},
		bunDB:     bunDB,
		organiser: organiser,
		holder:    holder,
		event:     event,
	}
}

func (f fixture) book(t *testing.T, ticketID string) *models.Booking {
	t.Helper()
	b := &models.Booking{
		AccountID: f.holder.ID,
		EventID:   f.event.ID,
		Status:    models.BookingPending,
		TicketID:  ticketID,
	}
	require.NoError(t, f.ticketDB.CreateBooking(context.Background(), b))
	return b
}

func TestCreateAndGetBooking(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()

	created := f.book(t, "a1b2c3d4e5f6")
	assert.NotZero(t, created.ID)

	byID, err := f.ticketDB.GetBookingByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "a1b2c3d4e5f6", byID.TicketID)
	assert.Equal(t, models.BookingPending, byID.Status)
	require.NotNil(t, byID.Event)
	assert.Equal(t, "Tech Meetup", byID.Event.Name)

	byTicket, err := f.ticketDB.GetBookingByTicketID(ctx, "a1b2c3d4e5f6")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byTicket.ID)

	_, err = f.ticketDB.GetBookingByTicketID(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrBookingNotFound)
	_, err = f.ticketDB.GetBookingByID(ctx, 9999)
	assert.ErrorIs(t, err, models.ErrBookingNotFound)
}

func TestCreateBooking_DuplicateTicketID(t *testing.T) {
	f := setupTestDB(t)
	f.book(t, "dupdupdupdup")

	other := dbtest.SeedAccount(t, f.bunDB, "other", models.RoleParticipant, false)
	clash := &models.Booking{AccountID: other.ID, EventID: f.event.ID, Status: models.BookingPending, TicketID: "dupdupdupdup"}

	err := f.ticketDB.CreateBooking(context.Background(), clash)
	assert.True(t, errors.Is(err, db.ErrTicketIDTaken))
}

func TestCreateBooking_ActiveDuplicateRejected(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	first := f.book(t, "111111111111")

	again := &models.Booking{AccountID: f.holder.ID, EventID: f.event.ID, Status: models.BookingPending, TicketID: "222222222222"}
	assert.ErrorIs(t, f.ticketDB.CreateBooking(ctx, again), models.ErrAlreadyBooked)

	active, err := f.ticketDB.FindActiveBooking(ctx, f.holder.ID, f.event.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)

	changed, err := f.ticketDB.TransitionStatus(ctx, first.ID,
		[]models.BookingStatus{models.BookingPending, models.BookingSuccess}, models.BookingCancelled)
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = f.ticketDB.FindActiveBooking(ctx, f.holder.ID, f.event.ID)
	assert.ErrorIs(t, err, models.ErrBookingNotFound)

	again.ID = 0
	assert.NoError(t, f.ticketDB.CreateBooking(ctx, again))
}

func TestTransitionStatus_Conditional(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	b := f.book(t, "333333333333")

	changed, err := f.ticketDB.TransitionStatus(ctx, b.ID, []models.BookingStatus{models.BookingSuccess}, models.BookingCancelled)
	require.NoError(t, err)
	assert.False(t, changed, "PENDING is not in the from set")

	changed, err = f.ticketDB.TransitionStatus(ctx, b.ID, []models.BookingStatus{models.BookingPending}, models.BookingSuccess)
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := f.ticketDB.GetBookingByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingSuccess, got.Status)
}

func TestCheckIn_OnceOnly(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	b := f.book(t, "444444444444")
	scanner := dbtest.SeedAccount(t, f.bunDB, "scanner", models.RoleParticipant, true)

	now := time.Now().UTC().Truncate(time.Second)
	got, checkedIn, err := f.ticketDB.CheckIn(ctx, b.TicketID, scanner.ID, now)
	require.NoError(t, err)
	assert.True(t, checkedIn)
	assert.Equal(t, models.BookingCheckedIn, got.Status)
	require.NotNil(t, got.CheckedInAt)

	got, checkedIn, err = f.ticketDB.CheckIn(ctx, b.TicketID, scanner.ID, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, checkedIn)
	assert.Equal(t, models.BookingCheckedIn, got.Status)

	logs, err := f.ticketDB.ListCheckinLogs(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, scanner.ID, logs[0].ScannedBy)
}

func TestCheckIn_CancelledAndMissing(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	b := f.book(t, "555555555555")

	_, err := f.ticketDB.TransitionStatus(ctx, b.ID, []models.BookingStatus{models.BookingPending}, models.BookingCancelled)
	require.NoError(t, err)

	got, checkedIn, err := f.ticketDB.CheckIn(ctx, b.TicketID, f.organiser.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, checkedIn)
	assert.Equal(t, models.BookingCancelled, got.Status)

	_, _, err = f.ticketDB.CheckIn(ctx, "nope", f.organiser.ID, time.Now())
	assert.ErrorIs(t, err, models.ErrBookingNotFound)

	logs, err := f.ticketDB.ListCheckinLogs(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestCheckIn_ConcurrentScansAdmitOnce(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	b := f.book(t, "666666666666")

	const scanners = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for i := 0; i < scanners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, checkedIn, err := f.ticketDB.CheckIn(ctx, b.TicketID, f.organiser.ID, time.Now())
			assert.NoError(t, err)
			if checkedIn {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, admitted)
	logs, err := f.ticketDB.ListCheckinLogs(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestRecordPayment(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	b := f.book(t, "777777777777")

	payment := &models.Payment{BookingID: b.ID, Gateway: models.GatewayWebhook, Amount: 250, Status: models.PaymentSuccess}
	changed, err := f.ticketDB.RecordPayment(ctx, payment, []models.BookingStatus{models.BookingPending}, models.BookingSuccess)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.NotZero(t, payment.ID)

	// Replaying leaves the booking alone but still records the attempt.
	second := &models.Payment{BookingID: b.ID, Gateway: models.GatewayWebhook, Amount: 250, Status: models.PaymentSuccess}
	changed, err = f.ticketDB.RecordPayment(ctx, second, []models.BookingStatus{models.BookingPending}, models.BookingSuccess)
	require.NoError(t, err)
	assert.False(t, changed)

	count, err := f.bunDB.NewSelect().Model((*models.Payment)(nil)).Where("booking_id = ?", b.ID).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRecordPayment_SettlesPendingAttempt(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	b := f.book(t, "787878787878")

	intent := &models.Payment{BookingID: b.ID, Gateway: models.GatewayStripe, GatewayPaymentID: "pi_1", Amount: 250, Status: models.PaymentInitiated}
	_, err := f.bunDB.NewInsert().Model(intent).Exec(ctx)
	require.NoError(t, err)

	confirmed := &models.Payment{BookingID: b.ID, Gateway: models.GatewayStripe, GatewayPaymentID: "pi_1", Amount: 250, Status: models.PaymentSuccess}
	changed, err := f.ticketDB.RecordPayment(ctx, confirmed, []models.BookingStatus{models.BookingPending}, models.BookingSuccess)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, intent.ID, confirmed.ID)

	var rows []models.Payment
	require.NoError(t, f.bunDB.NewSelect().Model(&rows).Where("booking_id = ?", b.ID).Scan(ctx))
	require.Len(t, rows, 1)
	assert.Equal(t, models.PaymentSuccess, rows[0].Status)
}

func TestAttachScreenshot(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	b := f.book(t, "888888888888")

	payment := &models.Payment{BookingID: b.ID, Gateway: models.GatewayManual, Amount: 250, Status: models.PaymentInitiated, Screenshot: "payment_screenshots/x.png"}
	attached, err := f.ticketDB.AttachScreenshot(ctx, b.ID, "payment_screenshots/x.png", payment)
	require.NoError(t, err)
	assert.True(t, attached)

	got, err := f.ticketDB.GetBookingByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingSuccess, got.Status)
	assert.Equal(t, "payment_screenshots/x.png", got.PaymentScreenshot)

	_, _, err = f.ticketDB.CheckIn(ctx, b.TicketID, f.organiser.ID, time.Now())
	require.NoError(t, err)

	late := &models.Payment{BookingID: b.ID, Gateway: models.GatewayManual, Status: models.PaymentInitiated}
	attached, err = f.ticketDB.AttachScreenshot(ctx, b.ID, "payment_screenshots/y.png", late)
	require.NoError(t, err)
	assert.False(t, attached)
	assert.Zero(t, late.ID, "no payment row for a used ticket")
}

func TestListBookings(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	f.book(t, "999999999999")

	otherOrganiser := dbtest.SeedAccount(t, f.bunDB, "other-org", models.RoleOrganiser, false)
	otherEvent := dbtest.SeedEvent(t, f.bunDB, otherOrganiser.ID, "Other", 0, "")
	require.NoError(t, f.ticketDB.CreateBooking(ctx, &models.Booking{
		AccountID: f.holder.ID, EventID: otherEvent.ID, Status: models.BookingPending, TicketID: "aaaaaaaaaaa1",
	}))

	mine, err := f.ticketDB.ListBookingsByAccount(ctx, f.holder.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	forOrganiser, err := f.ticketDB.ListBookingsByOrganizer(ctx, f.organiser.ID)
	require.NoError(t, err)
	require.Len(t, forOrganiser, 1)
	assert.Equal(t, "999999999999", forOrganiser[0].TicketID)
	require.NotNil(t, forOrganiser[0].Account)
	assert.Equal(t, "holder", forOrganiser[0].Account.Username)

	total, err := f.ticketDB.GetTotalTicketsCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	perEvent, err := f.ticketDB.CountBookingsForEvent(ctx, f.event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, perEvent)
}
