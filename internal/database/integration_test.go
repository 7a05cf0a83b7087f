//go:build integration

package database_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	accountsdb "qr-entry/internal/accounts/db"
	"qr-entry/internal/config"
	"qr-entry/internal/database"
	"qr-entry/internal/database/migrations"
	eventsdb "qr-entry/internal/events/db"
	"qr-entry/internal/logger"
	"qr-entry/internal/models"
	"qr-entry/internal/payment/idempotency"
	ticketsdb "qr-entry/internal/tickets/db"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
)

func startPostgres(t *testing.T) *bun.DB {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "qrentry",
				"POSTGRES_PASSWORD": "qrentry",
				"POSTGRES_DB":       "qrentry",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	db, err := database.Connect(ctx, config.DatabaseConfig{
		DSN:          fmt.Sprintf("postgres://qrentry:qrentry@%s:%s/qrentry?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
		MaxLifetime:  time.Minute,
		ConnRetries:  5,
	}, logger.NewDiscardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	dir, err := filepath.Abs("../../migrations")
	require.NoError(t, err)
	runner := migrations.NewRunner(db, migrations.MigrateOptions{MigrationsDir: dir}, logger.NewDiscardLogger())
	require.NoError(t, runner.MigrateUp())
	version, dirty, err := runner.Version()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.EqualValues(t, 1, version)
	return db
}

func TestPostgres_BookingLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Postgres integration test in short mode")
	}
	db := startPostgres(t)
	ctx := context.Background()

	accounts := &accountsdb.DB{Bun: db}
	events := &eventsdb.DB{Bun: db}
	tickets := &ticketsdb.DB{Bun: db}

	organiser := &models.Account{Username: "org", Email: "org@example.com", PasswordHash: "x"}
	require.NoError(t, accounts.CreateAccount(ctx, organiser, models.RoleOrganiser))
	buyer := &models.Account{Username: "buyer", Email: "buyer@example.com", PasswordHash: "x"}
	require.NoError(t, accounts.CreateAccount(ctx, buyer, models.RoleParticipant))

	clash := &models.Account{Username: "org", Email: "other@example.com", PasswordHash: "x"}
	assert.ErrorIs(t, accounts.CreateAccount(ctx, clash, models.RoleParticipant), models.ErrDuplicateAccount)

	event := &models.Event{
		OrganizerID: organiser.ID,
		Name:        "Go Conf",
		Location:    "Hall A",
		Capacity:    10,
		Price:       500,
		Date:        time.Date(2030, 9, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, events.CreateEvent(ctx, event))

	booking := &models.Booking{AccountID: buyer.ID, EventID: event.ID, Status: models.BookingPending, TicketID: "a1b2c3d4e5f6"}
	require.NoError(t, tickets.CreateBooking(ctx, booking))

	again := &models.Booking{AccountID: buyer.ID, EventID: event.ID, Status: models.BookingPending, TicketID: "ffffffffffff"}
	assert.ErrorIs(t, tickets.CreateBooking(ctx, again), models.ErrAlreadyBooked)

	sameTicket := &models.Booking{AccountID: organiser.ID, EventID: event.ID, Status: models.BookingPending, TicketID: "a1b2c3d4e5f6"}
	assert.ErrorIs(t, tickets.CreateBooking(ctx, sameTicket), ticketsdb.ErrTicketIDTaken)

	moved, err := tickets.TransitionStatus(ctx, booking.ID, []models.BookingStatus{models.BookingPending}, models.BookingSuccess)
	require.NoError(t, err)
	assert.True(t, moved)

	at := time.Now().UTC().Truncate(time.Second)
	got, checkedIn, err := tickets.CheckIn(ctx, booking.TicketID, organiser.ID, at)
	require.NoError(t, err)
	assert.True(t, checkedIn)
	assert.Equal(t, models.BookingCheckedIn, got.Status)

	_, checkedIn, err = tickets.CheckIn(ctx, booking.TicketID, organiser.ID, at.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, checkedIn)

	logs, err := tickets.ListCheckinLogs(ctx, booking.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	// A cancelled booking frees the slot for a new one.
	other := &models.Booking{AccountID: organiser.ID, EventID: event.ID, Status: models.BookingPending, TicketID: "0123456789ab"}
	require.NoError(t, tickets.CreateBooking(ctx, other))
	moved, err = tickets.TransitionStatus(ctx, other.ID, []models.BookingStatus{models.BookingPending}, models.BookingCancelled)
	require.NoError(t, err)
	require.True(t, moved)
	rebook := &models.Booking{AccountID: organiser.ID, EventID: event.ID, Status: models.BookingPending, TicketID: "ba9876543210"}
	assert.NoError(t, tickets.CreateBooking(ctx, rebook))
}

func TestRedis_ReplayGuard(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer container.Terminate(ctx)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := database.ConnectRedis(ctx, config.RedisConfig{Addr: host + ":" + port.Port()}, logger.NewDiscardLogger())
	require.NoError(t, err)
	defer client.Close()

	guard := idempotency.NewReplayGuard(client, time.Minute)
	key := idempotency.WebhookKey(models.GatewayWebhook, "", "a1b2c3d4e5f6", "success")

	first, err := guard.Claim(ctx, key)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := guard.Claim(ctx, key)
	require.NoError(t, err)
	assert.False(t, second)

	ttl, err := client.TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, guard.Release(ctx, key))
	_, err = client.Get(ctx, key).Result()
	assert.ErrorIs(t, err, redis.Nil)
}
