package db_test

import (
	"context"
	"testing"
	"time"

	"qr-entry/internal/database/dbtest"
	"qr-entry/internal/events/db"
	"qr-entry/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventCRUD(t *testing.T) {
	bunDB := dbtest.New(t)
	ctx := context.Background()
	store := &db.DB{Bun: bunDB}
	org := dbtest.SeedAccount(t, bunDB, "org", models.RoleOrganiser, false)
	other := dbtest.SeedAccount(t, bunDB, "other", models.RoleOrganiser, false)

	later := &models.Event{OrganizerID: org.ID, Name: "Later", Date: time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC), Location: "Hall B", Capacity: 5}
	sooner := &models.Event{OrganizerID: other.ID, Name: "Sooner", Date: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), Location: "Hall A", Capacity: 5, UPIID: "x@upi"}
	require.NoError(t, store.CreateEvent(ctx, later))
	require.NoError(t, store.CreateEvent(ctx, sooner))

	all, err := store.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Sooner", all[0].Name)

	mine, err := store.ListEventsByOrganizer(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Later", mine[0].Name)

	later.Price = 300
	later.Description = "now paid"
	require.NoError(t, store.UpdateEvent(ctx, later))
	got, err := store.GetEventByID(ctx, later.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(300), got.Price)
	assert.Equal(t, "now paid", got.Description)

	_, err = store.GetEventByID(ctx, 9999)
	assert.ErrorIs(t, err, models.ErrEventNotFound)
	assert.ErrorIs(t, store.UpdateEvent(ctx, &models.Event{ID: 9999, Name: "x", Date: time.Now(), Location: "y", Capacity: 1}), models.ErrEventNotFound)
}
