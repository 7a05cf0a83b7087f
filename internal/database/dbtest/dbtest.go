// Package dbtest builds throwaway SQLite databases with the service schema.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"qr-entry/internal/models"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// ActiveBookingIndex mirrors the partial unique index in the SQL migrations.
const ActiveBookingIndex = `CREATE UNIQUE INDEX bookings_account_id_event_id_active_idx
	ON bookings (account_id, event_id) WHERE status <> 'CANCELLED'`

// New returns an isolated in-memory database. A single connection keeps the
// memory database alive and serialises transactions the way row locks would.
func New(t *testing.T) *bun.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	ctx := context.Background()

	tables := []interface{}{
		(*models.Account)(nil),
		(*models.Profile)(nil),
		(*models.Event)(nil),
		(*models.Booking)(nil),
		(*models.Payment)(nil),
		(*models.CheckinLog)(nil),
	}
	for _, m := range tables {
		if _, err := bunDB.NewCreateTable().Model(m).Exec(ctx); err != nil {
			t.Fatalf("Failed to create table for %T: %v", m, err)
		}
	}
	if _, err := bunDB.ExecContext(ctx, ActiveBookingIndex); err != nil {
		t.Fatalf("Failed to create active booking index: %v", err)
	}

	t.Cleanup(func() { bunDB.Close() })
	return bunDB
}

// SeedAccount inserts an account with a profile and returns it.
func SeedAccount(t *testing.T, db *bun.DB, username string, role models.Role, staff bool) *models.Account {
	t.Helper()
	ctx := context.Background()

	account := &models.Account{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		IsStaff:      staff,
	}
	if _, err := db.NewInsert().Model(account).Exec(ctx); err != nil {
		t.Fatalf("Failed to seed account %s: %v", username, err)
	}
	profile := &models.Profile{AccountID: account.ID, Role: role}
	if _, err := db.NewInsert().Model(profile).Exec(ctx); err != nil {
		t.Fatalf("Failed to seed profile for %s: %v", username, err)
	}
	account.Profile = profile
	return account
}

// SeedEvent inserts an event owned by organizerID.
func SeedEvent(t *testing.T, db *bun.DB, organizerID int64, name string, price int64, upi string) *models.Event {
	t.Helper()

	event := &models.Event{
		OrganizerID: organizerID,
		Name:        name,
		Location:    "Main Hall",
		Capacity:    100,
		Price:       price,
		UPIID:       upi,
		Date:        time.Date(2030, 6, 1, 18, 0, 0, 0, time.UTC),
	}
	if _, err := db.NewInsert().Model(event).Exec(context.Background()); err != nil {
		t.Fatalf("Failed to seed event %s: %v", name, err)
	}
	return event
}
