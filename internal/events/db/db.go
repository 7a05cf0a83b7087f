package db

import (
	"context"
	"fmt"

	"qr-entry/internal/database"
	"qr-entry/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateEvent(ctx context.Context, e *models.Event) error {
	if _, err := d.Bun.NewInsert().Model(e).Exec(ctx); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (d *DB) GetEventByID(ctx context.Context, id int64) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().Model(&event).Where("id = ?", id).Limit(1).Scan(ctx)
	if database.IsNoRows(err) {
		return nil, models.ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// ListEvents returns events soonest first.
func (d *DB) ListEvents(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	err := d.Bun.NewSelect().Model(&events).Order("date ASC", "id ASC").Scan(ctx)
	return events, err
}

func (d *DB) ListEventsByOrganizer(ctx context.Context, organizerID int64) ([]models.Event, error) {
	var events []models.Event
	err := d.Bun.NewSelect().
		Model(&events).
		Where("organizer_id = ?", organizerID).
		Order("date ASC", "id ASC").
		Scan(ctx)
	return events, err
}

// UpdateEvent overwrites the editable columns of e.
func (d *DB) UpdateEvent(ctx context.Context, e *models.Event) error {
	res, err := d.Bun.NewUpdate().
		Model(e).
		Column("name", "date", "location", "description", "capacity", "price", "upi_id").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update event %d: %w", e.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrEventNotFound
	}
	return nil
}
