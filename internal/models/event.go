package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID          int64     `json:"id" bun:"id,pk,autoincrement"`
	OrganizerID int64     `json:"organizer_id" bun:"organizer_id,notnull"`
	Name        string    `json:"name" bun:"name,notnull"`
	Date        time.Time `json:"date" bun:"date,notnull"`
	Location    string    `json:"location" bun:"location,notnull"`
	Description string    `json:"description" bun:"description"`
	Capacity    int       `json:"capacity" bun:"capacity,notnull"`
	Price       int64     `json:"price" bun:"price,notnull"`
	UPIID       string    `json:"upi_id,omitempty" bun:"upi_id,nullzero"`
	CreatedAt   time.Time `json:"created_at" bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// EventSummary is the public JSON shape of an event.
type EventSummary struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Date        time.Time `json:"date"`
	Capacity    int       `json:"capacity"`
}

func (e *Event) Summary() EventSummary {
	return EventSummary{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		Location:    e.Location,
		Date:        e.Date,
		Capacity:    e.Capacity,
	}
}

type EventInput struct {
	Name        string    `json:"name" validate:"required,max=200"`
	Date        time.Time `json:"date" validate:"required"`
	Location    string    `json:"location" validate:"required,max=255"`
	Description string    `json:"description"`
	Capacity    int       `json:"capacity" validate:"gt=0"`
	Price       int64     `json:"price" validate:"gte=0"`
	UPIID       string    `json:"upi_id" validate:"omitempty,max=100"`
}
