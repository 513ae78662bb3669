package repository

import (
	"context"
	"database/sql"

	"tilt_control/internal/models"
)

type EventRepo interface {
	Append(ctx context.Context, e models.Event) error
	List(ctx context.Context, f models.EventFilter) ([]models.Event, error)
}

type Repository struct {
	EventRepo EventRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		EventRepo: NewEventSQLite(db),
	}
}
