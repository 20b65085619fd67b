package binder

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("binder item not found")

// ListFilter narrows ListByCircle. Zero values match everything.
type ListFilter struct {
	PatientID uuid.UUID
	Type      string
}

type ItemRepository interface {
	Create(ctx context.Context, item *Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)
	ListByCircle(ctx context.Context, circleID uuid.UUID, f ListFilter, limit, offset int) ([]*Item, int, error)
}
