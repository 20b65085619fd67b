package task

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("task not found")

type TaskRepository interface {
	Create(ctx context.Context, t *Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*Task, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	ListByCircle(ctx context.Context, circleID uuid.UUID, status string, limit, offset int) ([]*Task, int, error)
}
