package careshift

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ShiftRepository interface {
	Create(ctx context.Context, s *Shift) error
	ListByCircle(ctx context.Context, circleID uuid.UUID, from, to *time.Time, limit, offset int) ([]*Shift, int, error)
}
