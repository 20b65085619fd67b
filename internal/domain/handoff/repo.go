package handoff

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("handoff not found")

type HandoffRepository interface {
	Create(ctx context.Context, h *Handoff) error
	GetByID(ctx context.Context, id uuid.UUID) (*Handoff, error)
	ListByCircle(ctx context.Context, circleID uuid.UUID, limit, offset int) ([]*Handoff, int, error)
	// CreateRevision assigns the next revision number for the handoff.
	CreateRevision(ctx context.Context, r *Revision) error
	ListRevisions(ctx context.Context, handoffID uuid.UUID) ([]*Revision, error)
}
