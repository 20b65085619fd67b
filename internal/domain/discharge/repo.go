package discharge

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type RecordRepository interface {
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	ListByCircle(ctx context.Context, circleID uuid.UUID, status string, limit, offset int) ([]*Record, int, error)
	// UpdateProgress saves wizard fields; ErrNotInProgress once the record
	// has left in_progress.
	UpdateProgress(ctx context.Context, r *Record) error
	Cancel(ctx context.Context, id uuid.UUID) error
	// Complete moves an in_progress record to completed and stores refs in
	// the same statement.
	Complete(ctx context.Context, id, actorID uuid.UUID, at time.Time, refs GeneratedRefs) error
}

type ChecklistRepository interface {
	CreateItems(ctx context.Context, items []*ChecklistItem) error
	ListByRecord(ctx context.Context, recordID uuid.UUID) ([]*ChecklistItem, error)
	GetItem(ctx context.Context, id uuid.UUID) (*ChecklistItem, error)
	UpdateItem(ctx context.Context, it *ChecklistItem) error
	// SetTaskID links a task to an item that has none; ErrAlreadyLinked
	// otherwise.
	SetTaskID(ctx context.Context, itemID, taskID uuid.UUID) error
}
