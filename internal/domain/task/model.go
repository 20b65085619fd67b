package task

import (
	"time"

	"github.com/google/uuid"
)

const (
	PriorityLow  = "LOW"
	PriorityMed  = "MED"
	PriorityHigh = "HIGH"
)

const (
	StatusOpen       = "OPEN"
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
)

// SourceDischarge marks tasks created from a discharge checklist item.
const SourceDischarge = "discharge"

// Task maps to the task table.
type Task struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	CircleID    uuid.UUID  `db:"circle_id" json:"circleId"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patientId"`
	CreatedBy   uuid.UUID  `db:"created_by" json:"createdBy"`
	OwnerID     *uuid.UUID `db:"owner_id" json:"ownerId,omitempty"`
	Title       string     `db:"title" json:"title"`
	Description *string    `db:"description" json:"description,omitempty"`
	Priority    string     `db:"priority" json:"priority"`
	Status      string     `db:"status" json:"status"`
	DueAt       *time.Time `db:"due_at" json:"dueAt,omitempty"`
	SourceType  *string    `db:"source_type" json:"sourceType,omitempty"`
	SourceID    *uuid.UUID `db:"source_id" json:"sourceId,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}
