package careshift

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeDay     = "DAY"
	TypeNight   = "NIGHT"
	TypeFullDay = "FULL_DAY"
)

const (
	StatusScheduled = "SCHEDULED"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

// Shift maps to the care_shift table. ShiftDate is a calendar date in the
// circle's local sense; no time-of-day is stored.
type Shift struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	CircleID   uuid.UUID  `db:"circle_id" json:"circleId"`
	PatientID  uuid.UUID  `db:"patient_id" json:"patientId"`
	AssigneeID uuid.UUID  `db:"assignee_id" json:"assigneeId"`
	ShiftDate  time.Time  `db:"shift_date" json:"shiftDate"`
	Type       string     `db:"type" json:"type"`
	Status     string     `db:"status" json:"status"`
	Note       *string    `db:"note" json:"note,omitempty"`
	SourceID   *uuid.UUID `db:"source_id" json:"sourceId,omitempty"`
	CreatedBy  uuid.UUID  `db:"created_by" json:"createdBy"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
}
