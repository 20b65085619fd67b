package handoff

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	TypeGeneral   = "GENERAL"
	TypeDischarge = "DISCHARGE"
)

const (
	StatusDraft     = "DRAFT"
	StatusPublished = "PUBLISHED"
)

// Handoff maps to the handoff table.
type Handoff struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	CircleID    uuid.UUID  `db:"circle_id" json:"circleId"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patientId"`
	Type        string     `db:"type" json:"type"`
	Title       string     `db:"title" json:"title"`
	Summary     string     `db:"summary" json:"summary"`
	Status      string     `db:"status" json:"status"`
	PublishedAt *time.Time `db:"published_at" json:"publishedAt,omitempty"`
	SourceID    *uuid.UUID `db:"source_id" json:"sourceId,omitempty"`
	CreatedBy   uuid.UUID  `db:"created_by" json:"createdBy"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
}

// Revision is one immutable version of a handoff's content. The first
// revision carries the structured snapshot the handoff was built from;
// later ones hold translations.
type Revision struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	HandoffID      uuid.UUID       `db:"handoff_id" json:"handoffId"`
	RevisionNumber int             `db:"revision_number" json:"revisionNumber"`
	Language       string          `db:"language" json:"language"`
	Summary        string          `db:"summary" json:"summary"`
	Payload        json.RawMessage `db:"payload" json:"payload"`
	CreatedBy      uuid.UUID       `db:"created_by" json:"createdBy"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
}
