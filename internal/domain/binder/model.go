package binder

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	TypeMedication = "MED"
	TypeContact    = "CONTACT"
	TypeFacility   = "FACILITY"
	TypeInsurance  = "INSURANCE"
	TypeNote       = "NOTE"
)

var validItemTypes = map[string]bool{
	TypeMedication: true,
	TypeContact:    true,
	TypeFacility:   true,
	TypeInsurance:  true,
	TypeNote:       true,
}

// Item maps to the binder_item table. Content is a type-specific JSON object.
type Item struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	CircleID  uuid.UUID       `db:"circle_id" json:"circleId"`
	PatientID uuid.UUID       `db:"patient_id" json:"patientId"`
	Type      string          `db:"type" json:"type"`
	Title     string          `db:"title" json:"title"`
	Content   json.RawMessage `db:"content" json:"content"`
	IsActive  bool            `db:"is_active" json:"isActive"`
	CreatedBy uuid.UUID       `db:"created_by" json:"createdBy"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time       `db:"updated_at" json:"updatedAt"`
}

// MedicationContent is the Content of a MED item.
type MedicationContent struct {
	Dosage            string     `json:"dosage,omitempty"`
	Frequency         string     `json:"frequency,omitempty"`
	Instructions      string     `json:"instructions,omitempty"`
	Source            string     `json:"source,omitempty"`
	DischargeRecordID *uuid.UUID `json:"dischargeRecordId,omitempty"`
}
