package discharge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carecircle/api/internal/platform/db"
)

// Service manages discharge records and their checklists while the wizard
// is being filled in. Output generation lives in Orchestrator.
type Service struct {
	records   RecordRepository
	checklist ChecklistRepository
	templates *Templates
	tx        db.TxFunc
}

func NewService(records RecordRepository, checklist ChecklistRepository, templates *Templates, tx db.TxFunc) *Service {
	if tx == nil {
		tx = db.NoTx
	}
	return &Service{records: records, checklist: checklist, templates: templates, tx: tx}
}

type CreateRecordRequest struct {
	PatientID     uuid.UUID     `json:"patientId" validate:"required"`
	FacilityName  string        `json:"facilityName" validate:"max=200"`
	DischargeDate string        `json:"dischargeDate" validate:"omitempty,datetime=2006-01-02"`
	AdmissionDate string        `json:"admissionDate" validate:"omitempty,datetime=2006-01-02"`
	ReasonForStay string        `json:"reasonForStay" validate:"max=2000"`
	DischargeType DischargeType `json:"dischargeType" validate:"required,discharge_type"`
}

type ProgressRequest struct {
	CurrentStep       int                `json:"currentStep" validate:"min=1,max=7"`
	FacilityName      string             `json:"facilityName" validate:"max=200"`
	DischargeDate     string             `json:"dischargeDate" validate:"omitempty,datetime=2006-01-02"`
	AdmissionDate     string             `json:"admissionDate" validate:"omitempty,datetime=2006-01-02"`
	ReasonForStay     string             `json:"reasonForStay" validate:"max=2000"`
	DischargeType     DischargeType      `json:"dischargeType" validate:"omitempty,discharge_type"`
	ChecklistState    ChecklistState     `json:"checklistState"`
	ShiftAssignments  ShiftPlan          `json:"shiftAssignments" validate:"max=62"`
	MedicationChanges []MedicationChange `json:"medicationChanges" validate:"max=100,dive"`
}

type ChecklistPatch struct {
	IsCompleted *bool      `json:"isCompleted"`
	CreateTask  *bool      `json:"createTask"`
	AssigneeID  *uuid.UUID `json:"assigneeId"`
	DueDate     *time.Time `json:"dueDate"`
	Notes       *string    `json:"notes" validate:"omitempty,max=2000"`
}

func checkDates(discharge, admission string) error {
	if discharge == "" || admission == "" {
		return nil
	}
	d, err := time.Parse(dateLayout, discharge)
	if err != nil {
		return err
	}
	a, err := time.Parse(dateLayout, admission)
	if err != nil {
		return err
	}
	if a.After(d) {
		return fmt.Errorf("admissionDate must not be after dischargeDate")
	}
	return nil
}

// CreateRecord starts a wizard at step 1 and seeds its checklist from the
// template for the discharge type, in one transaction.
func (s *Service) CreateRecord(ctx context.Context, circleID, actorID uuid.UUID, req CreateRecordRequest) (*Record, []*ChecklistItem, error) {
	if err := ValidateStruct(req); err != nil {
		return nil, nil, err
	}
	if err := checkDates(req.DischargeDate, req.AdmissionDate); err != nil {
		return nil, nil, err
	}

	rec := &Record{
		CircleID:      circleID,
		PatientID:     req.PatientID,
		CreatedBy:     actorID,
		FacilityName:  strings.TrimSpace(req.FacilityName),
		DischargeDate: req.DischargeDate,
		AdmissionDate: req.AdmissionDate,
		ReasonForStay: req.ReasonForStay,
		DischargeType: req.DischargeType,
		Status:        StatusInProgress,
		CurrentStep:   MinStep,
		ShiftPlan:     ShiftPlan{},
		Medications:   []MedicationChange{},
		GeneratedRefs: GeneratedRefs{
			TaskIDs:       []uuid.UUID{},
			ShiftIDs:      []uuid.UUID{},
			BinderItemIDs: []uuid.UUID{},
		},
	}
	items := s.templates.Seed(req.DischargeType)

	err := s.tx(ctx, func(ctx context.Context) error {
		if err := s.records.Create(ctx, rec); err != nil {
			return fmt.Errorf("create discharge record: %w", err)
		}
		for _, it := range items {
			it.RecordID = rec.ID
		}
		if err := s.checklist.CreateItems(ctx, items); err != nil {
			return fmt.Errorf("seed checklist: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return rec, items, nil
}

func (s *Service) GetRecord(ctx context.Context, id uuid.UUID) (*Record, error) {
	return s.records.GetByID(ctx, id)
}

func (s *Service) ListRecords(ctx context.Context, circleID uuid.UUID, status string, limit, offset int) ([]*Record, int, error) {
	switch status {
	case "", StatusInProgress, StatusCompleted, StatusCancelled:
	default:
		return nil, 0, fmt.Errorf("invalid status: %s", status)
	}
	return s.records.ListByCircle(ctx, circleID, status, limit, offset)
}

// SaveProgress replaces the wizard fields of an in_progress record.
func (s *Service) SaveProgress(ctx context.Context, rec *Record, req ProgressRequest) error {
	if rec.Status != StatusInProgress {
		return ErrNotInProgress
	}
	if err := ValidateStruct(req); err != nil {
		return err
	}
	if err := checkDates(req.DischargeDate, req.AdmissionDate); err != nil {
		return err
	}

	rec.CurrentStep = req.CurrentStep
	rec.FacilityName = strings.TrimSpace(req.FacilityName)
	rec.DischargeDate = req.DischargeDate
	rec.AdmissionDate = req.AdmissionDate
	rec.ReasonForStay = req.ReasonForStay
	if req.DischargeType != "" {
		rec.DischargeType = req.DischargeType
	}
	rec.ChecklistState = req.ChecklistState
	rec.ShiftPlan = req.ShiftAssignments
	rec.Medications = req.MedicationChanges
	return s.records.UpdateProgress(ctx, rec)
}

func (s *Service) ListChecklist(ctx context.Context, recordID uuid.UUID) ([]*ChecklistItem, error) {
	return s.checklist.ListByRecord(ctx, recordID)
}

// UpdateChecklistItem applies patch to an item of rec. The task link is
// never changed here.
func (s *Service) UpdateChecklistItem(ctx context.Context, rec *Record, itemID uuid.UUID, patch ChecklistPatch) (*ChecklistItem, error) {
	if rec.Status == StatusCancelled {
		return nil, ErrNotInProgress
	}
	if err := ValidateStruct(patch); err != nil {
		return nil, err
	}
	it, err := s.checklist.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if it.RecordID != rec.ID {
		return nil, ErrItemNotFound
	}

	if patch.IsCompleted != nil {
		it.IsCompleted = *patch.IsCompleted
	}
	if patch.CreateTask != nil {
		it.CreateTask = *patch.CreateTask
	}
	if patch.AssigneeID != nil {
		if *patch.AssigneeID == uuid.Nil {
			it.AssigneeID = nil
		} else {
			it.AssigneeID = patch.AssigneeID
		}
	}
	if patch.DueDate != nil {
		it.DueDate = patch.DueDate
	}
	if patch.Notes != nil {
		it.Notes = patch.Notes
	}
	if err := s.checklist.UpdateItem(ctx, it); err != nil {
		return nil, err
	}
	return it, nil
}

func (s *Service) CancelRecord(ctx context.Context, id uuid.UUID) error {
	return s.records.Cancel(ctx, id)
}
