package careshift

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carecircle/api/internal/platform/sanitize"
)

type Service struct {
	shifts ShiftRepository
}

func NewService(shifts ShiftRepository) *Service {
	return &Service{shifts: shifts}
}

var validShiftTypes = map[string]bool{
	TypeDay:     true,
	TypeNight:   true,
	TypeFullDay: true,
}

var validShiftStatuses = map[string]bool{
	StatusScheduled: true,
	StatusCompleted: true,
	StatusCancelled: true,
}

func (s *Service) CreateShift(ctx context.Context, sh *Shift) error {
	if sh.CircleID == uuid.Nil || sh.PatientID == uuid.Nil {
		return fmt.Errorf("circle_id and patient_id are required")
	}
	if sh.AssigneeID == uuid.Nil {
		return fmt.Errorf("assignee_id is required")
	}
	if sh.ShiftDate.IsZero() {
		return fmt.Errorf("shift_date is required")
	}
	if sh.Type == "" {
		sh.Type = TypeDay
	}
	if !validShiftTypes[sh.Type] {
		return fmt.Errorf("invalid type: %s", sh.Type)
	}
	if sh.Status == "" {
		sh.Status = StatusScheduled
	}
	if !validShiftStatuses[sh.Status] {
		return fmt.Errorf("invalid status: %s", sh.Status)
	}
	if sh.Note != nil {
		n := sanitize.EscapeForMarkup(*sh.Note)
		sh.Note = &n
	}
	y, m, d := sh.ShiftDate.Date()
	sh.ShiftDate = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return s.shifts.Create(ctx, sh)
}

func (s *Service) ListShifts(ctx context.Context, circleID uuid.UUID, from, to *time.Time, limit, offset int) ([]*Shift, int, error) {
	if from != nil && to != nil && to.Before(*from) {
		return nil, 0, fmt.Errorf("to must not be before from")
	}
	return s.shifts.ListByCircle(ctx, circleID, from, to, limit, offset)
}
