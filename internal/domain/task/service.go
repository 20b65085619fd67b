package task

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/carecircle/api/internal/platform/sanitize"
)

// MaxTitleLength is the rune limit for stored task titles. It leaves room for
// a source prefix such as "[Discharge] " in front of a full-length title.
const MaxTitleLength = 255

type Service struct {
	tasks TaskRepository
}

func NewService(tasks TaskRepository) *Service {
	return &Service{tasks: tasks}
}

var validTaskStatuses = map[string]bool{
	StatusOpen:       true,
	StatusInProgress: true,
	StatusDone:       true,
}

var validTaskPriorities = map[string]bool{
	PriorityLow:  true,
	PriorityMed:  true,
	PriorityHigh: true,
}

// CreateTask validates and persists t. The title is sanitized here; callers
// escape the description, which may embed already-escaped fragments.
func (s *Service) CreateTask(ctx context.Context, t *Task) error {
	if t.CircleID == uuid.Nil {
		return fmt.Errorf("circle_id is required")
	}
	if t.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	t.Title = sanitize.TitleLimit(t.Title, MaxTitleLength)
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	if t.Status == "" {
		t.Status = StatusOpen
	}
	if !validTaskStatuses[t.Status] {
		return fmt.Errorf("invalid status: %s", t.Status)
	}
	if t.Priority == "" {
		t.Priority = PriorityMed
	}
	if !validTaskPriorities[t.Priority] {
		return fmt.Errorf("invalid priority: %s", t.Priority)
	}
	return s.tasks.Create(ctx, t)
}

func (s *Service) GetTask(ctx context.Context, id uuid.UUID) (*Task, error) {
	return s.tasks.GetByID(ctx, id)
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	if !validTaskStatuses[status] {
		return fmt.Errorf("invalid status: %s", status)
	}
	return s.tasks.UpdateStatus(ctx, id, status)
}

func (s *Service) ListTasksByCircle(ctx context.Context, circleID uuid.UUID, status string, limit, offset int) ([]*Task, int, error) {
	if status != "" && !validTaskStatuses[status] {
		return nil, 0, fmt.Errorf("invalid status: %s", status)
	}
	return s.tasks.ListByCircle(ctx, circleID, status, limit, offset)
}
