package binder

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/carecircle/api/internal/platform/sanitize"
)

type Service struct {
	items ItemRepository
}

func NewService(items ItemRepository) *Service {
	return &Service{items: items}
}

func (s *Service) CreateItem(ctx context.Context, it *Item) error {
	if it.CircleID == uuid.Nil || it.PatientID == uuid.Nil {
		return fmt.Errorf("circle_id and patient_id are required")
	}
	if !validItemTypes[it.Type] {
		return fmt.Errorf("invalid type: %s", it.Type)
	}
	it.Title = sanitize.Title(it.Title)
	if it.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(it.Content) == 0 {
		it.Content = json.RawMessage(`{}`)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(it.Content, &obj); err != nil {
		return fmt.Errorf("content must be a JSON object")
	}
	it.IsActive = true
	return s.items.Create(ctx, it)
}

// CreateMedication stores a MED item. Every free-text field of mc is escaped
// before it is embedded in the content document.
func (s *Service) CreateMedication(ctx context.Context, circleID, patientID, actorID uuid.UUID, name string, mc MedicationContent) (*Item, error) {
	mc.Dosage = sanitize.EscapeForMarkup(mc.Dosage)
	mc.Frequency = sanitize.EscapeForMarkup(mc.Frequency)
	mc.Instructions = sanitize.EscapeForMarkup(mc.Instructions)
	content, err := json.Marshal(mc)
	if err != nil {
		return nil, fmt.Errorf("encode medication content: %w", err)
	}
	it := &Item{
		CircleID:  circleID,
		PatientID: patientID,
		Type:      TypeMedication,
		Title:     name,
		Content:   content,
		CreatedBy: actorID,
	}
	if err := s.CreateItem(ctx, it); err != nil {
		return nil, err
	}
	return it, nil
}

func (s *Service) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	return s.items.GetByID(ctx, id)
}

func (s *Service) ListItems(ctx context.Context, circleID uuid.UUID, f ListFilter, limit, offset int) ([]*Item, int, error) {
	if f.Type != "" && !validItemTypes[f.Type] {
		return nil, 0, fmt.Errorf("invalid type: %s", f.Type)
	}
	return s.items.ListByCircle(ctx, circleID, f, limit, offset)
}
