package careshift

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carecircle/api/internal/domain/circle"
	"github.com/carecircle/api/internal/platform/auth"
)

type mockShiftRepo struct {
	store []*Shift
}

func (m *mockShiftRepo) Create(_ context.Context, s *Shift) error {
	s.ID = uuid.New()
	m.store = append(m.store, s)
	return nil
}

func (m *mockShiftRepo) ListByCircle(_ context.Context, circleID uuid.UUID, from, to *time.Time, limit, offset int) ([]*Shift, int, error) {
	var r []*Shift
	for _, s := range m.store {
		if s.CircleID != circleID {
			continue
		}
		if from != nil && s.ShiftDate.Before(*from) {
			continue
		}
		if to != nil && s.ShiftDate.After(*to) {
			continue
		}
		r = append(r, s)
	}
	return r, len(r), nil
}

func newShift(circleID uuid.UUID, day time.Time) *Shift {
	return &Shift{CircleID: circleID, PatientID: uuid.New(), AssigneeID: uuid.New(), CreatedBy: uuid.New(), ShiftDate: day}
}

func TestService_CreateShift_Defaults(t *testing.T) {
	svc := NewService(&mockShiftRepo{})
	note := "Post-discharge care - Day 1"
	sh := newShift(uuid.New(), time.Date(2025, 1, 10, 15, 30, 0, 0, time.UTC))
	sh.Note = &note
	if err := svc.CreateShift(context.Background(), sh); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sh.Type != TypeDay || sh.Status != StatusScheduled {
		t.Errorf("unexpected defaults: %s/%s", sh.Type, sh.Status)
	}
	if !sh.ShiftDate.Equal(time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("shift date not truncated: %v", sh.ShiftDate)
	}
	if *sh.Note != note {
		t.Errorf("plain note should be unchanged, got %q", *sh.Note)
	}
}

func TestService_CreateShift_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Shift)
	}{
		{"no assignee", func(s *Shift) { s.AssigneeID = uuid.Nil }},
		{"no date", func(s *Shift) { s.ShiftDate = time.Time{} }},
		{"bad type", func(s *Shift) { s.Type = "WEEKEND" }},
		{"bad status", func(s *Shift) { s.Status = "PENDING" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&mockShiftRepo{})
			sh := newShift(uuid.New(), time.Now())
			tt.mutate(sh)
			if err := svc.CreateShift(context.Background(), sh); err == nil {
				t.Error("expected error")
			}
		})
	}
}

type mockMemberRepo struct{ member uuid.UUID }

func (m mockMemberRepo) GetMember(_ context.Context, circleID, userID uuid.UUID) (*circle.Member, error) {
	if userID != m.member {
		return nil, circle.ErrNotFound
	}
	return &circle.Member{CircleID: circleID, UserID: userID, Role: circle.RoleContributor, Status: circle.StatusActive}, nil
}

func TestHandler_ListShifts(t *testing.T) {
	repo := &mockShiftRepo{}
	svc := NewService(repo)
	member := uuid.New()
	h := NewHandler(svc, circle.NewService(mockMemberRepo{member: member}))

	circleID := uuid.New()
	for d := 10; d <= 12; d++ {
		if err := svc.CreateShift(context.Background(), newShift(circleID, time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC))); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?from=2025-01-11", nil)
	req = req.WithContext(auth.WithActorID(req.Context(), member))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("circleID")
	c.SetParamValues(circleID.String())
	if err := h.ListShifts(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/?from=yesterday", nil)
	req = req.WithContext(auth.WithActorID(req.Context(), member))
	c = e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("circleID")
	c.SetParamValues(circleID.String())
	var he *echo.HTTPError
	if err := h.ListShifts(c); !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}
