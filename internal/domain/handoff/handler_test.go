package handoff

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carecircle/api/internal/domain/circle"
	"github.com/carecircle/api/internal/platform/auth"
	"github.com/carecircle/api/internal/platform/db"
)

type mockMemberRepo struct {
	roles map[uuid.UUID]circle.Role
}

func (m mockMemberRepo) GetMember(_ context.Context, circleID, userID uuid.UUID) (*circle.Member, error) {
	role, ok := m.roles[userID]
	if !ok {
		return nil, circle.ErrNotFound
	}
	return &circle.Member{CircleID: circleID, UserID: userID, Role: role, Status: circle.StatusActive}, nil
}

func setupHandler(t *testing.T, tr *fakeTranslator) (*Handler, *Handoff, uuid.UUID, uuid.UUID) {
	t.Helper()
	repo := newMockHandoffRepo()
	var svc *Service
	if tr != nil {
		svc = NewService(repo, db.NoTx, tr, nil, zerolog.Nop())
	} else {
		svc = NewService(repo, db.NoTx, nil, nil, zerolog.Nop())
	}
	h := newHandoff()
	if _, err := svc.Publish(context.Background(), h, nil); err != nil {
		t.Fatalf("publish: %v", err)
	}
	writer, viewer := uuid.New(), uuid.New()
	members := mockMemberRepo{roles: map[uuid.UUID]circle.Role{
		writer: circle.RoleContributor,
		viewer: circle.RoleViewer,
	}}
	return NewHandler(svc, circle.NewService(members)), h, writer, viewer
}

func newCtx(method, body string, actor, id uuid.UUID) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, "/", nil)
	}
	req = req.WithContext(auth.WithActorID(req.Context(), actor))
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id.String())
	return c, rec
}

func httpCode(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return 0
}

func TestHandler_GetHandoff(t *testing.T) {
	h, ho, _, viewer := setupHandler(t, nil)

	c, rec := newCtx(http.MethodGet, "", viewer, ho.ID)
	if err := h.GetHandoff(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c, _ = newCtx(http.MethodGet, "", uuid.New(), ho.ID)
	if code := httpCode(h.GetHandoff(c)); code != http.StatusNotFound {
		t.Errorf("expected 404 for stranger, got %d", code)
	}
}

func TestHandler_ListRevisions(t *testing.T) {
	h, ho, writer, _ := setupHandler(t, nil)
	c, rec := newCtx(http.MethodGet, "", writer, ho.ID)
	if err := h.ListRevisions(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"revisionNumber":1`) {
		t.Errorf("expected first revision in body: %s", rec.Body.String())
	}
}

func TestHandler_Translate(t *testing.T) {
	h, ho, writer, viewer := setupHandler(t, &fakeTranslator{out: "Resumen"})

	c, rec := newCtx(http.MethodPost, `{"language":"es"}`, writer, ho.ID)
	if err := h.Translate(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	c, _ = newCtx(http.MethodPost, `{"language":"klingon"}`, writer, ho.ID)
	if code := httpCode(h.Translate(c)); code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", code)
	}

	c, _ = newCtx(http.MethodPost, `{"language":"es"}`, viewer, ho.ID)
	if code := httpCode(h.Translate(c)); code != http.StatusForbidden {
		t.Errorf("expected 403 for viewer, got %d", code)
	}
}

func TestHandler_Translate_NotConfigured(t *testing.T) {
	h, ho, writer, _ := setupHandler(t, nil)
	c, _ := newCtx(http.MethodPost, `{"language":"fr"}`, writer, ho.ID)
	if code := httpCode(h.Translate(c)); code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", code)
	}
}
