package handoff

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carecircle/api/internal/domain/circle"
	"github.com/carecircle/api/internal/platform/auth"
	"github.com/carecircle/api/internal/platform/translate"
	"github.com/carecircle/api/pkg/pagination"
)

type Handler struct {
	svc     *Service
	circles *circle.Service
}

func NewHandler(svc *Service, circles *circle.Service) *Handler {
	return &Handler{svc: svc, circles: circles}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/circles/:circleID/handoffs", h.ListHandoffs)
	api.GET("/handoffs/:id", h.GetHandoff)
	api.GET("/handoffs/:id/revisions", h.ListRevisions)
	api.POST("/handoffs/:id/translations", h.Translate)
}

func (h *Handler) ListHandoffs(c echo.Context) error {
	ctx := c.Request().Context()
	actorID, ok := auth.ActorIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing actor")
	}
	circleID, err := uuid.Parse(c.Param("circleID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid circle id")
	}
	if _, err := h.circles.RequireMember(ctx, actorID, circleID); err != nil {
		return circle.AccessError(err)
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListHandoffs(ctx, circleID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list handoffs")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) GetHandoff(c echo.Context) error {
	ho, _, err := h.loadForActor(c, false)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ho)
}

func (h *Handler) ListRevisions(c echo.Context) error {
	ho, _, err := h.loadForActor(c, false)
	if err != nil {
		return err
	}
	revs, err := h.svc.ListRevisions(c.Request().Context(), ho.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list revisions")
	}
	return c.JSON(http.StatusOK, revs)
}

type translateRequest struct {
	Language string `json:"language"`
}

func (h *Handler) Translate(c echo.Context) error {
	ho, actorID, err := h.loadForActor(c, true)
	if err != nil {
		return err
	}
	var req translateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	tag, err := translate.ParseLanguage(req.Language)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "unsupported language")
	}
	rev, err := h.svc.Translate(c.Request().Context(), ho, actorID, tag)
	if err != nil {
		if errors.Is(err, ErrTranslationUnavailable) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "translation unavailable")
		}
		return echo.NewHTTPError(http.StatusBadGateway, "translation failed")
	}
	return c.JSON(http.StatusCreated, rev)
}

func (h *Handler) loadForActor(c echo.Context, write bool) (*Handoff, uuid.UUID, error) {
	ctx := c.Request().Context()
	actorID, ok := auth.ActorIDFromContext(ctx)
	if !ok {
		return nil, uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "missing actor")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ho, err := h.svc.GetHandoff(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, uuid.Nil, echo.NewHTTPError(http.StatusNotFound, "handoff not found")
		}
		return nil, uuid.Nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to load handoff")
	}
	check := h.circles.RequireMember
	if write {
		check = h.circles.RequireWriter
	}
	if _, err := check(ctx, actorID, ho.CircleID); err != nil {
		if errors.Is(err, circle.ErrNotMember) {
			return nil, uuid.Nil, echo.NewHTTPError(http.StatusNotFound, "handoff not found")
		}
		return nil, uuid.Nil, circle.AccessError(err)
	}
	return ho, actorID, nil
}
