package discharge

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carecircle/api/internal/domain/circle"
	"github.com/carecircle/api/internal/platform/auth"
	"github.com/carecircle/api/pkg/pagination"
)

type Handler struct {
	svc     *Service
	orch    *Orchestrator
	circles *circle.Service
}

func NewHandler(svc *Service, orch *Orchestrator, circles *circle.Service) *Handler {
	return &Handler{svc: svc, orch: orch, circles: circles}
}

// RegisterRoutes mounts the wizard endpoints. generateMW wraps only the
// generate route.
func (h *Handler) RegisterRoutes(api *echo.Group, generateMW ...echo.MiddlewareFunc) {
	api.POST("/circles/:circleID/discharges", h.CreateRecord)
	api.GET("/circles/:circleID/discharges", h.ListRecords)
	api.GET("/discharges/:id", h.GetRecord)
	api.PUT("/discharges/:id", h.SaveProgress)
	api.GET("/discharges/:id/checklist", h.ListChecklist)
	api.PATCH("/discharges/:id/checklist/:itemID", h.UpdateChecklistItem)
	api.POST("/discharges/:id/cancel", h.CancelRecord)
	api.POST("/discharges/:id/generate", h.Generate, generateMW...)
}

type recordResponse struct {
	*Record
	Checklist []*ChecklistItem `json:"checklist,omitempty"`
}

func (h *Handler) CreateRecord(c echo.Context) error {
	ctx := c.Request().Context()
	actorID, ok := auth.ActorIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing actor")
	}
	circleID, err := uuid.Parse(c.Param("circleID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid circle id")
	}
	if _, err := h.circles.RequireWriter(ctx, actorID, circleID); err != nil {
		return circle.AccessError(err)
	}

	var req CreateRecordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	rec, items, err := h.svc.CreateRecord(ctx, circleID, actorID, req)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusCreated, recordResponse{Record: rec, Checklist: items})
}

func (h *Handler) ListRecords(c echo.Context) error {
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
	items, total, err := h.svc.ListRecords(ctx, circleID, c.QueryParam("status"), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) GetRecord(c echo.Context) error {
	rec, _, err := h.loadForActor(c, false)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) SaveProgress(c echo.Context) error {
	rec, _, err := h.loadForActor(c, true)
	if err != nil {
		return err
	}
	var req ProgressRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.SaveProgress(c.Request().Context(), rec, req); err != nil {
		if errors.Is(err, ErrNotInProgress) {
			return echo.NewHTTPError(http.StatusConflict, "discharge record is no longer in progress")
		}
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) ListChecklist(c echo.Context) error {
	rec, _, err := h.loadForActor(c, false)
	if err != nil {
		return err
	}
	items, err := h.svc.ListChecklist(c.Request().Context(), rec.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load checklist")
	}
	if items == nil {
		items = []*ChecklistItem{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateChecklistItem(c echo.Context) error {
	rec, _, err := h.loadForActor(c, true)
	if err != nil {
		return err
	}
	itemID, err := uuid.Parse(c.Param("itemID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid item id")
	}
	var patch ChecklistPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	if patch.AssigneeID != nil && *patch.AssigneeID != uuid.Nil {
		role, err := h.circles.ActiveRole(ctx, *patch.AssigneeID, rec.CircleID)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "membership lookup failed")
		}
		if role == "" {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "assignee is not a member of this circle")
		}
	}

	it, err := h.svc.UpdateChecklistItem(ctx, rec, itemID, patch)
	switch {
	case errors.Is(err, ErrItemNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "checklist item not found")
	case errors.Is(err, ErrNotInProgress):
		return echo.NewHTTPError(http.StatusConflict, "discharge record was cancelled")
	case err != nil:
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, it)
}

func (h *Handler) CancelRecord(c echo.Context) error {
	rec, _, err := h.loadForActor(c, true)
	if err != nil {
		return err
	}
	if err := h.svc.CancelRecord(c.Request().Context(), rec.ID); err != nil {
		if errors.Is(err, ErrNotInProgress) {
			return echo.NewHTTPError(http.StatusConflict, "discharge record is no longer in progress")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to cancel discharge record")
	}
	rec.Status = StatusCancelled
	return c.JSON(http.StatusOK, rec)
}

type errorBody struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

type generateErrorResponse struct {
	Error  errorBody `json:"error"`
	Result *Result   `json:"result,omitempty"`
}

// Generate is the invocation surface for output generation. Membership and
// entitlement are checked by the orchestrator so the precondition order
// stays in one place.
func (h *Handler) Generate(c echo.Context) error {
	actorID, ok := auth.ActorIDFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing actor")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	res, err := h.orch.Generate(c.Request().Context(), id, actorID)
	if err != nil {
		code := CodeOf(err)
		return c.JSON(HTTPStatus(code), generateErrorResponse{
			Error:  errorBody{Code: code, Message: err.Error()},
			Result: res,
		})
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) loadForActor(c echo.Context, write bool) (*Record, uuid.UUID, error) {
	ctx := c.Request().Context()
	actorID, ok := auth.ActorIDFromContext(ctx)
	if !ok {
		return nil, uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "missing actor")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.GetRecord(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, uuid.Nil, echo.NewHTTPError(http.StatusNotFound, "discharge record not found")
		}
		return nil, uuid.Nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to load discharge record")
	}
	check := h.circles.RequireMember
	if write {
		check = h.circles.RequireWriter
	}
	if _, err := check(ctx, actorID, rec.CircleID); err != nil {
		if errors.Is(err, circle.ErrNotMember) {
			return nil, uuid.Nil, echo.NewHTTPError(http.StatusNotFound, "discharge record not found")
		}
		return nil, uuid.Nil, circle.AccessError(err)
	}
	return rec, actorID, nil
}
