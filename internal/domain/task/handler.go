package task

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carecircle/api/internal/domain/circle"
	"github.com/carecircle/api/internal/platform/auth"
	"github.com/carecircle/api/internal/platform/sanitize"
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
	api.GET("/circles/:circleID/tasks", h.ListTasks)
	api.POST("/circles/:circleID/tasks", h.CreateTask)
	api.GET("/tasks/:id", h.GetTask)
	api.PATCH("/tasks/:id/status", h.UpdateStatus)
}

type createTaskRequest struct {
	PatientID   uuid.UUID  `json:"patientId"`
	OwnerID     *uuid.UUID `json:"ownerId"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Priority    string     `json:"priority"`
	DueAt       *string    `json:"dueAt"`
}

func (h *Handler) CreateTask(c echo.Context) error {
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

	var req createTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Description != nil {
		d := sanitize.EscapeForMarkup(*req.Description)
		req.Description = &d
	}
	t := Task{
		CircleID:    circleID,
		PatientID:   req.PatientID,
		CreatedBy:   actorID,
		OwnerID:     req.OwnerID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
	}
	if req.DueAt != nil {
		due, err := parseTime(*req.DueAt)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid dueAt")
		}
		t.DueAt = &due
	}
	if err := h.svc.CreateTask(ctx, &t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) GetTask(c echo.Context) error {
	t, err := h.loadForActor(c, false)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ListTasks(c echo.Context) error {
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
	items, total, err := h.svc.ListTasksByCircle(ctx, circleID, c.QueryParam("status"), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	t, err := h.loadForActor(c, true)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.UpdateStatus(c.Request().Context(), t.ID, req.Status); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "task not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t.Status = req.Status
	return c.JSON(http.StatusOK, t)
}

// loadForActor fetches the :id task and checks the actor's membership in its
// circle. Non-members get the same 404 as a missing task.
func (h *Handler) loadForActor(c echo.Context, write bool) (*Task, error) {
	ctx := c.Request().Context()
	actorID, ok := auth.ActorIDFromContext(ctx)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing actor")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.svc.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "task not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to load task")
	}

	check := h.circles.RequireMember
	if write {
		check = h.circles.RequireWriter
	}
	if _, err := check(ctx, actorID, t.CircleID); err != nil {
		if errors.Is(err, circle.ErrNotMember) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "task not found")
		}
		return nil, circle.AccessError(err)
	}
	return t, nil
}
