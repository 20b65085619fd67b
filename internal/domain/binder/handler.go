package binder

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carecircle/api/internal/domain/circle"
	"github.com/carecircle/api/internal/platform/auth"
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
	api.GET("/circles/:circleID/binder", h.ListItems)
}

func (h *Handler) ListItems(c echo.Context) error {
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

	f := ListFilter{Type: c.QueryParam("type")}
	if pid := c.QueryParam("patient_id"); pid != "" {
		if f.PatientID, err = uuid.Parse(pid); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListItems(ctx, circleID, f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}
