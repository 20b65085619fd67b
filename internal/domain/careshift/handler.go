package careshift

import (
	"net/http"
	"time"

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
	api.GET("/circles/:circleID/shifts", h.ListShifts)
}

func (h *Handler) ListShifts(c echo.Context) error {
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

	from, err := dateParam(c, "from")
	if err != nil {
		return err
	}
	to, err := dateParam(c, "to")
	if err != nil {
		return err
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListShifts(ctx, circleID, from, to, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func dateParam(c echo.Context, name string) (*time.Time, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name+" date")
	}
	return &t, nil
}
