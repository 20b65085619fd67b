package circle

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carecircle/api/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/circles/:circleID/members/me", h.GetMyMembership)
}

func (h *Handler) GetMyMembership(c echo.Context) error {
	actorID, ok := auth.ActorIDFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing actor")
	}
	circleID, err := uuid.Parse(c.Param("circleID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid circle id")
	}
	role, err := h.svc.RequireMember(c.Request().Context(), actorID, circleID)
	if err != nil {
		return AccessError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"circleId": circleID,
		"userId":   actorID,
		"role":     role,
		"canWrite": role.CanWrite(),
	})
}

// AccessError converts a membership failure into the HTTP error returned to
// clients. Other errors become 500s without detail.
func AccessError(err error) error {
	switch {
	case errors.Is(err, ErrNotMember):
		return echo.NewHTTPError(http.StatusForbidden, "not a member of this circle")
	case errors.Is(err, ErrReadOnly):
		return echo.NewHTTPError(http.StatusForbidden, "read-only circle role")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "membership lookup failed")
}
