package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carecircle/api/internal/platform/audit"
	"github.com/carecircle/api/internal/platform/auth"
)

// Audit appends one entry per state-changing /api/v1 request to sink once the
// handler has run. Entries carry ids, the route, and the response status
// only; request bodies are never recorded.
func Audit(logger zerolog.Logger, sink audit.Sink) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !isAuditable(req.Method, req.URL.Path) {
				return next(c)
			}

			err := next(c)

			actorID, ok := auth.ActorIDFromContext(req.Context())
			if !ok {
				return err
			}
			status := c.Response().Status
			if he, isHTTP := err.(*echo.HTTPError); isHTTP {
				status = he.Code
			}

			entry := &audit.Entry{
				ActorID:    actorID,
				Action:     "http." + httpMethodToAction(req.Method),
				EntityType: extractResourceType(req.URL.Path),
				EntityID:   lastUUID(req.URL.Path),
				Outcome:    strconv.Itoa(status),
			}
			if id, perr := uuid.Parse(c.Param("circleID")); perr == nil {
				entry.CircleID = &id
			}
			if aerr := sink.Append(req.Context(), entry); aerr != nil {
				logger.Error().Err(aerr).
					Str("request_id", RequestIDFromContext(c)).
					Msg("failed to record audit entry")
			}
			return err
		}
	}
}

func isAuditable(method, path string) bool {
	if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
		return false
	}
	return strings.HasPrefix(path, "/api/v1/")
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// extractResourceType names the collection the request acts on:
//   - /api/v1/circles/{id}/tasks        -> tasks
//   - /api/v1/discharges/{id}/generate  -> discharges
func extractResourceType(path string) string {
	segments := strings.Split(strings.Trim(strings.TrimPrefix(path, "/api/v1/"), "/"), "/")
	if segments[0] == "circles" && len(segments) > 2 {
		return segments[2]
	}
	if segments[0] == "" {
		return "unknown"
	}
	return segments[0]
}

func lastUUID(path string) uuid.UUID {
	segments := strings.Split(path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if id, err := uuid.Parse(segments[i]); err == nil {
			return id
		}
	}
	return uuid.Nil
}

func isUUIDLike(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
