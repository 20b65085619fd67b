package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// maxHeaderValueSize is the maximum allowed size for any single header value.
const maxHeaderValueSize = 8192

// Sanitize rejects requests carrying path traversal, NUL bytes, header
// injection or oversized headers. Body text is cleaned later, field by field,
// by the sanitize package.
func Sanitize(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			rawPath := req.URL.RawPath
			if rawPath == "" {
				rawPath = path
			}

			if containsPathTraversal(path) || containsPathTraversal(rawPath) {
				return reject(logger, c, "path traversal")
			}
			if containsNullByte(path) || containsNullByte(rawPath) {
				return reject(logger, c, "null byte in path")
			}

			for name, values := range req.Header {
				for _, v := range values {
					if len(v) > maxHeaderValueSize {
						return reject(logger, c, "oversized header "+name)
					}
					if strings.ContainsAny(v, "\r\n") {
						return reject(logger, c, "header injection "+name)
					}
				}
			}

			for key, values := range req.URL.Query() {
				if containsNullByte(key) {
					return reject(logger, c, "null byte in query")
				}
				for _, v := range values {
					if containsNullByte(v) {
						return reject(logger, c, "null byte in query")
					}
				}
			}

			return next(c)
		}
	}
}

func reject(logger zerolog.Logger, c echo.Context, reason string) error {
	logger.Warn().
		Str("reason", reason).
		Str("remote_ip", c.RealIP()).
		Msg("request rejected by sanitizer")
	return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
}

func containsPathTraversal(s string) bool {
	if strings.Contains(s, "..") {
		return true
	}
	lower := strings.ToLower(s)
	return strings.Contains(lower, "%2e%2e") || strings.Contains(lower, "%252e")
}

func containsNullByte(s string) bool {
	return strings.ContainsRune(s, '\x00') || strings.Contains(strings.ToLower(s), "%00")
}
