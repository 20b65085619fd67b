package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireDuration string `json:"acquire_duration"`
}

// GetPoolStats returns connection pool statistics.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// Dependency is an extra readiness probe (cache, broker) reported next to the
// database.
type Dependency struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler pings the database and every dependency. Any failure answers
// 503 with per-dependency status.
func HealthHandler(pool *pgxpool.Pool, deps ...Dependency) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		healthy := true
		checks := map[string]string{}

		if err := pool.Ping(ctx); err != nil {
			healthy = false
			checks["database"] = "unavailable"
		} else {
			checks["database"] = "ok"
		}
		for name, status := range runDependencies(ctx, deps) {
			checks[name] = status
			if status != "ok" {
				healthy = false
			}
		}

		body := map[string]interface{}{
			"checks": checks,
			"pool":   GetPoolStats(pool),
		}
		if !healthy {
			body["status"] = "unhealthy"
			return c.JSON(http.StatusServiceUnavailable, body)
		}
		body["status"] = "healthy"
		return c.JSON(http.StatusOK, body)
	}
}

func runDependencies(ctx context.Context, deps []Dependency) map[string]string {
	out := make(map[string]string, len(deps))
	for _, d := range deps {
		if d.Check == nil {
			continue
		}
		if err := d.Check(ctx); err != nil {
			out[d.Name] = "unavailable"
			continue
		}
		out[d.Name] = "ok"
	}
	return out
}
