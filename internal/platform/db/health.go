package db

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const healthTimeout = 5 * time.Second

// PoolStats is the slice of pgxpool statistics worth watching in production.
// EmptyAcquires counts acquisitions that had to wait for a free connection.
type PoolStats struct {
	TotalConns    int32 `json:"total_conns"`
	IdleConns     int32 `json:"idle_conns"`
	AcquiredConns int32 `json:"acquired_conns"`
	MaxConns      int32 `json:"max_conns"`
	EmptyAcquires int64 `json:"empty_acquires"`
}

// SchemaState compares the applied migration version with the newest
// embedded one.
type SchemaState struct {
	Current int64 `json:"current"`
	Target  int64 `json:"target"`
	Pending bool  `json:"pending"`
}

// HealthReport is the /health/db response body.
type HealthReport struct {
	Status string       `json:"status"`
	Error  string       `json:"error,omitempty"`
	Pool   PoolStats    `json:"pool"`
	Schema *SchemaState `json:"schema,omitempty"`
}

func poolStats(pool *pgxpool.Pool) PoolStats {
	stat := pool.Stat()
	return PoolStats{
		TotalConns:    stat.TotalConns(),
		IdleConns:     stat.IdleConns(),
		AcquiredConns: stat.AcquiredConns(),
		MaxConns:      stat.MaxConns(),
		EmptyAcquires: stat.EmptyAcquireCount(),
	}
}

// HealthHandler reports database reachability, pool usage and whether the
// schema is behind the migrations shipped with this binary. Pending
// migrations make the instance unready.
func HealthHandler(pool *pgxpool.Pool, m *Migrator) echo.HandlerFunc {
	return healthHandler(pool.Ping, func() PoolStats { return poolStats(pool) }, m.Versions)
}

func healthHandler(
	ping func(context.Context) error,
	stats func() PoolStats,
	versions func(context.Context) (int64, int64, error),
) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
		defer cancel()

		report := HealthReport{Status: "healthy", Pool: stats()}
		if err := ping(ctx); err != nil {
			report.Status = "unhealthy"
			report.Error = err.Error()
			return c.JSON(http.StatusServiceUnavailable, report)
		}

		current, target, err := versions(ctx)
		if err != nil {
			report.Status = "unhealthy"
			report.Error = fmt.Sprintf("read schema version: %v", err)
			return c.JSON(http.StatusServiceUnavailable, report)
		}
		report.Schema = &SchemaState{Current: current, Target: target, Pending: current < target}
		if report.Schema.Pending {
			report.Status = "migrations_pending"
			return c.JSON(http.StatusServiceUnavailable, report)
		}
		return c.JSON(http.StatusOK, report)
	}
}
