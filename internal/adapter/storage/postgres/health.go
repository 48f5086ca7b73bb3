package postgres

import (
	"context"
	"fmt"
)

// HealthCheck reports the database unhealthy when it is unreachable or a
// migration was left half-applied.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	var (
		version int64
		dirty   bool
	)
	if err := h.pool.QueryRow(ctx, `SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("schema migration %d is dirty", version)
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "postgresql"
}
