package postgres

import (
	"context"
	"fmt"

	"social-custody-gateway/internal/core/domain"
	"social-custody-gateway/internal/core/ports"
)

type auditRepo struct {
	pool Pool
}

// NewAuditRepository creates a PostgreSQL-backed AuditRepository.
func NewAuditRepository(pool Pool) ports.AuditRepository {
	return &auditRepo{pool: pool}
}

func (r *auditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_logs (id, wallet_id, action, platform, platform_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		log.ID, log.WalletID, string(log.Action), log.Platform,
		log.PlatformID, log.Details, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
