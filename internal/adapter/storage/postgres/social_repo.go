package postgres

import (
	"context"
	"fmt"

	"social-custody-gateway/internal/core/domain"
	"social-custody-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// SocialAccountRepo implements ports.SocialAccountRepository.
type SocialAccountRepo struct {
	pool Pool
}

var _ ports.SocialAccountRepository = (*SocialAccountRepo)(nil)

// NewSocialAccountRepo creates a new SocialAccountRepo.
func NewSocialAccountRepo(pool Pool) *SocialAccountRepo {
	return &SocialAccountRepo{pool: pool}
}

// Create binds an identity to an existing wallet. An identity that is
// already bound yields ports.ErrDuplicateBinding.
func (r *SocialAccountRepo) Create(ctx context.Context, b *domain.SocialBinding) error {
	if err := insertBinding(ctx, r.pool, b); err != nil {
		if dup := duplicateError(err); dup != nil {
			return dup
		}
		return fmt.Errorf("insert social account: %w", err)
	}
	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertBinding(ctx context.Context, db execer, b *domain.SocialBinding) error {
	_, err := db.Exec(ctx,
		`INSERT INTO social_accounts (id, platform, platform_id, wallet_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		b.ID, b.Platform, b.PlatformID, b.WalletID, b.CreatedAt,
	)
	return err
}

// GetWallet returns the wallet bound to the identity, or nil if unbound.
func (r *SocialAccountRepo) GetWallet(ctx context.Context, platform domain.Platform, platformID string) (*domain.Wallet, error) {
	w, err := scanWallet(r.pool.QueryRow(ctx,
		`SELECT w.id, w.public_key, w.is_custodial, w.label, w.encrypted_secret, w.created_at, w.updated_at
		FROM social_accounts s JOIN wallets w ON w.id = s.wallet_id
		WHERE s.platform = $1 AND s.platform_id = $2`,
		platform, platformID,
	))
	if err != nil {
		return nil, fmt.Errorf("get wallet by identity: %w", err)
	}
	return w, nil
}

// Delete removes the binding and reports whether one existed.
func (r *SocialAccountRepo) Delete(ctx context.Context, platform domain.Platform, platformID string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM social_accounts WHERE platform = $1 AND platform_id = $2`,
		platform, platformID,
	)
	if err != nil {
		return false, fmt.Errorf("delete social account: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListByWallet returns every identity bound to the wallet, oldest first.
func (r *SocialAccountRepo) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.SocialBinding, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, platform, platform_id, wallet_id, created_at
		FROM social_accounts WHERE wallet_id = $1 ORDER BY created_at`,
		walletID,
	)
	if err != nil {
		return nil, fmt.Errorf("list social accounts: %w", err)
	}
	defer rows.Close()

	var bindings []domain.SocialBinding
	for rows.Next() {
		var b domain.SocialBinding
		if err := rows.Scan(&b.ID, &b.Platform, &b.PlatformID, &b.WalletID, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan social account: %w", err)
		}
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}
