package sqlite

import (
	"context"
	"fmt"

	"social-custody-gateway/internal/core/domain"

	"github.com/google/uuid"
)

// SocialAccountRepo is the SQLite implementation of ports.SocialAccountRepository.
type SocialAccountRepo struct {
	db *DB
}

func NewSocialAccountRepo(db *DB) *SocialAccountRepo {
	return &SocialAccountRepo{db: db}
}

func (r *SocialAccountRepo) Create(ctx context.Context, b *domain.SocialBinding) error {
	if err := insertBinding(ctx, r.db.Writer, b); err != nil {
		if dup := duplicateError(err); dup != nil {
			return dup
		}
		return fmt.Errorf("insert social account: %w", err)
	}
	return nil
}

func insertBinding(ctx context.Context, db execer, b *domain.SocialBinding) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO social_accounts (id, platform, platform_id, wallet_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		b.ID.String(), string(b.Platform), b.PlatformID, b.WalletID.String(), formatTime(b.CreatedAt),
	)
	return err
}

// GetWallet returns nil when the identity is unbound.
func (r *SocialAccountRepo) GetWallet(ctx context.Context, platform domain.Platform, platformID string) (*domain.Wallet, error) {
	w, err := scanWallet(r.db.Reader.QueryRowContext(ctx,
		`SELECT w.id, w.public_key, w.is_custodial, w.label, w.encrypted_secret, w.created_at, w.updated_at
		FROM social_accounts s JOIN wallets w ON w.id = s.wallet_id
		WHERE s.platform = ? AND s.platform_id = ?`,
		string(platform), platformID,
	))
	if err != nil {
		return nil, fmt.Errorf("get wallet by identity: %w", err)
	}
	return w, nil
}

func (r *SocialAccountRepo) Delete(ctx context.Context, platform domain.Platform, platformID string) (bool, error) {
	res, err := r.db.Writer.ExecContext(ctx,
		`DELETE FROM social_accounts WHERE platform = ? AND platform_id = ?`,
		string(platform), platformID,
	)
	if err != nil {
		return false, fmt.Errorf("delete social account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete social account: %w", err)
	}
	return n > 0, nil
}

func (r *SocialAccountRepo) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.SocialBinding, error) {
	rows, err := r.db.Reader.QueryContext(ctx,
		`SELECT id, platform, platform_id, wallet_id, created_at
		FROM social_accounts WHERE wallet_id = ? ORDER BY created_at`,
		walletID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list social accounts: %w", err)
	}
	defer rows.Close()

	var bindings []domain.SocialBinding
	for rows.Next() {
		var (
			b                  domain.SocialBinding
			id, wid, createdAt string
			platform           string
		)
		if err := rows.Scan(&id, &platform, &b.PlatformID, &wid, &createdAt); err != nil {
			return nil, fmt.Errorf("scan social account: %w", err)
		}
		b.Platform = domain.Platform(platform)
		if b.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse binding id: %w", err)
		}
		if b.WalletID, err = uuid.Parse(wid); err != nil {
			return nil, fmt.Errorf("parse wallet id: %w", err)
		}
		if b.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate social accounts: %w", err)
	}
	return bindings, nil
}
