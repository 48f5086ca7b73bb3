package postgres

import (
	"context"
	"errors"
	"fmt"

	"social-custody-gateway/internal/core/domain"
	"social-custody-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletColumns = `id, public_key, is_custodial, label, encrypted_secret, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
	tx   *Transactor
}

var _ ports.WalletRepository = (*WalletRepo)(nil)

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool, tx: NewTransactor(pool)}
}

// CreateWithBinding inserts the wallet and its first binding atomically.
func (r *WalletRepo) CreateWithBinding(ctx context.Context, w *domain.Wallet, b *domain.SocialBinding) error {
	err := r.tx.WithinTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO wallets (`+walletColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			w.ID, w.PublicKey, w.IsCustodial, w.Label, w.EncryptedSecret, w.CreatedAt, w.UpdatedAt,
		)
		if err != nil {
			return err
		}
		return insertBinding(ctx, tx, b)
	})
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return dup
		}
		return fmt.Errorf("insert wallet with binding: %w", err)
	}
	return nil
}

// GetByID fetches a wallet by its UUID. It returns nil when absent.
func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	w, err := scanWallet(r.pool.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get wallet by id: %w", err)
	}
	return w, nil
}

// GetByPublicKey fetches a wallet by its base58 address. It returns nil when absent.
func (r *WalletRepo) GetByPublicKey(ctx context.Context, publicKey string) (*domain.Wallet, error) {
	w, err := scanWallet(r.pool.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE public_key = $1`, publicKey))
	if err != nil {
		return nil, fmt.Errorf("get wallet by public key: %w", err)
	}
	return w, nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(
		&w.ID, &w.PublicKey, &w.IsCustodial, &w.Label,
		&w.EncryptedSecret, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return w, nil
}
