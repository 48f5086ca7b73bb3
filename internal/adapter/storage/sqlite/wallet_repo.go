package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"social-custody-gateway/internal/core/domain"
	"social-custody-gateway/internal/core/ports"

	"github.com/google/uuid"
)

const walletColumns = `id, public_key, is_custodial, label, encrypted_secret, created_at, updated_at`

// Compile-time interface satisfaction checks.
var (
	_ ports.WalletRepository        = (*WalletRepo)(nil)
	_ ports.SocialAccountRepository = (*SocialAccountRepo)(nil)
	_ ports.TransferRepository      = (*TransferRepo)(nil)
	_ ports.AuditRepository         = (*AuditRepo)(nil)
)

// WalletRepo is the SQLite implementation of ports.WalletRepository.
type WalletRepo struct {
	db *DB
}

func NewWalletRepo(db *DB) *WalletRepo {
	return &WalletRepo{db: db}
}

// CreateWithBinding inserts the wallet and its first binding in one
// transaction.
func (r *WalletRepo) CreateWithBinding(ctx context.Context, w *domain.Wallet, b *domain.SocialBinding) error {
	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO wallets (`+walletColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			w.ID.String(), w.PublicKey, w.IsCustodial, w.Label, w.EncryptedSecret,
			formatTime(w.CreatedAt), formatTime(w.UpdatedAt),
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

func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	w, err := scanWallet(r.db.Reader.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE id = ?`, id.String()))
	if err != nil {
		return nil, fmt.Errorf("get wallet by id: %w", err)
	}
	return w, nil
}

func (r *WalletRepo) GetByPublicKey(ctx context.Context, publicKey string) (*domain.Wallet, error) {
	w, err := scanWallet(r.db.Reader.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE public_key = ?`, publicKey))
	if err != nil {
		return nil, fmt.Errorf("get wallet by public key: %w", err)
	}
	return w, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanWallet returns (nil, nil) on sql.ErrNoRows.
func scanWallet(row rowScanner) (*domain.Wallet, error) {
	var (
		w                    domain.Wallet
		id                   string
		createdAt, updatedAt string
	)
	err := row.Scan(&id, &w.PublicKey, &w.IsCustodial, &w.Label, &w.EncryptedSecret, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if w.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse wallet id: %w", err)
	}
	if w.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if w.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}
