package ports

import (
	"context"
	"errors"
	"time"

	"social-custody-gateway/internal/core/domain"

	"github.com/google/uuid"
)

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

// Uniqueness violations reported by repositories. They come from database
// constraints, never from a prior read.
var (
	ErrDuplicateBinding   = errors.New("social identity is already bound to a wallet")
	ErrDuplicatePublicKey = errors.New("wallet public key already exists")
	ErrDuplicateSignature = errors.New("transfer signature already recorded")
)

// WalletRepository defines persistence operations for wallets.
type WalletRepository interface {
	// CreateWithBinding inserts the wallet and its first social binding in one
	// database transaction. Either both rows exist afterwards or neither does.
	CreateWithBinding(ctx context.Context, wallet *domain.Wallet, binding *domain.SocialBinding) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByPublicKey(ctx context.Context, publicKey string) (*domain.Wallet, error)
}

// SocialAccountRepository defines persistence operations for social bindings.
type SocialAccountRepository interface {
	Create(ctx context.Context, binding *domain.SocialBinding) error
	// GetWallet returns the wallet bound to the identity, or nil if unbound.
	GetWallet(ctx context.Context, platform domain.Platform, platformID string) (*domain.Wallet, error)
	// Delete reports whether a binding was removed.
	Delete(ctx context.Context, platform domain.Platform, platformID string) (bool, error)
	ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.SocialBinding, error)
}

// TransferRepository defines persistence operations for transfer records.
type TransferRepository interface {
	Create(ctx context.Context, record *domain.TransferRecord) error
	GetBySignature(ctx context.Context, signature string) (*domain.TransferRecord, error)
	// UpdateStatus applies a terminal status only while the record is pending.
	// It reports whether a row changed.
	UpdateStatus(ctx context.Context, signature string, update TransferStatusUpdate) (bool, error)
	ListByWallet(ctx context.Context, walletID uuid.UUID, limit int) ([]domain.TransferRecord, error)
}

// TransferStatusUpdate carries the ledger outcome of a transfer.
type TransferStatusUpdate struct {
	Status      domain.TransferStatus
	ConfirmedAt *time.Time
	BlockTime   *int64
	Fee         *uint64
}

// AuditRepository defines persistence for audit logs.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}
