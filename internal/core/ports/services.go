package ports

import (
	"context"
	"time"

	"social-custody-gateway/internal/core/domain"
	"social-custody-gateway/internal/solana"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

// Cipher encrypts secret material at rest with the process-wide master key.
// Plaintext is passed as bytes so callers can zero it after use.
type Cipher interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(envelope string) ([]byte, error)
}

// TokenService handles JWT token operations for tool-host clients.
type TokenService interface {
	Generate(clientID string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	ClientID string
}

// AuditService records custody-sensitive actions.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// --- Service Ports (Business Logic) ---

// VaultService owns the keypair lifecycle. Decrypted key material never
// leaves a single method call.
type VaultService interface {
	CreateWallet(ctx context.Context, platform domain.Platform, platformID string, label *string) (*domain.Wallet, error)
	GetWalletForIdentity(ctx context.Context, platform domain.Platform, platformID string) (*domain.Wallet, error)
	GetWalletByPublicKey(ctx context.Context, publicKey string) (*domain.Wallet, error)
	LinkIdentity(ctx context.Context, platform domain.Platform, platformID, walletPublicKey string) (*domain.Wallet, error)
	UnlinkIdentity(ctx context.Context, platform domain.Platform, platformID string) (bool, error)
	ListBindings(ctx context.Context, walletID uuid.UUID) ([]domain.SocialBinding, error)
	SignWithWallet(ctx context.Context, walletPublicKey string, tx *solana.Transaction) (*solana.Transaction, error)
	ExportSecret(ctx context.Context, walletPublicKey string) (string, error)
}

// TransferService builds, signs, submits and confirms transfers.
type TransferService interface {
	TransferNative(ctx context.Context, fromPublicKey, toAddress string, amount decimal.Decimal) (*TransferResult, error)
	TransferToken(ctx context.Context, req TokenTransferRequest) (*TransferResult, error)
	TransferToIdentity(ctx context.Context, req IdentityTransferRequest) (*IdentityTransferResult, error)
	RefreshTransfer(ctx context.Context, signature string) (*domain.TransferRecord, *domain.TransactionInfo, error)
	ListTransfers(ctx context.Context, walletID uuid.UUID, limit int) ([]domain.TransferRecord, error)
}

// TokenTransferRequest holds validated input for a token transfer.
type TokenTransferRequest struct {
	FromPublicKey string
	ToAddress     string // recipient wallet, not its token account
	Mint          string
	Amount        decimal.Decimal
	Decimals      uint8
}

// TransferResult is the outcome of a submitted transfer.
type TransferResult struct {
	Signature string                `json:"signature"`
	Status    domain.TransferStatus `json:"status"`
}

// IdentityTransferRequest addresses both parties by social identity. A nil
// Mint selects a native transfer.
type IdentityTransferRequest struct {
	Sender    domain.Identity
	Recipient domain.Identity
	Amount    decimal.Decimal
	Mint      *string
	Decimals  uint8
}

// IdentityTransferResult reports whether a wallet was provisioned for the
// recipient so callers can notify them.
type IdentityTransferResult struct {
	TransferResult
	RecipientAddress string `json:"recipient_address"`
	WalletCreated    bool   `json:"wallet_created"`
}
