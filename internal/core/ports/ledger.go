package ports

import (
	"context"

	"social-custody-gateway/internal/core/domain"
)

//go:generate mockgen -source=ledger.go -destination=mocks/mock_ledger.go -package=mocks

// LedgerGateway is the network-facing view of the ledger. Addresses,
// blockhashes and signatures are base58 strings.
type LedgerGateway interface {
	// GetBalance returns the native balance of address in lamports.
	GetBalance(ctx context.Context, address string) (uint64, error)
	// GetAccountInfo returns nil if the account does not exist.
	GetAccountInfo(ctx context.Context, address string) (*domain.AccountInfo, error)
	// GetTransaction returns nil if the transaction is unknown to the node.
	GetTransaction(ctx context.Context, signature string) (*domain.TransactionInfo, error)
	// GetHoldingAccountsByOwner lists owner's token accounts for mint.
	GetHoldingAccountsByOwner(ctx context.Context, owner, mint string) ([]string, error)
	GetLatestBlockhash(ctx context.Context) (string, error)
	// SubmitRawTransaction submits a signed wire transaction and returns its
	// signature. It is never retried.
	SubmitRawTransaction(ctx context.Context, raw []byte) (string, error)
	// ConfirmTransaction waits until the signature reaches the configured
	// commitment and returns confirmed or failed.
	ConfirmTransaction(ctx context.Context, signature string) (domain.TransferStatus, error)
}
