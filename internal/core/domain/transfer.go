package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransferStatus represents the lifecycle state of a submitted transfer.
type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusConfirmed TransferStatus = "confirmed"
	TransferStatusFailed    TransferStatus = "failed"
)

// IsTerminal returns true if no further transition is possible.
func (s TransferStatus) IsTerminal() bool {
	return s == TransferStatusConfirmed || s == TransferStatusFailed
}

// CanTransitionTo allows only pending -> confirmed and pending -> failed.
func (s TransferStatus) CanTransitionTo(next TransferStatus) bool {
	return s == TransferStatusPending && next.IsTerminal()
}

// TransferRecord is the local record of a transaction submitted to the ledger.
type TransferRecord struct {
	ID               uuid.UUID      `json:"id"`
	Signature        string         `json:"signature"`
	SenderWalletID   uuid.UUID      `json:"sender_wallet_id"`
	RecipientAddress string         `json:"recipient_address"`
	Amount           string         `json:"amount"` // decimal, UI units
	AssetMint        *string        `json:"asset_mint,omitempty"`
	Status           TransferStatus `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
	ConfirmedAt      *time.Time     `json:"confirmed_at,omitempty"`
	BlockTime        *int64         `json:"block_time,omitempty"`
	Fee              *uint64        `json:"fee,omitempty"`
}

// IsNative returns true for transfers of the ledger's native asset.
func (t *TransferRecord) IsNative() bool {
	return t.AssetMint == nil
}
