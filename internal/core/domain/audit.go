package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionCreateWallet  AuditAction = "CREATE_WALLET"
	AuditActionLinkAccount   AuditAction = "LINK_ACCOUNT"
	AuditActionUnlinkAccount AuditAction = "UNLINK_ACCOUNT"
	AuditActionExportSecret  AuditAction = "EXPORT_SECRET"
	AuditActionTransfer      AuditAction = "TRANSFER"
)

// AuditLog records a single custody-sensitive action. It never carries key
// material.
type AuditLog struct {
	ID         uuid.UUID   `json:"id"`
	WalletID   *uuid.UUID  `json:"wallet_id,omitempty"`
	Action     AuditAction `json:"action"`
	Platform   string      `json:"platform,omitempty"`
	PlatformID string      `json:"platform_id,omitempty"`
	Details    string      `json:"details,omitempty"` // JSON string
	CreatedAt  time.Time   `json:"created_at"`
}
