package domain

import (
	"time"

	"github.com/google/uuid"
)

// Identity is a user on an external social platform.
type Identity struct {
	Platform   Platform `json:"platform"`
	PlatformID string   `json:"platform_id"`
}

func (i Identity) String() string {
	return string(i.Platform) + ":" + i.PlatformID
}

// SocialBinding ties one platform identity to a wallet. An identity is bound
// to at most one wallet; a wallet may have many identities.
type SocialBinding struct {
	ID         uuid.UUID `json:"id"`
	Platform   Platform  `json:"platform"`
	PlatformID string    `json:"platform_id"`
	WalletID   uuid.UUID `json:"wallet_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Identity returns the platform identity this binding belongs to.
func (b *SocialBinding) Identity() Identity {
	return Identity{Platform: b.Platform, PlatformID: b.PlatformID}
}
