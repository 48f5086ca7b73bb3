package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownPlatform is returned by ParsePlatform for unsupported platforms.
var ErrUnknownPlatform = errors.New("unknown platform")

// Platform identifies the social network an identity belongs to.
type Platform string

const (
	PlatformTwitter  Platform = "twitter"
	PlatformDiscord  Platform = "discord"
	PlatformTelegram Platform = "telegram"
)

// Platforms lists every supported platform in display order.
var Platforms = []Platform{PlatformTwitter, PlatformDiscord, PlatformTelegram}

// Valid reports whether p is one of the supported platforms.
func (p Platform) Valid() bool {
	switch p {
	case PlatformTwitter, PlatformDiscord, PlatformTelegram:
		return true
	}
	return false
}

// ParsePlatform normalises s and rejects unsupported platforms.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, s)
	}
	return p, nil
}

// Wallet is an ed25519 keypair known to the vault. Custodial wallets carry
// their secret key, AES-256-GCM encrypted; watch-only wallets carry none.
type Wallet struct {
	ID              uuid.UUID `json:"id"`
	PublicKey       string    `json:"public_key"` // base58
	IsCustodial     bool      `json:"is_custodial"`
	Label           *string   `json:"label,omitempty"`
	EncryptedSecret *string   `json:"-"` // never expose
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CanSign returns true if the vault holds key material for this wallet.
func (w *Wallet) CanSign() bool {
	return w.IsCustodial && w.EncryptedSecret != nil && *w.EncryptedSecret != ""
}
