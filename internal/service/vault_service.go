package service

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"social-custody-gateway/internal/core/domain"
	"social-custody-gateway/internal/core/ports"
	"social-custody-gateway/internal/solana"
	"social-custody-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type vaultService struct {
	walletRepo ports.WalletRepository
	socialRepo ports.SocialAccountRepository
	cipher     ports.Cipher
	audit      ports.AuditService
	log        zerolog.Logger
}

// NewVaultService creates the custodial wallet vault. audit may be nil.
func NewVaultService(
	walletRepo ports.WalletRepository,
	socialRepo ports.SocialAccountRepository,
	cipher ports.Cipher,
	audit ports.AuditService,
	log zerolog.Logger,
) ports.VaultService {
	return &vaultService{
		walletRepo: walletRepo,
		socialRepo: socialRepo,
		cipher:     cipher,
		audit:      audit,
		log:        log,
	}
}

// CreateWallet generates a keypair and binds it to the identity. A second
// call for the same identity fails on the repository's unique constraint.
func (s *vaultService) CreateWallet(ctx context.Context, platform domain.Platform, platformID string, label *string) (*domain.Wallet, error) {
	if err := validateIdentity(platform, platformID); err != nil {
		return nil, err
	}

	key, err := solana.NewKeypair()
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	defer solana.Zero(key)

	envelope, err := s.cipher.Encrypt(key)
	if err != nil {
		return nil, cipherError(err)
	}

	now := time.Now().UTC()
	wallet := &domain.Wallet{
		ID:              uuid.New(),
		PublicKey:       solana.PublicKeyOf(key).String(),
		IsCustodial:     true,
		Label:           label,
		EncryptedSecret: &envelope,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	binding := &domain.SocialBinding{
		ID:         uuid.New(),
		Platform:   platform,
		PlatformID: platformID,
		WalletID:   wallet.ID,
		CreatedAt:  now,
	}

	if err := s.walletRepo.CreateWithBinding(ctx, wallet, binding); err != nil {
		if errors.Is(err, ports.ErrDuplicateBinding) {
			return nil, apperror.ErrDuplicateBinding(string(platform), platformID)
		}
		return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
	}

	s.log.Info().
		Str("wallet", wallet.PublicKey).
		Str("platform", string(platform)).
		Str("platform_id", platformID).
		Msg("custodial wallet created")
	s.record(ctx, domain.AuditActionCreateWallet, &wallet.ID, binding.Identity(), map[string]any{
		"public_key": wallet.PublicKey,
	})

	return wallet, nil
}

// GetWalletForIdentity returns (nil, nil) when the identity is unbound.
func (s *vaultService) GetWalletForIdentity(ctx context.Context, platform domain.Platform, platformID string) (*domain.Wallet, error) {
	if err := validateIdentity(platform, platformID); err != nil {
		return nil, err
	}
	wallet, err := s.socialRepo.GetWallet(ctx, platform, platformID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return wallet, nil
}

func (s *vaultService) GetWalletByPublicKey(ctx context.Context, publicKey string) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByPublicKey(ctx, publicKey)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound(publicKey)
	}
	return wallet, nil
}

func (s *vaultService) LinkIdentity(ctx context.Context, platform domain.Platform, platformID, walletPublicKey string) (*domain.Wallet, error) {
	if err := validateIdentity(platform, platformID); err != nil {
		return nil, err
	}

	wallet, err := s.GetWalletByPublicKey(ctx, walletPublicKey)
	if err != nil {
		return nil, err
	}

	binding := &domain.SocialBinding{
		ID:         uuid.New(),
		Platform:   platform,
		PlatformID: platformID,
		WalletID:   wallet.ID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.socialRepo.Create(ctx, binding); err != nil {
		if errors.Is(err, ports.ErrDuplicateBinding) {
			return nil, apperror.ErrDuplicateBinding(string(platform), platformID)
		}
		return nil, apperror.InternalError(fmt.Errorf("link identity: %w", err))
	}

	s.record(ctx, domain.AuditActionLinkAccount, &wallet.ID, binding.Identity(), nil)
	return wallet, nil
}

// UnlinkIdentity is idempotent; it reports false if nothing was bound.
func (s *vaultService) UnlinkIdentity(ctx context.Context, platform domain.Platform, platformID string) (bool, error) {
	if err := validateIdentity(platform, platformID); err != nil {
		return false, err
	}

	removed, err := s.socialRepo.Delete(ctx, platform, platformID)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("unlink identity: %w", err))
	}
	if removed {
		s.record(ctx, domain.AuditActionUnlinkAccount, nil, domain.Identity{Platform: platform, PlatformID: platformID}, nil)
	}
	return removed, nil
}

func (s *vaultService) ListBindings(ctx context.Context, walletID uuid.UUID) ([]domain.SocialBinding, error) {
	bindings, err := s.socialRepo.ListByWallet(ctx, walletID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return bindings, nil
}

// SignWithWallet decrypts the wallet's key, signs tx and wipes the key before
// returning. The key is never cached or logged.
func (s *vaultService) SignWithWallet(ctx context.Context, walletPublicKey string, tx *solana.Transaction) (*solana.Transaction, error) {
	if tx == nil {
		return nil, apperror.ErrInvalidParameters("transaction is required")
	}

	_, key, err := s.openKey(ctx, walletPublicKey)
	if err != nil {
		return nil, err
	}
	defer solana.Zero(key)

	if err := tx.Sign(key); err != nil {
		if errors.Is(err, solana.ErrNotASigner) {
			return nil, apperror.ErrInvalidParameters(fmt.Sprintf("wallet %s is not a signer of this transaction", walletPublicKey))
		}
		return nil, apperror.InternalError(fmt.Errorf("sign transaction: %w", err))
	}

	s.log.Debug().Str("wallet", walletPublicKey).Msg("transaction signed")
	return tx, nil
}

// ExportSecret returns the base58 secret key. Callers must treat the result
// as highly sensitive.
func (s *vaultService) ExportSecret(ctx context.Context, walletPublicKey string) (string, error) {
	wallet, key, err := s.openKey(ctx, walletPublicKey)
	if err != nil {
		return "", err
	}
	defer solana.Zero(key)

	secret := solana.EncodePrivateKey(key)

	s.log.Warn().Str("wallet", walletPublicKey).Msg("wallet secret exported")
	s.record(ctx, domain.AuditActionExportSecret, &wallet.ID, domain.Identity{}, nil)
	return secret, nil
}

// openKey loads and decrypts a wallet's signing key. The returned key is
// re-derived from its seed and checked against the wallet's public key, so a
// corrupted or swapped record can never sign under another address.
func (s *vaultService) openKey(ctx context.Context, walletPublicKey string) (*domain.Wallet, ed25519.PrivateKey, error) {
	wallet, err := s.walletRepo.GetByPublicKey(ctx, walletPublicKey)
	if err != nil {
		return nil, nil, apperror.InternalError(err)
	}
	if wallet == nil || !wallet.CanSign() {
		return nil, nil, apperror.ErrWalletNotFound(walletPublicKey)
	}

	plain, err := s.cipher.Decrypt(*wallet.EncryptedSecret)
	if err != nil {
		return nil, nil, cipherError(err)
	}
	defer solana.Zero(plain)

	if len(plain) != ed25519.PrivateKeySize {
		return nil, nil, apperror.ErrCipher(fmt.Errorf("decrypted secret is %d bytes", len(plain)))
	}

	key := ed25519.NewKeyFromSeed(plain[:ed25519.SeedSize])
	if solana.PublicKeyOf(key).String() != wallet.PublicKey {
		solana.Zero(key)
		return nil, nil, apperror.ErrCipher(errors.New("decrypted secret does not match wallet public key"))
	}
	return wallet, key, nil
}

func (s *vaultService) record(ctx context.Context, action domain.AuditAction, walletID *uuid.UUID, identity domain.Identity, details map[string]any) {
	if s.audit == nil {
		return
	}
	entry := &domain.AuditLog{
		ID:         uuid.New(),
		WalletID:   walletID,
		Action:     action,
		Platform:   string(identity.Platform),
		PlatformID: identity.PlatformID,
		CreatedAt:  time.Now().UTC(),
	}
	if len(details) > 0 {
		if b, err := json.Marshal(details); err == nil {
			entry.Details = string(b)
		}
	}
	s.audit.Log(ctx, entry)
}

func validateIdentity(platform domain.Platform, platformID string) error {
	if !platform.Valid() {
		return apperror.ErrInvalidParameters(fmt.Sprintf("unsupported platform %q", platform))
	}
	if strings.TrimSpace(platformID) == "" {
		return apperror.ErrInvalidParameters("platform_id is required")
	}
	return nil
}

// cipherError keeps cipher failures typed as CipherError whatever the
// implementation returned.
func cipherError(err error) error {
	if apperror.IsKind(err, apperror.KindCipherError) {
		return err
	}
	return apperror.ErrCipher(err)
}
