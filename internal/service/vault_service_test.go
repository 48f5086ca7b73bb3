package service

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"testing"

	"social-custody-gateway/internal/core/domain"
	"social-custody-gateway/internal/core/ports"
	"social-custody-gateway/internal/core/ports/mocks"
	"social-custody-gateway/internal/solana"
	"social-custody-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type vaultTestDeps struct {
	svc        ports.VaultService
	walletRepo *mocks.MockWalletRepository
	socialRepo *mocks.MockSocialAccountRepository
	audit      *mocks.MockAuditService
	cipher     *AESCipher
}

func setupVaultService(t *testing.T) *vaultTestDeps {
	ctrl := gomock.NewController(t)
	d := &vaultTestDeps{
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		socialRepo: mocks.NewMockSocialAccountRepository(ctrl),
		audit:      mocks.NewMockAuditService(ctrl),
		cipher:     newTestCipher(t),
	}
	d.svc = NewVaultService(d.walletRepo, d.socialRepo, d.cipher, d.audit, newTestLogger())
	return d
}

// custodialWallet builds a stored wallet whose secret is encrypted with c.
func custodialWallet(t *testing.T, c ports.Cipher) (*domain.Wallet, ed25519.PrivateKey) {
	t.Helper()
	key, err := solana.NewKeypair()
	require.NoError(t, err)
	envelope, err := c.Encrypt(key)
	require.NoError(t, err)
	return &domain.Wallet{
		ID:              uuid.New(),
		PublicKey:       solana.PublicKeyOf(key).String(),
		IsCustodial:     true,
		EncryptedSecret: &envelope,
	}, key
}

// ==================== CreateWallet ====================

func TestVaultService_CreateWallet_Success(t *testing.T) {
	d := setupVaultService(t)
	ctx := context.Background()
	label := "tips"

	var stored *domain.Wallet
	d.walletRepo.EXPECT().CreateWithBinding(ctx, gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, w *domain.Wallet, b *domain.SocialBinding) error {
			stored = w
			assert.Equal(t, w.ID, b.WalletID)
			assert.Equal(t, domain.PlatformTwitter, b.Platform)
			assert.Equal(t, "alice", b.PlatformID)
			return nil
		},
	)
	d.audit.EXPECT().Log(ctx, gomock.Any()).Do(func(_ context.Context, e *domain.AuditLog) {
		assert.Equal(t, domain.AuditActionCreateWallet, e.Action)
		assert.NotContains(t, e.Details, *stored.EncryptedSecret)
	})

	wallet, err := d.svc.CreateWallet(ctx, domain.PlatformTwitter, "alice", &label)
	require.NoError(t, err)
	require.Same(t, stored, wallet)

	assert.True(t, wallet.IsCustodial)
	assert.Equal(t, &label, wallet.Label)
	require.NotNil(t, wallet.EncryptedSecret)

	secret, err := d.cipher.Decrypt(*wallet.EncryptedSecret)
	require.NoError(t, err)
	require.Len(t, secret, ed25519.PrivateKeySize)
	assert.Equal(t, wallet.PublicKey, solana.PublicKeyOf(ed25519.PrivateKey(secret)).String())
}

func TestVaultService_CreateWallet_DuplicateBinding(t *testing.T) {
	d := setupVaultService(t)
	ctx := context.Background()

	d.walletRepo.EXPECT().CreateWithBinding(ctx, gomock.Any(), gomock.Any()).
		Return(fmt.Errorf("insert social account: %w", ports.ErrDuplicateBinding))

	wallet, err := d.svc.CreateWallet(ctx, domain.PlatformDiscord, "bob", nil)
	assert.Nil(t, wallet)
	assert.Equal(t, apperror.KindDuplicateBinding, apperror.KindOf(err))
}

func TestVaultService_CreateWallet_StorageError(t *testing.T) {
	d := setupVaultService(t)
	ctx := context.Background()

	d.walletRepo.EXPECT().CreateWithBinding(ctx, gomock.Any(), gomock.Any()).Return(fmt.Errorf("connection reset"))

	_, err := d.svc.CreateWallet(ctx, domain.PlatformDiscord, "bob", nil)
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))
}

func TestVaultService_CreateWallet_InvalidIdentity(t *testing.T) {
	d := setupVaultService(t)

	tests := []struct {
		name       string
		platform   domain.Platform
		platformID string
	}{
		{"unknown platform", domain.Platform("myspace"), "tom"},
		{"blank id", domain.PlatformTelegram, "  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.svc.CreateWallet(context.Background(), tt.platform, tt.platformID, nil)
			assert.Equal(t, apperror.KindInvalidParameters, apperror.KindOf(err))
		})
	}
}

func TestVaultService_CreateWallet_CipherFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	cipher := mocks.NewMockCipher(ctrl)
	svc := NewVaultService(mocks.NewMockWalletRepository(ctrl), mocks.NewMockSocialAccountRepository(ctrl), cipher, nil, newTestLogger())

	cipher.EXPECT().Encrypt(gomock.Any()).Return("", fmt.Errorf("entropy exhausted"))

	_, err := svc.CreateWallet(context.Background(), domain.PlatformTwitter, "alice", nil)
	assert.Equal(t, apperror.KindCipherError, apperror.KindOf(err))
}

// ==================== Lookup / link / unlink ====================

func TestVaultService_GetWalletForIdentity_Unbound(t *testing.T) {
	d := setupVaultService(t)
	ctx := context.Background()

	d.socialRepo.EXPECT().GetWallet(ctx, domain.PlatformTwitter, "nobody").Return(nil, nil)

	wallet, err := d.svc.GetWalletForIdentity(ctx, domain.PlatformTwitter, "nobody")
	assert.NoError(t, err)
	assert.Nil(t, wallet)
}

func TestVaultService_GetWalletByPublicKey_NotFound(t *testing.T) {
	d := setupVaultService(t)
	ctx := context.Background()

	d.walletRepo.EXPECT().GetByPublicKey(ctx, "missing").Return(nil, nil)

	_, err := d.svc.GetWalletByPublicKey(ctx, "missing")
	assert.Equal(t, apperror.KindWalletNotFound, apperror.KindOf(err))
}

func TestVaultService_LinkIdentity(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		d := setupVaultService(t)
		wallet, _ := custodialWallet(t, d.cipher)

		d.walletRepo.EXPECT().GetByPublicKey(ctx, wallet.PublicKey).Return(wallet, nil)
		d.socialRepo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
			func(_ context.Context, b *domain.SocialBinding) error {
				assert.Equal(t, wallet.ID, b.WalletID)
				assert.Equal(t, domain.PlatformTelegram, b.Platform)
				return nil
			},
		)
		d.audit.EXPECT().Log(ctx, gomock.Any())

		got, err := d.svc.LinkIdentity(ctx, domain.PlatformTelegram, "carol", wallet.PublicKey)
		require.NoError(t, err)
		assert.Equal(t, wallet.ID, got.ID)
	})

	t.Run("wallet not found", func(t *testing.T) {
		d := setupVaultService(t)
		d.walletRepo.EXPECT().GetByPublicKey(ctx, "ghost").Return(nil, nil)

		_, err := d.svc.LinkIdentity(ctx, domain.PlatformTelegram, "carol", "ghost")
		assert.Equal(t, apperror.KindWalletNotFound, apperror.KindOf(err))
	})

	t.Run("identity already bound", func(t *testing.T) {
		d := setupVaultService(t)
		wallet, _ := custodialWallet(t, d.cipher)

		d.walletRepo.EXPECT().GetByPublicKey(ctx, wallet.PublicKey).Return(wallet, nil)
		d.socialRepo.EXPECT().Create(ctx, gomock.Any()).Return(ports.ErrDuplicateBinding)

		_, err := d.svc.LinkIdentity(ctx, domain.PlatformTelegram, "carol", wallet.PublicKey)
		assert.Equal(t, apperror.KindDuplicateBinding, apperror.KindOf(err))
	})
}

func TestVaultService_UnlinkIdentity(t *testing.T) {
	ctx := context.Background()

	t.Run("removed", func(t *testing.T) {
		d := setupVaultService(t)
		d.socialRepo.EXPECT().Delete(ctx, domain.PlatformDiscord, "dave").Return(true, nil)
		d.audit.EXPECT().Log(ctx, gomock.Any())

		removed, err := d.svc.UnlinkIdentity(ctx, domain.PlatformDiscord, "dave")
		require.NoError(t, err)
		assert.True(t, removed)
	})

	t.Run("nothing bound", func(t *testing.T) {
		d := setupVaultService(t)
		d.socialRepo.EXPECT().Delete(ctx, domain.PlatformDiscord, "dave").Return(false, nil)

		removed, err := d.svc.UnlinkIdentity(ctx, domain.PlatformDiscord, "dave")
		require.NoError(t, err)
		assert.False(t, removed)
	})
}

// ==================== SignWithWallet ====================

func newTransferTx(t *testing.T, from solana.PublicKey) *solana.Transaction {
	t.Helper()
	to, err := solana.NewKeypair()
	require.NoError(t, err)
	tx, err := solana.NewTransaction(
		[]solana.Instruction{solana.SystemTransfer(from, solana.PublicKeyOf(to), 1000)},
		solana.Hash{1}, from,
	)
	require.NoError(t, err)
	return tx
}

func TestVaultService_SignWithWallet_Success(t *testing.T) {
	d := setupVaultService(t)
	ctx := context.Background()
	wallet, key := custodialWallet(t, d.cipher)
	from := solana.PublicKeyOf(key)

	d.walletRepo.EXPECT().GetByPublicKey(ctx, wallet.PublicKey).Return(wallet, nil)

	signed, err := d.svc.SignWithWallet(ctx, wallet.PublicKey, newTransferTx(t, from))
	require.NoError(t, err)
	require.NoError(t, signed.Verify())
	assert.False(t, signed.Signature().IsZero())
}

func TestVaultService_SignWithWallet_UnknownWallet(t *testing.T) {
	d := setupVaultService(t)
	ctx := context.Background()
	key, err := solana.NewKeypair()
	require.NoError(t, err)
	from := solana.PublicKeyOf(key)

	d.walletRepo.EXPECT().GetByPublicKey(ctx, from.String()).Return(nil, nil)

	tx := newTransferTx(t, from)
	signed, err := d.svc.SignWithWallet(ctx, from.String(), tx)
	assert.Nil(t, signed)
	assert.Equal(t, apperror.KindWalletNotFound, apperror.KindOf(err))
	assert.True(t, tx.Signature().IsZero())
}

func TestVaultService_SignWithWallet_WatchOnlyWallet(t *testing.T) {
	d := setupVaultService(t)
	ctx := context.Background()
	key, err := solana.NewKeypair()
	require.NoError(t, err)
	from := solana.PublicKeyOf(key)

	d.walletRepo.EXPECT().GetByPublicKey(ctx, from.String()).Return(&domain.Wallet{
		ID: uuid.New(), PublicKey: from.String(), IsCustodial: false,
	}, nil)

	_, err = d.svc.SignWithWallet(ctx, from.String(), newTransferTx(t, from))
	assert.Equal(t, apperror.KindWalletNotFound, apperror.KindOf(err))
}

func TestVaultService_SignWithWallet_NeverSignsWithForeignSecret(t *testing.T) {
	d := setupVaultService(t)
	ctx := context.Background()

	victim, victimKey := custodialWallet(t, d.cipher)
	other, _ := custodialWallet(t, d.cipher)
	// Record claims victim's address but holds another wallet's secret.
	swapped := *victim
	swapped.EncryptedSecret = other.EncryptedSecret

	d.walletRepo.EXPECT().GetByPublicKey(ctx, victim.PublicKey).Return(&swapped, nil)

	tx := newTransferTx(t, solana.PublicKeyOf(victimKey))
	_, err := d.svc.SignWithWallet(ctx, victim.PublicKey, tx)
	assert.Equal(t, apperror.KindCipherError, apperror.KindOf(err))
	assert.True(t, tx.Signature().IsZero())
}

func TestVaultService_SignWithWallet_UndecryptableSecret(t *testing.T) {
	d := setupVaultService(t)
	ctx := context.Background()

	foreign, err := NewAESCipher("a different master secret")
	require.NoError(t, err)
	wallet, key := custodialWallet(t, foreign)

	d.walletRepo.EXPECT().GetByPublicKey(ctx, wallet.PublicKey).Return(wallet, nil)

	_, err = d.svc.SignWithWallet(ctx, wallet.PublicKey, newTransferTx(t, solana.PublicKeyOf(key)))
	assert.Equal(t, apperror.KindCipherError, apperror.KindOf(err))
}

func TestVaultService_SignWithWallet_NotASigner(t *testing.T) {
	d := setupVaultService(t)
	ctx := context.Background()
	wallet, _ := custodialWallet(t, d.cipher)
	stranger, err := solana.NewKeypair()
	require.NoError(t, err)

	d.walletRepo.EXPECT().GetByPublicKey(ctx, wallet.PublicKey).Return(wallet, nil)

	_, err = d.svc.SignWithWallet(ctx, wallet.PublicKey, newTransferTx(t, solana.PublicKeyOf(stranger)))
	assert.Equal(t, apperror.KindInvalidParameters, apperror.KindOf(err))
}

func TestVaultService_SignWithWallet_NilTransaction(t *testing.T) {
	d := setupVaultService(t)

	_, err := d.svc.SignWithWallet(context.Background(), "pk", nil)
	assert.Equal(t, apperror.KindInvalidParameters, apperror.KindOf(err))
}

// ==================== ExportSecret ====================

func TestVaultService_ExportSecret(t *testing.T) {
	d := setupVaultService(t)
	ctx := context.Background()
	wallet, key := custodialWallet(t, d.cipher)

	d.walletRepo.EXPECT().GetByPublicKey(ctx, wallet.PublicKey).Return(wallet, nil)
	d.audit.EXPECT().Log(ctx, gomock.Any()).Do(func(_ context.Context, e *domain.AuditLog) {
		assert.Equal(t, domain.AuditActionExportSecret, e.Action)
		assert.Equal(t, &wallet.ID, e.WalletID)
	})

	secret, err := d.svc.ExportSecret(ctx, wallet.PublicKey)
	require.NoError(t, err)

	decoded, err := solana.PrivateKeyFromBase58(secret)
	require.NoError(t, err)
	assert.Equal(t, []byte(key), []byte(decoded))
}

func TestVaultService_ExportSecret_UnknownWallet(t *testing.T) {
	d := setupVaultService(t)
	ctx := context.Background()

	d.walletRepo.EXPECT().GetByPublicKey(ctx, "ghost").Return(nil, nil)

	secret, err := d.svc.ExportSecret(ctx, "ghost")
	assert.Empty(t, secret)
	assert.Equal(t, apperror.KindWalletNotFound, apperror.KindOf(err))
}
