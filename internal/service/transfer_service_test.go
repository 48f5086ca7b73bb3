package service

import (
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"fmt"
	"testing"
	"time"

	"social-custody-gateway/internal/core/domain"
	"social-custody-gateway/internal/core/ports"
	"social-custody-gateway/internal/core/ports/mocks"
	"social-custody-gateway/internal/solana"
	"social-custody-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testBlockhash = "4sGjMW1sUnHzSxGspuhpqLDx6wiyjNtZAMdL4VZHirAn"

type transferTestDeps struct {
	svc       ports.TransferService
	ledger    *mocks.MockLedgerGateway
	vault     *mocks.MockVaultService
	transfers *mocks.MockTransferRepository
}

func setupTransferService(t *testing.T) *transferTestDeps {
	ctrl := gomock.NewController(t)
	d := &transferTestDeps{
		ledger:    mocks.NewMockLedgerGateway(ctrl),
		vault:     mocks.NewMockVaultService(ctrl),
		transfers: mocks.NewMockTransferRepository(ctrl),
	}
	d.svc = NewTransferService(d.ledger, d.vault, d.transfers, nil, newTestLogger())
	return d
}

type testParty struct {
	key    ed25519.PrivateKey
	pub    solana.PublicKey
	wallet *domain.Wallet
}

func newParty(t *testing.T) testParty {
	t.Helper()
	key, err := solana.NewKeypair()
	require.NoError(t, err)
	pub := solana.PublicKeyOf(key)
	return testParty{
		key:    key,
		pub:    pub,
		wallet: &domain.Wallet{ID: uuid.New(), PublicKey: pub.String(), IsCustodial: true},
	}
}

// expectSign makes the vault mock sign with the party's real key.
func (d *transferTestDeps) expectSign(ctx context.Context, p testParty, inspect func(*solana.Transaction)) {
	d.vault.EXPECT().SignWithWallet(ctx, p.wallet.PublicKey, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, tx *solana.Transaction) (*solana.Transaction, error) {
			if inspect != nil {
				inspect(tx)
			}
			return tx, tx.Sign(p.key)
		},
	)
}

// expectSubmit checks the wire bytes are signed by the sender and returns the
// transaction id as the ledger would.
func (d *transferTestDeps) expectSubmit(ctx context.Context, t *testing.T, p testParty) {
	d.ledger.EXPECT().SubmitRawTransaction(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, raw []byte) (string, error) {
			require.Equal(t, byte(1), raw[0])
			var sig solana.Signature
			copy(sig[:], raw[1:65])
			assert.True(t, ed25519.Verify(p.pub[:], raw[65:], sig[:]))
			return sig.String(), nil
		},
	)
}

// ==================== TransferNative ====================

func TestTransferService_TransferNative_RejectsNonPositiveAmount(t *testing.T) {
	d := setupTransferService(t)
	sender := newParty(t)
	recipient := newParty(t)

	for _, amount := range []string{"0", "-1", "-0.000000001"} {
		t.Run(amount, func(t *testing.T) {
			// No mock expectations: any gateway or vault call fails the test.
			_, err := d.svc.TransferNative(context.Background(), sender.wallet.PublicKey, recipient.wallet.PublicKey, decimal.RequireFromString(amount))
			assert.Equal(t, apperror.KindInvalidAmount, apperror.KindOf(err))
		})
	}
}

func TestTransferService_TransferNative_InvalidInput(t *testing.T) {
	d := setupTransferService(t)
	sender := newParty(t)

	tests := []struct {
		name   string
		to     string
		amount string
		kind   apperror.Kind
	}{
		{"bad recipient", "not-an-address", "1", apperror.KindInvalidAddress},
		{"empty recipient", "", "1", apperror.KindInvalidAddress},
		{"sub-lamport amount", newParty(t).wallet.PublicKey, "0.0000000001", apperror.KindInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.svc.TransferNative(context.Background(), sender.wallet.PublicKey, tt.to, decimal.RequireFromString(tt.amount))
			assert.Equal(t, tt.kind, apperror.KindOf(err))
		})
	}
}

func TestTransferService_TransferNative_Success(t *testing.T) {
	d := setupTransferService(t)
	ctx := context.Background()
	sender := newParty(t)
	recipient := newParty(t)

	d.vault.EXPECT().GetWalletByPublicKey(ctx, sender.wallet.PublicKey).Return(sender.wallet, nil)
	d.ledger.EXPECT().GetLatestBlockhash(ctx).Return(testBlockhash, nil)
	d.expectSign(ctx, sender, func(tx *solana.Transaction) {
		assert.Equal(t, testBlockhash, tx.Message.RecentBlockhash.String())
		assert.Equal(t, sender.pub, tx.Message.FeePayer())
		require.Len(t, tx.Message.Instructions, 1)
		data := tx.Message.Instructions[0].Data
		assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(data[:4]))
		assert.Equal(t, uint64(1_500_000_000), binary.LittleEndian.Uint64(data[4:]))
	})
	d.expectSubmit(ctx, t, sender)

	var signature string
	d.transfers.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, r *domain.TransferRecord) error {
			signature = r.Signature
			assert.Equal(t, domain.TransferStatusPending, r.Status)
			assert.Equal(t, sender.wallet.ID, r.SenderWalletID)
			assert.Equal(t, recipient.wallet.PublicKey, r.RecipientAddress)
			assert.Equal(t, "1.5", r.Amount)
			assert.Nil(t, r.AssetMint)
			return nil
		},
	)
	d.ledger.EXPECT().ConfirmTransaction(ctx, gomock.Any()).Return(domain.TransferStatusConfirmed, nil)
	d.transfers.EXPECT().UpdateStatus(ctx, gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, sig string, u ports.TransferStatusUpdate) (bool, error) {
			assert.Equal(t, signature, sig)
			assert.Equal(t, domain.TransferStatusConfirmed, u.Status)
			assert.NotNil(t, u.ConfirmedAt)
			return true, nil
		},
	)

	res, err := d.svc.TransferNative(ctx, sender.wallet.PublicKey, recipient.wallet.PublicKey, decimal.RequireFromString("1.5"))
	require.NoError(t, err)
	assert.Equal(t, signature, res.Signature)
	assert.Equal(t, domain.TransferStatusConfirmed, res.Status)
}

func TestTransferService_TransferNative_UnknownSender(t *testing.T) {
	d := setupTransferService(t)
	ctx := context.Background()
	sender := newParty(t)

	d.vault.EXPECT().GetWalletByPublicKey(ctx, sender.wallet.PublicKey).Return(nil, apperror.ErrWalletNotFound(sender.wallet.PublicKey))

	_, err := d.svc.TransferNative(ctx, sender.wallet.PublicKey, newParty(t).wallet.PublicKey, decimal.NewFromInt(1))
	assert.Equal(t, apperror.KindWalletNotFound, apperror.KindOf(err))
}

func TestTransferService_TransferNative_SubmitFailureIsNotRetried(t *testing.T) {
	d := setupTransferService(t)
	ctx := context.Background()
	sender := newParty(t)

	d.vault.EXPECT().GetWalletByPublicKey(ctx, sender.wallet.PublicKey).Return(sender.wallet, nil)
	d.ledger.EXPECT().GetLatestBlockhash(ctx).Return(testBlockhash, nil)
	d.expectSign(ctx, sender, nil)
	d.ledger.EXPECT().SubmitRawTransaction(ctx, gomock.Any()).Return("", fmt.Errorf("node is behind")).Times(1)

	_, err := d.svc.TransferNative(ctx, sender.wallet.PublicKey, newParty(t).wallet.PublicKey, decimal.NewFromInt(1))
	assert.Equal(t, apperror.KindRPCError, apperror.KindOf(err))
	assert.Contains(t, err.Error(), "node is behind")
}

func TestTransferService_TransferNative_BlockhashFailure(t *testing.T) {
	d := setupTransferService(t)
	ctx := context.Background()
	sender := newParty(t)

	d.vault.EXPECT().GetWalletByPublicKey(ctx, sender.wallet.PublicKey).Return(sender.wallet, nil)
	d.ledger.EXPECT().GetLatestBlockhash(ctx).Return("", fmt.Errorf("timeout"))

	_, err := d.svc.TransferNative(ctx, sender.wallet.PublicKey, newParty(t).wallet.PublicKey, decimal.NewFromInt(1))
	assert.Equal(t, apperror.KindRPCError, apperror.KindOf(err))
}

func TestTransferService_TransferNative_FailedOnLedger(t *testing.T) {
	d := setupTransferService(t)
	ctx := context.Background()
	sender := newParty(t)

	d.vault.EXPECT().GetWalletByPublicKey(ctx, sender.wallet.PublicKey).Return(sender.wallet, nil)
	d.ledger.EXPECT().GetLatestBlockhash(ctx).Return(testBlockhash, nil)
	d.expectSign(ctx, sender, nil)
	d.expectSubmit(ctx, t, sender)
	d.transfers.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	d.ledger.EXPECT().ConfirmTransaction(ctx, gomock.Any()).Return(domain.TransferStatusFailed, nil)
	d.transfers.EXPECT().UpdateStatus(ctx, gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, u ports.TransferStatusUpdate) (bool, error) {
			assert.Equal(t, domain.TransferStatusFailed, u.Status)
			assert.Nil(t, u.ConfirmedAt)
			return true, nil
		},
	)

	_, err := d.svc.TransferNative(ctx, sender.wallet.PublicKey, newParty(t).wallet.PublicKey, decimal.NewFromInt(1))
	assert.Equal(t, apperror.KindRPCError, apperror.KindOf(err))
}

func TestTransferService_TransferNative_ConfirmTimeoutReportsSignature(t *testing.T) {
	d := setupTransferService(t)
	ctx := context.Background()
	sender := newParty(t)

	var submitted string
	d.vault.EXPECT().GetWalletByPublicKey(ctx, sender.wallet.PublicKey).Return(sender.wallet, nil)
	d.ledger.EXPECT().GetLatestBlockhash(ctx).Return(testBlockhash, nil)
	d.expectSign(ctx, sender, nil)
	d.expectSubmit(ctx, t, sender)
	d.transfers.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	d.ledger.EXPECT().ConfirmTransaction(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, signature string) (domain.TransferStatus, error) {
			submitted = signature
			return "", apperror.ErrTimedOut("confirmTransaction", time.Minute)
		},
	)

	_, err := d.svc.TransferNative(ctx, sender.wallet.PublicKey, newParty(t).wallet.PublicKey, decimal.NewFromInt(1))
	require.Error(t, err)
	require.NotEmpty(t, submitted)
	assert.Equal(t, apperror.KindTimedOut, apperror.KindOf(err))
	assert.Contains(t, err.Error(), submitted)
}

func TestTransferService_TransferNative_ConfirmFailureReportsSignature(t *testing.T) {
	d := setupTransferService(t)
	ctx := context.Background()
	sender := newParty(t)

	var submitted string
	d.vault.EXPECT().GetWalletByPublicKey(ctx, sender.wallet.PublicKey).Return(sender.wallet, nil)
	d.ledger.EXPECT().GetLatestBlockhash(ctx).Return(testBlockhash, nil)
	d.expectSign(ctx, sender, nil)
	d.expectSubmit(ctx, t, sender)
	d.transfers.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	d.ledger.EXPECT().ConfirmTransaction(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, signature string) (domain.TransferStatus, error) {
			submitted = signature
			return "", fmt.Errorf("connection reset")
		},
	)

	_, err := d.svc.TransferNative(ctx, sender.wallet.PublicKey, newParty(t).wallet.PublicKey, decimal.NewFromInt(1))
	require.Error(t, err)
	assert.Equal(t, apperror.KindRPCError, apperror.KindOf(err))
	assert.Contains(t, err.Error(), "connection reset")
	assert.Contains(t, err.Error(), submitted)
}

func TestTransferService_TransferNative_RejectsSystemProgramRecipient(t *testing.T) {
	d := setupTransferService(t)
	sender := newParty(t)

	// No mock expectations: the ledger must not be contacted.
	_, err := d.svc.TransferNative(context.Background(), sender.wallet.PublicKey, solana.SystemProgramID.String(), decimal.NewFromInt(1))
	assert.Equal(t, apperror.KindInvalidAddress, apperror.KindOf(err))
}

func TestTransferService_TransferNative_RecordFailureKeepsSignature(t *testing.T) {
	d := setupTransferService(t)
	ctx := context.Background()
	sender := newParty(t)

	d.vault.EXPECT().GetWalletByPublicKey(ctx, sender.wallet.PublicKey).Return(sender.wallet, nil)
	d.ledger.EXPECT().GetLatestBlockhash(ctx).Return(testBlockhash, nil)
	d.expectSign(ctx, sender, nil)
	d.expectSubmit(ctx, t, sender)
	d.transfers.EXPECT().Create(ctx, gomock.Any()).Return(fmt.Errorf("disk full"))
	d.ledger.EXPECT().ConfirmTransaction(ctx, gomock.Any()).Return(domain.TransferStatusConfirmed, nil)
	d.transfers.EXPECT().UpdateStatus(ctx, gomock.Any(), gomock.Any()).Return(false, nil)

	res, err := d.svc.TransferNative(ctx, sender.wallet.PublicKey, newParty(t).wallet.PublicKey, decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Signature)
}

// ==================== TransferToken ====================

func TestTransferService_TransferToken_PrefersAssociatedAccount(t *testing.T) {
	d := setupTransferService(t)
	ctx := context.Background()
	sender := newParty(t)
	recipient := newParty(t)
	mint := newParty(t).pub

	senderATA, err := solana.FindAssociatedTokenAddress(sender.pub, mint)
	require.NoError(t, err)
	recipientAux := newParty(t).pub

	d.vault.EXPECT().GetWalletByPublicKey(ctx, sender.wallet.PublicKey).Return(sender.wallet, nil)
	d.ledger.EXPECT().GetHoldingAccountsByOwner(ctx, sender.pub.String(), mint.String()).
		Return([]string{newParty(t).pub.String(), senderATA.String()}, nil)
	d.ledger.EXPECT().GetHoldingAccountsByOwner(ctx, recipient.pub.String(), mint.String()).
		Return([]string{recipientAux.String()}, nil)
	d.ledger.EXPECT().GetLatestBlockhash(ctx).Return(testBlockhash, nil)
	d.expectSign(ctx, sender, func(tx *solana.Transaction) {
		m := tx.Message
		require.Len(t, m.Instructions, 1)
		ix := m.Instructions[0]
		assert.Equal(t, solana.TokenProgramID, m.AccountKeys[ix.ProgramIDIndex])
		assert.Equal(t, byte(12), ix.Data[0])
		assert.Equal(t, uint64(2_500_000), binary.LittleEndian.Uint64(ix.Data[1:9]))
		assert.Equal(t, byte(6), ix.Data[9])
		require.Len(t, ix.Accounts, 4)
		assert.Equal(t, senderATA, m.AccountKeys[ix.Accounts[0]])
		assert.Equal(t, mint, m.AccountKeys[ix.Accounts[1]])
		assert.Equal(t, recipientAux, m.AccountKeys[ix.Accounts[2]])
		assert.Equal(t, sender.pub, m.AccountKeys[ix.Accounts[3]])
	})
	d.expectSubmit(ctx, t, sender)
	d.transfers.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, r *domain.TransferRecord) error {
			require.NotNil(t, r.AssetMint)
			assert.Equal(t, mint.String(), *r.AssetMint)
			assert.Equal(t, "2.5", r.Amount)
			return nil
		},
	)
	d.ledger.EXPECT().ConfirmTransaction(ctx, gomock.Any()).Return(domain.TransferStatusConfirmed, nil)
	d.transfers.EXPECT().UpdateStatus(ctx, gomock.Any(), gomock.Any()).Return(true, nil)

	res, err := d.svc.TransferToken(ctx, ports.TokenTransferRequest{
		FromPublicKey: sender.wallet.PublicKey,
		ToAddress:     recipient.wallet.PublicKey,
		Mint:          mint.String(),
		Amount:        decimal.RequireFromString("2.5"),
		Decimals:      6,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusConfirmed, res.Status)
}

func TestTransferService_TransferToken_MissingHoldingAccount(t *testing.T) {
	d := setupTransferService(t)
	ctx := context.Background()
	sender := newParty(t)
	recipient := newParty(t)
	mint := newParty(t).pub

	d.vault.EXPECT().GetWalletByPublicKey(ctx, sender.wallet.PublicKey).Return(sender.wallet, nil)
	d.ledger.EXPECT().GetHoldingAccountsByOwner(ctx, sender.pub.String(), mint.String()).
		Return([]string{newParty(t).pub.String()}, nil)
	d.ledger.EXPECT().GetHoldingAccountsByOwner(ctx, recipient.pub.String(), mint.String()).Return(nil, nil)

	_, err := d.svc.TransferToken(ctx, ports.TokenTransferRequest{
		FromPublicKey: sender.wallet.PublicKey,
		ToAddress:     recipient.wallet.PublicKey,
		Mint:          mint.String(),
		Amount:        decimal.NewFromInt(1),
		Decimals:      6,
	})
	assert.Equal(t, apperror.KindTokenAccountMissing, apperror.KindOf(err))
}

func TestTransferService_TransferToken_InvalidMint(t *testing.T) {
	d := setupTransferService(t)

	_, err := d.svc.TransferToken(context.Background(), ports.TokenTransferRequest{
		FromPublicKey: newParty(t).wallet.PublicKey,
		ToAddress:     newParty(t).wallet.PublicKey,
		Mint:          "bogus",
		Amount:        decimal.NewFromInt(1),
		Decimals:      6,
	})
	assert.Equal(t, apperror.KindInvalidAddress, apperror.KindOf(err))
}

// ==================== TransferToIdentity ====================

// expectNativeTransfer wires a successful native transfer from sender.
func (d *transferTestDeps) expectNativeTransfer(ctx context.Context, t *testing.T, sender testParty) {
	d.vault.EXPECT().GetWalletByPublicKey(ctx, sender.wallet.PublicKey).Return(sender.wallet, nil)
	d.ledger.EXPECT().GetLatestBlockhash(ctx).Return(testBlockhash, nil)
	d.expectSign(ctx, sender, nil)
	d.expectSubmit(ctx, t, sender)
	d.transfers.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	d.ledger.EXPECT().ConfirmTransaction(ctx, gomock.Any()).Return(domain.TransferStatusConfirmed, nil)
	d.transfers.EXPECT().UpdateStatus(ctx, gomock.Any(), gomock.Any()).Return(true, nil)
}

func TestTransferService_TransferToIdentity_CreatesRecipientWallet(t *testing.T) {
	d := setupTransferService(t)
	ctx := context.Background()
	alice := newParty(t)
	bob := newParty(t)

	d.vault.EXPECT().GetWalletForIdentity(ctx, domain.PlatformTwitter, "alice").Return(alice.wallet, nil)
	d.vault.EXPECT().GetWalletForIdentity(ctx, domain.PlatformTwitter, "bob").Return(nil, nil)
	d.vault.EXPECT().CreateWallet(ctx, domain.PlatformTwitter, "bob", nil).Return(bob.wallet, nil)
	d.expectNativeTransfer(ctx, t, alice)

	res, err := d.svc.TransferToIdentity(ctx, ports.IdentityTransferRequest{
		Sender:    domain.Identity{Platform: domain.PlatformTwitter, PlatformID: "alice"},
		Recipient: domain.Identity{Platform: domain.PlatformTwitter, PlatformID: "bob"},
		Amount:    decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	assert.True(t, res.WalletCreated)
	assert.Equal(t, bob.wallet.PublicKey, res.RecipientAddress)
	assert.NotEmpty(t, res.Signature)
}

func TestTransferService_TransferToIdentity_ExistingRecipient(t *testing.T) {
	d := setupTransferService(t)
	ctx := context.Background()
	alice := newParty(t)
	bob := newParty(t)

	d.vault.EXPECT().GetWalletForIdentity(ctx, domain.PlatformTwitter, "alice").Return(alice.wallet, nil)
	d.vault.EXPECT().GetWalletForIdentity(ctx, domain.PlatformDiscord, "bob").Return(bob.wallet, nil)
	d.expectNativeTransfer(ctx, t, alice)

	res, err := d.svc.TransferToIdentity(ctx, ports.IdentityTransferRequest{
		Sender:    domain.Identity{Platform: domain.PlatformTwitter, PlatformID: "alice"},
		Recipient: domain.Identity{Platform: domain.PlatformDiscord, PlatformID: "bob"},
		Amount:    decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	assert.False(t, res.WalletCreated)
	assert.Equal(t, bob.wallet.PublicKey, res.RecipientAddress)
}

func TestTransferService_TransferToIdentity_ConcurrentProvisioning(t *testing.T) {
	d := setupTransferService(t)
	ctx := context.Background()
	alice := newParty(t)
	bob := newParty(t)

	d.vault.EXPECT().GetWalletForIdentity(ctx, domain.PlatformTwitter, "alice").Return(alice.wallet, nil)
	gomock.InOrder(
		d.vault.EXPECT().GetWalletForIdentity(ctx, domain.PlatformTwitter, "bob").Return(nil, nil),
		d.vault.EXPECT().CreateWallet(ctx, domain.PlatformTwitter, "bob", nil).
			Return(nil, apperror.ErrDuplicateBinding("twitter", "bob")),
		d.vault.EXPECT().GetWalletForIdentity(ctx, domain.PlatformTwitter, "bob").Return(bob.wallet, nil),
	)
	d.expectNativeTransfer(ctx, t, alice)

	res, err := d.svc.TransferToIdentity(ctx, ports.IdentityTransferRequest{
		Sender:    domain.Identity{Platform: domain.PlatformTwitter, PlatformID: "alice"},
		Recipient: domain.Identity{Platform: domain.PlatformTwitter, PlatformID: "bob"},
		Amount:    decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	assert.False(t, res.WalletCreated)
	assert.Equal(t, bob.wallet.PublicKey, res.RecipientAddress)
}

func TestTransferService_TransferToIdentity_FailureAfterProvisioningReportsWallet(t *testing.T) {
	d := setupTransferService(t)
	ctx := context.Background()
	alice := newParty(t)
	bob := newParty(t)

	d.vault.EXPECT().GetWalletForIdentity(ctx, domain.PlatformTwitter, "alice").Return(alice.wallet, nil)
	d.vault.EXPECT().GetWalletForIdentity(ctx, domain.PlatformDiscord, "bob").Return(nil, nil)
	d.vault.EXPECT().CreateWallet(ctx, domain.PlatformDiscord, "bob", nil).Return(bob.wallet, nil)
	d.vault.EXPECT().GetWalletByPublicKey(ctx, alice.wallet.PublicKey).Return(alice.wallet, nil)
	d.ledger.EXPECT().GetLatestBlockhash(ctx).Return("", fmt.Errorf("node down"))

	res, err := d.svc.TransferToIdentity(ctx, ports.IdentityTransferRequest{
		Sender:    domain.Identity{Platform: domain.PlatformTwitter, PlatformID: "alice"},
		Recipient: domain.Identity{Platform: domain.PlatformDiscord, PlatformID: "bob"},
		Amount:    decimal.NewFromInt(1),
	})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, apperror.KindRPCError, apperror.KindOf(err))
	assert.Contains(t, err.Error(), "node down")
	assert.Contains(t, err.Error(), bob.wallet.PublicKey)
	assert.Contains(t, err.Error(), "was created for discord:bob")
}

func TestTransferService_TransferToIdentity_FailureWithExistingRecipientUnchanged(t *testing.T) {
	d := setupTransferService(t)
	ctx := context.Background()
	alice := newParty(t)
	bob := newParty(t)

	d.vault.EXPECT().GetWalletForIdentity(ctx, domain.PlatformTwitter, "alice").Return(alice.wallet, nil)
	d.vault.EXPECT().GetWalletForIdentity(ctx, domain.PlatformDiscord, "bob").Return(bob.wallet, nil)
	d.vault.EXPECT().GetWalletByPublicKey(ctx, alice.wallet.PublicKey).Return(alice.wallet, nil)
	d.ledger.EXPECT().GetLatestBlockhash(ctx).Return("", fmt.Errorf("node down"))

	_, err := d.svc.TransferToIdentity(ctx, ports.IdentityTransferRequest{
		Sender:    domain.Identity{Platform: domain.PlatformTwitter, PlatformID: "alice"},
		Recipient: domain.Identity{Platform: domain.PlatformDiscord, PlatformID: "bob"},
		Amount:    decimal.NewFromInt(1),
	})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "was created")
}

func TestTransferService_TransferToIdentity_SenderWithoutWallet(t *testing.T) {
	d := setupTransferService(t)
	ctx := context.Background()

	d.vault.EXPECT().GetWalletForIdentity(ctx, domain.PlatformTwitter, "alice").Return(nil, nil)

	_, err := d.svc.TransferToIdentity(ctx, ports.IdentityTransferRequest{
		Sender:    domain.Identity{Platform: domain.PlatformTwitter, PlatformID: "alice"},
		Recipient: domain.Identity{Platform: domain.PlatformTwitter, PlatformID: "bob"},
		Amount:    decimal.NewFromInt(1),
	})
	assert.Equal(t, apperror.KindWalletNotFound, apperror.KindOf(err))
}

func TestTransferService_TransferToIdentity_ZeroAmount(t *testing.T) {
	d := setupTransferService(t)

	_, err := d.svc.TransferToIdentity(context.Background(), ports.IdentityTransferRequest{
		Sender:    domain.Identity{Platform: domain.PlatformTwitter, PlatformID: "alice"},
		Recipient: domain.Identity{Platform: domain.PlatformTwitter, PlatformID: "bob"},
		Amount:    decimal.Zero,
	})
	assert.Equal(t, apperror.KindInvalidAmount, apperror.KindOf(err))
}

// ==================== RefreshTransfer / ListTransfers ====================

func TestTransferService_RefreshTransfer_SettlesPendingRecord(t *testing.T) {
	d := setupTransferService(t)
	ctx := context.Background()
	sig := solana.Signature{9}.String()
	blockTime := int64(1_700_000_000)

	info := &domain.TransactionInfo{Signature: sig, Status: domain.TransferStatusConfirmed, BlockTime: &blockTime, Fee: 5000}
	pending := &domain.TransferRecord{Signature: sig, Status: domain.TransferStatusPending}
	confirmed := &domain.TransferRecord{Signature: sig, Status: domain.TransferStatusConfirmed, BlockTime: &blockTime}

	d.ledger.EXPECT().GetTransaction(ctx, sig).Return(info, nil)
	gomock.InOrder(
		d.transfers.EXPECT().GetBySignature(ctx, sig).Return(pending, nil),
		d.transfers.EXPECT().UpdateStatus(ctx, sig, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ string, u ports.TransferStatusUpdate) (bool, error) {
				assert.Equal(t, &blockTime, u.BlockTime)
				require.NotNil(t, u.Fee)
				assert.Equal(t, uint64(5000), *u.Fee)
				return true, nil
			},
		),
		d.transfers.EXPECT().GetBySignature(ctx, sig).Return(confirmed, nil),
	)

	record, got, err := d.svc.RefreshTransfer(ctx, sig)
	require.NoError(t, err)
	assert.Equal(t, info, got)
	assert.Equal(t, domain.TransferStatusConfirmed, record.Status)
}

func TestTransferService_RefreshTransfer_TerminalRecordUntouched(t *testing.T) {
	d := setupTransferService(t)
	ctx := context.Background()
	sig := solana.Signature{9}.String()

	d.ledger.EXPECT().GetTransaction(ctx, sig).Return(&domain.TransactionInfo{Status: domain.TransferStatusFailed}, nil)
	d.transfers.EXPECT().GetBySignature(ctx, sig).Return(&domain.TransferRecord{Status: domain.TransferStatusConfirmed}, nil)

	record, _, err := d.svc.RefreshTransfer(ctx, sig)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusConfirmed, record.Status)
}

func TestTransferService_RefreshTransfer_InvalidSignature(t *testing.T) {
	d := setupTransferService(t)

	_, _, err := d.svc.RefreshTransfer(context.Background(), "xyz")
	assert.Equal(t, apperror.KindInvalidParameters, apperror.KindOf(err))
}

func TestTransferService_ListTransfers_ClampsLimit(t *testing.T) {
	d := setupTransferService(t)
	ctx := context.Background()
	walletID := uuid.New()

	d.transfers.EXPECT().ListByWallet(ctx, walletID, 20).Return(nil, nil)
	d.transfers.EXPECT().ListByWallet(ctx, walletID, 100).Return(nil, nil)

	_, err := d.svc.ListTransfers(ctx, walletID, 0)
	require.NoError(t, err)
	_, err = d.svc.ListTransfers(ctx, walletID, 5000)
	require.NoError(t, err)
}
