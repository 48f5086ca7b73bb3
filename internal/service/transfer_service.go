package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"social-custody-gateway/internal/core/domain"
	"social-custody-gateway/internal/core/ports"
	"social-custody-gateway/internal/solana"
	"social-custody-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	defaultTransferListLimit = 20
	maxTransferListLimit     = 100
)

type transferService struct {
	ledger    ports.LedgerGateway
	vault     ports.VaultService
	transfers ports.TransferRepository
	audit     ports.AuditService
	log       zerolog.Logger
}

// NewTransferService creates the transfer executor. audit may be nil.
func NewTransferService(
	ledger ports.LedgerGateway,
	vault ports.VaultService,
	transfers ports.TransferRepository,
	audit ports.AuditService,
	log zerolog.Logger,
) ports.TransferService {
	return &transferService{
		ledger:    ledger,
		vault:     vault,
		transfers: transfers,
		audit:     audit,
		log:       log,
	}
}

// transferIntent is what gets recorded once the ledger accepts a transaction.
type transferIntent struct {
	sender    *domain.Wallet
	feePayer  solana.PublicKey
	recipient string
	amount    decimal.Decimal
	mint      *string
	ixs       []solana.Instruction
}

// TransferNative moves native units. Input is validated before the ledger is
// contacted.
func (s *transferService) TransferNative(ctx context.Context, fromPublicKey, toAddress string, amount decimal.Decimal) (*ports.TransferResult, error) {
	if !amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount("must be greater than zero")
	}
	to, err := solana.PublicKeyFromBase58(toAddress)
	if err != nil || to == solana.SystemProgramID {
		return nil, apperror.ErrInvalidAddress(toAddress)
	}
	from, err := solana.PublicKeyFromBase58(fromPublicKey)
	if err != nil {
		return nil, apperror.ErrInvalidAddress(fromPublicKey)
	}
	lamports, err := solana.ToBaseUnits(amount, domain.NativeDecimals)
	if err != nil {
		return nil, apperror.ErrInvalidAmount(err.Error())
	}

	sender, err := s.vault.GetWalletByPublicKey(ctx, fromPublicKey)
	if err != nil {
		return nil, err
	}

	return s.execute(ctx, transferIntent{
		sender:    sender,
		feePayer:  from,
		recipient: toAddress,
		amount:    amount,
		ixs:       []solana.Instruction{solana.SystemTransfer(from, to, lamports)},
	})
}

// TransferToken moves units of req.Mint between the holding accounts of the
// two owners. Holding accounts are never created here.
func (s *transferService) TransferToken(ctx context.Context, req ports.TokenTransferRequest) (*ports.TransferResult, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount("must be greater than zero")
	}
	to, err := solana.PublicKeyFromBase58(req.ToAddress)
	if err != nil {
		return nil, apperror.ErrInvalidAddress(req.ToAddress)
	}
	from, err := solana.PublicKeyFromBase58(req.FromPublicKey)
	if err != nil {
		return nil, apperror.ErrInvalidAddress(req.FromPublicKey)
	}
	mint, err := solana.PublicKeyFromBase58(req.Mint)
	if err != nil {
		return nil, apperror.ErrInvalidAddress(req.Mint)
	}
	units, err := solana.ToBaseUnits(req.Amount, req.Decimals)
	if err != nil {
		return nil, apperror.ErrInvalidAmount(err.Error())
	}

	sender, err := s.vault.GetWalletByPublicKey(ctx, req.FromPublicKey)
	if err != nil {
		return nil, err
	}

	source, err := s.holdingAccount(ctx, from, mint)
	if err != nil {
		return nil, err
	}
	destination, err := s.holdingAccount(ctx, to, mint)
	if err != nil {
		return nil, err
	}

	mintAddr := mint.String()
	return s.execute(ctx, transferIntent{
		sender:    sender,
		feePayer:  from,
		recipient: req.ToAddress,
		amount:    req.Amount,
		mint:      &mintAddr,
		ixs: []solana.Instruction{
			solana.TokenTransferChecked(source, mint, destination, from, units, req.Decimals),
		},
	})
}

// holdingAccount picks owner's token account for mint, preferring the
// associated token account when the ledger lists it.
func (s *transferService) holdingAccount(ctx context.Context, owner, mint solana.PublicKey) (solana.PublicKey, error) {
	accounts, err := s.ledger.GetHoldingAccountsByOwner(ctx, owner.String(), mint.String())
	if err != nil {
		return solana.PublicKey{}, rpcError("getTokenAccountsByOwner", err)
	}
	if len(accounts) == 0 {
		return solana.PublicKey{}, apperror.ErrTokenAccountMissing(owner.String(), mint.String())
	}

	if ata, err := solana.FindAssociatedTokenAddress(owner, mint); err == nil {
		for _, a := range accounts {
			if a == ata.String() {
				return ata, nil
			}
		}
	}

	first, err := solana.PublicKeyFromBase58(accounts[0])
	if err != nil {
		return solana.PublicKey{}, apperror.ErrRPC("getTokenAccountsByOwner", err)
	}
	return first, nil
}

func (s *transferService) execute(ctx context.Context, in transferIntent) (*ports.TransferResult, error) {
	hashStr, err := s.ledger.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, rpcError("getLatestBlockhash", err)
	}
	blockhash, err := solana.HashFromBase58(hashStr)
	if err != nil {
		return nil, apperror.ErrRPC("getLatestBlockhash", err)
	}

	tx, err := solana.NewTransaction(in.ixs, blockhash, in.feePayer)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("build transaction: %w", err))
	}

	signed, err := s.vault.SignWithWallet(ctx, in.sender.PublicKey, tx)
	if err != nil {
		return nil, err
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("encode transaction: %w", err))
	}

	signature, err := s.ledger.SubmitRawTransaction(ctx, raw)
	if err != nil {
		return nil, rpcError("sendTransaction", err)
	}

	record := &domain.TransferRecord{
		ID:               uuid.New(),
		Signature:        signature,
		SenderWalletID:   in.sender.ID,
		RecipientAddress: in.recipient,
		Amount:           in.amount.String(),
		AssetMint:        in.mint,
		Status:           domain.TransferStatusPending,
		CreatedAt:        time.Now().UTC(),
	}
	// The transaction is already on its way; a bookkeeping failure must not
	// hide the signature from the caller.
	if err := s.transfers.Create(ctx, record); err != nil && !errors.Is(err, ports.ErrDuplicateSignature) {
		s.log.Error().Err(err).Str("signature", signature).Msg("failed to record submitted transfer")
	}

	s.log.Info().
		Str("signature", signature).
		Str("from", in.sender.PublicKey).
		Str("to", in.recipient).
		Str("amount", in.amount.String()).
		Msg("transfer submitted")
	s.recordAudit(ctx, in, signature)

	// From here on the caller must learn the signature, or a retry could
	// submit the same payment twice.
	status, err := s.ledger.ConfirmTransaction(ctx, signature)
	if err != nil {
		return nil, apperror.WithNote(rpcError("confirmTransaction", err), "submitted as "+signature)
	}
	s.applyStatus(ctx, signature, status, nil)

	if status == domain.TransferStatusFailed {
		return nil, apperror.ErrRPC("confirmTransaction", fmt.Errorf("transaction %s failed on ledger", signature))
	}
	return &ports.TransferResult{Signature: signature, Status: status}, nil
}

// TransferToIdentity resolves both parties by social identity. A recipient
// without a wallet gets one, which is reported through WalletCreated.
func (s *transferService) TransferToIdentity(ctx context.Context, req ports.IdentityTransferRequest) (*ports.IdentityTransferResult, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount("must be greater than zero")
	}

	sender, err := s.vault.GetWalletForIdentity(ctx, req.Sender.Platform, req.Sender.PlatformID)
	if err != nil {
		return nil, err
	}
	if sender == nil {
		return nil, apperror.ErrWalletNotFound(req.Sender.String())
	}

	recipient, created, err := s.resolveRecipient(ctx, req.Recipient)
	if err != nil {
		return nil, err
	}
	if created {
		s.log.Info().
			Str("recipient", req.Recipient.String()).
			Str("wallet", recipient.PublicKey).
			Msg("provisioned wallet for transfer recipient")
	}

	var res *ports.TransferResult
	if req.Mint != nil {
		res, err = s.TransferToken(ctx, ports.TokenTransferRequest{
			FromPublicKey: sender.PublicKey,
			ToAddress:     recipient.PublicKey,
			Mint:          *req.Mint,
			Amount:        req.Amount,
			Decimals:      req.Decimals,
		})
	} else {
		res, err = s.TransferNative(ctx, sender.PublicKey, recipient.PublicKey, req.Amount)
	}
	if err != nil {
		if created {
			return nil, apperror.WithNote(err, fmt.Sprintf("wallet %s was created for %s", recipient.PublicKey, req.Recipient))
		}
		return nil, err
	}

	return &ports.IdentityTransferResult{
		TransferResult:   *res,
		RecipientAddress: recipient.PublicKey,
		WalletCreated:    created,
	}, nil
}

// resolveRecipient returns the identity's wallet, creating one if needed. A
// concurrent creation for the same identity loses on the unique constraint
// and reads the winner's wallet instead.
func (s *transferService) resolveRecipient(ctx context.Context, id domain.Identity) (*domain.Wallet, bool, error) {
	wallet, err := s.vault.GetWalletForIdentity(ctx, id.Platform, id.PlatformID)
	if err != nil {
		return nil, false, err
	}
	if wallet != nil {
		return wallet, false, nil
	}

	wallet, err = s.vault.CreateWallet(ctx, id.Platform, id.PlatformID, nil)
	if err == nil {
		return wallet, true, nil
	}
	if !apperror.IsKind(err, apperror.KindDuplicateBinding) {
		return nil, false, err
	}

	wallet, err = s.vault.GetWalletForIdentity(ctx, id.Platform, id.PlatformID)
	if err != nil {
		return nil, false, err
	}
	if wallet == nil {
		return nil, false, apperror.InternalError(fmt.Errorf("binding for %s vanished after duplicate insert", id))
	}
	return wallet, false, nil
}

// RefreshTransfer looks the signature up on the ledger and settles a pending
// record if the ledger has an outcome.
func (s *transferService) RefreshTransfer(ctx context.Context, signature string) (*domain.TransferRecord, *domain.TransactionInfo, error) {
	if _, err := solana.SignatureFromBase58(signature); err != nil {
		return nil, nil, apperror.ErrInvalidParameters(fmt.Sprintf("invalid signature %q", signature))
	}

	info, err := s.ledger.GetTransaction(ctx, signature)
	if err != nil {
		return nil, nil, rpcError("getTransaction", err)
	}

	record, err := s.transfers.GetBySignature(ctx, signature)
	if err != nil {
		return nil, nil, apperror.InternalError(err)
	}
	if record == nil || info == nil || !record.Status.CanTransitionTo(info.Status) {
		return record, info, nil
	}

	if s.applyStatus(ctx, signature, info.Status, info) {
		record, err = s.transfers.GetBySignature(ctx, signature)
		if err != nil {
			return nil, nil, apperror.InternalError(err)
		}
	}
	return record, info, nil
}

func (s *transferService) ListTransfers(ctx context.Context, walletID uuid.UUID, limit int) ([]domain.TransferRecord, error) {
	if limit <= 0 {
		limit = defaultTransferListLimit
	}
	if limit > maxTransferListLimit {
		limit = maxTransferListLimit
	}
	records, err := s.transfers.ListByWallet(ctx, walletID, limit)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return records, nil
}

// applyStatus moves a pending record to a terminal status. Failures are
// logged; the ledger remains the source of truth.
func (s *transferService) applyStatus(ctx context.Context, signature string, status domain.TransferStatus, info *domain.TransactionInfo) bool {
	if !domain.TransferStatusPending.CanTransitionTo(status) {
		return false
	}

	update := ports.TransferStatusUpdate{Status: status}
	if status == domain.TransferStatusConfirmed {
		now := time.Now().UTC()
		update.ConfirmedAt = &now
	}
	if info != nil {
		update.BlockTime = info.BlockTime
		fee := info.Fee
		update.Fee = &fee
	}

	changed, err := s.transfers.UpdateStatus(ctx, signature, update)
	if err != nil {
		s.log.Error().Err(err).Str("signature", signature).Msg("failed to update transfer status")
		return false
	}
	return changed
}

func (s *transferService) recordAudit(ctx context.Context, in transferIntent, signature string) {
	if s.audit == nil {
		return
	}
	details := map[string]any{
		"signature": signature,
		"to":        in.recipient,
		"amount":    in.amount.String(),
	}
	if in.mint != nil {
		details["mint"] = *in.mint
	}
	b, _ := json.Marshal(details)
	s.audit.Log(ctx, &domain.AuditLog{
		ID:        uuid.New(),
		WalletID:  &in.sender.ID,
		Action:    domain.AuditActionTransfer,
		Details:   string(b),
		CreatedAt: time.Now().UTC(),
	})
}

// rpcError keeps typed errors from the gateway and wraps everything else as
// RPCError.
func rpcError(op string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.ErrRPC(op, err)
}
