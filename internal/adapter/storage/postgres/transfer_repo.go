package postgres

import (
	"context"
	"errors"
	"fmt"

	"social-custody-gateway/internal/core/domain"
	"social-custody-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transferColumns = `id, signature, sender_wallet_id, recipient_address, amount, asset_mint,
	status, created_at, confirmed_at, block_time, fee`

// TransferRepo implements ports.TransferRepository.
type TransferRepo struct {
	pool Pool
}

var _ ports.TransferRepository = (*TransferRepo)(nil)

// NewTransferRepo creates a new TransferRepo.
func NewTransferRepo(pool Pool) *TransferRepo {
	return &TransferRepo{pool: pool}
}

// Create records a submitted transfer.
func (r *TransferRepo) Create(ctx context.Context, t *domain.TransferRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO transfers (`+transferColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.Signature, t.SenderWalletID, t.RecipientAddress, t.Amount, t.AssetMint,
		t.Status, t.CreatedAt, t.ConfirmedAt, t.BlockTime, feeParam(t.Fee),
	)
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return dup
		}
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

// GetBySignature returns nil when no transfer carries the signature.
func (r *TransferRepo) GetBySignature(ctx context.Context, signature string) (*domain.TransferRecord, error) {
	t, err := scanTransfer(r.pool.QueryRow(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE signature = $1`, signature))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transfer by signature: %w", err)
	}
	return t, nil
}

// UpdateStatus only touches rows that are still pending, so a settled
// transfer never changes again.
func (r *TransferRepo) UpdateStatus(ctx context.Context, signature string, u ports.TransferStatusUpdate) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE transfers
		SET status = $1,
			confirmed_at = COALESCE($2, confirmed_at),
			block_time = COALESCE($3, block_time),
			fee = COALESCE($4, fee)
		WHERE signature = $5 AND status = 'pending'`,
		u.Status, u.ConfirmedAt, u.BlockTime, feeParam(u.Fee), signature,
	)
	if err != nil {
		return false, fmt.Errorf("update transfer status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListByWallet returns the wallet's outgoing transfers, newest first.
func (r *TransferRepo) ListByWallet(ctx context.Context, walletID uuid.UUID, limit int) ([]domain.TransferRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+transferColumns+` FROM transfers
		WHERE sender_wallet_id = $1 ORDER BY created_at DESC LIMIT $2`,
		walletID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var records []domain.TransferRecord
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		records = append(records, *t)
	}
	return records, rows.Err()
}

func scanTransfer(row pgx.Row) (*domain.TransferRecord, error) {
	t := &domain.TransferRecord{}
	var fee *int64
	err := row.Scan(
		&t.ID, &t.Signature, &t.SenderWalletID, &t.RecipientAddress, &t.Amount, &t.AssetMint,
		&t.Status, &t.CreatedAt, &t.ConfirmedAt, &t.BlockTime, &fee,
	)
	if err != nil {
		return nil, err
	}
	if fee != nil {
		f := uint64(*fee)
		t.Fee = &f
	}
	return t, nil
}

// feeParam stores fees as BIGINT.
func feeParam(fee *uint64) *int64 {
	if fee == nil {
		return nil
	}
	f := int64(*fee)
	return &f
}
