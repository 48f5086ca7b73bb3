package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"social-custody-gateway/internal/core/domain"
	"social-custody-gateway/internal/core/ports"

	"github.com/google/uuid"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const transferColumns = `id, signature, sender_wallet_id, recipient_address, amount, asset_mint,
	status, created_at, confirmed_at, block_time, fee`

// TransferRepo is the SQLite implementation of ports.TransferRepository.
type TransferRepo struct {
	db *DB
}

func NewTransferRepo(db *DB) *TransferRepo {
	return &TransferRepo{db: db}
}

func (r *TransferRepo) Create(ctx context.Context, t *domain.TransferRecord) error {
	_, err := r.db.Writer.ExecContext(ctx,
		`INSERT INTO transfers (`+transferColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.Signature, t.SenderWalletID.String(), t.RecipientAddress, t.Amount, t.AssetMint,
		string(t.Status), formatTime(t.CreatedAt), formatTimePtr(t.ConfirmedAt), t.BlockTime, feeParam(t.Fee),
	)
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return dup
		}
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

func (r *TransferRepo) GetBySignature(ctx context.Context, signature string) (*domain.TransferRecord, error) {
	rows, err := r.db.Reader.QueryContext(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE signature = ?`, signature)
	if err != nil {
		return nil, fmt.Errorf("get transfer by signature: %w", err)
	}
	records, err := scanTransfers(rows)
	if err != nil {
		return nil, fmt.Errorf("get transfer by signature: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// UpdateStatus only settles pending rows.
func (r *TransferRepo) UpdateStatus(ctx context.Context, signature string, u ports.TransferStatusUpdate) (bool, error) {
	res, err := r.db.Writer.ExecContext(ctx,
		`UPDATE transfers
		SET status = ?,
			confirmed_at = COALESCE(?, confirmed_at),
			block_time = COALESCE(?, block_time),
			fee = COALESCE(?, fee)
		WHERE signature = ? AND status = 'pending'`,
		string(u.Status), formatTimePtr(u.ConfirmedAt), u.BlockTime, feeParam(u.Fee), signature,
	)
	if err != nil {
		return false, fmt.Errorf("update transfer status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update transfer status: %w", err)
	}
	return n > 0, nil
}

func (r *TransferRepo) ListByWallet(ctx context.Context, walletID uuid.UUID, limit int) ([]domain.TransferRecord, error) {
	rows, err := r.db.Reader.QueryContext(ctx,
		`SELECT `+transferColumns+` FROM transfers
		WHERE sender_wallet_id = ? ORDER BY created_at DESC LIMIT ?`,
		walletID.String(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	records, err := scanTransfers(rows)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	return records, nil
}

func scanTransfers(rows *sql.Rows) ([]domain.TransferRecord, error) {
	defer rows.Close()

	var records []domain.TransferRecord
	for rows.Next() {
		var (
			t                  domain.TransferRecord
			id, sender, status string
			createdAt          string
			confirmedAt        sql.NullString
			blockTime, fee     sql.NullInt64
		)
		err := rows.Scan(&id, &t.Signature, &sender, &t.RecipientAddress, &t.Amount, &t.AssetMint,
			&status, &createdAt, &confirmedAt, &blockTime, &fee)
		if err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}

		t.Status = domain.TransferStatus(status)
		if t.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse transfer id: %w", err)
		}
		if t.SenderWalletID, err = uuid.Parse(sender); err != nil {
			return nil, fmt.Errorf("parse sender wallet id: %w", err)
		}
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if confirmedAt.Valid {
			ts, err := parseTime(confirmedAt.String)
			if err != nil {
				return nil, err
			}
			t.ConfirmedAt = &ts
		}
		if blockTime.Valid {
			bt := blockTime.Int64
			t.BlockTime = &bt
		}
		if fee.Valid {
			f := uint64(fee.Int64)
			t.Fee = &f
		}
		records = append(records, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfers: %w", err)
	}
	return records, nil
}

func feeParam(fee *uint64) *int64 {
	if fee == nil {
		return nil
	}
	f := int64(*fee)
	return &f
}

// AuditRepo is the SQLite implementation of ports.AuditRepository.
type AuditRepo struct {
	db *DB
}

func NewAuditRepo(db *DB) *AuditRepo {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	var walletID *string
	if log.WalletID != nil {
		id := log.WalletID.String()
		walletID = &id
	}
	_, err := r.db.Writer.ExecContext(ctx,
		`INSERT INTO audit_logs (id, wallet_id, action, platform, platform_id, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		log.ID.String(), walletID, string(log.Action), log.Platform, log.PlatformID,
		log.Details, formatTime(log.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
