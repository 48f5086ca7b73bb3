package postgres

import (
	"errors"

	"social-custody-gateway/internal/core/ports"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// Constraint names from the migrations.
const (
	constraintBinding   = "social_accounts_platform_identity_key"
	constraintPublicKey = "wallets_public_key_key"
	constraintSignature = "transfers_signature_key"
)

// duplicateError maps a unique violation to its repository sentinel. It
// returns nil for anything else.
func duplicateError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return nil
	}
	switch pgErr.ConstraintName {
	case constraintBinding:
		return ports.ErrDuplicateBinding
	case constraintPublicKey:
		return ports.ErrDuplicatePublicKey
	case constraintSignature:
		return ports.ErrDuplicateSignature
	}
	return nil
}
