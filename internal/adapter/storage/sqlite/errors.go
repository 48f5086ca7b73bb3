package sqlite

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"social-custody-gateway/internal/core/ports"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// duplicateError maps a UNIQUE violation to its repository sentinel, or
// returns nil. SQLite names the violated columns in the message, e.g.
// "UNIQUE constraint failed: social_accounts.platform, social_accounts.platform_id".
func duplicateError(err error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) || se.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return nil
	}
	msg := se.Error()
	switch {
	case strings.Contains(msg, "social_accounts.platform"):
		return ports.ErrDuplicateBinding
	case strings.Contains(msg, "wallets.public_key"):
		return ports.ErrDuplicatePublicKey
	case strings.Contains(msg, "transfers.signature"):
		return ports.ErrDuplicateSignature
	}
	return nil
}

// Timestamps are stored as fixed-width UTC text so ORDER BY sorts them.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{timeLayout, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
