package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Kind names a failure class. Kinds are stable and surface verbatim in the
// dispatcher's error envelope.
type Kind string

const (
	KindDuplicateBinding    Kind = "DuplicateBinding"
	KindWalletNotFound      Kind = "WalletNotFound"
	KindInvalidAddress      Kind = "InvalidAddress"
	KindInvalidAmount       Kind = "InvalidAmount"
	KindTokenAccountMissing Kind = "TokenAccountMissing"
	KindCipherError         Kind = "CipherError"
	KindUnknownOperation    Kind = "UnknownOperation"
	KindInvalidParameters   Kind = "InvalidParameters"
	KindTimedOut            Kind = "TimedOut"
	KindRPCError            Kind = "RPCError"
	KindInternal            Kind = "InternalError"
	KindUnauthorized        Kind = "Unauthorized"
	KindRateLimited         Kind = "RateLimited"
)

// AppError is a structured error carrying its failure kind and the HTTP status
// used when it escapes through the HTTP surface.
type AppError struct {
	Kind       Kind   `json:"kind"`
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	// Messages that already spell out the cause print it once.
	if e.Err != nil && !strings.Contains(e.Message, e.Err.Error()) {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(kind Kind, code string, message string, httpStatus int) *AppError {
	return &AppError{
		Kind:       kind,
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(kind Kind, code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Kind:       kind,
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// WithNote returns a copy of err's AppError with note appended to the
// message. Kind, code and cause are kept. Errors without an AppError are
// treated as internal.
func WithNote(err error, note string) *AppError {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = InternalError(err)
	}
	noted := *appErr
	noted.Message = fmt.Sprintf("%s (%s)", appErr.Message, note)
	return &noted
}

// KindOf returns the kind of the first AppError in err's chain, or
// KindInternal when err carries none.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// ---- Vault (VLT) ----

func ErrDuplicateBinding(platform, platformID string) *AppError {
	return New(KindDuplicateBinding, "VLT_001",
		fmt.Sprintf("identity %s:%s is already bound to a wallet", platform, platformID),
		http.StatusConflict)
}

func ErrWalletNotFound(ref string) *AppError {
	return New(KindWalletNotFound, "VLT_002", fmt.Sprintf("wallet not found: %s", ref), http.StatusNotFound)
}

func ErrCipher(err error) *AppError {
	return Wrap(KindCipherError, "VLT_003", "secret could not be encrypted or decrypted", http.StatusInternalServerError, err)
}

// ---- Transfers (TRF) ----

func ErrInvalidAddress(address string) *AppError {
	return New(KindInvalidAddress, "TRF_001", fmt.Sprintf("invalid account address: %q", address), http.StatusBadRequest)
}

func ErrInvalidAmount(reason string) *AppError {
	return New(KindInvalidAmount, "TRF_002", fmt.Sprintf("invalid amount: %s", reason), http.StatusBadRequest)
}

func ErrTokenAccountMissing(owner, mint string) *AppError {
	return New(KindTokenAccountMissing, "TRF_003",
		fmt.Sprintf("no token account for owner %s and mint %s", owner, mint),
		http.StatusUnprocessableEntity)
}

// ---- Ledger (LED) ----

// ErrRPC includes the cause in the message: ledger failures are reported to
// the caller as-is.
func ErrRPC(op string, err error) *AppError {
	return Wrap(KindRPCError, "LED_001", fmt.Sprintf("ledger call %s failed: %v", op, err), http.StatusBadGateway, err)
}

// ---- Dispatcher (DSP) ----

func ErrUnknownOperation(name string) *AppError {
	return New(KindUnknownOperation, "DSP_001", fmt.Sprintf("unknown operation %q", name), http.StatusNotFound)
}

func ErrInvalidParameters(message string) *AppError {
	return New(KindInvalidParameters, "DSP_002", message, http.StatusBadRequest)
}

func ErrTimedOut(operation string, after time.Duration) *AppError {
	return New(KindTimedOut, "DSP_003",
		fmt.Sprintf("operation %q did not finish within %s", operation, after),
		http.StatusGatewayTimeout)
}

// ---- Authentication & rate limiting ----

func ErrInvalidToken() *AppError {
	return New(KindUnauthorized, "AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrRateLimitExceeded() *AppError {
	return New(KindRateLimited, "RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(KindInternal, "SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
