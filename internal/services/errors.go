package services

import (
	"errors"
	"net/http"

	"github.com/posi-ecosystem/fati-backend/internal/store"
)

var (
	ErrInvalidAmount         = errors.New("invalid FATI amount")
	ErrInsufficientBalance   = errors.New("insufficient FATI balance")
	ErrSelfTransfer          = errors.New("cannot transfer to the same account")
	ErrSelfReferral          = errors.New("cannot refer yourself")
	ErrInvalidCode           = errors.New("invalid referral code")
	ErrAlreadyReferred       = errors.New("account already has a referrer")
	ErrInvalidEntryType      = errors.New("invalid ledger entry type")
	ErrInvalidMetadata       = errors.New("invalid metadata")
	ErrSignatureVerification = errors.New("webhook signature verification failed")
	ErrInvalidEvent          = errors.New("malformed billing event")
	ErrRateLimited           = errors.New("transfer rate limit exceeded")
	ErrEmailTaken            = errors.New("email already exists")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrInvalidToken          = errors.New("invalid token")
	ErrIdempotencyMismatch   = errors.New("idempotency key reused for a different operation")

	ErrNotFound         = store.ErrNotFound
	ErrStoreUnavailable = store.ErrUnavailable
)

// ErrorKind is the machine-readable error class carried in API responses.
type ErrorKind string

const (
	KindInvalidAmount       ErrorKind = "INVALID_AMOUNT"
	KindInsufficientBalance ErrorKind = "INSUFFICIENT_BALANCE"
	KindSelfTransfer        ErrorKind = "SELF_TRANSFER"
	KindSelfReferral        ErrorKind = "SELF_REFERRAL"
	KindInvalidCode         ErrorKind = "INVALID_CODE"
	KindAlreadyReferred     ErrorKind = "ALREADY_REFERRED"
	KindNotFound            ErrorKind = "NOT_FOUND"
	KindSignatureFailed     ErrorKind = "SIGNATURE_VERIFICATION_FAILED"
	KindStoreUnavailable    ErrorKind = "STORE_UNAVAILABLE"
	KindConflict            ErrorKind = "CONFLICT"
	KindIdempotencyMismatch ErrorKind = "IDEMPOTENCY_MISMATCH"
	KindValidation          ErrorKind = "VALIDATION_FAILED"
	KindRateLimited         ErrorKind = "RATE_LIMITED"
	KindEmailTaken          ErrorKind = "EMAIL_TAKEN"
	KindUnauthorized        ErrorKind = "UNAUTHORIZED"
	KindInternal            ErrorKind = "INTERNAL"
)

var kindTable = []struct {
	err    error
	kind   ErrorKind
	status int
}{
	{ErrInvalidAmount, KindInvalidAmount, http.StatusBadRequest},
	{ErrInsufficientBalance, KindInsufficientBalance, http.StatusUnprocessableEntity},
	{ErrSelfTransfer, KindSelfTransfer, http.StatusBadRequest},
	{ErrSelfReferral, KindSelfReferral, http.StatusBadRequest},
	{ErrInvalidCode, KindInvalidCode, http.StatusNotFound},
	{ErrAlreadyReferred, KindAlreadyReferred, http.StatusConflict},
	{ErrInvalidEntryType, KindValidation, http.StatusBadRequest},
	{ErrInvalidMetadata, KindValidation, http.StatusBadRequest},
	{ErrInvalidEvent, KindValidation, http.StatusBadRequest},
	{ErrSignatureVerification, KindSignatureFailed, http.StatusBadRequest},
	{ErrRateLimited, KindRateLimited, http.StatusTooManyRequests},
	{ErrEmailTaken, KindEmailTaken, http.StatusConflict},
	{ErrInvalidCredentials, KindUnauthorized, http.StatusUnauthorized},
	{ErrInvalidToken, KindUnauthorized, http.StatusUnauthorized},
	{ErrIdempotencyMismatch, KindIdempotencyMismatch, http.StatusConflict},
	{store.ErrNotFound, KindNotFound, http.StatusNotFound},
	{store.ErrUnavailable, KindStoreUnavailable, http.StatusServiceUnavailable},
	{store.ErrConflict, KindConflict, http.StatusConflict},
}

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) ErrorKind {
	kind, _ := classify(err)
	return kind
}

// StatusOf returns the HTTP status matching err's kind.
func StatusOf(err error) int {
	_, status := classify(err)
	return status
}

func classify(err error) (ErrorKind, int) {
	for _, row := range kindTable {
		if errors.Is(err, row.err) {
			return row.kind, row.status
		}
	}
	return KindInternal, http.StatusInternalServerError
}

// IsRetryable reports whether a caller may retry the failed operation.
// Validation failures are terminal.
func IsRetryable(err error) bool {
	return errors.Is(err, store.ErrUnavailable) || errors.Is(err, store.ErrConflict)
}
