// internal/errors/errors.go
package errors

import (
	"context"
	"errors"
	"net/http"

	"gorm.io/gorm"
)

// Domain error taxonomy. Services return these sentinels (possibly wrapped);
// the transport layer maps them to status codes with HTTPStatus.
var (
	// ErrDuplicateLike: the (liker, liked) pair already exists. Benign,
	// callers may treat it as a no-op.
	ErrDuplicateLike = errors.New("like already recorded")

	// ErrSelfLike: a fighter cannot like themselves.
	ErrSelfLike = errors.New("cannot like yourself")

	// ErrEmptyContent: message content is blank after trimming.
	ErrEmptyContent = errors.New("message content is empty")

	// ErrMatchNotFound: the match id is unknown to the caller.
	ErrMatchNotFound = errors.New("match not found")

	// ErrCounterpartMissing: the paired match record could not be located.
	// Partial-failure class, the caller's own side still updates.
	ErrCounterpartMissing = errors.New("counterpart match record missing")

	// ErrProfileNotFound: no profile stored for the user yet.
	ErrProfileNotFound = errors.New("profile not found")
)

// HTTPStatus converts domain and infra errors into an HTTP status code.
// Keeps the service layer clean by centralizing the mapping.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrDuplicateLike):
		return http.StatusConflict

	case errors.Is(err, ErrSelfLike), errors.Is(err, ErrEmptyContent):
		return http.StatusBadRequest

	case errors.Is(err, ErrMatchNotFound), errors.Is(err, ErrProfileNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound

	case errors.Is(err, ErrCounterpartMissing):
		// caller's half succeeded, reconciliation will heal the rest
		return http.StatusAccepted

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	case errors.Is(err, context.Canceled):
		return 499 // client closed request

	default:
		return http.StatusInternalServerError
	}
}

// Message returns the short, non-technical string surfaced to users.
// Internal errors never leak their cause.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDuplicateLike):
		return "you already liked this fighter"
	case errors.Is(err, ErrSelfLike):
		return "you cannot like yourself"
	case errors.Is(err, ErrEmptyContent):
		return "message cannot be empty"
	case errors.Is(err, ErrMatchNotFound):
		return "match not found"
	case errors.Is(err, ErrCounterpartMissing):
		return "match updated, opponent will sync shortly"
	case errors.Is(err, ErrProfileNotFound):
		return "no profile yet"
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "record not found"
	default:
		return "something went wrong, please retry"
	}
}

// Retryable reports whether the operation can be safely re-run. All writes
// in this core are idempotent or additive, so anything that is not a user
// input error qualifies.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrSelfLike), errors.Is(err, ErrEmptyContent):
		return false
	default:
		return true
	}
}
