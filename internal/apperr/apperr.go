// Package apperr holds the error taxonomy of the lifecycle engine.
// Services wrap these sentinels with context via fmt.Errorf("...: %w", ...)
// and callers match with errors.Is. Handlers translate them to response
// codes with Code and HTTPStatus.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrNotFound is returned when a policy, client or vehicle does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for malformed or contradictory terms,
	// e.g. coverage ending before it starts.
	ErrValidation = errors.New("validation failed")

	// ErrNoExpiredPolicy is returned when renewing a vehicle that has no
	// expired prior policy on file.
	ErrNoExpiredPolicy = errors.New("no expired policy for vehicle")

	// ErrActiveRenewalExists is returned when an active policy already
	// shares the policy number being renewed.
	ErrActiveRenewalExists = errors.New("active renewal already exists")

	// ErrAlreadyCanceled is returned when canceling a canceled policy.
	ErrAlreadyCanceled = errors.New("policy already canceled")

	// ErrForbidden is returned when the acting user neither owns the
	// policy nor holds an elevated role.
	ErrForbidden = errors.New("forbidden")

	// ErrPremiumLocked is returned on attempts to change the gross premium
	// once the ledger holds at least one entry.
	ErrPremiumLocked = errors.New("gross premium is locked")

	// ErrInsufficientBalance is returned when an ad-hoc refund exceeds the
	// ledger balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrRefundExceedsBalance is returned when a termination refund exceeds
	// the amount collected and not yet refunded.
	ErrRefundExceedsBalance = errors.New("refund exceeds balance")

	// ErrInvalidRefundAmount is returned for non-positive refund amounts.
	ErrInvalidRefundAmount = errors.New("invalid refund amount")

	// ErrStorageUnavailable is surfaced when the persistence layer has
	// exhausted its retries. The failed operation committed nothing.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrConflict is returned when a conditional status update lost a race
	// with a concurrent transition.
	ErrConflict = errors.New("concurrent status transition")
)

// Code maps an error to the stable code reported in error envelopes.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrNoExpiredPolicy):
		return "NO_EXPIRED_POLICY"
	case errors.Is(err, ErrActiveRenewalExists):
		return "ACTIVE_RENEWAL_EXISTS"
	case errors.Is(err, ErrAlreadyCanceled):
		return "ALREADY_CANCELED"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrPremiumLocked):
		return "PREMIUM_LOCKED"
	case errors.Is(err, ErrInsufficientBalance):
		return "INSUFFICIENT_BALANCE"
	case errors.Is(err, ErrRefundExceedsBalance):
		return "REFUND_EXCEEDS_BALANCE"
	case errors.Is(err, ErrInvalidRefundAmount):
		return "INVALID_REFUND_AMOUNT"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrStorageUnavailable):
		return "STORAGE_UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}

// HTTPStatus maps an error to the response status used by the handlers.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrAlreadyCanceled),
		errors.Is(err, ErrActiveRenewalExists),
		errors.Is(err, ErrPremiumLocked),
		errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrNoExpiredPolicy),
		errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrRefundExceedsBalance),
		errors.Is(err, ErrInvalidRefundAmount):
		return http.StatusBadRequest
	case errors.Is(err, ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
