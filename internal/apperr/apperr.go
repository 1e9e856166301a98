// Package apperr holds the error taxonomy shared by the ledger, escrow and
// state machine services. Callers classify with errors.Is or KindOf.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindInvalidState      Kind = "invalid_state"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindUnauthorized      Kind = "unauthorized"
	KindAlreadyFinalized  Kind = "already_finalized"
	KindValidation        Kind = "validation_error"
	KindInternal          Kind = "internal"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid state")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrAlreadyFinalized  = errors.New("already finalized")
	ErrValidation        = errors.New("validation error")
)

// Escrow coordinator failure modes.
var (
	ErrRequestNotFound = fmt.Errorf("%w: request", ErrNotFound)
	ErrNothingHeld     = fmt.Errorf("%w: nothing held in escrow", ErrInvalidState)
	ErrNoAcceptedOffer = fmt.Errorf("%w: no accepted offer", ErrInvalidState)
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrNotFound, KindNotFound},
	{ErrInsufficientFunds, KindInsufficientFunds},
	{ErrAlreadyFinalized, KindAlreadyFinalized},
	{ErrUnauthorized, KindUnauthorized},
	{ErrValidation, KindValidation},
	{ErrInvalidState, KindInvalidState},
}

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func InvalidState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func Unauthorized(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, fmt.Sprintf(format, args...))
}

func InsufficientFunds(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInsufficientFunds, fmt.Sprintf(format, args...))
}
