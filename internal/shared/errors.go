package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a referenced account or entity is missing.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates empty names/descriptions or unknown types.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidAmount indicates a non-finite or non-numeric amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrAuthentication indicates a wrong key or password.
	ErrAuthentication = errors.New("authentication failure")
	// ErrStorage indicates I/O, corruption or transaction failures.
	ErrStorage = errors.New("storage failure")
	// ErrConfiguration indicates invalid cost parameters or settings.
	ErrConfiguration = errors.New("configuration error")
)

// Kind names reported at the command boundary.
const (
	KindNotFound       = "NotFound"
	KindInvalidInput   = "InvalidInput"
	KindInvalidAmount  = "InvalidAmount"
	KindAuthentication = "AuthenticationFailure"
	KindStorage        = "StorageFailure"
	KindConfiguration  = "ConfigurationError"
)

// KindOf maps err onto one of the error kinds. Unclassified errors are
// reported as storage failures.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidAmount):
		return KindInvalidAmount
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrAuthentication):
		return KindAuthentication
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	default:
		return KindStorage
	}
}

// StorageError wraps an underlying driver or I/O error as a storage failure
// while keeping the cause reachable through errors.Is / errors.As.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
