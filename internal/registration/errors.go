package registration

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by providers when an update or delete names a
// document that does not exist.
var ErrNotFound = errors.New("document not found")

// AuthError means a credential exchange or session check failed; fatal
// for the current request, never retried.
type AuthError struct {
	Msg string
}

func (e *AuthError) Error() string { return "auth: " + e.Msg }

// ValidationError flags a missing or malformed request field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// ProviderError wraps a transport or remote failure from a data
// provider. Read paths absorb it, the stats path surfaces it.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
