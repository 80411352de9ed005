package payments

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSignature = errors.New("payments: invalid webhook signature")
	ErrAccountNotFound  = errors.New("payments: connected account not found")
)

// ValidationError is a client-facing rejection. It is never logged as a fault.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// GatewayError wraps a processor failure. Err is for logs only and must not be
// shown to end users.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payments: %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
