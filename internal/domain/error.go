package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrAlreadyExists       = errors.New("entity already exists")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrNotConfigured       = errors.New("payment provider not configured")
	ErrSignatureInvalid    = errors.New("callback signature invalid")
	ErrAlreadyProcessed    = errors.New("payment already processed")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrUnknownProduct      = errors.New("unknown product type")

	// Infrastructure-level errors surfaced by repositories
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid transaction execution context")
)

// GatewayError carries the provider's rejection code and the human-readable
// message resolved from the static error table. Matched with errors.As.
type GatewayError struct {
	Provider string
	Code     string
	Message  string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s rejected request: %s (code %s)", e.Provider, e.Message, e.Code)
}
