package storage

import (
	"errors"
	"fmt"

	"clmm-swap-collector/internal/domain"
)

// Storage errors for append-only stores.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)

// ValidateTrade returns ErrInvalidInput wrapped with the reason if t cannot be stored.
func ValidateTrade(t *domain.Trade) error {
	if t == nil {
		return fmt.Errorf("%w: nil trade", ErrInvalidInput)
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}
