package domain

import (
	"errors"
	"fmt"
	"strings"
)

var ErrRecordNotFound = errors.New("Record not found")
var ErrDuplicateRecord = errors.New("Record already exists")
var ErrConflict = errors.New("Status transition conflict")
var ErrUnknownTier = errors.New("Unknown membership tier")
var ErrUnsupportedProvider = errors.New("Unsupported payment provider")
var ErrAmountMismatch = errors.New("Payment amount mismatch")
var ErrCurrencyMismatch = errors.New("Payment currency mismatch")
var ErrReferenceMismatch = errors.New("Payment reference mismatch")
var ErrObjectExists = errors.New("Object already exists")
var ErrInvalidSignature = errors.New("Invalid webhook signature")

// ErrNoProviderTransaction means the provider cannot be asked about a payment
// yet, for example a checkout the customer left before a session id existed.
var ErrNoProviderTransaction = errors.New("No provider transaction to verify")

// ValidationError is returned before any side effect has happened.
type ValidationError struct {
	Problems []string
}

func NewValidationError(problems ...string) *ValidationError {
	return &ValidationError{Problems: problems}
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

type GatewayError struct {
	Provider Provider
	Op       string
	Err      error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IsMismatch reports whether err terminally failed an intent during reconciliation.
func IsMismatch(err error) bool {
	return errors.Is(err, ErrAmountMismatch) || errors.Is(err, ErrCurrencyMismatch)
}
