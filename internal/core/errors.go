package core

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the ledger, the alert pipeline and the stores.
// Callers match with errors.Is; producers wrap with fmt.Errorf("...: %w", ErrX).
var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidState        = errors.New("invalid state")
	ErrConflict            = errors.New("conflict")
	ErrDeliveryUnavailable = errors.New("delivery unavailable")
)

// Validation failures. All of them are InvalidState for the caller.
var (
	ErrInvalidAmount   = fmt.Errorf("%w: amount must be positive", ErrInvalidState)
	ErrInvalidDates    = fmt.Errorf("%w: due date must be after start date", ErrInvalidState)
	ErrLoanHasPayments = fmt.Errorf("%w: loan has recorded payments", ErrInvalidState)
	ErrEmptyUser       = fmt.Errorf("%w: user id is required", ErrInvalidState)
	ErrInvalidStatus   = fmt.Errorf("%w: unknown loan status", ErrInvalidState)
	ErrInvalidPeriod   = fmt.Errorf("%w: unknown rate period", ErrInvalidState)
	ErrInvalidMonth    = fmt.Errorf("%w: invalid month", ErrInvalidState)
	ErrMissingDate     = fmt.Errorf("%w: date is required", ErrInvalidState)
)

// Caller identifies who is performing a mutation.
type Caller struct {
	UserID string
	Admin  bool
}

// CanAccess reports whether the caller owns the resource or is an administrator.
func (c Caller) CanAccess(ownerID string) bool {
	return c.Admin || (c.UserID != "" && c.UserID == ownerID)
}
