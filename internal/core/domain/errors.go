package domain

import (
	"errors"
	"fmt"
)

// Error categories. Handlers map these to HTTP status codes.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

func notFound(msg string) error     { return fmt.Errorf("%w: %s", ErrNotFound, msg) }
func badRequest(msg string) error   { return fmt.Errorf("%w: %s", ErrBadRequest, msg) }
func conflict(msg string) error     { return fmt.Errorf("%w: %s", ErrConflict, msg) }
func invalidState(msg string) error { return fmt.Errorf("%w: %s", ErrInvalidState, msg) }

// Catalog errors
var (
	ErrBookNotFound      = notFound("book not found")
	ErrCategoryNotFound  = notFound("category not found")
	ErrNoCopiesAvailable = conflict("no copies available")
	ErrDuplicateISBN     = conflict("isbn already exists")
)

// Request errors
var (
	ErrRequestNotFound         = notFound("request not found")
	ErrDuplicatePendingRequest = conflict("a pending request already exists for this book")
	ErrRequestNotPending       = invalidState("request has already been processed")
	ErrInvalidResolution       = badRequest("status must be approved or rejected")
	ErrAdminRequired           = badRequest("admin id is required")
)

// Loan errors
var (
	ErrIssueNotFound       = notFound("issue not found")
	ErrAlreadyReturned     = invalidState("book already returned")
	ErrLoanStillOpen       = invalidState("book must be returned before the loan is deleted")
	ErrInvalidDamageType   = badRequest("invalid damage type")
	ErrNegativeFine        = badRequest("fine must not be negative")
	ErrDirectIssueDisabled = fmt.Errorf("%w: direct issuance is disabled, books are issued through requests", ErrForbidden)
)

// Fine errors
var (
	ErrFineNotFound         = notFound("fine not found")
	ErrFineAlreadyResolved  = invalidState("fine already paid or waived")
	ErrInvalidPaymentMethod = badRequest("payment method must be cash or online")
)

// Donation errors
var (
	ErrDonationNotFound      = notFound("donation not found")
	ErrInvalidDonationStatus = badRequest("invalid donation status")
	ErrDonationCollected     = invalidState("donation already collected")
)

// User errors
var (
	ErrUserNotFound        = notFound("user not found")
	ErrUserAlreadyExists   = conflict("username or email already exists")
	ErrInvalidCredentials  = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	ErrUserInactive        = fmt.Errorf("%w: user account is inactive", ErrForbidden)
	ErrInvalidToken        = fmt.Errorf("%w: invalid token", ErrUnauthorized)
	ErrTokenExpired        = fmt.Errorf("%w: token expired", ErrUnauthorized)
	ErrTokenRevoked        = fmt.Errorf("%w: token revoked", ErrUnauthorized)
	ErrOldPasswordWrong    = badRequest("old password is incorrect")
	ErrInvalidRole         = badRequest("role must be USER or ADMIN")
	ErrCannotChangeOwnRole = badRequest("cannot change your own role")
	ErrCannotDeleteSelf    = badRequest("cannot delete your own account")
)

// ValidationError carries a field-level message and is a BadRequest
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrBadRequest
}

// NewValidationError builds a ValidationError
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
