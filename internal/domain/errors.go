package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Statement Errors (STATEMENT_*)
	ErrorCodeStatementNotFound       ErrorCode = "STATEMENT_NOT_FOUND"
	ErrorCodeStatementUnsupportedPRO ErrorCode = "STATEMENT_UNSUPPORTED_PRO"
	ErrorCodeStatementInvalidState   ErrorCode = "STATEMENT_INVALID_STATE"
	ErrorCodeStatementUnreadable     ErrorCode = "STATEMENT_UNREADABLE"

	// Statement item Errors (ITEM_*)
	ErrorCodeItemNotFound ErrorCode = "ITEM_NOT_FOUND"

	// Payout Errors (PAYOUT_*)
	ErrorCodePayoutNotFound          ErrorCode = "PAYOUT_NOT_FOUND"
	ErrorCodePayoutHasTransfer       ErrorCode = "PAYOUT_HAS_TRANSFER"
	ErrorCodePayoutAlreadyCancelled  ErrorCode = "PAYOUT_ALREADY_CANCELLED"
	ErrorCodePayoutInvalidTransition ErrorCode = "PAYOUT_INVALID_TRANSITION"
	ErrorCodePayoutInsufficientFunds ErrorCode = "PAYOUT_INSUFFICIENT_FUNDS"

	// Payee Errors
	ErrorCodeUserNotFound   ErrorCode = "USER_NOT_FOUND"
	ErrorCodeCreditNotFound ErrorCode = "CREDIT_NOT_FOUND"

	// Money Errors (MONEY_*)
	ErrorCodeMoneyInvariantViolated ErrorCode = "MONEY_INVARIANT_VIOLATED"
	ErrorCodeStaleSnapshot          ErrorCode = "MONEY_STALE_SNAPSHOT"

	// Validation Errors (VALIDATION_*)
	ErrorCodeValidationFailed        ErrorCode = "VALIDATION_FAILED"
	ErrorCodeValidationAmountInvalid ErrorCode = "VALIDATION_AMOUNT_INVALID"

	// Job Errors (JOB_*)
	ErrorCodeJobLocked ErrorCode = "JOB_LOCKED"

	// Internal Errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError by code so sentinel values work with errors.Is
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// WithDetail returns a copy of the error carrying an extra detail field.
// Sentinels are shared, so they are never mutated in place.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &DomainError{
		Err:     e.Err,
		Details: details,
		Code:    e.Code,
		Message: e.Message,
	}
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsNotFoundError checks if an error represents a "not found" condition
func IsNotFoundError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeStatementNotFound ||
		code == ErrorCodeItemNotFound ||
		code == ErrorCodePayoutNotFound ||
		code == ErrorCodeUserNotFound ||
		code == ErrorCodeCreditNotFound
}

// IsManualInterventionError reports errors an operator has to resolve by hand
func IsManualInterventionError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodePayoutHasTransfer ||
		code == ErrorCodePayoutAlreadyCancelled ||
		code == ErrorCodePayoutInvalidTransition
}

var (
	ErrStatementNotFound       = NewDomainError(ErrorCodeStatementNotFound, "statement not found")
	ErrUnsupportedPRO          = NewDomainError(ErrorCodeStatementUnsupportedPRO, "no parser for PRO type")
	ErrStatementInvalidState   = NewDomainError(ErrorCodeStatementInvalidState, "statement is in invalid state for this operation")
	ErrStatementUnreadable     = NewDomainError(ErrorCodeStatementUnreadable, "statement file could not be read")
	ErrItemNotFound            = NewDomainError(ErrorCodeItemNotFound, "statement item not found")
	ErrPayoutNotFound          = NewDomainError(ErrorCodePayoutNotFound, "payout request not found")
	ErrPayoutHasTransfer       = NewDomainError(ErrorCodePayoutHasTransfer, "payout already has an external transfer; manual intervention required")
	ErrPayoutAlreadyCancelled  = NewDomainError(ErrorCodePayoutAlreadyCancelled, "payout request is already cancelled")
	ErrPayoutInvalidTransition = NewDomainError(ErrorCodePayoutInvalidTransition, "payout request cannot move to the requested status")
	ErrInsufficientFunds       = NewDomainError(ErrorCodePayoutInsufficientFunds, "payout amount exceeds available balance")
	ErrUserNotFound            = NewDomainError(ErrorCodeUserNotFound, "user not found")
	ErrCreditNotFound          = NewDomainError(ErrorCodeCreditNotFound, "placement credit not found")
	ErrMoneyInvariant          = NewDomainError(ErrorCodeMoneyInvariantViolated, "money invariant violated")
	ErrStaleSnapshot           = NewDomainError(ErrorCodeStaleSnapshot, "balances changed since the reconciliation snapshot")
	ErrValidationFailed        = NewDomainError(ErrorCodeValidationFailed, "validation failed")
	ErrValidationAmountInvalid = NewDomainError(ErrorCodeValidationAmountInvalid, "invalid amount")
	ErrJobLocked               = NewDomainError(ErrorCodeJobLocked, "job is already running")
	ErrDatabaseError           = NewDomainError(ErrorCodeDatabaseError, "database error")
)
