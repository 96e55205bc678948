package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every error the engines return
type ErrorKind string

const (
	KindValidation       ErrorKind = "ValidationError"
	KindPolicyViolation  ErrorKind = "PolicyViolation"
	KindNotFound         ErrorKind = "NotFound"
	KindForbidden        ErrorKind = "Forbidden"
	KindInvalidStatus    ErrorKind = "InvalidStatus"
	KindInvalidState     ErrorKind = "InvalidState"
	KindInvalidAmount    ErrorKind = "InvalidAmount"
	KindAlreadyApplied   ErrorKind = "AlreadyApplied"
	KindUnauthenticated  ErrorKind = "Unauthenticated"
	KindConflict         ErrorKind = "Conflict"
	KindTransientNetwork ErrorKind = "TransientNetworkError"
	KindStorageFailure   ErrorKind = "StorageFailure"
	KindInternal         ErrorKind = "InternalError"
)

// PolicyRule names the loan-issuance rule a PolicyViolation failed
type PolicyRule string

const (
	RuleAmountRange    PolicyRule = "amount_range"
	RuleDueDateFuture  PolicyRule = "due_date_future"
	RuleDueDateHorizon PolicyRule = "due_date_horizon"
	RulePurposeLength  PolicyRule = "purpose_length"
	RuleOpenLoanLimit  PolicyRule = "open_loan_limit"
	RuleMinimumIncome  PolicyRule = "minimum_income"
)

// Error is the domain error carried across every layer.
// errors.Is matches on Kind, and on Rule when the target sets one.
type Error struct {
	Kind    ErrorKind
	Rule    PolicyRule
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Rule == "" || t.Rule == e.Rule
}

// Common domain errors
var (
	ErrNotFound         = &Error{Kind: KindNotFound, Message: "resource not found"}
	ErrForbidden        = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrServiceOnly      = &Error{Kind: KindForbidden, Message: "endpoint is reserved for service callers"}
	ErrInvalidInput     = &Error{Kind: KindValidation, Message: "invalid input"}
	ErrPolicyViolation  = &Error{Kind: KindPolicyViolation, Message: "policy violation"}
	ErrUnauthenticated  = &Error{Kind: KindUnauthenticated, Message: "unauthenticated"}
	ErrStorageFailure   = &Error{Kind: KindStorageFailure, Message: "storage failure"}
	ErrTransientNetwork = &Error{Kind: KindTransientNetwork, Message: "downstream call failed"}
	ErrAlreadyApplied   = &Error{Kind: KindAlreadyApplied, Message: "payment already applied"}
	ErrConflict         = &Error{Kind: KindConflict, Message: "conflict"}
)

// Loan errors
var (
	ErrLoanNotFound          = &Error{Kind: KindNotFound, Message: "loan not found"}
	ErrNotLoanOwner          = &Error{Kind: KindForbidden, Message: "not authorized to access this loan"}
	ErrInvalidLoanStatus     = &Error{Kind: KindInvalidStatus, Message: "invalid loan status"}
	ErrLoanNotPayable        = &Error{Kind: KindInvalidState, Message: "payment can only be made on active or approved loans"}
	ErrPaidViaPaymentOnly    = &Error{Kind: KindInvalidState, Message: "a loan becomes paid only by applying payments"}
	ErrLoanAlreadyPaid       = &Error{Kind: KindInvalidState, Message: "loan is already paid"}
	ErrInvalidPaymentAmount  = &Error{Kind: KindInvalidAmount, Message: "payment amount must be greater than 0"}
	ErrMissingIdempotencyKey = &Error{Kind: KindValidation, Message: "idempotency token is required"}
	ErrIdempotencyMismatch   = &Error{Kind: KindValidation, Message: "idempotency token was already used with a different amount"}
)

// Payment errors
var (
	ErrPaymentNotFound      = &Error{Kind: KindNotFound, Message: "payment not found"}
	ErrInvalidPaymentMethod = &Error{Kind: KindValidation, Message: "payment method must be credit_card, debit_card or bank_transfer"}
	ErrInvalidLoanID        = &Error{Kind: KindValidation, Message: "valid loan ID is required"}
	ErrAmountPrecision      = &Error{Kind: KindValidation, Message: "amount cannot have more than 2 decimal places"}
)

// User errors
var (
	ErrUserNotFound       = &Error{Kind: KindNotFound, Message: "user not found"}
	ErrUserAlreadyExists  = &Error{Kind: KindConflict, Message: "username already exists"}
	ErrEmailAlreadyExists = &Error{Kind: KindConflict, Message: "email already registered"}
	ErrInvalidCredentials = &Error{Kind: KindUnauthenticated, Message: "invalid credentials"}
	ErrTokenExpired       = &Error{Kind: KindUnauthenticated, Message: "access token expired"}
	ErrTokenInvalid       = &Error{Kind: KindUnauthenticated, Message: "invalid access token"}
)

// NewValidationError builds a ValidationError with a caller-facing message
func NewValidationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewPolicyViolation builds a PolicyViolation for the given rule
func NewPolicyViolation(rule PolicyRule, format string, args ...any) *Error {
	return &Error{Kind: KindPolicyViolation, Rule: rule, Message: fmt.Sprintf(format, args...)}
}

// NewStorageFailure wraps a failed durable read or write
func NewStorageFailure(op string, err error) *Error {
	return &Error{Kind: KindStorageFailure, Message: op, Err: err}
}

// NewTransientError wraps a cross-service call that did not complete
func NewTransientError(op string, err error) *Error {
	return &Error{Kind: KindTransientNetwork, Message: op, Err: err}
}

// KindOf returns the kind of err, or KindInternal for foreign errors
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// MessageOf returns the caller-facing message of err
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}

// IsRetryable reports whether the reconciliation pass should try the operation again
func IsRetryable(kind ErrorKind) bool {
	return kind == KindTransientNetwork || kind == KindInternal
}
