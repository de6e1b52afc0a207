package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrLoanNotFound            = errors.New("loan not found")
	ErrLoanAlreadyExists       = errors.New("loan already exists")
	ErrInvalidLoanParameters   = errors.New("invalid loan parameters")
	ErrInvalidPaymentAmount    = errors.New("invalid payment amount")
	ErrOverpayment             = errors.New("payment exceeds remaining balance")
	ErrLoanNotApproved         = errors.New("loan is not approved")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrInterestRateRequired    = errors.New("interest rate is required")
	ErrForbidden               = errors.New("forbidden")
	ErrUserNotFound            = errors.New("user not found")
	ErrUserAlreadyExists       = errors.New("user already exists")
	ErrInvalidCredentials      = errors.New("invalid credentials")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeLoanNotFound            = "LOAN_NOT_FOUND"
	ErrCodeLoanAlreadyExists       = "LOAN_ALREADY_EXISTS"
	ErrCodeInvalidLoanParameters   = "INVALID_LOAN_PARAMETERS"
	ErrCodeInvalidPaymentAmount    = "INVALID_PAYMENT_AMOUNT"
	ErrCodeOverpayment             = "OVERPAYMENT"
	ErrCodeLoanNotApproved         = "LOAN_NOT_APPROVED"
	ErrCodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	ErrCodeInterestRateRequired    = "INTEREST_RATE_REQUIRED"
	ErrCodeForbidden               = "FORBIDDEN"
	ErrCodeUserNotFound            = "USER_NOT_FOUND"
	ErrCodeUserAlreadyExists       = "USER_ALREADY_EXISTS"
	ErrCodeInvalidCredentials      = "INVALID_CREDENTIALS"
	ErrCodeDatabaseError           = "DATABASE_ERROR"
	ErrCodeCacheError              = "CACHE_ERROR"
)

// CodeOf returns the business code carried by err, or "" when err is not a
// BusinessError.
func CodeOf(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// Wrap common errors with business context
func WrapLoanNotFound(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with ID %s not found", loanID),
		ErrLoanNotFound,
	)
}

func WrapLoanAlreadyExists(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanAlreadyExists,
		fmt.Sprintf("Loan with ID %s already exists", loanID),
		ErrLoanAlreadyExists,
	)
}

func WrapInvalidLoanParameters(reason string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidLoanParameters,
		reason,
		ErrInvalidLoanParameters,
	)
}

func WrapInvalidPaymentAmount(amount string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidPaymentAmount,
		fmt.Sprintf("Invalid payment amount: %s", amount),
		ErrInvalidPaymentAmount,
	)
}

func WrapOverpayment(amount, remaining string) *BusinessError {
	return NewBusinessError(
		ErrCodeOverpayment,
		fmt.Sprintf("Payment amount %s exceeds remaining balance %s", amount, remaining),
		ErrOverpayment,
	)
}

func WrapLoanNotApproved(loanID, status string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotApproved,
		fmt.Sprintf("Loan with ID %s is %s, payments are only accepted on approved loans", loanID, status),
		ErrLoanNotApproved,
	)
}

func WrapInvalidStatusTransition(loanID, from, to string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidStatusTransition,
		fmt.Sprintf("Loan with ID %s cannot move from %s to %s", loanID, from, to),
		ErrInvalidStatusTransition,
	)
}

func WrapInterestRateRequired(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeInterestRateRequired,
		fmt.Sprintf("Approving loan %s requires an interest rate", loanID),
		ErrInterestRateRequired,
	)
}

func WrapForbidden(message string) *BusinessError {
	return NewBusinessError(ErrCodeForbidden, message, ErrForbidden)
}

func WrapUserNotFound(username string) *BusinessError {
	return NewBusinessError(
		ErrCodeUserNotFound,
		fmt.Sprintf("User %s not found", username),
		ErrUserNotFound,
	)
}

func WrapUserAlreadyExists(username string) *BusinessError {
	return NewBusinessError(
		ErrCodeUserAlreadyExists,
		fmt.Sprintf("Username %s already exists", username),
		ErrUserAlreadyExists,
	)
}

func WrapInvalidCredentials() *BusinessError {
	return NewBusinessError(ErrCodeInvalidCredentials, "invalid username or password", ErrInvalidCredentials)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}
