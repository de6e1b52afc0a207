package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-ledger/internal/domain"
)

// LoanRepository defines the interface for loan data operations.
// Implementations return loans without payments; callers load them through
// PaymentRepository.
type LoanRepository interface {
	// Create creates a new loan
	Create(ctx context.Context, loan *domain.Loan) error

	// GetByLoanID retrieves a loan by its display loan ID
	GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error)

	// List returns loans matching the owner and status of the filter, newest first.
	// Free-text search is applied by the caller.
	List(ctx context.Context, filter domain.LoanFilter) ([]*domain.Loan, error)

	// Update persists terms, workflow state and review fields
	Update(ctx context.Context, loan *domain.Loan) error

	// Touch bumps updated_at after a payment was recorded against the loan
	Touch(ctx context.Context, loanID string, at time.Time) error

	// Delete removes a loan
	Delete(ctx context.Context, loanID string) error
}

// PaymentRepository defines the interface for payment data operations
type PaymentRepository interface {
	// Create creates a new payment record
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByLoanID retrieves all payments for a loan in the order they were recorded
	GetByLoanID(ctx context.Context, loanID string) ([]*domain.Payment, error)

	// ListByLoanIDs retrieves the payments of several loans at once, keyed by loan ID
	ListByLoanIDs(ctx context.Context, loanIDs []string) (map[string][]*domain.Payment, error)

	// GetTotalPaid sums the payments of a loan
	GetTotalPaid(ctx context.Context, loanID string) (decimal.Decimal, error)

	// Delete removes one payment; used to roll back a payment whose loan update failed
	Delete(ctx context.Context, loanID string, id uuid.UUID) error

	// DeleteByLoanID removes every payment of a loan
	DeleteByLoanID(ctx context.Context, loanID string) error
}

// UserRepository defines the interface for user accounts
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	Delete(ctx context.Context, username string) error
}
