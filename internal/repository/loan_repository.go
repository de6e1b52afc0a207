package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

const loanColumns = `id, loan_id, kind, owner, borrower_name, principal, annual_interest_rate,
	duration_months, purpose, monthly_income, employment_type, status, admin_notes, reviewed_by,
	created_at, updated_at, reviewed_at, approved_at, accepted_at, rejected_at`

type loanRepository struct {
	db *sqlx.DB
}

func NewLoanRepository(db *sqlx.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	query := `
		INSERT INTO loans (` + loanColumns + `)
		VALUES (:id, :loan_id, :kind, :owner, :borrower_name, :principal, :annual_interest_rate,
			:duration_months, :purpose, :monthly_income, :employment_type, :status, :admin_notes, :reviewed_by,
			:created_at, :updated_at, :reviewed_at, :approved_at, :accepted_at, :rejected_at)
	`

	if _, err := r.db.NamedExecContext(ctx, query, loan); err != nil {
		if isUniqueViolation(err) {
			return customError.WrapLoanAlreadyExists(loan.LoanID)
		}
		return customError.WrapDatabaseError(err)
	}
	return nil
}

func (r *loanRepository) GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error) {
	query := r.db.Rebind(`SELECT ` + loanColumns + ` FROM loans WHERE loan_id = ?`)

	var loan domain.Loan
	if err := r.db.GetContext(ctx, &loan, query, loanID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapLoanNotFound(loanID)
		}
		return nil, customError.WrapDatabaseError(err)
	}

	return &loan, nil
}

func (r *loanRepository) List(ctx context.Context, filter domain.LoanFilter) ([]*domain.Loan, error) {
	var (
		where []string
		args  []any
	)
	if filter.Owner != "" {
		where = append(where, "owner = ?")
		args = append(args, filter.Owner)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := `SELECT ` + loanColumns + ` FROM loans`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, loan_id`

	loans := []*domain.Loan{}
	if err := r.db.SelectContext(ctx, &loans, r.db.Rebind(query), args...); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return loans, nil
}

func (r *loanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	query := `
		UPDATE loans
		SET borrower_name = :borrower_name, principal = :principal, annual_interest_rate = :annual_interest_rate,
			duration_months = :duration_months, status = :status, admin_notes = :admin_notes,
			reviewed_by = :reviewed_by, updated_at = :updated_at, reviewed_at = :reviewed_at,
			approved_at = :approved_at, accepted_at = :accepted_at, rejected_at = :rejected_at
		WHERE loan_id = :loan_id
	`

	result, err := r.db.NamedExecContext(ctx, query, loan)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	return requireRow(result, loan.LoanID)
}

func (r *loanRepository) Touch(ctx context.Context, loanID string, at time.Time) error {
	query := r.db.Rebind(`UPDATE loans SET updated_at = ? WHERE loan_id = ?`)

	result, err := r.db.ExecContext(ctx, query, at, loanID)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	return requireRow(result, loanID)
}

func (r *loanRepository) Delete(ctx context.Context, loanID string) error {
	query := r.db.Rebind(`DELETE FROM loans WHERE loan_id = ?`)

	result, err := r.db.ExecContext(ctx, query, loanID)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	return requireRow(result, loanID)
}

func requireRow(result sql.Result, loanID string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	if n == 0 {
		return customError.WrapLoanNotFound(loanID)
	}
	return nil
}

// isUniqueViolation matches the constraint errors of both lib/pq and go-sqlite3.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
