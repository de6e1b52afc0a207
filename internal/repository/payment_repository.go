package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

const paymentColumns = `id, loan_id, amount, paid_on, method, notes, recorded_by, created_at`

type paymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES (:id, :loan_id, :amount, :paid_on, :method, :notes, :recorded_by, :created_at)
	`

	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return customError.WrapDatabaseError(err)
	}
	return nil
}

func (r *paymentRepository) GetByLoanID(ctx context.Context, loanID string) ([]*domain.Payment, error) {
	query := r.db.Rebind(`
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE loan_id = ?
		ORDER BY created_at, id
	`)

	payments := []*domain.Payment{}
	if err := r.db.SelectContext(ctx, &payments, query, loanID); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return payments, nil
}

func (r *paymentRepository) ListByLoanIDs(ctx context.Context, loanIDs []string) (map[string][]*domain.Payment, error) {
	byLoan := make(map[string][]*domain.Payment, len(loanIDs))
	if len(loanIDs) == 0 {
		return byLoan, nil
	}

	query, args, err := sqlx.In(`
		SELECT `+paymentColumns+`
		FROM payments
		WHERE loan_id IN (?)
		ORDER BY created_at, id
	`, loanIDs)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	var payments []*domain.Payment
	if err := r.db.SelectContext(ctx, &payments, r.db.Rebind(query), args...); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	for _, p := range payments {
		byLoan[p.LoanID] = append(byLoan[p.LoanID], p)
	}
	return byLoan, nil
}

func (r *paymentRepository) GetTotalPaid(ctx context.Context, loanID string) (decimal.Decimal, error) {
	payments, err := r.GetByLoanID(ctx, loanID)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total, nil
}

func (r *paymentRepository) Delete(ctx context.Context, loanID string, id uuid.UUID) error {
	query := r.db.Rebind(`DELETE FROM payments WHERE loan_id = ? AND id = ?`)

	if _, err := r.db.ExecContext(ctx, query, loanID, id); err != nil {
		return customError.WrapDatabaseError(err)
	}
	return nil
}

func (r *paymentRepository) DeleteByLoanID(ctx context.Context, loanID string) error {
	query := r.db.Rebind(`DELETE FROM payments WHERE loan_id = ?`)

	if _, err := r.db.ExecContext(ctx, query, loanID); err != nil {
		return customError.WrapDatabaseError(err)
	}
	return nil
}
