package sheet

import (
	"context"
	"encoding/json"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/repository"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
	"github.com/segyhp/loan-ledger/pkg/utils"
)

const (
	typeLoan = "loan"
	typeUser = "user"
)

// Store implements the loan, payment and user repositories over one sheet.
// Payments live in a JSON-encoded "payments" column of their loan's row.
type Store struct {
	client *Client
}

func NewStore(client *Client) *Store {
	return &Store{client: client}
}

func (s *Store) Loans() repository.LoanRepository       { return &loanRepository{s} }
func (s *Store) Payments() repository.PaymentRepository { return &paymentRepository{s} }
func (s *Store) Users() repository.UserRepository       { return &userRepository{s} }

func (s *Store) rows(ctx context.Context, kind string) ([]Record, error) {
	all, err := s.client.FetchAll(ctx)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	rows := make([]Record, 0, len(all))
	for _, r := range all {
		if r.Get("type") == kind {
			rows = append(rows, r)
		}
	}
	return rows, nil
}

func (s *Store) loanRow(ctx context.Context, loanID string) (Record, error) {
	rows, err := s.rows(ctx, typeLoan)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if r.Get("loan_id") == loanID {
			return r, nil
		}
	}
	return nil, customError.WrapLoanNotFound(loanID)
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatNullDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

func parseNullDecimal(s string) (decimal.NullDecimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := utils.DecimalFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

// loanFields are the columns a loan update rewrites.
func loanFields(l *domain.Loan) Record {
	return Record{
		"borrower_name":        l.BorrowerName,
		"principal":            l.Principal.String(),
		"annual_interest_rate": formatNullDecimal(l.AnnualInterestRate),
		"duration_months":      strconv.Itoa(l.DurationMonths),
		"status":               string(l.Status),
		"admin_notes":          l.AdminNotes,
		"reviewed_by":          l.ReviewedBy,
		"updated_at":           formatTime(&l.UpdatedAt),
		"reviewed_at":          formatTime(l.ReviewedAt),
		"approved_at":          formatTime(l.ApprovedAt),
		"accepted_at":          formatTime(l.AcceptedAt),
		"rejected_at":          formatTime(l.RejectedAt),
	}
}

func loanRecord(l *domain.Loan) Record {
	r := loanFields(l)
	r["type"] = typeLoan
	r["id"] = l.ID.String()
	r["loan_id"] = l.LoanID
	r["kind"] = string(l.Kind)
	r["owner"] = l.Owner
	r["purpose"] = l.Purpose
	r["monthly_income"] = formatNullDecimal(l.MonthlyIncome)
	r["employment_type"] = l.EmploymentType
	r["created_at"] = formatTime(&l.CreatedAt)
	r["payments"] = "[]"
	return r
}

func parseLoan(r Record) (*domain.Loan, error) {
	id, err := uuid.Parse(r.Get("id"))
	if err != nil {
		return nil, err
	}
	principal, err := utils.DecimalFromString(r.Get("principal"))
	if err != nil {
		return nil, err
	}
	rate, err := parseNullDecimal(r.Get("annual_interest_rate"))
	if err != nil {
		return nil, err
	}
	income, err := parseNullDecimal(r.Get("monthly_income"))
	if err != nil {
		return nil, err
	}
	months, err := strconv.Atoi(r.Get("duration_months"))
	if err != nil {
		return nil, err
	}

	loan := &domain.Loan{
		ID:                 id,
		LoanID:             r.Get("loan_id"),
		Kind:               domain.LoanKind(r.Get("kind")),
		Owner:              r.Get("owner"),
		BorrowerName:       r.Get("borrower_name"),
		Principal:          principal,
		AnnualInterestRate: rate,
		DurationMonths:     months,
		Purpose:            r.Get("purpose"),
		MonthlyIncome:      income,
		EmploymentType:     r.Get("employment_type"),
		Status:             domain.LoanStatus(r.Get("status")),
		AdminNotes:         r.Get("admin_notes"),
		ReviewedBy:         r.Get("reviewed_by"),
	}

	times := []struct {
		column string
		dst    **time.Time
	}{
		{"reviewed_at", &loan.ReviewedAt},
		{"approved_at", &loan.ApprovedAt},
		{"accepted_at", &loan.AcceptedAt},
		{"rejected_at", &loan.RejectedAt},
	}
	for _, tc := range times {
		if *tc.dst, err = parseTime(r.Get(tc.column)); err != nil {
			return nil, err
		}
	}

	createdAt, err := parseTime(r.Get("created_at"))
	if err != nil {
		return nil, err
	}
	if createdAt != nil {
		loan.CreatedAt = *createdAt
	}
	updatedAt, err := parseTime(r.Get("updated_at"))
	if err != nil {
		return nil, err
	}
	if updatedAt != nil {
		loan.UpdatedAt = *updatedAt
	}

	return loan, nil
}

func parsePayments(r Record) ([]*domain.Payment, error) {
	raw := r.Get("payments")
	if raw == "" {
		return []*domain.Payment{}, nil
	}

	payments := []*domain.Payment{}
	if err := json.Unmarshal([]byte(raw), &payments); err != nil {
		return nil, err
	}
	return payments, nil
}

func encodePayments(payments []*domain.Payment) (string, error) {
	if payments == nil {
		payments = []*domain.Payment{}
	}
	b, err := json.Marshal(payments)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type loanRepository struct{ s *Store }

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	if _, err := r.s.loanRow(ctx, loan.LoanID); err == nil {
		return customError.WrapLoanAlreadyExists(loan.LoanID)
	} else if customError.CodeOf(err) != customError.ErrCodeLoanNotFound {
		return err
	}

	if err := r.s.client.Create(ctx, loanRecord(loan)); err != nil {
		return customError.WrapDatabaseError(err)
	}
	return nil
}

func (r *loanRepository) GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error) {
	row, err := r.s.loanRow(ctx, loanID)
	if err != nil {
		return nil, err
	}
	loan, err := parseLoan(row)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return loan, nil
}

func (r *loanRepository) List(ctx context.Context, filter domain.LoanFilter) ([]*domain.Loan, error) {
	rows, err := r.s.rows(ctx, typeLoan)
	if err != nil {
		return nil, err
	}

	loans := make([]*domain.Loan, 0, len(rows))
	for _, row := range rows {
		loan, err := parseLoan(row)
		if err != nil {
			return nil, customError.WrapDatabaseError(err)
		}
		if filter.Owner != "" && loan.Owner != filter.Owner {
			continue
		}
		if filter.Status != "" && loan.Status != filter.Status {
			continue
		}
		loans = append(loans, loan)
	}

	// newest first, matching the SQL stores
	slices.SortStableFunc(loans, func(a, b *domain.Loan) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return loans, nil
}

func (r *loanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	row, err := r.s.loanRow(ctx, loan.LoanID)
	if err != nil {
		return err
	}
	if err := r.s.client.Update(ctx, row.Get("id"), loanFields(loan)); err != nil {
		return customError.WrapDatabaseError(err)
	}
	return nil
}

func (r *loanRepository) Touch(ctx context.Context, loanID string, at time.Time) error {
	row, err := r.s.loanRow(ctx, loanID)
	if err != nil {
		return err
	}
	if err := r.s.client.Update(ctx, row.Get("id"), Record{"updated_at": formatTime(&at)}); err != nil {
		return customError.WrapDatabaseError(err)
	}
	return nil
}

func (r *loanRepository) Delete(ctx context.Context, loanID string) error {
	row, err := r.s.loanRow(ctx, loanID)
	if err != nil {
		return err
	}
	if err := r.s.client.Delete(ctx, row.Get("id")); err != nil {
		return customError.WrapDatabaseError(err)
	}
	return nil
}

type paymentRepository struct{ s *Store }

func (r *paymentRepository) rewrite(ctx context.Context, loanID string, change func([]*domain.Payment) []*domain.Payment) error {
	row, err := r.s.loanRow(ctx, loanID)
	if err != nil {
		return err
	}
	payments, err := parsePayments(row)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}

	encoded, err := encodePayments(change(payments))
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	if err := r.s.client.Update(ctx, row.Get("id"), Record{"payments": encoded}); err != nil {
		return customError.WrapDatabaseError(err)
	}
	return nil
}

func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	return r.rewrite(ctx, payment.LoanID, func(payments []*domain.Payment) []*domain.Payment {
		return append(payments, payment)
	})
}

func (r *paymentRepository) GetByLoanID(ctx context.Context, loanID string) ([]*domain.Payment, error) {
	row, err := r.s.loanRow(ctx, loanID)
	if err != nil {
		return nil, err
	}
	payments, err := parsePayments(row)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return payments, nil
}

func (r *paymentRepository) ListByLoanIDs(ctx context.Context, loanIDs []string) (map[string][]*domain.Payment, error) {
	byLoan := make(map[string][]*domain.Payment, len(loanIDs))
	if len(loanIDs) == 0 {
		return byLoan, nil
	}

	wanted := make(map[string]bool, len(loanIDs))
	for _, id := range loanIDs {
		wanted[id] = true
	}

	rows, err := r.s.rows(ctx, typeLoan)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		loanID := row.Get("loan_id")
		if !wanted[loanID] {
			continue
		}
		payments, err := parsePayments(row)
		if err != nil {
			return nil, customError.WrapDatabaseError(err)
		}
		byLoan[loanID] = payments
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
	return r.rewrite(ctx, loanID, func(payments []*domain.Payment) []*domain.Payment {
		kept := payments[:0]
		for _, p := range payments {
			if p.ID != id {
				kept = append(kept, p)
			}
		}
		return kept
	})
}

func (r *paymentRepository) DeleteByLoanID(ctx context.Context, loanID string) error {
	err := r.rewrite(ctx, loanID, func([]*domain.Payment) []*domain.Payment { return nil })
	// the payments go with the row when the loan itself is already gone
	if customError.CodeOf(err) == customError.ErrCodeLoanNotFound {
		return nil
	}
	return err
}

type userRepository struct{ s *Store }

func userRecord(u *domain.User) Record {
	return Record{
		"type":          typeUser,
		"id":            u.ID.String(),
		"username":      u.Username,
		"email":         u.Email,
		"phone":         u.Phone,
		"password_hash": u.PasswordHash,
		"role":          string(u.Role),
		"created_at":    formatTime(&u.CreatedAt),
	}
}

func parseUser(r Record) (*domain.User, error) {
	id, err := uuid.Parse(r.Get("id"))
	if err != nil {
		return nil, err
	}
	createdAt, err := parseTime(r.Get("created_at"))
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           id,
		Username:     r.Get("username"),
		Email:        r.Get("email"),
		Phone:        r.Get("phone"),
		PasswordHash: r.Get("password_hash"),
		Role:         domain.Role(r.Get("role")),
	}
	if createdAt != nil {
		user.CreatedAt = *createdAt
	}
	return user, nil
}

func (r *userRepository) find(ctx context.Context, username string) (Record, error) {
	rows, err := r.s.rows(ctx, typeUser)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.Get("username") == username {
			return row, nil
		}
	}
	return nil, customError.WrapUserNotFound(username)
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if _, err := r.find(ctx, user.Username); err == nil {
		return customError.WrapUserAlreadyExists(user.Username)
	} else if customError.CodeOf(err) != customError.ErrCodeUserNotFound {
		return err
	}

	if err := r.s.client.Create(ctx, userRecord(user)); err != nil {
		return customError.WrapDatabaseError(err)
	}
	return nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row, err := r.find(ctx, username)
	if err != nil {
		return nil, err
	}
	user, err := parseUser(row)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return user, nil
}

func (r *userRepository) List(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.s.rows(ctx, typeUser)
	if err != nil {
		return nil, err
	}

	users := make([]*domain.User, 0, len(rows))
	for _, row := range rows {
		u, err := parseUser(row)
		if err != nil {
			return nil, customError.WrapDatabaseError(err)
		}
		users = append(users, u)
	}
	return users, nil
}

func (r *userRepository) Delete(ctx context.Context, username string) error {
	row, err := r.find(ctx, username)
	if err != nil {
		return err
	}
	if err := r.s.client.Delete(ctx, row.Get("id")); err != nil {
		return customError.WrapDatabaseError(err)
	}
	return nil
}
