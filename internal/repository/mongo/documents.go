package mongo

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-ledger/internal/domain"
)

// Decimals are stored as strings so amounts never pass through a double.

type loanDocument struct {
	ID                 string     `bson:"_id"`
	LoanID             string     `bson:"loan_id"`
	Kind               string     `bson:"kind"`
	Owner              string     `bson:"owner"`
	BorrowerName       string     `bson:"borrower_name"`
	Principal          string     `bson:"principal"`
	AnnualInterestRate *string    `bson:"annual_interest_rate"`
	DurationMonths     int        `bson:"duration_months"`
	Purpose            string     `bson:"purpose"`
	MonthlyIncome      *string    `bson:"monthly_income"`
	EmploymentType     string     `bson:"employment_type"`
	Status             string     `bson:"status"`
	AdminNotes         string     `bson:"admin_notes"`
	ReviewedBy         string     `bson:"reviewed_by"`
	CreatedAt          time.Time  `bson:"created_at"`
	UpdatedAt          time.Time  `bson:"updated_at"`
	ReviewedAt         *time.Time `bson:"reviewed_at"`
	ApprovedAt         *time.Time `bson:"approved_at"`
	AcceptedAt         *time.Time `bson:"accepted_at"`
	RejectedAt         *time.Time `bson:"rejected_at"`
}

type paymentDocument struct {
	ID         string    `bson:"_id"`
	LoanID     string    `bson:"loan_id"`
	Amount     string    `bson:"amount"`
	PaidOn     time.Time `bson:"paid_on"`
	Method     string    `bson:"method"`
	Notes      string    `bson:"notes"`
	RecordedBy string    `bson:"recorded_by"`
	CreatedAt  time.Time `bson:"created_at"`
}

type userDocument struct {
	ID           string    `bson:"_id"`
	Username     string    `bson:"username"`
	Email        string    `bson:"email"`
	Phone        string    `bson:"phone"`
	PasswordHash string    `bson:"password_hash"`
	Role         string    `bson:"role"`
	CreatedAt    time.Time `bson:"created_at"`
}

func nullableString(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

func nullableDecimal(s *string) (decimal.NullDecimal, error) {
	if s == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func toLoanDocument(l *domain.Loan) loanDocument {
	return loanDocument{
		ID:                 l.ID.String(),
		LoanID:             l.LoanID,
		Kind:               string(l.Kind),
		Owner:              l.Owner,
		BorrowerName:       l.BorrowerName,
		Principal:          l.Principal.String(),
		AnnualInterestRate: nullableString(l.AnnualInterestRate),
		DurationMonths:     l.DurationMonths,
		Purpose:            l.Purpose,
		MonthlyIncome:      nullableString(l.MonthlyIncome),
		EmploymentType:     l.EmploymentType,
		Status:             string(l.Status),
		AdminNotes:         l.AdminNotes,
		ReviewedBy:         l.ReviewedBy,
		CreatedAt:          l.CreatedAt,
		UpdatedAt:          l.UpdatedAt,
		ReviewedAt:         l.ReviewedAt,
		ApprovedAt:         l.ApprovedAt,
		AcceptedAt:         l.AcceptedAt,
		RejectedAt:         l.RejectedAt,
	}
}

func (d loanDocument) toDomain() (*domain.Loan, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	principal, err := decimal.NewFromString(d.Principal)
	if err != nil {
		return nil, err
	}
	rate, err := nullableDecimal(d.AnnualInterestRate)
	if err != nil {
		return nil, err
	}
	income, err := nullableDecimal(d.MonthlyIncome)
	if err != nil {
		return nil, err
	}

	return &domain.Loan{
		ID:                 id,
		LoanID:             d.LoanID,
		Kind:               domain.LoanKind(d.Kind),
		Owner:              d.Owner,
		BorrowerName:       d.BorrowerName,
		Principal:          principal,
		AnnualInterestRate: rate,
		DurationMonths:     d.DurationMonths,
		Purpose:            d.Purpose,
		MonthlyIncome:      income,
		EmploymentType:     d.EmploymentType,
		Status:             domain.LoanStatus(d.Status),
		AdminNotes:         d.AdminNotes,
		ReviewedBy:         d.ReviewedBy,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
		ReviewedAt:         d.ReviewedAt,
		ApprovedAt:         d.ApprovedAt,
		AcceptedAt:         d.AcceptedAt,
		RejectedAt:         d.RejectedAt,
	}, nil
}

func toPaymentDocument(p *domain.Payment) paymentDocument {
	return paymentDocument{
		ID:         p.ID.String(),
		LoanID:     p.LoanID,
		Amount:     p.Amount.String(),
		PaidOn:     p.PaidOn,
		Method:     string(p.Method),
		Notes:      p.Notes,
		RecordedBy: p.RecordedBy,
		CreatedAt:  p.CreatedAt,
	}
}

func (d paymentDocument) toDomain() (*domain.Payment, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(d.Amount)
	if err != nil {
		return nil, err
	}

	return &domain.Payment{
		ID:         id,
		LoanID:     d.LoanID,
		Amount:     amount,
		PaidOn:     d.PaidOn,
		Method:     domain.PaymentMethod(d.Method),
		Notes:      d.Notes,
		RecordedBy: d.RecordedBy,
		CreatedAt:  d.CreatedAt,
	}, nil
}

func toUserDocument(u *domain.User) userDocument {
	return userDocument{
		ID:           u.ID.String(),
		Username:     u.Username,
		Email:        u.Email,
		Phone:        u.Phone,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
	}
}

func (d userDocument) toDomain() (*domain.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}

	return &domain.User{
		ID:           id,
		Username:     d.Username,
		Email:        d.Email,
		Phone:        d.Phone,
		PasswordHash: d.PasswordHash,
		Role:         domain.Role(d.Role),
		CreatedAt:    d.CreatedAt,
	}, nil
}
