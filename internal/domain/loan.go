package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-ledger/internal/amortization"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
	"github.com/segyhp/loan-ledger/pkg/utils"
)

type LoanKind string

const (
	LoanKindDirect      LoanKind = "direct"
	LoanKindApplication LoanKind = "application"
)

// RejectionByUserNote is appended to the admin notes when a borrower declines an offer.
const RejectionByUserNote = "[User rejected the offer]"

// Decimal places the stores keep. Inputs with more places are rejected
// rather than rounded on write.
const (
	MoneyPlaces int32 = 2
	RatePlaces  int32 = 4
)

// CheckMoney rejects an amount finer than a paisa.
func CheckMoney(field string, amount decimal.Decimal) error {
	if !utils.FitsPlaces(amount, MoneyPlaces) {
		return customError.WrapInvalidLoanParameters(fmt.Sprintf("%s must have at most %d decimal places", field, MoneyPlaces))
	}
	return nil
}

// CheckRate rejects an annual rate with more than RatePlaces decimal places.
func CheckRate(rate decimal.Decimal) error {
	if !utils.FitsPlaces(rate, RatePlaces) {
		return customError.WrapInvalidLoanParameters(fmt.Sprintf("annual interest rate must have at most %d decimal places", RatePlaces))
	}
	return nil
}

// Loan represents a loan entity. Direct loans are recorded by an admin with
// fixed terms; applications carry a nullable rate until an admin reviews them.
type Loan struct {
	ID                 uuid.UUID           `json:"id" db:"id"`
	LoanID             string              `json:"loan_id" db:"loan_id"`
	Kind               LoanKind            `json:"kind" db:"kind"`
	Owner              string              `json:"owner" db:"owner"`
	BorrowerName       string              `json:"borrower_name" db:"borrower_name"`
	Principal          decimal.Decimal     `json:"principal" db:"principal"`
	AnnualInterestRate decimal.NullDecimal `json:"annual_interest_rate" db:"annual_interest_rate"`
	DurationMonths     int                 `json:"duration_months" db:"duration_months"`
	Purpose            string              `json:"purpose,omitempty" db:"purpose"`
	MonthlyIncome      decimal.NullDecimal `json:"monthly_income" db:"monthly_income"`
	EmploymentType     string              `json:"employment_type,omitempty" db:"employment_type"`
	Status             LoanStatus          `json:"status" db:"status"`
	AdminNotes         string              `json:"admin_notes,omitempty" db:"admin_notes"`
	ReviewedBy         string              `json:"reviewed_by,omitempty" db:"reviewed_by"`
	CreatedAt          time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at" db:"updated_at"`
	ReviewedAt         *time.Time          `json:"reviewed_at,omitempty" db:"reviewed_at"`
	ApprovedAt         *time.Time          `json:"approved_at,omitempty" db:"approved_at"`
	AcceptedAt         *time.Time          `json:"accepted_at,omitempty" db:"accepted_at"`
	RejectedAt         *time.Time          `json:"rejected_at,omitempty" db:"rejected_at"`

	Payments []*Payment `json:"payments" db:"-"`
}

// Terms returns the amortization inputs of the loan. Loans without a rate
// (pending or rejected applications) have no terms yet.
func (l *Loan) Terms() (amortization.Terms, error) {
	if !l.AnnualInterestRate.Valid {
		return amortization.Terms{}, customError.WrapInterestRateRequired(l.LoanID)
	}
	t := amortization.Terms{
		Principal:         l.Principal,
		AnnualRatePercent: l.AnnualInterestRate.Decimal,
		Months:            l.DurationMonths,
	}
	return t, t.Validate()
}

// TotalPaid sums the loaded payments.
func (l *Loan) TotalPaid() decimal.Decimal {
	amounts := make([]decimal.Decimal, 0, len(l.Payments))
	for _, p := range l.Payments {
		amounts = append(amounts, p.Amount)
	}
	return amortization.TotalPaid(amounts)
}

// Figures computes the repayment figures from the loaded payments.
func (l *Loan) Figures() (amortization.Figures, error) {
	t, err := l.Terms()
	if err != nil {
		return amortization.Figures{}, err
	}
	return amortization.Compute(t, l.TotalPaid())
}

// StartedAt is the date repayment counts from: acceptance for applications,
// creation for direct loans.
func (l *Loan) StartedAt() time.Time {
	if l.AcceptedAt != nil {
		return *l.AcceptedAt
	}
	return l.CreatedAt
}

// DisplayName is the borrower as shown in listings.
func (l *Loan) DisplayName() string {
	if l.BorrowerName != "" {
		return l.BorrowerName
	}
	return l.Owner
}

// DTOs for requests and responses

type CreateDirectLoanRequest struct {
	BorrowerName       string          `json:"borrower_name" validate:"required,max=120"`
	Owner              string          `json:"owner" validate:"omitempty,max=64"`
	Principal          decimal.Decimal `json:"principal" validate:"decimal_gt=0,decimal_places=2"`
	AnnualInterestRate decimal.Decimal `json:"annual_interest_rate" validate:"decimal_gte=0,decimal_places=4"`
	DurationMonths     int             `json:"duration_months" validate:"required,gt=0,lte=600"`
}

type UpdateDirectLoanRequest struct {
	BorrowerName       string          `json:"borrower_name" validate:"required,max=120"`
	Principal          decimal.Decimal `json:"principal" validate:"decimal_gt=0,decimal_places=2"`
	AnnualInterestRate decimal.Decimal `json:"annual_interest_rate" validate:"decimal_gte=0,decimal_places=4"`
	DurationMonths     int             `json:"duration_months" validate:"required,gt=0,lte=600"`
}

type ApplyLoanRequest struct {
	Principal      decimal.Decimal `json:"principal" validate:"decimal_gt=0,decimal_places=2"`
	DurationMonths int             `json:"duration_months" validate:"required,gt=0,lte=600"`
	Purpose        string          `json:"purpose" validate:"required,max=500"`
	MonthlyIncome  decimal.Decimal `json:"monthly_income" validate:"decimal_gte=0,decimal_places=2"`
	EmploymentType string          `json:"employment_type" validate:"required,oneof=salaried self_employed business student retired other"`
}

type ReviewDecision string

const (
	ReviewApprove ReviewDecision = "approve"
	ReviewReject  ReviewDecision = "reject"
)

type ReviewRequest struct {
	Decision           ReviewDecision      `json:"decision" validate:"required,oneof=approve reject"`
	AnnualInterestRate decimal.NullDecimal `json:"annual_interest_rate"`
	Notes              string              `json:"notes" validate:"max=1000"`
}

type DeclineRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// LoanFilter narrows a listing. Empty fields match everything.
type LoanFilter struct {
	Owner  string     `json:"owner,omitempty"`
	Status LoanStatus `json:"status,omitempty"`
	Search string     `json:"search,omitempty"`
}

// LoanView is a loan together with its derived figures. Figures are present
// only for loans that have terms.
type LoanView struct {
	*Loan
	Figures *amortization.Figures `json:"figures,omitempty"`
}

type OutstandingResponse struct {
	LoanID          string              `json:"loan_id"`
	Outstanding     decimal.Decimal     `json:"outstanding"`
	TotalPaid       decimal.Decimal     `json:"total_paid"`
	TotalPayable    decimal.Decimal     `json:"total_payable"`
	RepaymentStatus amortization.Status `json:"repayment_status"`
}
