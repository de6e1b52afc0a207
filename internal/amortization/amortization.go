// Package amortization computes fixed-instalment loan figures.
//
// Every figure is a pure function of the loan terms and the amounts paid so
// far. Arithmetic is done in decimal at full precision. The billed monthly
// instalment is the EMI rounded to cents, and the total payable is whichever
// is larger: the billed instalments or the exact annuity total rounded to
// cents. Paying the instalment every month therefore never settles less than
// the annuity owes; the final instalment absorbs any shortfall.
package amortization

import (
	"github.com/shopspring/decimal"

	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

// internalPlaces bounds the scale of intermediate results such as (1+r)^n.
const internalPlaces int32 = 20

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
	two     = decimal.NewFromInt(2)
)

// Terms are the inputs every figure is derived from.
type Terms struct {
	Principal         decimal.Decimal
	AnnualRatePercent decimal.Decimal
	Months            int
}

// Figures is the full set of derived numbers for one loan.
type Figures struct {
	EMI           decimal.Decimal `json:"emi"`
	Installment   decimal.Decimal `json:"installment"`
	TotalPayable  decimal.Decimal `json:"total_payable"`
	TotalInterest decimal.Decimal `json:"total_interest"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	Remaining     decimal.Decimal `json:"remaining"`
	Status        Status          `json:"repayment_status"`
}

// Validate rejects terms outside the engine's domain.
func (t Terms) Validate() error {
	if !t.Principal.IsPositive() {
		return customError.WrapInvalidLoanParameters("principal must be greater than 0")
	}
	if t.AnnualRatePercent.IsNegative() {
		return customError.WrapInvalidLoanParameters("annual interest rate must not be negative")
	}
	if t.Months < 1 {
		return customError.WrapInvalidLoanParameters("duration must be at least 1 month")
	}
	return nil
}

// MonthlyRate converts an annual percentage into a monthly fraction.
func MonthlyRate(annualRatePercent decimal.Decimal) decimal.Decimal {
	return annualRatePercent.DivRound(twelve, internalPlaces).DivRound(hundred, internalPlaces)
}

// EMI returns the exact annuity payment, unrounded.
func EMI(t Terms) (decimal.Decimal, error) {
	if err := t.Validate(); err != nil {
		return decimal.Zero, err
	}
	return emi(t), nil
}

func emi(t Terms) decimal.Decimal {
	months := decimal.NewFromInt(int64(t.Months))
	r := MonthlyRate(t.AnnualRatePercent)
	if r.IsZero() {
		return t.Principal.DivRound(months, internalPlaces)
	}

	factor := pow(decimal.NewFromInt(1).Add(r), t.Months)
	numerator := t.Principal.Mul(r).Mul(factor)
	return numerator.DivRound(factor.Sub(decimal.NewFromInt(1)), internalPlaces)
}

// Installment is the EMI rounded half-up to cents; this is the amount billed each month.
func Installment(t Terms) (decimal.Decimal, error) {
	if err := t.Validate(); err != nil {
		return decimal.Zero, err
	}
	return emi(t).Round(2), nil
}

// TotalPayable is the principal itself for interest-free loans. Otherwise it
// is Installment * Months, raised to EMI * Months (rounded to cents) when the
// instalment was rounded down.
func TotalPayable(t Terms) (decimal.Decimal, error) {
	if err := t.Validate(); err != nil {
		return decimal.Zero, err
	}
	return totalPayable(t), nil
}

func totalPayable(t Terms) decimal.Decimal {
	if MonthlyRate(t.AnnualRatePercent).IsZero() {
		return t.Principal
	}
	months := decimal.NewFromInt(int64(t.Months))
	exact := emi(t)
	return decimal.Max(exact.Round(2).Mul(months), exact.Mul(months).Round(2))
}

// TotalInterest is TotalPayable minus the principal.
func TotalInterest(t Terms) (decimal.Decimal, error) {
	if err := t.Validate(); err != nil {
		return decimal.Zero, err
	}
	return totalPayable(t).Sub(t.Principal), nil
}

// TotalPaid sums payment amounts.
func TotalPaid(amounts []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, amount := range amounts {
		total = total.Add(amount)
	}
	return total
}

// Remaining is TotalPayable minus paid, floored at zero.
func Remaining(t Terms, paid decimal.Decimal) (decimal.Decimal, error) {
	if err := t.Validate(); err != nil {
		return decimal.Zero, err
	}
	return remaining(totalPayable(t), paid), nil
}

func remaining(payable, paid decimal.Decimal) decimal.Decimal {
	left := payable.Sub(paid)
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}

// Compute derives all figures and the repayment status in one pass.
func Compute(t Terms, paid decimal.Decimal) (Figures, error) {
	if err := t.Validate(); err != nil {
		return Figures{}, err
	}

	exact := emi(t)
	installment := exact.Round(2)
	payable := totalPayable(t)
	left := remaining(payable, paid)

	return Figures{
		EMI:           exact,
		Installment:   installment,
		TotalPayable:  payable,
		TotalInterest: payable.Sub(t.Principal),
		TotalPaid:     paid,
		Remaining:     left,
		Status:        Classify(left, installment),
	}, nil
}

// pow raises base to a non-negative integer power by squaring, keeping
// intermediate results at internalPlaces.
func pow(base decimal.Decimal, n int) decimal.Decimal {
	result := decimal.NewFromInt(1)
	for n > 0 {
		if n&1 == 1 {
			result = result.Mul(base).Round(internalPlaces)
		}
		base = base.Mul(base).Round(internalPlaces)
		n >>= 1
	}
	return result
}
