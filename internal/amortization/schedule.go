package amortization

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-ledger/pkg/utils"
)

// ScheduleEntry is one month of the amortization table.
type ScheduleEntry struct {
	Month     int             `json:"month"`
	DueDate   time.Time       `json:"due_date"`
	Payment   decimal.Decimal `json:"payment"`
	Interest  decimal.Decimal `json:"interest"`
	Principal decimal.Decimal `json:"principal"`
	Balance   decimal.Decimal `json:"balance"`
}

// Schedule splits every instalment into interest and principal. Instalment k
// is due k months after start. The rows add up to TotalPayable and the final
// row clears the balance, absorbing any rounding.
func Schedule(t Terms, start time.Time) ([]ScheduleEntry, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	r := MonthlyRate(t.AnnualRatePercent)
	installment := emi(t).Round(2)
	unbilled := totalPayable(t)
	balance := t.Principal

	entries := make([]ScheduleEntry, 0, t.Months)
	for month := 1; month <= t.Months; month++ {
		interest := balance.Mul(r).Round(2)

		payment := installment
		if month == t.Months || payment.GreaterThan(unbilled) {
			payment = unbilled
		}

		principal := payment.Sub(interest)
		if principal.IsNegative() {
			principal = decimal.Zero
			interest = payment
		}
		if month == t.Months || principal.GreaterThan(balance) {
			principal = balance
			interest = payment.Sub(principal)
		}

		balance = balance.Sub(principal)
		unbilled = unbilled.Sub(payment)

		entries = append(entries, ScheduleEntry{
			Month:     month,
			DueDate:   utils.CalculateDueDate(start, month),
			Payment:   payment,
			Interest:  interest,
			Principal: principal,
			Balance:   balance,
		})
	}

	return entries, nil
}
