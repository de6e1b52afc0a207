package amortization

import "github.com/shopspring/decimal"

// Status is the repayment label of a disbursed loan. It is never stored;
// it is recomputed from the remaining balance on every read.
type Status string

const (
	StatusActive     Status = "active"
	StatusCompleting Status = "completing"
	StatusPaid       Status = "paid"
)

// Classify labels a loan from its remaining balance. A loan is completing
// once less than two instalments are left.
func Classify(remaining, installment decimal.Decimal) Status {
	switch {
	case !remaining.IsPositive():
		return StatusPaid
	case remaining.LessThan(installment.Mul(two)):
		return StatusCompleting
	default:
		return StatusActive
	}
}
