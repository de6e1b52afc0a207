package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-ledger/internal/amortization"
)

type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodUPI          PaymentMethod = "upi"
	PaymentMethodCheque       PaymentMethod = "cheque"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodOther        PaymentMethod = "other"
)

// WarningOverpayment marks a payment accepted above the remaining balance.
const WarningOverpayment = "OVERPAYMENT"

// Payment represents a repayment recorded against a loan
type Payment struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	LoanID     string          `json:"loan_id" db:"loan_id"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	PaidOn     time.Time       `json:"paid_on" db:"paid_on"`
	Method     PaymentMethod   `json:"method" db:"method"`
	Notes      string          `json:"notes,omitempty" db:"notes"`
	RecordedBy string          `json:"recorded_by" db:"recorded_by"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

type RecordPaymentRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"decimal_gt=0,decimal_places=2"`
	PaidOn *time.Time      `json:"paid_on"`
	Method PaymentMethod   `json:"method" validate:"required,oneof=cash bank_transfer upi cheque card other"`
	Notes  string          `json:"notes" validate:"max=500"`
}

type PaymentResponse struct {
	Payment *Payment             `json:"payment"`
	Figures amortization.Figures `json:"figures"`
	Warning string               `json:"warning,omitempty"`
}
