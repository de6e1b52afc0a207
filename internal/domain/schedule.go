package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ScheduleStatusPending = "pending"
	ScheduleStatusPaid    = "paid"
	ScheduleStatusOverdue = "overdue"
)

// LoanSchedule is one instalment of a loan's repayment plan, with its
// standing against the payments made so far.
type LoanSchedule struct {
	Month     int             `json:"month"`
	DueDate   time.Time       `json:"due_date"`
	DueAmount decimal.Decimal `json:"due_amount"`
	Interest  decimal.Decimal `json:"interest"`
	Principal decimal.Decimal `json:"principal"`
	Balance   decimal.Decimal `json:"balance"`
	Status    string          `json:"status"` // pending, paid, overdue
}

type ScheduleResponse struct {
	LoanID   string          `json:"loan_id"`
	Schedule []*LoanSchedule `json:"schedule"`
}
