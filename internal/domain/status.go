package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

// LoanStatus is the stored workflow state of a loan. It only changes through
// the transitions below; the repayment label (active, completing, paid) is
// derived separately by the amortization package.
type LoanStatus string

const (
	LoanStatusPending                LoanStatus = "pending"
	LoanStatusAwaitingUserAcceptance LoanStatus = "awaiting_user_acceptance"
	LoanStatusApproved               LoanStatus = "approved"
	LoanStatusRejected               LoanStatus = "rejected"
)

var transitions = map[LoanStatus][]LoanStatus{
	LoanStatusPending:                {LoanStatusAwaitingUserAcceptance, LoanStatusRejected},
	LoanStatusAwaitingUserAcceptance: {LoanStatusApproved, LoanStatusRejected},
}

func (s LoanStatus) Valid() bool {
	switch s {
	case LoanStatusPending, LoanStatusAwaitingUserAcceptance, LoanStatusApproved, LoanStatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s LoanStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether the table allows from -> to.
func CanTransition(from, to LoanStatus) bool {
	return slices.Contains(transitions[from], to)
}

func (l *Loan) transition(to LoanStatus, at time.Time) error {
	if !CanTransition(l.Status, to) {
		return customError.WrapInvalidStatusTransition(l.LoanID, string(l.Status), string(to))
	}
	l.Status = to
	l.UpdatedAt = at
	return nil
}

// Offer moves a pending application to awaiting_user_acceptance with the
// admin's rate.
func (l *Loan) Offer(rate decimal.NullDecimal, reviewer, notes string, at time.Time) error {
	if !rate.Valid {
		return customError.WrapInterestRateRequired(l.LoanID)
	}
	if rate.Decimal.IsNegative() {
		return customError.WrapInvalidLoanParameters("annual interest rate must not be negative")
	}
	if err := CheckRate(rate.Decimal); err != nil {
		return err
	}
	if l.Status != LoanStatusPending {
		return customError.WrapInvalidStatusTransition(l.LoanID, string(l.Status), string(LoanStatusAwaitingUserAcceptance))
	}
	if err := l.transition(LoanStatusAwaitingUserAcceptance, at); err != nil {
		return err
	}

	l.AnnualInterestRate = rate
	l.AdminNotes = notes
	l.ReviewedBy = reviewer
	l.ReviewedAt = &at
	l.ApprovedAt = &at
	return nil
}

// Reject closes a pending application on the admin's side. No rate is kept.
func (l *Loan) Reject(reviewer, notes string, at time.Time) error {
	if l.Status != LoanStatusPending {
		return customError.WrapInvalidStatusTransition(l.LoanID, string(l.Status), string(LoanStatusRejected))
	}
	if err := l.transition(LoanStatusRejected, at); err != nil {
		return err
	}

	l.AnnualInterestRate = decimal.NullDecimal{}
	l.AdminNotes = notes
	l.ReviewedBy = reviewer
	l.ReviewedAt = &at
	l.RejectedAt = &at
	return nil
}

// Accept is the borrower taking the offer.
func (l *Loan) Accept(at time.Time) error {
	if err := l.transition(LoanStatusApproved, at); err != nil {
		return err
	}
	l.AcceptedAt = &at
	return nil
}

// Decline is the borrower turning the offer down. The offered rate is dropped.
func (l *Loan) Decline(at time.Time) error {
	if l.Status != LoanStatusAwaitingUserAcceptance {
		return customError.WrapInvalidStatusTransition(l.LoanID, string(l.Status), string(LoanStatusRejected))
	}
	if err := l.transition(LoanStatusRejected, at); err != nil {
		return err
	}

	if l.AdminNotes == "" {
		l.AdminNotes = RejectionByUserNote
	} else {
		l.AdminNotes += " " + RejectionByUserNote
	}
	l.AnnualInterestRate = decimal.NullDecimal{}
	l.RejectedAt = &at
	return nil
}
