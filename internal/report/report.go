// Package report aggregates loans into portfolio figures. Every function is
// pure: it reads loans with their payments loaded and returns new values.
package report

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-ledger/internal/amortization"
	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/pkg/utils"
)

var hundred = decimal.NewFromInt(100)

// Summary is the portfolio dashboard. Money totals cover approved loans only.
// Outstanding sums the per-loan remaining balance; Overpaid sums whatever was
// paid beyond a loan's total payable, so TotalPayable - TotalPaid always
// equals Outstanding - Overpaid.
type Summary struct {
	TotalLoans        int                         `json:"total_loans"`
	ByStatus          map[domain.LoanStatus]int   `json:"by_status"`
	ByRepaymentStatus map[amortization.Status]int `json:"by_repayment_status"`
	TotalPrincipal    decimal.Decimal             `json:"total_principal"`
	TotalPayable      decimal.Decimal             `json:"total_payable"`
	TotalInterest     decimal.Decimal             `json:"total_interest"`
	TotalPaid         decimal.Decimal             `json:"total_paid"`
	Outstanding       decimal.Decimal             `json:"outstanding"`
	Overpaid          decimal.Decimal             `json:"overpaid"`
	CollectionRate    decimal.Decimal             `json:"collection_rate"`
	ActiveBorrowers   int                         `json:"active_borrowers"`
}

// Filter returns the loans matching every non-empty field of f. Search is a
// case-insensitive substring match on loan id, owner and borrower name.
func Filter(loans []*domain.Loan, f domain.LoanFilter) []*domain.Loan {
	search := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]*domain.Loan, 0, len(loans))
	for _, l := range loans {
		if f.Owner != "" && l.Owner != f.Owner {
			continue
		}
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		if search != "" && !matches(l, search) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func matches(l *domain.Loan, search string) bool {
	for _, field := range []string{l.LoanID, l.Owner, l.BorrowerName} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

// Summarize computes the dashboard figures.
func Summarize(loans []*domain.Loan) (Summary, error) {
	s := Summary{
		TotalLoans:        len(loans),
		ByStatus:          map[domain.LoanStatus]int{},
		ByRepaymentStatus: map[amortization.Status]int{},
		TotalPrincipal:    decimal.Zero,
		TotalPayable:      decimal.Zero,
		TotalInterest:     decimal.Zero,
		TotalPaid:         decimal.Zero,
		Outstanding:       decimal.Zero,
		Overpaid:          decimal.Zero,
		CollectionRate:    decimal.Zero,
	}

	borrowers := map[string]struct{}{}
	for _, l := range loans {
		s.ByStatus[l.Status]++
		if l.Status != domain.LoanStatusApproved {
			continue
		}

		f, err := l.Figures()
		if err != nil {
			return Summary{}, err
		}

		s.ByRepaymentStatus[f.Status]++
		s.TotalPrincipal = s.TotalPrincipal.Add(l.Principal)
		s.TotalPayable = s.TotalPayable.Add(f.TotalPayable)
		s.TotalInterest = s.TotalInterest.Add(f.TotalInterest)
		s.TotalPaid = s.TotalPaid.Add(f.TotalPaid)
		s.Outstanding = s.Outstanding.Add(f.Remaining)
		if excess := f.TotalPaid.Sub(f.TotalPayable); excess.IsPositive() {
			s.Overpaid = s.Overpaid.Add(excess)
		}

		borrowers[strings.ToLower(l.DisplayName())] = struct{}{}
	}

	s.ActiveBorrowers = len(borrowers)
	s.CollectionRate = CollectionRate(s.TotalPaid, s.TotalPayable)
	return s, nil
}

// CollectionRate is paid/payable as a percentage with one decimal place, or
// zero when nothing is payable.
func CollectionRate(paid, payable decimal.Decimal) decimal.Decimal {
	if !payable.IsPositive() {
		return decimal.Zero
	}
	return paid.Mul(hundred).DivRound(payable, 1)
}

// TrendPoint is the money collected in one calendar month.
type TrendPoint struct {
	Month    string          `json:"month"`
	Label    string          `json:"label"`
	Amount   decimal.Decimal `json:"amount"`
	Payments int             `json:"payments"`
}

// MonthlyTrend buckets every payment by the UTC calendar month of its paid-on
// date, oldest month first.
func MonthlyTrend(loans []*domain.Loan) []TrendPoint {
	buckets := map[string]*TrendPoint{}
	for _, l := range loans {
		for _, p := range l.Payments {
			key := utils.MonthKey(p.PaidOn)
			point, ok := buckets[key]
			if !ok {
				point = &TrendPoint{Month: key, Label: p.PaidOn.UTC().Format("Jan 2006"), Amount: decimal.Zero}
				buckets[key] = point
			}
			point.Amount = point.Amount.Add(p.Amount)
			point.Payments++
		}
	}

	trend := make([]TrendPoint, 0, len(buckets))
	for _, point := range buckets {
		trend = append(trend, *point)
	}
	slices.SortFunc(trend, func(a, b TrendPoint) int {
		return strings.Compare(a.Month, b.Month)
	})
	return trend
}

// Profile totals one user's borrowing. Only approved loans carry money.
func Profile(user *domain.User, loans []*domain.Loan) (domain.UserProfile, error) {
	p := domain.UserProfile{
		User:        user,
		Borrowed:    decimal.Zero,
		TotalPaid:   decimal.Zero,
		Outstanding: decimal.Zero,
	}

	for _, l := range loans {
		if l.Owner != user.Username {
			continue
		}
		p.TotalLoans++
		if l.Status != domain.LoanStatusApproved {
			continue
		}

		f, err := l.Figures()
		if err != nil {
			return domain.UserProfile{}, err
		}
		p.Borrowed = p.Borrowed.Add(l.Principal)
		p.TotalPaid = p.TotalPaid.Add(f.TotalPaid)
		p.Outstanding = p.Outstanding.Add(f.Remaining)
	}
	return p, nil
}

// RecentApplications returns the n newest customer applications.
func RecentApplications(loans []*domain.Loan, n int) []*domain.Loan {
	apps := make([]*domain.Loan, 0, len(loans))
	for _, l := range loans {
		if l.Kind == domain.LoanKindApplication {
			apps = append(apps, l)
		}
	}

	slices.SortStableFunc(apps, func(a, b *domain.Loan) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(apps) > n {
		apps = apps[:n]
	}
	return apps
}
