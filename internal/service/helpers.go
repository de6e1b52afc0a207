package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/segyhp/loan-ledger/internal/amortization"
	"github.com/segyhp/loan-ledger/internal/cache"
	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/repository"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
	"github.com/segyhp/loan-ledger/pkg/logger"
)

// storageError keeps business errors raised by a repository and wraps
// anything else as a database failure.
func storageError(err error) error {
	if customError.CodeOf(err) != "" {
		return err
	}
	return customError.WrapDatabaseError(err)
}

// checkTermsScale rejects terms the stores could not hold exactly.
func checkTermsScale(terms amortization.Terms) error {
	if err := domain.CheckMoney("principal", terms.Principal); err != nil {
		return err
	}
	return domain.CheckRate(terms.AnnualRatePercent)
}

func view(loan *domain.Loan) (*domain.LoanView, error) {
	if loan.Payments == nil {
		loan.Payments = []*domain.Payment{}
	}

	v := &domain.LoanView{Loan: loan}
	if !loan.AnnualInterestRate.Valid {
		return v, nil
	}

	figures, err := loan.Figures()
	if err != nil {
		return nil, err
	}
	v.Figures = &figures
	return v, nil
}

func views(loans []*domain.Loan) ([]*domain.LoanView, error) {
	out := make([]*domain.LoanView, 0, len(loans))
	for _, l := range loans {
		v, err := view(l)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// loadLoans lists loans by owner and status and attaches their payments.
func loadLoans(ctx context.Context, loanRepo repository.LoanRepository, paymentRepo repository.PaymentRepository, filter domain.LoanFilter) ([]*domain.Loan, error) {
	loans, err := loanRepo.List(ctx, domain.LoanFilter{Owner: filter.Owner, Status: filter.Status})
	if err != nil {
		return nil, storageError(err)
	}
	if len(loans) == 0 {
		return loans, nil
	}

	ids := make([]string, 0, len(loans))
	for _, l := range loans {
		ids = append(ids, l.LoanID)
	}

	byLoan, err := paymentRepo.ListByLoanIDs(ctx, ids)
	if err != nil {
		return nil, storageError(err)
	}
	for _, l := range loans {
		l.Payments = byLoan[l.LoanID]
	}
	return loans, nil
}

// invalidateSummaries only logs failures; stale entries expire on their TTL.
func invalidateSummaries(ctx context.Context, summaries cache.SummaryCache) {
	if err := summaries.Invalidate(ctx); err != nil {
		logger.CtxWarn(ctx, "failed to invalidate summary cache", zap.Error(err))
	}
}
