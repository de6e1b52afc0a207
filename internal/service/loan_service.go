package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/segyhp/loan-ledger/internal/amortization"
	"github.com/segyhp/loan-ledger/internal/cache"
	"github.com/segyhp/loan-ledger/internal/config"
	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/report"
	"github.com/segyhp/loan-ledger/internal/repository"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
	"github.com/segyhp/loan-ledger/pkg/logger"
	"github.com/segyhp/loan-ledger/pkg/utils"
)

type LoanService struct {
	loanRepo    repository.LoanRepository
	paymentRepo repository.PaymentRepository
	cache       cache.SummaryCache
	config      *config.Config
	locks       *keyedMutex
	now         func() time.Time
}

func NewLoanService(
	loanRepo repository.LoanRepository,
	paymentRepo repository.PaymentRepository,
	summaryCache cache.SummaryCache,
	config *config.Config,
) *LoanService {
	return &LoanService{
		loanRepo:    loanRepo,
		paymentRepo: paymentRepo,
		cache:       summaryCache,
		config:      config,
		locks:       newKeyedMutex(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateDirectLoan records a loan with fixed terms. It starts out approved.
func (s *LoanService) CreateDirectLoan(ctx context.Context, session domain.Session, request *domain.CreateDirectLoanRequest) (*domain.LoanView, error) {
	if !session.IsAdmin() {
		return nil, customError.WrapForbidden("only admins can record direct loans")
	}

	terms := amortization.Terms{
		Principal:         request.Principal,
		AnnualRatePercent: request.AnnualInterestRate,
		Months:            request.DurationMonths,
	}
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	if err := checkTermsScale(terms); err != nil {
		return nil, err
	}

	owner := request.Owner
	if owner == "" {
		owner = session.Username
	}

	now := s.now()
	loan := &domain.Loan{
		ID:                 uuid.New(),
		LoanID:             utils.GenerateLoanID(now),
		Kind:               domain.LoanKindDirect,
		Owner:              owner,
		BorrowerName:       request.BorrowerName,
		Principal:          request.Principal,
		AnnualInterestRate: decimal.NewNullDecimal(request.AnnualInterestRate),
		DurationMonths:     request.DurationMonths,
		Status:             domain.LoanStatusApproved,
		ReviewedBy:         session.Username,
		CreatedAt:          now,
		UpdatedAt:          now,
		ApprovedAt:         &now,
	}

	if err := s.loanRepo.Create(ctx, loan); err != nil {
		return nil, storageError(err)
	}

	logger.CtxInfo(ctx, "direct loan created",
		zap.String("loan_id", loan.LoanID),
		zap.String("created_by", session.Username),
	)
	s.invalidate(ctx)

	return view(loan)
}

// UpdateDirectLoan edits the terms of a direct loan. Recorded payments are kept.
func (s *LoanService) UpdateDirectLoan(ctx context.Context, session domain.Session, loanID string, request *domain.UpdateDirectLoanRequest) (*domain.LoanView, error) {
	if !session.IsAdmin() {
		return nil, customError.WrapForbidden("only admins can edit loans")
	}

	unlock := s.locks.Lock(loanID)
	defer unlock()

	loan, err := s.loanRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, storageError(err)
	}
	if loan.Kind != domain.LoanKindDirect {
		return nil, customError.WrapInvalidLoanParameters("only direct loans can be edited")
	}

	terms := amortization.Terms{
		Principal:         request.Principal,
		AnnualRatePercent: request.AnnualInterestRate,
		Months:            request.DurationMonths,
	}
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	if err := checkTermsScale(terms); err != nil {
		return nil, err
	}

	loan.BorrowerName = request.BorrowerName
	loan.Principal = request.Principal
	loan.AnnualInterestRate = decimal.NewNullDecimal(request.AnnualInterestRate)
	loan.DurationMonths = request.DurationMonths
	loan.UpdatedAt = s.now()

	if err := s.loanRepo.Update(ctx, loan); err != nil {
		return nil, storageError(err)
	}
	if err := s.withPayments(ctx, loan); err != nil {
		return nil, err
	}
	s.invalidate(ctx)

	return view(loan)
}

// DeleteLoan removes a loan together with its payments. If the loan itself
// cannot be deleted, its payments are stored again.
func (s *LoanService) DeleteLoan(ctx context.Context, session domain.Session, loanID string) error {
	if !session.IsAdmin() {
		return customError.WrapForbidden("only admins can delete loans")
	}

	unlock := s.locks.Lock(loanID)
	defer unlock()

	if _, err := s.loanRepo.GetByLoanID(ctx, loanID); err != nil {
		return storageError(err)
	}
	payments, err := s.paymentRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		return storageError(err)
	}
	if err := s.paymentRepo.DeleteByLoanID(ctx, loanID); err != nil {
		return storageError(err)
	}
	if err := s.loanRepo.Delete(ctx, loanID); err != nil {
		s.restorePayments(ctx, loanID, payments)
		return storageError(err)
	}

	logger.CtxInfo(ctx, "loan deleted", zap.String("loan_id", loanID), zap.String("deleted_by", session.Username))
	s.invalidate(ctx)
	return nil
}

func (s *LoanService) restorePayments(ctx context.Context, loanID string, payments []*domain.Payment) {
	for _, p := range payments {
		if err := s.paymentRepo.Create(ctx, p); err != nil {
			logger.CtxError(ctx, "failed to restore payment after loan delete failed", err,
				zap.String("loan_id", loanID),
				zap.String("payment_id", p.ID.String()),
			)
		}
	}
}

func (s *LoanService) GetLoan(ctx context.Context, session domain.Session, loanID string) (*domain.LoanView, error) {
	loan, err := s.accessibleLoan(ctx, session, loanID)
	if err != nil {
		return nil, err
	}
	if err := s.withPayments(ctx, loan); err != nil {
		return nil, err
	}
	return view(loan)
}

// ListLoans returns the loans visible to the session. Users only ever see
// their own loans, whatever owner the filter names.
func (s *LoanService) ListLoans(ctx context.Context, session domain.Session, filter domain.LoanFilter) ([]*domain.LoanView, error) {
	if !session.IsAdmin() {
		filter.Owner = session.Username
	}

	loans, err := loadLoans(ctx, s.loanRepo, s.paymentRepo, filter)
	if err != nil {
		return nil, err
	}
	return views(report.Filter(loans, filter))
}

// ApplyForLoan submits a customer application. The rate is set later by an admin.
func (s *LoanService) ApplyForLoan(ctx context.Context, session domain.Session, request *domain.ApplyLoanRequest) (*domain.LoanView, error) {
	if session.IsAdmin() {
		return nil, customError.WrapForbidden("admins record direct loans instead of applying")
	}

	terms := amortization.Terms{Principal: request.Principal, Months: request.DurationMonths}
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	if err := domain.CheckMoney("principal", request.Principal); err != nil {
		return nil, err
	}
	if err := domain.CheckMoney("monthly income", request.MonthlyIncome); err != nil {
		return nil, err
	}

	now := s.now()
	loan := &domain.Loan{
		ID:             uuid.New(),
		LoanID:         utils.GenerateLoanID(now),
		Kind:           domain.LoanKindApplication,
		Owner:          session.Username,
		Principal:      request.Principal,
		DurationMonths: request.DurationMonths,
		Purpose:        request.Purpose,
		MonthlyIncome:  decimal.NewNullDecimal(request.MonthlyIncome),
		EmploymentType: request.EmploymentType,
		Status:         domain.LoanStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.loanRepo.Create(ctx, loan); err != nil {
		return nil, storageError(err)
	}

	logger.CtxInfo(ctx, "loan application submitted", zap.String("loan_id", loan.LoanID), zap.String("owner", loan.Owner))
	s.invalidate(ctx)

	return view(loan)
}

// ReviewApplication approves a pending application with a rate, which turns
// it into an offer, or rejects it.
func (s *LoanService) ReviewApplication(ctx context.Context, session domain.Session, loanID string, request *domain.ReviewRequest) (*domain.LoanView, error) {
	if !session.IsAdmin() {
		return nil, customError.WrapForbidden("only admins can review applications")
	}

	unlock := s.locks.Lock(loanID)
	defer unlock()

	loan, err := s.loanRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, storageError(err)
	}

	now := s.now()
	switch request.Decision {
	case domain.ReviewApprove:
		err = loan.Offer(request.AnnualInterestRate, session.Username, request.Notes, now)
	case domain.ReviewReject:
		err = loan.Reject(session.Username, request.Notes, now)
	default:
		err = customError.WrapInvalidLoanParameters("decision must be approve or reject")
	}
	if err != nil {
		return nil, err
	}

	return s.save(ctx, loan, "loan application reviewed", zap.String("decision", string(request.Decision)))
}

// AcceptOffer is the owner taking an offer. Repayment counts from now.
func (s *LoanService) AcceptOffer(ctx context.Context, session domain.Session, loanID string) (*domain.LoanView, error) {
	unlock := s.locks.Lock(loanID)
	defer unlock()

	loan, err := s.ownedLoan(ctx, session, loanID)
	if err != nil {
		return nil, err
	}
	if err := loan.Accept(s.now()); err != nil {
		return nil, err
	}

	return s.save(ctx, loan, "loan offer accepted")
}

func (s *LoanService) DeclineOffer(ctx context.Context, session domain.Session, loanID string, request *domain.DeclineRequest) (*domain.LoanView, error) {
	unlock := s.locks.Lock(loanID)
	defer unlock()

	loan, err := s.ownedLoan(ctx, session, loanID)
	if err != nil {
		return nil, err
	}
	if err := loan.Decline(s.now()); err != nil {
		return nil, err
	}
	if request != nil && request.Reason != "" {
		loan.AdminNotes += " " + request.Reason
	}

	return s.save(ctx, loan, "loan offer declined")
}

// RecordPayment books a repayment against an approved loan. Payments above
// the remaining balance are refused unless overpayment is allowed, in which
// case the response carries a warning. If the loan cannot be updated after
// the payment was stored, the payment is removed again.
func (s *LoanService) RecordPayment(ctx context.Context, session domain.Session, loanID string, request *domain.RecordPaymentRequest) (*domain.PaymentResponse, error) {
	if !request.Amount.IsPositive() || !utils.FitsPlaces(request.Amount, domain.MoneyPlaces) {
		return nil, customError.WrapInvalidPaymentAmount(request.Amount.String())
	}

	unlock := s.locks.Lock(loanID)
	defer unlock()

	loan, err := s.accessibleLoan(ctx, session, loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != domain.LoanStatusApproved {
		return nil, customError.WrapLoanNotApproved(loanID, string(loan.Status))
	}
	if err := s.withPayments(ctx, loan); err != nil {
		return nil, err
	}

	before, err := loan.Figures()
	if err != nil {
		return nil, err
	}

	var warning string
	if request.Amount.GreaterThan(before.Remaining) {
		if !s.config.Business.AllowOverpayment {
			return nil, customError.WrapOverpayment(request.Amount.String(), before.Remaining.String())
		}
		warning = domain.WarningOverpayment
	}

	now := s.now()
	paidOn := utils.TruncateToDay(now)
	if request.PaidOn != nil {
		paidOn = *request.PaidOn
	}

	payment := &domain.Payment{
		ID:         uuid.New(),
		LoanID:     loanID,
		Amount:     request.Amount,
		PaidOn:     paidOn,
		Method:     request.Method,
		Notes:      request.Notes,
		RecordedBy: session.Username,
		CreatedAt:  now,
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, storageError(err)
	}

	if err := s.loanRepo.Touch(ctx, loanID, now); err != nil {
		if rollbackErr := s.paymentRepo.Delete(ctx, loanID, payment.ID); rollbackErr != nil {
			logger.CtxError(ctx, "failed to roll back payment", rollbackErr,
				zap.String("loan_id", loanID),
				zap.String("payment_id", payment.ID.String()),
			)
		}
		return nil, storageError(err)
	}

	loan.Payments = append(loan.Payments, payment)
	after, err := loan.Figures()
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.String("loan_id", loanID),
		zap.String("amount", payment.Amount.String()),
		zap.String("remaining", after.Remaining.String()),
	}
	if warning != "" {
		logger.CtxWarn(ctx, "overpayment recorded", fields...)
	} else {
		logger.CtxInfo(ctx, "payment recorded", fields...)
	}
	s.invalidate(ctx)

	return &domain.PaymentResponse{Payment: payment, Figures: after, Warning: warning}, nil
}

func (s *LoanService) ListPayments(ctx context.Context, session domain.Session, loanID string) ([]*domain.Payment, error) {
	if _, err := s.accessibleLoan(ctx, session, loanID); err != nil {
		return nil, err
	}

	payments, err := s.paymentRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, storageError(err)
	}
	return payments, nil
}

// GetSchedule returns the amortization table with each instalment marked
// paid once the payments cover it, overdue once its due date has passed.
func (s *LoanService) GetSchedule(ctx context.Context, session domain.Session, loanID string) (*domain.ScheduleResponse, error) {
	loan, err := s.accessibleLoan(ctx, session, loanID)
	if err != nil {
		return nil, err
	}
	if err := s.withPayments(ctx, loan); err != nil {
		return nil, err
	}

	terms, err := loan.Terms()
	if err != nil {
		return nil, err
	}
	entries, err := amortization.Schedule(terms, loan.StartedAt())
	if err != nil {
		return nil, err
	}

	paid := loan.TotalPaid()
	now := s.now()
	billed := decimal.Zero

	schedule := make([]*domain.LoanSchedule, 0, len(entries))
	for _, e := range entries {
		billed = billed.Add(e.Payment)

		status := domain.ScheduleStatusPending
		switch {
		case paid.GreaterThanOrEqual(billed):
			status = domain.ScheduleStatusPaid
		case utils.IsDateOverdue(e.DueDate, now):
			status = domain.ScheduleStatusOverdue
		}

		schedule = append(schedule, &domain.LoanSchedule{
			Month:     e.Month,
			DueDate:   e.DueDate,
			DueAmount: e.Payment,
			Interest:  e.Interest,
			Principal: e.Principal,
			Balance:   e.Balance,
			Status:    status,
		})
	}

	return &domain.ScheduleResponse{LoanID: loanID, Schedule: schedule}, nil
}

// GetOutstanding returns what is still owed on the loan.
func (s *LoanService) GetOutstanding(ctx context.Context, session domain.Session, loanID string) (*domain.OutstandingResponse, error) {
	loan, err := s.accessibleLoan(ctx, session, loanID)
	if err != nil {
		return nil, err
	}
	terms, err := loan.Terms()
	if err != nil {
		return nil, err
	}

	paid, err := s.paymentRepo.GetTotalPaid(ctx, loanID)
	if err != nil {
		return nil, storageError(err)
	}
	figures, err := amortization.Compute(terms, paid)
	if err != nil {
		return nil, err
	}

	return &domain.OutstandingResponse{
		LoanID:          loanID,
		Outstanding:     figures.Remaining,
		TotalPaid:       figures.TotalPaid,
		TotalPayable:    figures.TotalPayable,
		RepaymentStatus: figures.Status,
	}, nil
}

func (s *LoanService) accessibleLoan(ctx context.Context, session domain.Session, loanID string) (*domain.Loan, error) {
	loan, err := s.loanRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, storageError(err)
	}
	if !session.CanAccess(loan) {
		return nil, customError.WrapForbidden("you do not have access to this loan")
	}
	return loan, nil
}

func (s *LoanService) ownedLoan(ctx context.Context, session domain.Session, loanID string) (*domain.Loan, error) {
	loan, err := s.loanRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, storageError(err)
	}
	if loan.Owner != session.Username {
		return nil, customError.WrapForbidden("only the applicant can answer an offer")
	}
	return loan, nil
}

func (s *LoanService) withPayments(ctx context.Context, loan *domain.Loan) error {
	payments, err := s.paymentRepo.GetByLoanID(ctx, loan.LoanID)
	if err != nil {
		return storageError(err)
	}
	loan.Payments = payments
	return nil
}

func (s *LoanService) save(ctx context.Context, loan *domain.Loan, msg string, fields ...zap.Field) (*domain.LoanView, error) {
	if err := s.loanRepo.Update(ctx, loan); err != nil {
		return nil, storageError(err)
	}

	logger.CtxInfo(ctx, msg, append(fields,
		zap.String("loan_id", loan.LoanID),
		zap.String("status", string(loan.Status)),
	)...)
	s.invalidate(ctx)

	return view(loan)
}

func (s *LoanService) invalidate(ctx context.Context) {
	invalidateSummaries(ctx, s.cache)
}
