package service

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/segyhp/loan-ledger/internal/amortization"
	"github.com/segyhp/loan-ledger/internal/cache"
	"github.com/segyhp/loan-ledger/internal/config"
	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/export"
	"github.com/segyhp/loan-ledger/internal/report"
	"github.com/segyhp/loan-ledger/internal/repository"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
	"github.com/segyhp/loan-ledger/pkg/logger"
)

const scopeAll = "all"

type ReportService struct {
	loanRepo    repository.LoanRepository
	paymentRepo repository.PaymentRepository
	userRepo    repository.UserRepository
	cache       cache.SummaryCache
	config      *config.Config
	now         func() time.Time
}

func NewReportService(
	loanRepo repository.LoanRepository,
	paymentRepo repository.PaymentRepository,
	userRepo repository.UserRepository,
	summaryCache cache.SummaryCache,
	config *config.Config,
) *ReportService {
	return &ReportService{
		loanRepo:    loanRepo,
		paymentRepo: paymentRepo,
		userRepo:    userRepo,
		cache:       summaryCache,
		config:      config,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// scope is the cache key part and the owner filter a session reports over.
func scope(session domain.Session) (string, domain.LoanFilter) {
	if session.IsAdmin() {
		return scopeAll, domain.LoanFilter{}
	}
	return "owner:" + session.Username, domain.LoanFilter{Owner: session.Username}
}

// Summary returns the dashboard for the session: the whole portfolio for
// admins, their own loans for users. Cache failures fall back to computing.
func (s *ReportService) Summary(ctx context.Context, session domain.Session) (*report.Summary, error) {
	key, filter := scope(session)

	version, err := s.cache.Version(ctx)
	if err != nil {
		logger.CtxWarn(ctx, "summary cache version read failed", zap.String("scope", key), zap.Error(err))
		return s.summarize(ctx, "", key, filter)
	}

	cached, ok, err := s.cache.Get(ctx, version, key)
	if err != nil {
		logger.CtxWarn(ctx, "summary cache read failed", zap.String("scope", key), zap.Error(err))
	} else if ok {
		return cached, nil
	}

	return s.summarize(ctx, version, key, filter)
}

// WarmUp recomputes the portfolio summary and stores it in the cache.
func (s *ReportService) WarmUp(ctx context.Context) error {
	version, err := s.cache.Version(ctx)
	if err != nil {
		logger.CtxWarn(ctx, "summary cache version read failed", zap.String("scope", scopeAll), zap.Error(err))
		version = ""
	}
	_, err = s.summarize(ctx, version, scopeAll, domain.LoanFilter{})
	return err
}

// summarize computes a summary and stores it under the version read before
// loading. An empty version skips the write.
func (s *ReportService) summarize(ctx context.Context, version, key string, filter domain.LoanFilter) (*report.Summary, error) {
	loans, err := loadLoans(ctx, s.loanRepo, s.paymentRepo, filter)
	if err != nil {
		return nil, err
	}

	summary, err := report.Summarize(loans)
	if err != nil {
		return nil, err
	}

	if version == "" {
		return &summary, nil
	}
	if err := s.cache.Set(ctx, version, key, summary); err != nil {
		logger.CtxWarn(ctx, "summary cache write failed", zap.String("scope", key), zap.Error(err))
	}
	return &summary, nil
}

// Trend returns payments collected per month for the session's loans.
func (s *ReportService) Trend(ctx context.Context, session domain.Session) ([]report.TrendPoint, error) {
	_, filter := scope(session)

	loans, err := loadLoans(ctx, s.loanRepo, s.paymentRepo, filter)
	if err != nil {
		return nil, err
	}
	return report.MonthlyTrend(loans), nil
}

// Recent lists the newest applications for the admin dashboard.
func (s *ReportService) Recent(ctx context.Context, session domain.Session) ([]*domain.LoanView, error) {
	if !session.IsAdmin() {
		return nil, customError.WrapForbidden("only admins can list recent applications")
	}

	loans, err := loadLoans(ctx, s.loanRepo, s.paymentRepo, domain.LoanFilter{})
	if err != nil {
		return nil, err
	}
	return views(report.RecentApplications(loans, s.config.Business.RecentApplications))
}

// Profiles totals the borrowing of every registered user.
func (s *ReportService) Profiles(ctx context.Context, session domain.Session) ([]domain.UserProfile, error) {
	if !session.IsAdmin() {
		return nil, customError.WrapForbidden("only admins can list user profiles")
	}

	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, storageError(err)
	}
	loans, err := loadLoans(ctx, s.loanRepo, s.paymentRepo, domain.LoanFilter{})
	if err != nil {
		return nil, err
	}

	profiles := make([]domain.UserProfile, 0, len(users))
	for _, u := range users {
		p, err := report.Profile(u, loans)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// CompletingLoans returns approved loans close to being repaid.
func (s *ReportService) CompletingLoans(ctx context.Context) ([]*domain.LoanView, error) {
	loans, err := loadLoans(ctx, s.loanRepo, s.paymentRepo, domain.LoanFilter{Status: domain.LoanStatusApproved})
	if err != nil {
		return nil, err
	}

	all, err := views(loans)
	if err != nil {
		return nil, err
	}

	completing := make([]*domain.LoanView, 0, len(all))
	for _, v := range all {
		if v.Figures != nil && v.Figures.Status == amortization.StatusCompleting {
			completing = append(completing, v)
		}
	}
	return completing, nil
}

// Export writes the session's loans, payments and summary as XLSX to w.
func (s *ReportService) Export(ctx context.Context, session domain.Session, w io.Writer) error {
	_, filter := scope(session)

	loans, err := loadLoans(ctx, s.loanRepo, s.paymentRepo, filter)
	if err != nil {
		return err
	}
	summary, err := report.Summarize(loans)
	if err != nil {
		return err
	}

	logger.CtxInfo(ctx, "exporting ledger", zap.String("requested_by", session.Username), zap.Int("loans", len(loans)))
	return export.Write(w, loans, summary, s.now())
}
