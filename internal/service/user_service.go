package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/segyhp/loan-ledger/internal/auth"
	"github.com/segyhp/loan-ledger/internal/cache"
	"github.com/segyhp/loan-ledger/internal/config"
	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/report"
	"github.com/segyhp/loan-ledger/internal/repository"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
	"github.com/segyhp/loan-ledger/pkg/logger"
)

type UserService struct {
	userRepo    repository.UserRepository
	loanRepo    repository.LoanRepository
	paymentRepo repository.PaymentRepository
	tokens      *auth.TokenManager
	cache       cache.SummaryCache
	config      *config.Config
	now         func() time.Time
}

func NewUserService(
	userRepo repository.UserRepository,
	loanRepo repository.LoanRepository,
	paymentRepo repository.PaymentRepository,
	tokens *auth.TokenManager,
	summaryCache cache.SummaryCache,
	config *config.Config,
) *UserService {
	return &UserService{
		userRepo:    userRepo,
		loanRepo:    loanRepo,
		paymentRepo: paymentRepo,
		tokens:      tokens,
		cache:       summaryCache,
		config:      config,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SignUp registers a customer account and signs it in.
func (s *UserService) SignUp(ctx context.Context, request *domain.SignUpRequest) (*domain.AuthResponse, error) {
	username := strings.TrimSpace(request.Username)
	if strings.EqualFold(username, s.config.Auth.AdminUsername) {
		return nil, customError.WrapUserAlreadyExists(username)
	}

	hash, err := auth.HashPassword(request.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        strings.TrimSpace(request.Email),
		Phone:        request.Phone,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		CreatedAt:    s.now(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, storageError(err)
	}

	logger.CtxInfo(ctx, "user signed up", zap.String("username", user.Username))
	return s.issue(domain.Session{Username: user.Username, Role: user.Role})
}

// SignIn checks credentials. The configured admin account is checked
// against the environment and never stored.
func (s *UserService) SignIn(ctx context.Context, request *domain.SignInRequest) (*domain.AuthResponse, error) {
	adminAuth := s.config.Auth
	if adminAuth.AdminPassword != "" && request.Username == adminAuth.AdminUsername {
		if subtle.ConstantTimeCompare([]byte(request.Password), []byte(adminAuth.AdminPassword)) != 1 {
			logger.CtxWarn(ctx, "admin sign-in failed")
			return nil, customError.WrapInvalidCredentials()
		}
		return s.issue(domain.Session{Username: adminAuth.AdminUsername, Role: domain.RoleAdmin})
	}

	user, err := s.userRepo.GetByUsername(ctx, request.Username)
	if customError.CodeOf(err) == customError.ErrCodeUserNotFound {
		return nil, customError.WrapInvalidCredentials()
	}
	if err != nil {
		return nil, storageError(err)
	}
	if !auth.CheckPassword(user.PasswordHash, request.Password) {
		logger.CtxWarn(ctx, "sign-in failed", zap.String("username", request.Username))
		return nil, customError.WrapInvalidCredentials()
	}

	return s.issue(domain.Session{Username: user.Username, Role: user.Role})
}

func (s *UserService) issue(session domain.Session) (*domain.AuthResponse, error) {
	token, expiresAt, err := s.tokens.Issue(session)
	if err != nil {
		return nil, err
	}
	return &domain.AuthResponse{Token: token, ExpiresAt: expiresAt, User: session}, nil
}

func (s *UserService) ListUsers(ctx context.Context, session domain.Session) ([]*domain.User, error) {
	if !session.IsAdmin() {
		return nil, customError.WrapForbidden("only admins can list users")
	}

	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, storageError(err)
	}
	return users, nil
}

// GetProfile is open to admins and to the user themselves.
func (s *UserService) GetProfile(ctx context.Context, session domain.Session, username string) (*domain.UserProfile, error) {
	if !session.IsAdmin() && session.Username != username {
		return nil, customError.WrapForbidden("you can only view your own profile")
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, storageError(err)
	}
	loans, err := loadLoans(ctx, s.loanRepo, s.paymentRepo, domain.LoanFilter{Owner: username})
	if err != nil {
		return nil, err
	}

	profile, err := report.Profile(user, loans)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// DeleteUser removes the account with every loan it owns and their payments.
func (s *UserService) DeleteUser(ctx context.Context, session domain.Session, username string) error {
	if !session.IsAdmin() {
		return customError.WrapForbidden("only admins can delete users")
	}

	if _, err := s.userRepo.GetByUsername(ctx, username); err != nil {
		return storageError(err)
	}

	loans, err := s.loanRepo.List(ctx, domain.LoanFilter{Owner: username})
	if err != nil {
		return storageError(err)
	}
	for _, l := range loans {
		if err := s.paymentRepo.DeleteByLoanID(ctx, l.LoanID); err != nil {
			return storageError(err)
		}
		if err := s.loanRepo.Delete(ctx, l.LoanID); err != nil {
			return storageError(err)
		}
	}
	if err := s.userRepo.Delete(ctx, username); err != nil {
		return storageError(err)
	}

	logger.CtxInfo(ctx, "user deleted",
		zap.String("username", username),
		zap.Int("loans_removed", len(loans)),
		zap.String("deleted_by", session.Username),
	)
	invalidateSummaries(ctx, s.cache)
	return nil
}
