package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/loan-ledger/internal/amortization"
	"github.com/segyhp/loan-ledger/internal/cache"
	"github.com/segyhp/loan-ledger/internal/config"
	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/mocks"
	"github.com/segyhp/loan-ledger/internal/repository"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

var (
	fixedNow = time.Date(2024, 5, 15, 9, 30, 0, 0, time.UTC)
	admin    = domain.Session{Username: "admin", Role: domain.RoleAdmin}
	ravi     = domain.Session{Username: "ravi", Role: domain.RoleUser}
	meena    = domain.Session{Username: "meena", Role: domain.RoleUser}
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type loanFixture struct {
	service     *LoanService
	loanRepo    *mocks.MockLoanRepository
	paymentRepo *mocks.MockPaymentRepository
	cache       *mocks.MockSummaryCache
}

func newLoanFixture(allowOverpayment bool) *loanFixture {
	f := &loanFixture{
		loanRepo:    &mocks.MockLoanRepository{},
		paymentRepo: &mocks.MockPaymentRepository{},
		cache:       &mocks.MockSummaryCache{},
	}
	cfg := &config.Config{Business: config.BusinessConfig{AllowOverpayment: allowOverpayment}}

	f.service = NewLoanService(f.loanRepo, f.paymentRepo, f.cache, cfg)
	f.service.now = func() time.Time { return fixedNow }
	f.cache.On("Invalidate", mock.Anything).Return(nil).Maybe()
	return f
}

func approvedLoan(owner string, paid ...string) (*domain.Loan, []*domain.Payment) {
	loan := &domain.Loan{
		ID:                 uuid.New(),
		LoanID:             "LN-TEST-00001",
		Kind:               domain.LoanKindDirect,
		Owner:              owner,
		BorrowerName:       "Asha Verma",
		Principal:          d("100000"),
		AnnualInterestRate: decimal.NewNullDecimal(d("12")),
		DurationMonths:     12,
		Status:             domain.LoanStatusApproved,
		CreatedAt:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	payments := []*domain.Payment{}
	for _, amount := range paid {
		payments = append(payments, &domain.Payment{ID: uuid.New(), LoanID: loan.LoanID, Amount: d(amount)})
	}
	return loan, payments
}

func TestCreateDirectLoan(t *testing.T) {
	tests := []struct {
		name          string
		session       domain.Session
		request       *domain.CreateDirectLoanRequest
		setupMocks    func(*mocks.MockLoanRepository)
		expectedCode  string
		expectedOwner string
	}{
		{
			name:    "Success - owned by the recording admin",
			session: admin,
			request: &domain.CreateDirectLoanRequest{BorrowerName: "Asha Verma", Principal: d("100000"), AnnualInterestRate: d("12"), DurationMonths: 12},
			setupMocks: func(loanRepo *mocks.MockLoanRepository) {
				loanRepo.On("Create", mock.Anything, mock.MatchedBy(func(l *domain.Loan) bool {
					return l.Kind == domain.LoanKindDirect &&
						l.Status == domain.LoanStatusApproved &&
						strings.HasPrefix(l.LoanID, "LN-") &&
						l.AnnualInterestRate.Valid &&
						l.CreatedAt.Equal(fixedNow)
				})).Return(nil)
			},
			expectedOwner: "admin",
		},
		{
			name:    "Success - on behalf of a user",
			session: admin,
			request: &domain.CreateDirectLoanRequest{BorrowerName: "Ravi", Owner: "ravi", Principal: d("100000"), AnnualInterestRate: d("12"), DurationMonths: 12},
			setupMocks: func(loanRepo *mocks.MockLoanRepository) {
				loanRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
			},
			expectedOwner: "ravi",
		},
		{
			name:         "Error - users cannot record direct loans",
			session:      ravi,
			request:      &domain.CreateDirectLoanRequest{BorrowerName: "Ravi", Principal: d("100000"), AnnualInterestRate: d("12"), DurationMonths: 12},
			setupMocks:   func(*mocks.MockLoanRepository) {},
			expectedCode: customError.ErrCodeForbidden,
		},
		{
			name:         "Error - negative rate rejected before storage",
			session:      admin,
			request:      &domain.CreateDirectLoanRequest{BorrowerName: "Asha", Principal: d("100000"), AnnualInterestRate: d("-1"), DurationMonths: 12},
			setupMocks:   func(*mocks.MockLoanRepository) {},
			expectedCode: customError.ErrCodeInvalidLoanParameters,
		},
		{
			name:         "Error - principal finer than a paisa",
			session:      admin,
			request:      &domain.CreateDirectLoanRequest{BorrowerName: "Asha", Principal: d("100.555"), AnnualInterestRate: d("12"), DurationMonths: 12},
			setupMocks:   func(*mocks.MockLoanRepository) {},
			expectedCode: customError.ErrCodeInvalidLoanParameters,
		},
		{
			name:         "Error - rate with five decimal places",
			session:      admin,
			request:      &domain.CreateDirectLoanRequest{BorrowerName: "Asha", Principal: d("100000"), AnnualInterestRate: d("12.00001"), DurationMonths: 12},
			setupMocks:   func(*mocks.MockLoanRepository) {},
			expectedCode: customError.ErrCodeInvalidLoanParameters,
		},
		{
			name:    "Error - database failure is wrapped",
			session: admin,
			request: &domain.CreateDirectLoanRequest{BorrowerName: "Asha", Principal: d("100000"), AnnualInterestRate: d("12"), DurationMonths: 12},
			setupMocks: func(loanRepo *mocks.MockLoanRepository) {
				loanRepo.On("Create", mock.Anything, mock.Anything).Return(errors.New("disk full"))
			},
			expectedCode: customError.ErrCodeDatabaseError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			f := newLoanFixture(false)
			tt.setupMocks(f.loanRepo)

			// Act
			v, err := f.service.CreateDirectLoan(context.Background(), tt.session, tt.request)

			// Assert
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, customError.CodeOf(err))
				assert.Nil(t, v)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedOwner, v.Owner)
				require.NotNil(t, v.Figures)
				assert.True(t, v.Figures.Installment.Equal(d("8884.88")))
				assert.True(t, v.Figures.Remaining.Equal(d("106618.56")))
				assert.Empty(t, v.Payments)
			}
			f.loanRepo.AssertExpectations(t)
		})
	}
}

func TestApplyForLoan_RejectsSubPaisaAmounts(t *testing.T) {
	tests := []struct {
		name    string
		request *domain.ApplyLoanRequest
	}{
		{
			name:    "principal",
			request: &domain.ApplyLoanRequest{Principal: d("60000.005"), DurationMonths: 12, Purpose: "shop", MonthlyIncome: d("45000"), EmploymentType: "business"},
		},
		{
			name:    "monthly income",
			request: &domain.ApplyLoanRequest{Principal: d("60000"), DurationMonths: 12, Purpose: "shop", MonthlyIncome: d("45000.001"), EmploymentType: "business"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLoanFixture(false)

			_, err := f.service.ApplyForLoan(context.Background(), ravi, tt.request)

			assert.Equal(t, customError.ErrCodeInvalidLoanParameters, customError.CodeOf(err))
			f.loanRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestApplicationWorkflow_ApproveThenAccept(t *testing.T) {
	// Arrange
	f := newLoanFixture(false)
	ctx := context.Background()

	var stored *domain.Loan
	f.loanRepo.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*domain.Loan)
	}).Return(nil)
	f.loanRepo.On("Update", mock.Anything, mock.Anything).Return(nil)

	// Act & Assert
	applied, err := f.service.ApplyForLoan(ctx, ravi, &domain.ApplyLoanRequest{
		Principal: d("60000"), DurationMonths: 12, Purpose: "shop fit-out", MonthlyIncome: d("45000"), EmploymentType: "business",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusPending, applied.Status)
	assert.False(t, applied.AnnualInterestRate.Valid)
	assert.Nil(t, applied.Figures)
	f.loanRepo.On("GetByLoanID", mock.Anything, stored.LoanID).Return(stored, nil)

	_, err = f.service.AcceptOffer(ctx, ravi, stored.LoanID)
	assert.Equal(t, customError.ErrCodeInvalidStatusTransition, customError.CodeOf(err), "no path to approved skips the offer")

	_, err = f.service.ReviewApplication(ctx, admin, stored.LoanID, &domain.ReviewRequest{Decision: domain.ReviewApprove})
	assert.Equal(t, customError.ErrCodeInterestRateRequired, customError.CodeOf(err))
	assert.Equal(t, domain.LoanStatusPending, stored.Status)

	offered, err := f.service.ReviewApplication(ctx, admin, stored.LoanID, &domain.ReviewRequest{
		Decision: domain.ReviewApprove, AnnualInterestRate: decimal.NewNullDecimal(d("10")), Notes: "verified income",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusAwaitingUserAcceptance, offered.Status)
	assert.Equal(t, "admin", offered.ReviewedBy)
	require.NotNil(t, offered.Figures)

	_, err = f.service.AcceptOffer(ctx, meena, stored.LoanID)
	assert.Equal(t, customError.ErrCodeForbidden, customError.CodeOf(err))

	accepted, err := f.service.AcceptOffer(ctx, ravi, stored.LoanID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusApproved, accepted.Status)
	require.NotNil(t, accepted.AcceptedAt)
	assert.True(t, accepted.StartedAt().Equal(fixedNow))
	assert.True(t, accepted.AnnualInterestRate.Decimal.Equal(d("10")))

	f.loanRepo.AssertNumberOfCalls(t, "Update", 2)
}

func TestApplicationWorkflow_RejectedLoansKeepNoRate(t *testing.T) {
	tests := []struct {
		name  string
		act   func(f *loanFixture, loanID string) (*domain.LoanView, error)
		notes string
	}{
		{
			name: "admin rejects",
			act: func(f *loanFixture, loanID string) (*domain.LoanView, error) {
				return f.service.ReviewApplication(context.Background(), admin, loanID, &domain.ReviewRequest{
					Decision: domain.ReviewReject, AnnualInterestRate: decimal.NewNullDecimal(d("14")), Notes: "income too low",
				})
			},
			notes: "income too low",
		},
		{
			name: "user declines the offer",
			act: func(f *loanFixture, loanID string) (*domain.LoanView, error) {
				if _, err := f.service.ReviewApplication(context.Background(), admin, loanID, &domain.ReviewRequest{
					Decision: domain.ReviewApprove, AnnualInterestRate: decimal.NewNullDecimal(d("14")), Notes: "offer",
				}); err != nil {
					return nil, err
				}
				return f.service.DeclineOffer(context.Background(), ravi, loanID, &domain.DeclineRequest{Reason: "rate too high"})
			},
			notes: "offer [User rejected the offer] rate too high",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			f := newLoanFixture(false)
			loan := &domain.Loan{LoanID: "LN-APP-1", Kind: domain.LoanKindApplication, Owner: "ravi", Principal: d("20000"), DurationMonths: 6, Status: domain.LoanStatusPending}
			f.loanRepo.On("GetByLoanID", mock.Anything, "LN-APP-1").Return(loan, nil)
			f.loanRepo.On("Update", mock.Anything, loan).Return(nil)

			// Act
			v, err := tt.act(f, "LN-APP-1")

			// Assert
			require.NoError(t, err)
			assert.Equal(t, domain.LoanStatusRejected, v.Status)
			assert.False(t, v.AnnualInterestRate.Valid)
			assert.Nil(t, v.Figures)
			assert.NotNil(t, v.RejectedAt)
			assert.Equal(t, tt.notes, v.AdminNotes)
		})
	}
}

func TestRecordPayment(t *testing.T) {
	tests := []struct {
		name             string
		allowOverpayment bool
		session          domain.Session
		amount           string
		setupMocks       func(*loanFixture)
		expectedCode     string
		expectedWarning  string
		expectedRemain   string
		expectedStatus   amortization.Status
	}{
		{
			name:    "Success - first instalment",
			session: admin,
			amount:  "8884.88",
			setupMocks: func(f *loanFixture) {
				loan, payments := approvedLoan("ravi")
				f.loanRepo.On("GetByLoanID", mock.Anything, loan.LoanID).Return(loan, nil)
				f.paymentRepo.On("GetByLoanID", mock.Anything, loan.LoanID).Return(payments, nil)
				f.paymentRepo.On("Create", mock.Anything, mock.MatchedBy(func(p *domain.Payment) bool {
					return p.Amount.Equal(d("8884.88")) && p.RecordedBy == "admin" && p.PaidOn.Equal(time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC))
				})).Return(nil)
				f.loanRepo.On("Touch", mock.Anything, loan.LoanID, fixedNow).Return(nil)
			},
			expectedRemain: "97733.68",
			expectedStatus: amortization.StatusActive,
		},
		{
			name:    "Success - owner pays the second to last instalment",
			session: ravi,
			amount:  "8884.88",
			setupMocks: func(f *loanFixture) {
				loan, payments := approvedLoan("ravi", "88848.80")
				f.loanRepo.On("GetByLoanID", mock.Anything, loan.LoanID).Return(loan, nil)
				f.paymentRepo.On("GetByLoanID", mock.Anything, loan.LoanID).Return(payments, nil)
				f.paymentRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
				f.loanRepo.On("Touch", mock.Anything, loan.LoanID, fixedNow).Return(nil)
			},
			expectedRemain: "8884.88",
			expectedStatus: amortization.StatusCompleting,
		},
		{
			name:    "Error - overpayment refused by default",
			session: admin,
			amount:  "200",
			setupMocks: func(f *loanFixture) {
				loan, payments := approvedLoan("ravi", "106518.56")
				f.loanRepo.On("GetByLoanID", mock.Anything, loan.LoanID).Return(loan, nil)
				f.paymentRepo.On("GetByLoanID", mock.Anything, loan.LoanID).Return(payments, nil)
			},
			expectedCode: customError.ErrCodeOverpayment,
		},
		{
			name:             "Success - overpayment accepted with a warning",
			allowOverpayment: true,
			session:          admin,
			amount:           "200",
			setupMocks: func(f *loanFixture) {
				loan, payments := approvedLoan("ravi", "106518.56")
				f.loanRepo.On("GetByLoanID", mock.Anything, loan.LoanID).Return(loan, nil)
				f.paymentRepo.On("GetByLoanID", mock.Anything, loan.LoanID).Return(payments, nil)
				f.paymentRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
				f.loanRepo.On("Touch", mock.Anything, loan.LoanID, fixedNow).Return(nil)
			},
			expectedWarning: domain.WarningOverpayment,
			expectedRemain:  "0",
			expectedStatus:  amortization.StatusPaid,
		},
		{
			name:         "Error - amount must be positive",
			session:      admin,
			amount:       "0",
			setupMocks:   func(*loanFixture) {},
			expectedCode: customError.ErrCodeInvalidPaymentAmount,
		},
		{
			name:         "Error - fraction of a paisa",
			session:      admin,
			amount:       "0.001",
			setupMocks:   func(*loanFixture) {},
			expectedCode: customError.ErrCodeInvalidPaymentAmount,
		},
		{
			name:         "Error - amount with three decimal places",
			session:      admin,
			amount:       "100.555",
			setupMocks:   func(*loanFixture) {},
			expectedCode: customError.ErrCodeInvalidPaymentAmount,
		},
		{
			name:    "Error - loan not approved",
			session: ravi,
			amount:  "100",
			setupMocks: func(f *loanFixture) {
				loan, _ := approvedLoan("ravi")
				loan.Status = domain.LoanStatusAwaitingUserAcceptance
				f.loanRepo.On("GetByLoanID", mock.Anything, loan.LoanID).Return(loan, nil)
			},
			expectedCode: customError.ErrCodeLoanNotApproved,
		},
		{
			name:    "Error - someone else's loan",
			session: meena,
			amount:  "100",
			setupMocks: func(f *loanFixture) {
				loan, _ := approvedLoan("ravi")
				f.loanRepo.On("GetByLoanID", mock.Anything, loan.LoanID).Return(loan, nil)
			},
			expectedCode: customError.ErrCodeForbidden,
		},
		{
			name:    "Error - unknown loan",
			session: admin,
			amount:  "100",
			setupMocks: func(f *loanFixture) {
				f.loanRepo.On("GetByLoanID", mock.Anything, "LN-TEST-00001").Return(nil, customError.WrapLoanNotFound("LN-TEST-00001"))
			},
			expectedCode: customError.ErrCodeLoanNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			f := newLoanFixture(tt.allowOverpayment)
			tt.setupMocks(f)

			// Act
			resp, err := f.service.RecordPayment(context.Background(), tt.session, "LN-TEST-00001", &domain.RecordPaymentRequest{
				Amount: d(tt.amount),
				Method: domain.PaymentMethodUPI,
			})

			// Assert
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, customError.CodeOf(err))
				assert.Nil(t, resp)
				f.paymentRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedWarning, resp.Warning)
				assert.True(t, resp.Figures.Remaining.Equal(d(tt.expectedRemain)), "remaining %s", resp.Figures.Remaining)
				assert.Equal(t, tt.expectedStatus, resp.Figures.Status)
				f.cache.AssertCalled(t, "Invalidate", mock.Anything)
			}
			f.loanRepo.AssertExpectations(t)
			f.paymentRepo.AssertExpectations(t)
		})
	}
}

func TestRecordPayment_RollsBackWhenLoanUpdateFails(t *testing.T) {
	// Arrange
	f := newLoanFixture(false)
	loan, payments := approvedLoan("ravi")

	var created *domain.Payment
	f.loanRepo.On("GetByLoanID", mock.Anything, loan.LoanID).Return(loan, nil)
	f.paymentRepo.On("GetByLoanID", mock.Anything, loan.LoanID).Return(payments, nil)
	f.paymentRepo.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = args.Get(1).(*domain.Payment)
	}).Return(nil)
	f.loanRepo.On("Touch", mock.Anything, loan.LoanID, fixedNow).Return(errors.New("connection reset"))
	f.paymentRepo.On("Delete", mock.Anything, loan.LoanID, mock.AnythingOfType("uuid.UUID")).Return(nil)

	// Act
	resp, err := f.service.RecordPayment(context.Background(), admin, loan.LoanID, &domain.RecordPaymentRequest{
		Amount: d("5000"),
		Method: domain.PaymentMethodCash,
	})

	// Assert
	assert.Nil(t, resp)
	assert.Equal(t, customError.ErrCodeDatabaseError, customError.CodeOf(err))
	require.NotNil(t, created)
	f.paymentRepo.AssertCalled(t, "Delete", mock.Anything, loan.LoanID, created.ID)
	f.cache.AssertNotCalled(t, "Invalidate", mock.Anything)
}

func TestGetSchedule(t *testing.T) {
	// Arrange
	f := newLoanFixture(false)
	loan, payments := approvedLoan("ravi", "8884.88", "8884.88")
	f.loanRepo.On("GetByLoanID", mock.Anything, loan.LoanID).Return(loan, nil)
	f.paymentRepo.On("GetByLoanID", mock.Anything, loan.LoanID).Return(payments, nil)

	// Act
	resp, err := f.service.GetSchedule(context.Background(), ravi, loan.LoanID)

	// Assert
	require.NoError(t, err)
	require.Len(t, resp.Schedule, 12)

	expected := []string{
		domain.ScheduleStatusPaid,
		domain.ScheduleStatusPaid,
		domain.ScheduleStatusOverdue,
		domain.ScheduleStatusOverdue,
		domain.ScheduleStatusPending,
	}
	for i, status := range expected {
		assert.Equal(t, status, resp.Schedule[i].Status, "month %d", i+1)
	}
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), resp.Schedule[0].DueDate)
	assert.True(t, resp.Schedule[11].Balance.IsZero())
}

func TestGetSchedule_PendingApplicationHasNoRate(t *testing.T) {
	f := newLoanFixture(false)
	loan := &domain.Loan{LoanID: "LN-APP-1", Kind: domain.LoanKindApplication, Owner: "ravi", Principal: d("20000"), DurationMonths: 6, Status: domain.LoanStatusPending}
	f.loanRepo.On("GetByLoanID", mock.Anything, "LN-APP-1").Return(loan, nil)
	f.paymentRepo.On("GetByLoanID", mock.Anything, "LN-APP-1").Return([]*domain.Payment{}, nil)

	_, err := f.service.GetSchedule(context.Background(), ravi, "LN-APP-1")

	assert.Equal(t, customError.ErrCodeInterestRateRequired, customError.CodeOf(err))
}

func TestGetOutstanding(t *testing.T) {
	f := newLoanFixture(false)
	loan, _ := approvedLoan("ravi")
	f.loanRepo.On("GetByLoanID", mock.Anything, loan.LoanID).Return(loan, nil)
	f.paymentRepo.On("GetTotalPaid", mock.Anything, loan.LoanID).Return(d("8884.88"), nil)

	resp, err := f.service.GetOutstanding(context.Background(), admin, loan.LoanID)

	require.NoError(t, err)
	f.paymentRepo.AssertNotCalled(t, "GetByLoanID", mock.Anything, mock.Anything)
	assert.True(t, resp.Outstanding.Equal(d("97733.68")))
	assert.True(t, resp.TotalPaid.Equal(d("8884.88")))
	assert.True(t, resp.TotalPayable.Equal(d("106618.56")))
	assert.Equal(t, amortization.StatusActive, resp.RepaymentStatus)
}

func TestGetOutstanding_SumFailure(t *testing.T) {
	f := newLoanFixture(false)
	loan, _ := approvedLoan("ravi")
	f.loanRepo.On("GetByLoanID", mock.Anything, loan.LoanID).Return(loan, nil)
	f.paymentRepo.On("GetTotalPaid", mock.Anything, loan.LoanID).Return(decimal.Zero, errors.New("connection reset"))

	resp, err := f.service.GetOutstanding(context.Background(), ravi, loan.LoanID)

	assert.Nil(t, resp)
	assert.Equal(t, customError.ErrCodeDatabaseError, customError.CodeOf(err))
}

func TestListLoans_UsersOnlySeeTheirOwn(t *testing.T) {
	// Arrange
	f := newLoanFixture(false)
	loan, payments := approvedLoan("ravi", "100")
	f.loanRepo.On("List", mock.Anything, domain.LoanFilter{Owner: "ravi"}).Return([]*domain.Loan{loan}, nil)
	f.paymentRepo.On("ListByLoanIDs", mock.Anything, []string{loan.LoanID}).
		Return(map[string][]*domain.Payment{loan.LoanID: payments}, nil)

	// Act
	list, err := f.service.ListLoans(context.Background(), ravi, domain.LoanFilter{Owner: "meena", Search: "asha"})

	// Assert
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Figures.TotalPaid.Equal(d("100")))
	f.loanRepo.AssertExpectations(t)
}

func TestDeleteLoan_RemovesPaymentsFirst(t *testing.T) {
	f := newLoanFixture(false)
	loan, payments := approvedLoan("ravi", "500")

	var order []string
	f.loanRepo.On("GetByLoanID", mock.Anything, loan.LoanID).Return(loan, nil)
	f.paymentRepo.On("GetByLoanID", mock.Anything, loan.LoanID).Return(payments, nil)
	f.paymentRepo.On("DeleteByLoanID", mock.Anything, loan.LoanID).Run(func(mock.Arguments) { order = append(order, "payments") }).Return(nil)
	f.loanRepo.On("Delete", mock.Anything, loan.LoanID).Run(func(mock.Arguments) { order = append(order, "loan") }).Return(nil)

	require.NoError(t, f.service.DeleteLoan(context.Background(), admin, loan.LoanID))
	assert.Equal(t, []string{"payments", "loan"}, order)
	f.paymentRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)

	err := f.service.DeleteLoan(context.Background(), ravi, loan.LoanID)
	assert.Equal(t, customError.ErrCodeForbidden, customError.CodeOf(err))
}

func TestDeleteLoan_RestoresPaymentsWhenLoanDeleteFails(t *testing.T) {
	// Arrange
	f := newLoanFixture(false)
	loan, payments := approvedLoan("ravi", "500", "750")

	var restored []*domain.Payment
	f.loanRepo.On("GetByLoanID", mock.Anything, loan.LoanID).Return(loan, nil)
	f.paymentRepo.On("GetByLoanID", mock.Anything, loan.LoanID).Return(payments, nil)
	f.paymentRepo.On("DeleteByLoanID", mock.Anything, loan.LoanID).Return(nil)
	f.loanRepo.On("Delete", mock.Anything, loan.LoanID).Return(errors.New("connection reset"))
	f.paymentRepo.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		restored = append(restored, args.Get(1).(*domain.Payment))
	}).Return(nil)

	// Act
	err := f.service.DeleteLoan(context.Background(), admin, loan.LoanID)

	// Assert
	assert.Equal(t, customError.ErrCodeDatabaseError, customError.CodeOf(err))
	assert.Equal(t, payments, restored)
	f.cache.AssertNotCalled(t, "Invalidate", mock.Anything)
}

func TestUpdateDirectLoan_ApplicationsAreNotEditable(t *testing.T) {
	f := newLoanFixture(false)
	f.loanRepo.On("GetByLoanID", mock.Anything, "LN-APP-1").Return(&domain.Loan{LoanID: "LN-APP-1", Kind: domain.LoanKindApplication}, nil)

	_, err := f.service.UpdateDirectLoan(context.Background(), admin, "LN-APP-1", &domain.UpdateDirectLoanRequest{
		BorrowerName: "x", Principal: d("1000"), AnnualInterestRate: d("5"), DurationMonths: 2,
	})

	assert.Equal(t, customError.ErrCodeInvalidLoanParameters, customError.CodeOf(err))
	f.loanRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestRecordPayment_ConcurrentPaymentsNeverOverpay(t *testing.T) {
	// Arrange
	db, err := sqlx.Connect("sqlite3", filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)
	require.NoError(t, repository.Migrate(context.Background(), db))

	loanRepo := repository.NewLoanRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	svc := NewLoanService(loanRepo, paymentRepo, cache.Noop{}, &config.Config{})

	loan := &domain.Loan{
		ID: uuid.New(), LoanID: "LN-ZERO-00001", Kind: domain.LoanKindDirect, Owner: "admin", BorrowerName: "Asha",
		Principal: d("50000"), AnnualInterestRate: decimal.NewNullDecimal(decimal.Zero), DurationMonths: 10,
		Status: domain.LoanStatusApproved, CreatedAt: fixedNow, UpdatedAt: fixedNow,
	}
	require.NoError(t, loanRepo.Create(context.Background(), loan))

	// Act
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		refused   int
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordPayment(context.Background(), admin, loan.LoanID, &domain.RecordPaymentRequest{
				Amount: d("10000"),
				Method: domain.PaymentMethodBankTransfer,
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if customError.CodeOf(err) == customError.ErrCodeOverpayment {
				refused++
			}
		}()
	}
	wg.Wait()

	// Assert
	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 5, refused)

	total, err := paymentRepo.GetTotalPaid(context.Background(), loan.LoanID)
	require.NoError(t, err)
	assert.True(t, total.Equal(d("50000")))
}
