package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

var created = time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)

func toBSON(t *testing.T, v any) bson.D {
	t.Helper()

	raw, err := bson.Marshal(v)
	require.NoError(t, err)

	var doc bson.D
	require.NoError(t, bson.Unmarshal(raw, &doc))
	return doc
}

func sampleLoan() *domain.Loan {
	return &domain.Loan{
		ID:                 uuid.New(),
		LoanID:             "LN-M-00001",
		Kind:               domain.LoanKindApplication,
		Owner:              "ravi",
		Principal:          decimal.RequireFromString("250000.50"),
		AnnualInterestRate: decimal.NewNullDecimal(decimal.RequireFromString("10.5")),
		DurationMonths:     36,
		Purpose:            "home repair",
		MonthlyIncome:      decimal.NewNullDecimal(decimal.NewFromInt(85000)),
		EmploymentType:     "salaried",
		Status:             domain.LoanStatusAwaitingUserAcceptance,
		CreatedAt:          created,
		UpdatedAt:          created,
	}
}

func TestLoanRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("create", func(mt *mtest.T) {
		repo := NewLoanRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		assert.NoError(mt, repo.Create(ctx, sampleLoan()))
	})

	mt.Run("create duplicate", func(mt *mtest.T) {
		repo := NewLoanRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		err := repo.Create(ctx, sampleLoan())
		assert.Equal(mt, customError.ErrCodeLoanAlreadyExists, customError.CodeOf(err))
	})

	mt.Run("get round-trips decimals", func(mt *mtest.T) {
		repo := NewLoanRepository(mt.DB)
		loan := sampleLoan()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "ledger.loans", mtest.FirstBatch, toBSON(t, toLoanDocument(loan))))

		got, err := repo.GetByLoanID(ctx, loan.LoanID)

		require.NoError(mt, err)
		assert.Equal(mt, loan.ID, got.ID)
		assert.True(mt, got.Principal.Equal(loan.Principal))
		assert.True(mt, got.AnnualInterestRate.Decimal.Equal(decimal.RequireFromString("10.5")))
		assert.True(mt, got.MonthlyIncome.Valid)
		assert.Equal(mt, domain.LoanStatusAwaitingUserAcceptance, got.Status)
		assert.Nil(mt, got.ReviewedAt)
	})

	mt.Run("get missing", func(mt *mtest.T) {
		repo := NewLoanRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "ledger.loans", mtest.FirstBatch))

		_, err := repo.GetByLoanID(ctx, "LN-MISSING")
		assert.Equal(mt, customError.ErrCodeLoanNotFound, customError.CodeOf(err))
	})

	mt.Run("list", func(mt *mtest.T) {
		repo := NewLoanRepository(mt.DB)
		first := sampleLoan()
		second := sampleLoan()
		second.LoanID = "LN-M-00002"
		second.AnnualInterestRate = decimal.NullDecimal{}
		second.Status = domain.LoanStatusPending

		mt.AddMockResponses(mtest.CreateCursorResponse(0, "ledger.loans", mtest.FirstBatch,
			toBSON(t, toLoanDocument(first)),
			toBSON(t, toLoanDocument(second)),
		))

		loans, err := repo.List(ctx, domain.LoanFilter{Owner: "ravi"})

		require.NoError(mt, err)
		require.Len(mt, loans, 2)
		assert.Equal(mt, "LN-M-00002", loans[1].LoanID)
		assert.False(mt, loans[1].AnnualInterestRate.Valid)
	})

	mt.Run("update missing", func(mt *mtest.T) {
		repo := NewLoanRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		err := repo.Update(ctx, sampleLoan())
		assert.Equal(mt, customError.ErrCodeLoanNotFound, customError.CodeOf(err))
	})

	mt.Run("touch", func(mt *mtest.T) {
		repo := NewLoanRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))

		assert.NoError(mt, repo.Touch(ctx, "LN-M-00001", created))
	})

	mt.Run("delete", func(mt *mtest.T) {
		repo := NewLoanRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		assert.NoError(mt, repo.Delete(ctx, "LN-M-00001"))
	})
}

func TestPaymentRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	payment := func(loanID, amount string) *domain.Payment {
		return &domain.Payment{
			ID:         uuid.New(),
			LoanID:     loanID,
			Amount:     decimal.RequireFromString(amount),
			PaidOn:     created,
			Method:     domain.PaymentMethodCash,
			RecordedBy: "admin",
			CreatedAt:  created,
		}
	}

	mt.Run("create", func(mt *mtest.T) {
		repo := NewPaymentRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		assert.NoError(mt, repo.Create(ctx, payment("LN-M-00001", "100")))
	})

	mt.Run("total paid", func(mt *mtest.T) {
		repo := NewPaymentRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "ledger.payments", mtest.FirstBatch,
			toBSON(t, toPaymentDocument(payment("LN-M-00001", "8884.88"))),
			toBSON(t, toPaymentDocument(payment("LN-M-00001", "0.12"))),
		))

		total, err := repo.GetTotalPaid(ctx, "LN-M-00001")

		require.NoError(mt, err)
		assert.True(mt, total.Equal(decimal.NewFromInt(8885)))
	})

	mt.Run("list by loan ids", func(mt *mtest.T) {
		repo := NewPaymentRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "ledger.payments", mtest.FirstBatch,
			toBSON(t, toPaymentDocument(payment("LN-M-00001", "10"))),
			toBSON(t, toPaymentDocument(payment("LN-M-00002", "20"))),
			toBSON(t, toPaymentDocument(payment("LN-M-00001", "30"))),
		))

		byLoan, err := repo.ListByLoanIDs(ctx, []string{"LN-M-00001", "LN-M-00002"})

		require.NoError(mt, err)
		assert.Len(mt, byLoan["LN-M-00001"], 2)
		assert.Len(mt, byLoan["LN-M-00002"], 1)
	})

	mt.Run("delete by loan id", func(mt *mtest.T) {
		repo := NewPaymentRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}))

		assert.NoError(mt, repo.DeleteByLoanID(ctx, "LN-M-00001"))
	})
}

func TestUserRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	user := &domain.User{
		ID:           uuid.New(),
		Username:     "ravi",
		Email:        "ravi@example.com",
		PasswordHash: "hash",
		Role:         domain.RoleUser,
		CreatedAt:    created,
	}

	mt.Run("get", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "ledger.users", mtest.FirstBatch, toBSON(t, toUserDocument(user))))

		got, err := repo.GetByUsername(ctx, "ravi")

		require.NoError(mt, err)
		assert.Equal(mt, user.ID, got.ID)
		assert.Equal(mt, domain.RoleUser, got.Role)
	})

	mt.Run("duplicate", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key error"}))

		err := repo.Create(ctx, user)
		assert.Equal(mt, customError.ErrCodeUserAlreadyExists, customError.CodeOf(err))
	})

	mt.Run("delete missing", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		err := repo.Delete(ctx, "ghost")
		assert.Equal(mt, customError.ErrCodeUserNotFound, customError.CodeOf(err))
	})
}
