package sheet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

// fakeSheet mimics the REST endpoint in memory.
type fakeSheet struct {
	mu        sync.Mutex
	rows      []Record
	failPatch bool
	requests  []string
}

func (f *fakeSheet) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.requests = append(f.requests, "GET")
		_ = json.NewEncoder(w).Encode(f.rows)
	})
	mux.HandleFunc("POST /", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Data []Record `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		f.requests = append(f.requests, "POST")
		f.rows = append(f.rows, body.Data...)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"created":1}`))
	})
	mux.HandleFunc("PATCH /id/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.requests = append(f.requests, "PATCH")
		if f.failPatch {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
			return
		}
		var body struct {
			Data Record `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, row := range f.rows {
			if row.Get("id") == r.PathValue("id") {
				for k, v := range body.Data {
					row[k] = v
				}
			}
		}
		_, _ = w.Write([]byte(`{"updated":1}`))
	})
	mux.HandleFunc("DELETE /id/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.requests = append(f.requests, "DELETE")
		kept := f.rows[:0]
		for _, row := range f.rows {
			if row.Get("id") != r.PathValue("id") {
				kept = append(kept, row)
			}
		}
		f.rows = kept
		_, _ = w.Write([]byte(`{"deleted":1}`))
	})
	return mux
}

func setupStore(t *testing.T) (*Store, *fakeSheet) {
	t.Helper()

	fake := &fakeSheet{}
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	return NewStore(NewClient(server.URL+"/", 5*time.Second)), fake
}

var created = time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)

func application(loanID string, at time.Time) *domain.Loan {
	return &domain.Loan{
		ID:             uuid.New(),
		LoanID:         loanID,
		Kind:           domain.LoanKindApplication,
		Owner:          "ravi",
		Principal:      decimal.RequireFromString("75000"),
		DurationMonths: 18,
		Purpose:        "education",
		MonthlyIncome:  decimal.NewNullDecimal(decimal.NewFromInt(40000)),
		EmploymentType: "salaried",
		Status:         domain.LoanStatusPending,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
}

func TestLoans(t *testing.T) {
	store, fake := setupStore(t)
	ctx := context.Background()
	loans := store.Loans()

	require.NoError(t, loans.Create(ctx, application("LN-S-00001", created)))
	require.NoError(t, loans.Create(ctx, application("LN-S-00002", created.Add(time.Hour))))
	require.NoError(t, store.Users().Create(ctx, &domain.User{ID: uuid.New(), Username: "ravi", Role: domain.RoleUser, CreatedAt: created}))

	err := loans.Create(ctx, application("LN-S-00001", created))
	assert.Equal(t, customError.ErrCodeLoanAlreadyExists, customError.CodeOf(err))

	got, err := loans.GetByLoanID(ctx, "LN-S-00001")
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusPending, got.Status)
	assert.False(t, got.AnnualInterestRate.Valid)
	assert.True(t, got.MonthlyIncome.Decimal.Equal(decimal.NewFromInt(40000)))
	assert.True(t, got.CreatedAt.Equal(created))

	list, err := loans.List(ctx, domain.LoanFilter{Owner: "ravi"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "LN-S-00002", list[0].LoanID)

	reviewed := created.Add(24 * time.Hour)
	require.NoError(t, got.Offer(decimal.NewNullDecimal(decimal.NewFromInt(11)), "admin", "", reviewed))
	require.NoError(t, loans.Update(ctx, got))

	got, err = loans.GetByLoanID(ctx, "LN-S-00001")
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusAwaitingUserAcceptance, got.Status)
	assert.True(t, got.AnnualInterestRate.Decimal.Equal(decimal.NewFromInt(11)))
	require.NotNil(t, got.ApprovedAt)
	assert.True(t, got.ApprovedAt.Equal(reviewed))

	require.NoError(t, loans.Delete(ctx, "LN-S-00002"))
	_, err = loans.GetByLoanID(ctx, "LN-S-00002")
	assert.Equal(t, customError.ErrCodeLoanNotFound, customError.CodeOf(err))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Contains(t, fake.requests, "PATCH")
	assert.Contains(t, fake.requests, "DELETE")
}

func TestLoans_HandEditedCells(t *testing.T) {
	// Arrange
	store, fake := setupStore(t)
	ctx := context.Background()
	require.NoError(t, store.Loans().Create(ctx, application("LN-S-00001", created)))

	fake.mu.Lock()
	fake.rows[0]["principal"] = " 75000.00 "
	fake.rows[0]["monthly_income"] = "   "
	fake.mu.Unlock()

	// Act
	got, err := store.Loans().GetByLoanID(ctx, "LN-S-00001")

	// Assert
	require.NoError(t, err)
	assert.True(t, got.Principal.Equal(decimal.NewFromInt(75000)))
	assert.False(t, got.MonthlyIncome.Valid)
}

func TestPayments(t *testing.T) {
	store, fake := setupStore(t)
	ctx := context.Background()
	require.NoError(t, store.Loans().Create(ctx, application("LN-S-00001", created)))
	payments := store.Payments()

	first := &domain.Payment{ID: uuid.New(), LoanID: "LN-S-00001", Amount: decimal.RequireFromString("4500.50"), PaidOn: created, Method: domain.PaymentMethodUPI, CreatedAt: created}
	second := &domain.Payment{ID: uuid.New(), LoanID: "LN-S-00001", Amount: decimal.RequireFromString("499.50"), PaidOn: created, Method: domain.PaymentMethodCash, CreatedAt: created}
	require.NoError(t, payments.Create(ctx, first))
	require.NoError(t, payments.Create(ctx, second))

	total, err := payments.GetTotalPaid(ctx, "LN-S-00001")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(5000)))

	byLoan, err := payments.ListByLoanIDs(ctx, []string{"LN-S-00001", "LN-S-MISSING"})
	require.NoError(t, err)
	assert.Len(t, byLoan["LN-S-00001"], 2)
	assert.Empty(t, byLoan["LN-S-MISSING"])

	require.NoError(t, payments.Delete(ctx, "LN-S-00001", first.ID))
	list, err := payments.GetByLoanID(ctx, "LN-S-00001")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, second.ID, list[0].ID)

	fake.mu.Lock()
	fake.failPatch = true
	fake.mu.Unlock()
	err = payments.Create(ctx, first)
	assert.Equal(t, customError.ErrCodeDatabaseError, customError.CodeOf(err))

	var statusErr *StatusError
	assert.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Status)
}

func TestUsers(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	users := store.Users()

	user := &domain.User{ID: uuid.New(), Username: "meena", Email: "meena@example.com", PasswordHash: "hash", Role: domain.RoleUser, CreatedAt: created}
	require.NoError(t, users.Create(ctx, user))

	err := users.Create(ctx, user)
	assert.Equal(t, customError.ErrCodeUserAlreadyExists, customError.CodeOf(err))

	got, err := users.GetByUsername(ctx, "meena")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	all, err := users.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, users.Delete(ctx, "meena"))
	_, err = users.GetByUsername(ctx, "meena")
	assert.Equal(t, customError.ErrCodeUserNotFound, customError.CodeOf(err))
}
