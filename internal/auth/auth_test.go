package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/loan-ledger/internal/domain"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newManager(at time.Time) *TokenManager {
	m := NewTokenManager(testSecret, time.Hour)
	m.now = func() time.Time { return at }
	return m
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	assert.NotEqual(t, "correct horse", hash)
	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "wrong horse"))
	assert.False(t, CheckPassword("not a hash", "correct horse"))
}

func TestToken_RoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	m := newManager(now)

	token, expiresAt, err := m.Issue(domain.Session{Username: "ravi", Role: domain.RoleUser})
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), expiresAt)

	session, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, domain.Session{Username: "ravi", Role: domain.RoleUser}, session)
}

func TestToken_Rejected(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	issued, _, err := newManager(now).Issue(domain.Session{Username: "ravi", Role: domain.RoleUser})
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		Username:         "mallory",
		Role:             domain.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name    string
		manager *TokenManager
		token   string
	}{
		{name: "expired", manager: newManager(now.Add(2 * time.Hour)), token: issued},
		{name: "other secret", manager: func() *TokenManager {
			m := NewTokenManager("ffffffffffffffffffffffffffffffff", time.Hour)
			m.now = func() time.Time { return now }
			return m
		}(), token: issued},
		{name: "unsigned", manager: newManager(now), token: noneToken},
		{name: "garbage", manager: newManager(now), token: "not.a.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.manager.Parse(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestMiddleware(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour)
	userToken, _, err := m.Issue(domain.Session{Username: "ravi", Role: domain.RoleUser})
	require.NoError(t, err)
	adminToken, _, err := m.Issue(domain.Session{Username: "admin", Role: domain.RoleAdmin})
	require.NoError(t, err)

	var seen domain.Session
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = SessionFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name     string
		handler  http.Handler
		target   string
		header   string
		expected int
		username string
	}{
		{name: "no token", handler: m.Middleware(ok), target: "/loans", expected: http.StatusUnauthorized},
		{name: "bad token", handler: m.Middleware(ok), target: "/loans", header: "Bearer junk", expected: http.StatusUnauthorized},
		{name: "bearer header", handler: m.Middleware(ok), target: "/loans", header: "Bearer " + userToken, expected: http.StatusNoContent, username: "ravi"},
		{name: "query token", handler: m.Middleware(ok), target: "/reports/export.xlsx?token=" + adminToken, expected: http.StatusNoContent, username: "admin"},
		{name: "admin route as user", handler: m.Middleware(RequireAdmin(ok)), target: "/users", header: "Bearer " + userToken, expected: http.StatusForbidden},
		{name: "admin route as admin", handler: m.Middleware(RequireAdmin(ok)), target: "/users", header: "bearer " + adminToken, expected: http.StatusNoContent, username: "admin"},
		{name: "admin check without session", handler: RequireAdmin(ok), target: "/users", expected: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = domain.Session{}
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			tt.handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.expected, rec.Code)
			assert.Equal(t, tt.username, seen.Username)
		})
	}
}
