package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/segyhp/loan-ledger/internal/auth"
	"github.com/segyhp/loan-ledger/pkg/response"
)

// NewRouter wires the API under /api/v1. Health and auth routes are public;
// everything else needs a session, and admin-only routes are gated here as
// well as in the services.
func NewRouter(h *Handler, health *HealthHandler, tokens *auth.TokenManager) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.RequestIDMiddleware, response.LoggingMiddleware, response.CORSMiddleware)

	// Preflight requests match no API route; CORSMiddleware answers them.
	router.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	// Health check
	router.HandleFunc("/health", health.Health).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", health.Ready).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/auth/signup", h.SignUp).Methods(http.MethodPost)
	api.HandleFunc("/auth/signin", h.SignIn).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(tokens.Middleware)

	protected.HandleFunc("/loans", h.ListLoans).Methods(http.MethodGet)
	protected.HandleFunc("/loans/applications", h.ApplyForLoan).Methods(http.MethodPost)
	protected.HandleFunc("/loans/{loanId}", h.GetLoan).Methods(http.MethodGet)
	protected.HandleFunc("/loans/{loanId}/accept", h.AcceptOffer).Methods(http.MethodPost)
	protected.HandleFunc("/loans/{loanId}/decline", h.DeclineOffer).Methods(http.MethodPost)
	protected.HandleFunc("/loans/{loanId}/payments", h.ListPayments).Methods(http.MethodGet)
	protected.HandleFunc("/loans/{loanId}/payments", h.RecordPayment).Methods(http.MethodPost)
	protected.HandleFunc("/loans/{loanId}/schedule", h.GetSchedule).Methods(http.MethodGet)
	protected.HandleFunc("/loans/{loanId}/outstanding", h.GetOutstanding).Methods(http.MethodGet)
	protected.HandleFunc("/reports/summary", h.Summary).Methods(http.MethodGet)
	protected.HandleFunc("/reports/trend", h.Trend).Methods(http.MethodGet)
	protected.HandleFunc("/reports/export.xlsx", h.Export).Methods(http.MethodGet)
	protected.HandleFunc("/users/{username}/profile", h.GetProfile).Methods(http.MethodGet)

	admin := protected.NewRoute().Subrouter()
	admin.Use(auth.RequireAdmin)

	admin.HandleFunc("/loans", h.CreateDirectLoan).Methods(http.MethodPost)
	admin.HandleFunc("/loans/{loanId}", h.UpdateDirectLoan).Methods(http.MethodPut)
	admin.HandleFunc("/loans/{loanId}", h.DeleteLoan).Methods(http.MethodDelete)
	admin.HandleFunc("/loans/{loanId}/review", h.ReviewApplication).Methods(http.MethodPost)
	admin.HandleFunc("/reports/recent", h.Recent).Methods(http.MethodGet)
	admin.HandleFunc("/reports/profiles", h.Profiles).Methods(http.MethodGet)
	admin.HandleFunc("/users", h.ListUsers).Methods(http.MethodGet)
	admin.HandleFunc("/users/{username}", h.DeleteUser).Methods(http.MethodDelete)

	return router
}
