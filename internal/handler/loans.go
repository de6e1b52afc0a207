package handler

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/pkg/response"
)

func loanID(r *http.Request) string {
	return mux.Vars(r)["loanId"]
}

// ListLoans accepts status, search and (for admins) owner query parameters.
func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.LoanFilter{
		Owner:  strings.TrimSpace(q.Get("owner")),
		Status: domain.LoanStatus(q.Get("status")),
		Search: strings.TrimSpace(q.Get("search")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		response.BadRequest(w, "Unknown loan status", nil)
		return
	}

	loans, err := h.loans.ListLoans(r.Context(), session(r), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, loans)
}

func (h *Handler) CreateDirectLoan(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateDirectLoanRequest
	if !h.decode(w, r, &req) {
		return
	}

	loan, err := h.loans.CreateDirectLoan(r.Context(), session(r), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Created(w, loan)
}

func (h *Handler) ApplyForLoan(w http.ResponseWriter, r *http.Request) {
	var req domain.ApplyLoanRequest
	if !h.decode(w, r, &req) {
		return
	}

	loan, err := h.loans.ApplyForLoan(r.Context(), session(r), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Created(w, loan)
}

func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loan, err := h.loans.GetLoan(r.Context(), session(r), loanID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, loan)
}

func (h *Handler) UpdateDirectLoan(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateDirectLoanRequest
	if !h.decode(w, r, &req) {
		return
	}

	loan, err := h.loans.UpdateDirectLoan(r.Context(), session(r), loanID(r), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, loan)
}

func (h *Handler) DeleteLoan(w http.ResponseWriter, r *http.Request) {
	if err := h.loans.DeleteLoan(r.Context(), session(r), loanID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ReviewApplication(w http.ResponseWriter, r *http.Request) {
	var req domain.ReviewRequest
	if !h.decode(w, r, &req) {
		return
	}

	loan, err := h.loans.ReviewApplication(r.Context(), session(r), loanID(r), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, loan)
}

func (h *Handler) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	loan, err := h.loans.AcceptOffer(r.Context(), session(r), loanID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, loan)
}

// DeclineOffer takes an optional body with a reason.
func (h *Handler) DeclineOffer(w http.ResponseWriter, r *http.Request) {
	var req domain.DeclineRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}

	loan, err := h.loans.DeclineOffer(r.Context(), session(r), loanID(r), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, loan)
}

func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	schedule, err := h.loans.GetSchedule(r.Context(), session(r), loanID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, schedule)
}

func (h *Handler) GetOutstanding(w http.ResponseWriter, r *http.Request) {
	outstanding, err := h.loans.GetOutstanding(r.Context(), session(r), loanID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, outstanding)
}
