package handler

import (
	"net/http"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/pkg/response"
)

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.loans.ListPayments(r.Context(), session(r), loanID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, payments)
}

// RecordPayment answers 201; an accepted overpayment carries the OVERPAYMENT warning.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req domain.RecordPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.loans.RecordPayment(r.Context(), session(r), loanID(r), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if result.Warning != "" {
		response.Warning(w, http.StatusCreated, result, result.Warning)
		return
	}
	response.Created(w, result)
}
