package handler

import (
	"net/http"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/pkg/response"
)

func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req domain.SignUpRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.users.SignUp(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Created(w, resp)
}

func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req domain.SignInRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.users.SignIn(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, resp)
}
