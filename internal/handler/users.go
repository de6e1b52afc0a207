package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/segyhp/loan-ledger/pkg/response"
)

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context(), session(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, users)
}

// Profiles lists every user with their borrowing totals.
func (h *Handler) Profiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.reports.Profiles(r.Context(), session(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, profiles)
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.users.GetProfile(r.Context(), session(r), mux.Vars(r)["username"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, profile)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.DeleteUser(r.Context(), session(r), mux.Vars(r)["username"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
