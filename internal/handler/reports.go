package handler

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/segyhp/loan-ledger/internal/export"
	"github.com/segyhp/loan-ledger/pkg/response"
)

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reports.Summary(r.Context(), session(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, summary)
}

func (h *Handler) Trend(w http.ResponseWriter, r *http.Request) {
	trend, err := h.reports.Trend(r.Context(), session(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, trend)
}

func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	recent, err := h.reports.Recent(r.Context(), session(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, recent)
}

// Export streams the session's ledger as an XLSX download. The workbook is
// built in memory first so a failure can still be reported as JSON.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.reports.Export(r.Context(), session(r), &buf); err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(time.Now())+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
