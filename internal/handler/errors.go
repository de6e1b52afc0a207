package handler

import (
	"errors"
	"net/http"

	customError "github.com/segyhp/loan-ledger/pkg/errors"
	"github.com/segyhp/loan-ledger/pkg/response"
)

var statusByCode = map[string]int{
	customError.ErrCodeLoanNotFound:            http.StatusNotFound,
	customError.ErrCodeUserNotFound:            http.StatusNotFound,
	customError.ErrCodeLoanAlreadyExists:       http.StatusConflict,
	customError.ErrCodeUserAlreadyExists:       http.StatusConflict,
	customError.ErrCodeLoanNotApproved:         http.StatusConflict,
	customError.ErrCodeInvalidStatusTransition: http.StatusConflict,
	customError.ErrCodeInvalidLoanParameters:   http.StatusBadRequest,
	customError.ErrCodeInvalidPaymentAmount:    http.StatusBadRequest,
	customError.ErrCodeInterestRateRequired:    http.StatusBadRequest,
	customError.ErrCodeOverpayment:             http.StatusUnprocessableEntity,
	customError.ErrCodeForbidden:               http.StatusForbidden,
	customError.ErrCodeInvalidCredentials:      http.StatusUnauthorized,
}

// writeError maps service errors onto HTTP responses. Storage failures and
// anything unrecognised are logged and reported as 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var be *customError.BusinessError
	if errors.As(err, &be) {
		if status, ok := statusByCode[be.Code]; ok {
			response.Error(w, status, be.Code, be.Message, nil)
			return
		}
	}
	response.InternalServerError(w, r, "Internal server error", err)
}
