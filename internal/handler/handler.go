package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-ledger/internal/auth"
	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/service"
	"github.com/segyhp/loan-ledger/pkg/response"
	"github.com/segyhp/loan-ledger/pkg/utils"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	loans     *service.LoanService
	reports   *service.ReportService
	users     *service.UserService
	validator *validator.Validate
}

func New(loans *service.LoanService, reports *service.ReportService, users *service.UserService) *Handler {
	return &Handler{
		loans:     loans,
		reports:   reports,
		users:     users,
		validator: newValidator(),
	}
}

// newValidator teaches the validator about decimals: they are validated as
// their string form, with decimal_gt and decimal_gte comparing numerically
// and decimal_places capping the fractional digits.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation("decimal_gt", compareDecimal(func(value, bound decimal.Decimal) bool {
		return value.GreaterThan(bound)
	}))
	_ = v.RegisterValidation("decimal_gte", compareDecimal(func(value, bound decimal.Decimal) bool {
		return value.GreaterThanOrEqual(bound)
	}))
	_ = v.RegisterValidation("decimal_places", func(fl validator.FieldLevel) bool {
		value, err := decimal.NewFromString(fl.Field().String())
		if err != nil {
			return false
		}
		places, err := strconv.ParseInt(fl.Param(), 10, 32)
		if err != nil {
			return false
		}
		return utils.FitsPlaces(value, int32(places))
	})

	return v
}

func compareDecimal(ok func(value, bound decimal.Decimal) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value, err := decimal.NewFromString(fl.Field().String())
		if err != nil {
			return false
		}
		bound, err := decimal.NewFromString(fl.Param())
		if err != nil {
			return false
		}
		return ok(value, bound)
	}
}

// decode reads a JSON body into dst and validates it. On failure the 400
// response has already been written.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		response.BadRequest(w, "Validation failed", validationError(err))
		return false
	}
	return true
}

func validationError(err error) error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	fields := make([]string, 0, len(errs))
	for _, fe := range errs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		fields = append(fields, fe.Field()+" failed "+rule)
	}
	return errors.New(strings.Join(fields, "; "))
}

// session is set by the auth middleware on every protected route.
func session(r *http.Request) domain.Session {
	s, _ := auth.SessionFrom(r.Context())
	return s
}
