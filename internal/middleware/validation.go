package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	apierrors "bikepulse/internal/errors"
	"bikepulse/internal/filter"
)

// DateLayout is the ISO 8601 calendar date accepted in filter queries
const DateLayout = "2006-01-02"

// FilterQuery is the wire form of a filter selection, shared by the query
// string and WebSocket filter messages. Missing fields select the full range.
type FilterQuery struct {
	Start   string `json:"start,omitempty" validate:"omitempty,iso8601"`
	End     string `json:"end,omitempty" validate:"omitempty,iso8601"`
	HourMin *int   `json:"hour_min,omitempty" validate:"omitempty,gte=0,lte=23"`
	HourMax *int   `json:"hour_max,omitempty" validate:"omitempty,gte=0,lte=23"`
}

// Validator validates dashboard inputs using struct tags
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a validator with the dashboard's custom tags registered
func NewValidator() *Validator {
	v := validator.New()
	if err := v.RegisterValidation("iso8601", isISO8601); err != nil {
		panic(fmt.Sprintf("register iso8601 validation: %v", err))
	}

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validate: v}
}

// ValidateStruct validates a struct and returns validation errors
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apierrors.InvalidRequestWithError(err)
	}

	validationErrors := make([]apierrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		validationErrors = append(validationErrors, apierrors.ValidationError{
			Field:   fe.Field(),
			Message: formatValidationError(fe),
		})
	}
	return apierrors.NewValidationErrors(validationErrors)
}

// ParseFilterQuery reads start, end, hour_min and hour_max from the query
// string. Reversed ranges are rejected.
func (v *Validator) ParseFilterQuery(r *http.Request) (filter.Params, error) {
	fq, err := readFilterQuery(r)
	if err != nil {
		return filter.Params{}, err
	}
	return v.FilterParams(fq)
}

// ParseFilterForm reads the same fields as ParseFilterQuery for the dashboard
// page form. Reversed ranges are kept and swapped when clamping.
func (v *Validator) ParseFilterForm(r *http.Request) (filter.Params, error) {
	fq, err := readFilterQuery(r)
	if err != nil {
		return filter.Params{}, err
	}
	return v.buildParams(fq)
}

func readFilterQuery(r *http.Request) (FilterQuery, error) {
	q := r.URL.Query()
	fq := FilterQuery{
		Start: strings.TrimSpace(q.Get("start")),
		End:   strings.TrimSpace(q.Get("end")),
	}

	var err error
	if fq.HourMin, err = queryInt(q.Get("hour_min"), "hour_min"); err != nil {
		return fq, err
	}
	if fq.HourMax, err = queryInt(q.Get("hour_max"), "hour_max"); err != nil {
		return fq, err
	}
	return fq, nil
}

// FilterParams validates fq and converts it to filter params. Reversed ranges
// are rejected with ErrInvalidRange; dates outside the table are left for
// filter.Clamp.
func (v *Validator) FilterParams(fq FilterQuery) (filter.Params, error) {
	p, err := v.buildParams(fq)
	if err != nil {
		return filter.Params{}, err
	}

	if !p.DateStart.IsZero() && !p.DateEnd.IsZero() && p.DateEnd.Before(p.DateStart) {
		return filter.Params{}, apierrors.NewWithDetails(http.StatusBadRequest, apierrors.ErrInvalidRange.ErrorCode,
			"start must not be after end", apierrors.ValidationError{Field: "start", Message: "start must not be after end"})
	}
	if p.HourMin > p.HourMax {
		return filter.Params{}, apierrors.NewWithDetails(http.StatusBadRequest, apierrors.ErrInvalidRange.ErrorCode,
			"hour_min must not exceed hour_max", apierrors.ValidationError{Field: "hour_min", Message: "hour_min must not exceed hour_max"})
	}
	return p, nil
}

// DecodeFilter parses a WebSocket filter payload. Field formats are validated
// but reversed ranges are kept; the dashboard swaps them when clamping.
func (v *Validator) DecodeFilter(raw json.RawMessage) (filter.Params, error) {
	var fq FilterQuery
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &fq); err != nil {
			return filter.Params{}, apierrors.InvalidRequestWithError(err)
		}
	}
	fq.Start = strings.TrimSpace(fq.Start)
	fq.End = strings.TrimSpace(fq.End)
	return v.buildParams(fq)
}

func (v *Validator) buildParams(fq FilterQuery) (filter.Params, error) {
	if err := v.ValidateStruct(fq); err != nil {
		return filter.Params{}, err
	}

	p := filter.Params{HourMin: filter.MinHour, HourMax: filter.MaxHour}
	if fq.Start != "" {
		p.DateStart, _ = time.Parse(DateLayout, fq.Start)
	}
	if fq.End != "" {
		p.DateEnd, _ = time.Parse(DateLayout, fq.End)
	}
	if fq.HourMin != nil {
		p.HourMin = *fq.HourMin
	}
	if fq.HourMax != nil {
		p.HourMax = *fq.HourMax
	}
	return p, nil
}

// ValidateEnum checks value against the allowed set
func (v *Validator) ValidateEnum(param, value string, allowed []string) error {
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return nil
		}
	}
	return apierrors.ErrValidation(param, fmt.Sprintf("%s must be one of: %s", param, strings.Join(allowed, ", ")))
}

func queryInt(raw, param string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, apierrors.ErrValidation(param, fmt.Sprintf("%s must be a valid integer", param))
	}
	return &n, nil
}

// formatValidationError formats validation error messages
func formatValidationError(err validator.FieldError) string {
	field := err.Field()
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "iso8601":
		return fmt.Sprintf("%s must be a valid ISO8601 date (YYYY-MM-DD)", field)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}

// isISO8601 validates a YYYY-MM-DD calendar date
func isISO8601(fl validator.FieldLevel) bool {
	_, err := time.Parse(DateLayout, fl.Field().String())
	return err == nil
}
