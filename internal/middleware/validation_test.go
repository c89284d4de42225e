package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "bikepulse/internal/errors"
	"bikepulse/internal/filter"
)

func date(s string) time.Time {
	d, _ := time.Parse(DateLayout, s)
	return d
}

func TestParseFilterQuery(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		want      filter.Params
		wantCode  string
		wantField string
	}{
		{
			name:  "empty query selects everything",
			query: "",
			want:  filter.Params{HourMin: 0, HourMax: 23},
		},
		{
			name:  "full selection",
			query: "start=2011-01-01&end=2011-03-31&hour_min=6&hour_max=9",
			want:  filter.Params{DateStart: date("2011-01-01"), DateEnd: date("2011-03-31"), HourMin: 6, HourMax: 9},
		},
		{
			name:  "single hour",
			query: "hour_min=5&hour_max=5",
			want:  filter.Params{HourMin: 5, HourMax: 5},
		},
		{
			name:      "bad date",
			query:     "start=01/02/2011",
			wantCode:  "VALIDATION_FAILED",
			wantField: "start",
		},
		{
			name:      "hour out of range",
			query:     "hour_max=24",
			wantCode:  "VALIDATION_FAILED",
			wantField: "hour_max",
		},
		{
			name:      "hour not a number",
			query:     "hour_min=noon",
			wantCode:  "VALIDATION_FAILED",
			wantField: "hour_min",
		},
		{
			name:      "reversed dates",
			query:     "start=2011-05-01&end=2011-01-01",
			wantCode:  "INVALID_RANGE",
			wantField: "start",
		},
		{
			name:      "reversed hours",
			query:     "hour_min=10&hour_max=3",
			wantCode:  "INVALID_RANGE",
			wantField: "hour_min",
		},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/dashboard/snapshot?"+tt.query, nil)
			got, err := v.ParseFilterQuery(req)

			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}

			require.Error(t, err)
			var apiErr *apierrors.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
			assert.Equal(t, tt.wantCode, apiErr.ErrorCode)
			assert.Contains(t, fieldsOf(apiErr), tt.wantField)
		})
	}
}

func fieldsOf(e *apierrors.APIError) []string {
	switch d := e.Details.(type) {
	case apierrors.ValidationError:
		return []string{d.Field}
	case apierrors.ValidationErrors:
		fields := make([]string, 0, len(d.Errors))
		for _, fe := range d.Errors {
			fields = append(fields, fe.Field)
		}
		return fields
	}
	return nil
}

func TestNewValidator_RegistersISO8601(t *testing.T) {
	var v *Validator
	require.NotPanics(t, func() { v = NewValidator() })

	tests := []struct {
		name    string
		query   FilterQuery
		wantErr bool
	}{
		{name: "calendar date", query: FilterQuery{Start: "2011-01-01", End: "2011-12-31"}},
		{name: "empty dates", query: FilterQuery{}},
		{name: "not a date", query: FilterQuery{Start: "01/01/2011"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateStruct(tt.query)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var apiErr *apierrors.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Contains(t, fieldsOf(apiErr), "start")
		})
	}
}

func TestValidateEnum(t *testing.T) {
	v := NewValidator()
	allowed := []string{"csv", "xlsx", "png"}

	assert.NoError(t, v.ValidateEnum("format", "csv", allowed))
	assert.NoError(t, v.ValidateEnum("format", "XLSX", allowed))

	err := v.ValidateEnum("format", "pdf", allowed)
	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "VALIDATION_FAILED", apiErr.ErrorCode)
}

func TestDecodeFilter(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name     string
		raw      string
		want     filter.Params
		wantCode string
	}{
		{
			name: "empty payload",
			raw:  "",
			want: filter.Params{HourMin: 0, HourMax: 23},
		},
		{
			name: "full selection",
			raw:  `{"start":"2012-06-01","end":"2012-06-30","hour_min":7,"hour_max":9}`,
			want: filter.Params{DateStart: date("2012-06-01"), DateEnd: date("2012-06-30"), HourMin: 7, HourMax: 9},
		},
		{
			name: "reversed ranges kept for clamping",
			raw:  `{"start":"2012-06-30","end":"2012-06-01","hour_min":20,"hour_max":5}`,
			want: filter.Params{DateStart: date("2012-06-30"), DateEnd: date("2012-06-01"), HourMin: 20, HourMax: 5},
		},
		{
			name:     "bad date",
			raw:      `{"start":"June 1"}`,
			wantCode: "VALIDATION_FAILED",
		},
		{
			name:     "hour out of range",
			raw:      `{"hour_max":24}`,
			wantCode: "VALIDATION_FAILED",
		},
		{
			name:     "malformed json",
			raw:      `{"start":`,
			wantCode: "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.DecodeFilter([]byte(tt.raw))
			if tt.wantCode != "" {
				var apiErr *apierrors.APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.wantCode, apiErr.ErrorCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFilterForm_KeepsReversedRanges(t *testing.T) {
	v := NewValidator()
	r := httptest.NewRequest(http.MethodGet, "/?start=2012-06-30&end=2012-06-01&hour_min=9&hour_max=7", nil)

	got, err := v.ParseFilterForm(r)
	require.NoError(t, err)
	assert.Equal(t, filter.Params{DateStart: date("2012-06-30"), DateEnd: date("2012-06-01"), HourMin: 9, HourMax: 7}, got)

	_, err = v.ParseFilterQuery(r)
	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "INVALID_RANGE", apiErr.ErrorCode)

	bad := httptest.NewRequest(http.MethodGet, "/?hour_min=x", nil)
	_, err = v.ParseFilterForm(bad)
	assert.Error(t, err)
}
