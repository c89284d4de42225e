package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandler() *ErrorHandler {
	return NewErrorHandler(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})), false)
}

func TestErrorToProblem(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{name: "deadline", err: context.DeadlineExceeded, wantStatus: http.StatusGatewayTimeout, wantType: TypeTimeout},
		{name: "wrapped cancel", err: fmt.Errorf("snapshot: %w", context.Canceled), wantStatus: http.StatusGatewayTimeout, wantType: TypeTimeout},
		{name: "validation", err: ErrValidation("hour_min", "bad"), wantStatus: http.StatusBadRequest, wantType: TypeValidation},
		{name: "invalid range", err: ErrInvalidRange, wantStatus: http.StatusBadRequest, wantType: TypeInvalidRange},
		{name: "unsupported format", err: ErrUnsupportedFormat, wantStatus: http.StatusBadRequest, wantType: TypeValidation},
		{name: "dataset unavailable", err: ErrDatasetUnavailable, wantStatus: http.StatusServiceUnavailable, wantType: TypeDatasetUnavailable},
		{name: "wrapped api error", err: fmt.Errorf("handler: %w", NotFoundError("chart")), wantStatus: http.StatusNotFound, wantType: TypeNotFound},
		{name: "load error", err: NewLoadError("cannot open", os.ErrNotExist), wantStatus: http.StatusServiceUnavailable, wantType: TypeDatasetUnavailable},
		{name: "parsing error", err: NewParsingError("bad row", nil), wantStatus: http.StatusUnprocessableEntity, wantType: TypeDatasetCorrupted},
		{name: "export error", err: NewExportError("disk full", nil), wantStatus: http.StatusInternalServerError, wantType: TypeExportFailed},
		{name: "config error", err: NewConfigError("bad port", nil), wantStatus: http.StatusInternalServerError, wantType: TypeInternal},
		{name: "plain error", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantType: TypeInternal},
	}

	h := newHandler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/dashboard/snapshot", nil)
			p := h.ErrorToProblem(tt.err, r)
			assert.Equal(t, tt.wantStatus, p.Status)
			assert.Equal(t, tt.wantType, p.Type)
			assert.Equal(t, "/api/dashboard/snapshot", p.Instance)
		})
	}
}

func TestHandleError_WritesProblemJSON(t *testing.T) {
	h := newHandler()
	r := httptest.NewRequest(http.MethodGet, "/api/dashboard/export/pdf", nil)
	w := httptest.NewRecorder()

	h.HandleError(w, r, ErrValidation("format", "format must be one of: csv, xlsx, png"))

	require.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, TypeValidation, body["type"])
	assert.Equal(t, "VALIDATION_FAILED", body["error_code"])
	assert.Contains(t, body, "trace_id")
	details, ok := body["details"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "format", details["field"])
}

func TestHandleError_NilIsNoop(t *testing.T) {
	w := httptest.NewRecorder()
	newHandler().HandleError(w, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Equal(t, 0, w.Body.Len())
}

func TestAppErrorContextExtension(t *testing.T) {
	err := NewLoadError("missing columns", nil).WithContext("missing", []string{"hr"})
	p := newHandler().ErrorToProblem(err, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "LOAD", p.Extensions["error_type"])
	assert.Equal(t, map[string]interface{}{"missing": []string{"hr"}}, p.Extensions["context"])
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	h := newHandler()

	w := httptest.NewRecorder()
	h.NotFound(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	h.MethodNotAllowed(w, httptest.NewRequest(http.MethodDelete, "/api/dashboard/bounds", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Contains(t, w.Body.String(), "DELETE")
}

func TestAppError(t *testing.T) {
	cause := os.ErrNotExist
	err := fmt.Errorf("startup: %w", NewLoadError("open dataset", cause))

	assert.True(t, IsLoadError(err))
	assert.False(t, IsType(err, ErrTypeExport))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "[LOAD] open dataset")
	assert.False(t, IsLoadError(errors.New("other")))
}
