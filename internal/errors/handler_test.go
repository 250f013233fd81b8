package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorToProblem(t *testing.T) {
	h := NewErrorHandler(nil)
	req := httptest.NewRequest(http.MethodGet, "/api/report", nil)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"report missing", ErrReportNotFound, http.StatusNotFound, TypeNotFound},
		{"scan conflict", ErrScanRunning, http.StatusConflict, TypeConflict},
		{"bad param", InvalidParameterError("level", "unknown"), http.StatusBadRequest, TypeValidation},
		{"wrapped contract", fmt.Errorf("scan: %w", NewContractError("exclusion", "calendar not ascending")), http.StatusInternalServerError, TypeContract},
		{"network", NewNetworkError("fetch", nil), http.StatusBadGateway, TypeUpstream},
		{"storage", NewStorageError("open workbook", nil), http.StatusInternalServerError, TypeInternal},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, TypeTimeout},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, TypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := h.ErrorToProblem(tt.err, req)
			assert.Equal(t, tt.wantStatus, p.Status)
			assert.Equal(t, tt.wantType, p.Type)
			assert.Equal(t, http.StatusText(tt.wantStatus), p.Title)
			assert.Equal(t, "/api/report", p.Instance)
		})
	}
}

func TestStorageDetailHidden(t *testing.T) {
	p := NewErrorHandler(nil).ErrorToProblem(NewStorageError("credentials.json unreadable", nil),
		httptest.NewRequest(http.MethodGet, "/api/scan", nil))
	assert.NotContains(t, p.Detail, "credentials")
}

func TestHandleError(t *testing.T) {
	h := NewErrorHandler(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/report?level=x", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "req-7"))

	h.HandleError(rec, req, InvalidParameterError("level", "must be one of 高 中 低"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, TypeValidation, body["type"])
	assert.Equal(t, "INVALID_PARAMETER", body["error_code"])
	assert.Equal(t, "req-7", body["trace_id"])
	assert.Equal(t, "level", body["details"].(map[string]any)["field"])
}

func TestHandleErrorNil(t *testing.T) {
	rec := httptest.NewRecorder()
	NewErrorHandler(nil).HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, rec.Body.Len())
}
