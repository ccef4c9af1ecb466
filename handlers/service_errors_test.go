package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tracelens/tracelens/services"
	"go.uber.org/zap"
)

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"trace not found", services.ErrTraceNotFound, http.StatusNotFound},
		{"issue not found", services.ErrIssueNotFound, http.StatusNotFound},
		{"invalid input", services.ErrInvalidInput, http.StatusBadRequest},
		{"invalid severity", services.ErrInvalidSeverity, http.StatusBadRequest},
		{"not trace owner", services.ErrNotTraceOwner, http.StatusForbidden},
		{"already running", services.ErrAlreadyRunning, http.StatusConflict},
		{"terminal trace", services.ErrTraceTerminal, http.StatusConflict},
		{"analysis timeout", services.ErrAnalysisTimeout, http.StatusGatewayTimeout},
		{"audit write failure", services.ErrAuditWriteFailure, http.StatusInternalServerError},
		{"plain error", errors.New("something broke"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleServiceError(rec, tt.err, zap.NewNop())
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestHandleServiceError_AuditHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	wrapped := services.NewDomainError(services.ErrorTypeAudit, "failed to write audit entry", errors.New("pq: connection refused"))
	HandleServiceError(rec, wrapped, zap.NewNop())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
	assert.Contains(t, rec.Body.String(), "could not be recorded")
}

func TestHandleServiceError_WrappedSentinel(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleServiceError(rec, services.WrapError(services.ErrorTypeNotFound, "trace not found", errors.New("sql: no rows in result set")), zap.NewNop())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
