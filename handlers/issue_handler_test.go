package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tracelens/tracelens/middleware"
	"github.com/tracelens/tracelens/models"
	"github.com/tracelens/tracelens/services"
	"github.com/tracelens/tracelens/services/issues"
	"github.com/tracelens/tracelens/utils"
	"go.uber.org/zap"
)

// MockIssueService is a mock implementation of IssueService
type MockIssueService struct {
	mock.Mock
}

func (m *MockIssueService) Get(ctx context.Context, id uuid.UUID) (*models.Issue, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Issue), args.Error(1)
}

func (m *MockIssueService) ForTrace(ctx context.Context, traceID uuid.UUID) ([]*models.Issue, error) {
	args := m.Called(ctx, traceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Issue), args.Error(1)
}

func (m *MockIssueService) List(ctx context.Context, limit, offset int) ([]*models.Issue, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Issue), args.Error(1)
}

func (m *MockIssueService) Triage(ctx context.Context, actor, issueID uuid.UUID, input issues.TriageInput) (*models.Issue, error) {
	args := m.Called(ctx, actor, issueID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Issue), args.Error(1)
}

func newIssueRouter(svc IssueService) chi.Router {
	h := NewIssueHandler(svc, zap.NewNop())
	r := chi.NewRouter()
	r.Get("/issues", h.HandleListIssues)
	r.Get("/issues/{id}", h.HandleGetIssue)
	r.Patch("/issues/{id}", h.HandleTriageIssue)
	r.Get("/traces/{id}/issues", h.HandleListTraceIssues)
	return r
}

func testIssue() *models.Issue {
	f := &models.Finding{
		Kind:        models.FindingKindLatencyOutlier,
		Severity:    models.IssueSeverityHigh,
		Title:       "Latency outlier on GET /checkout",
		Description: "2 span(s) exceeded the 1s latency threshold",
		Fingerprint: models.Fingerprint(uuid.New(), models.FindingKindLatencyOutlier, "GET /checkout"),
	}
	return models.NewIssueFromFinding(uuid.New(), f)
}

func TestHandleListIssues(t *testing.T) {
	svc := new(MockIssueService)
	svc.On("List", mock.Anything, 50, 0).Return([]*models.Issue{testIssue(), testIssue()}, nil)

	req := httptest.NewRequest(http.MethodGet, "/issues", nil)
	rec := httptest.NewRecorder()
	newIssueRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp utils.SuccessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
}

func TestHandleGetIssue(t *testing.T) {
	svc := new(MockIssueService)
	issue := testIssue()
	svc.On("Get", mock.Anything, issue.ID).Return(issue, nil)

	req := httptest.NewRequest(http.MethodGet, "/issues/"+issue.ID.String(), nil)
	rec := httptest.NewRecorder()
	newIssueRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp utils.SuccessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, issue.Fingerprint, data["fingerprint"])
	assert.Equal(t, "open", data["status"])
}

func TestHandleGetIssue_NotFound(t *testing.T) {
	svc := new(MockIssueService)
	id := uuid.New()
	svc.On("Get", mock.Anything, id).Return(nil, services.ErrIssueNotFound)

	req := httptest.NewRequest(http.MethodGet, "/issues/"+id.String(), nil)
	rec := httptest.NewRecorder()
	newIssueRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleListTraceIssues(t *testing.T) {
	svc := new(MockIssueService)
	traceID := uuid.New()
	svc.On("ForTrace", mock.Anything, traceID).Return([]*models.Issue{testIssue()}, nil)

	req := httptest.NewRequest(http.MethodGet, "/traces/"+traceID.String()+"/issues", nil)
	rec := httptest.NewRecorder()
	newIssueRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleTriageIssue(t *testing.T) {
	svc := new(MockIssueService)
	userID := uuid.New()
	assignee := uuid.New()
	issue := testIssue()
	issue.Status = models.IssueStatusAssigned
	issue.AssignedTo = &assignee

	svc.On("Triage", mock.Anything, userID, issue.ID, mock.MatchedBy(func(input issues.TriageInput) bool {
		return input.AssignedTo != nil && *input.AssignedTo == assignee && input.Status == nil
	})).Return(issue, nil)

	body, err := json.Marshal(map[string]interface{}{"assigned_to": assignee})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPatch, "/issues/"+issue.ID.String(), bytes.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	rec := httptest.NewRecorder()
	newIssueRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp utils.SuccessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "assigned", data["status"])
	assert.Equal(t, assignee.String(), data["assigned_to"])
}

func TestHandleTriageIssue_InvalidBody(t *testing.T) {
	svc := new(MockIssueService)
	userID := uuid.New()
	id := uuid.New()

	tests := []struct {
		name string
		body string
	}{
		{"not json", `this is not json`},
		{"bad status", `{"status": "escalated"}`},
		{"bad severity", `{"severity": "apocalyptic"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, "/issues/"+id.String(), bytes.NewReader([]byte(tt.body)))
			req = req.WithContext(middleware.WithUserID(req.Context(), userID))
			rec := httptest.NewRecorder()
			newIssueRouter(svc).ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	svc.AssertNotCalled(t, "Triage")
}

func TestHandleTriageIssue_Unauthenticated(t *testing.T) {
	svc := new(MockIssueService)

	req := httptest.NewRequest(http.MethodPatch, "/issues/"+uuid.New().String(), bytes.NewReader([]byte(`{"status":"resolved"}`)))
	rec := httptest.NewRecorder()
	newIssueRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	svc.AssertNotCalled(t, "Triage")
}
