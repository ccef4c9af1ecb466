package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tracelens/tracelens/middleware"
	"github.com/tracelens/tracelens/models"
	"github.com/tracelens/tracelens/services/issues"
	"github.com/tracelens/tracelens/utils"
	"go.uber.org/zap"
)

// IssueService defines the issue operations the issue handler needs.
type IssueService interface {
	// Get retrieves one issue.
	Get(ctx context.Context, id uuid.UUID) (*models.Issue, error)

	// ForTrace retrieves all issues detected on a trace.
	ForTrace(ctx context.Context, traceID uuid.UUID) ([]*models.Issue, error)

	// List retrieves issues with pagination, newest first.
	List(ctx context.Context, limit, offset int) ([]*models.Issue, error)

	// Triage applies a human triage decision.
	Triage(ctx context.Context, actor, issueID uuid.UUID, input issues.TriageInput) (*models.Issue, error)
}

// TriageRequest represents a request to triage an issue
type TriageRequest struct {
	Status     *string    `json:"status,omitempty" validate:"omitempty,oneof=open assigned resolved closed"`
	Severity   *string    `json:"severity,omitempty" validate:"omitempty,oneof=low medium high critical"`
	AssignedTo *uuid.UUID `json:"assigned_to,omitempty"`
}

// IssueResponse represents an issue in API responses
type IssueResponse struct {
	ID          uuid.UUID       `json:"id"`
	TraceID     uuid.UUID       `json:"trace_id"`
	Fingerprint string          `json:"fingerprint"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Severity    string          `json:"severity"`
	Status      string          `json:"status"`
	AssignedTo  *uuid.UUID      `json:"assigned_to,omitempty"`
	Evidence    json.RawMessage `json:"evidence,omitempty"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
}

// IssueHandler handles issue-related HTTP requests
type IssueHandler struct {
	issues IssueService
	logger *zap.Logger
}

// NewIssueHandler creates a new IssueHandler
func NewIssueHandler(issues IssueService, logger *zap.Logger) *IssueHandler {
	return &IssueHandler{
		issues: issues,
		logger: logger,
	}
}

// HandleListIssues handles GET /api/v1/issues
func (h *IssueHandler) HandleListIssues(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, offset := utils.ParsePagination(
		r.URL.Query().Get("limit"), r.URL.Query().Get("offset"), 50, 200)

	list, err := h.issues.List(ctx, limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	responses := make([]IssueResponse, len(list))
	for i, issue := range list {
		responses[i] = issueToResponse(issue)
	}

	_ = utils.WriteOK(w, responses)
}

// HandleGetIssue handles GET /api/v1/issues/{id}
func (h *IssueHandler) HandleGetIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	issueID, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid issue ID format", nil)
		return
	}

	issue, err := h.issues.Get(ctx, issueID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, issueToResponse(issue))
}

// HandleListTraceIssues handles GET /api/v1/traces/{id}/issues
func (h *IssueHandler) HandleListTraceIssues(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	traceID, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid trace ID format", nil)
		return
	}

	list, err := h.issues.ForTrace(ctx, traceID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	responses := make([]IssueResponse, len(list))
	for i, issue := range list {
		responses[i] = issueToResponse(issue)
	}

	_ = utils.WriteOK(w, responses)
}

// HandleTriageIssue handles PATCH /api/v1/issues/{id}
func (h *IssueHandler) HandleTriageIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	userID := middleware.GetUserIDFromContext(ctx)
	if userID == uuid.Nil {
		h.logger.Error("missing user ID in context")
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	issueID, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid issue ID format", nil)
		return
	}

	var req TriageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	input := issues.TriageInput{AssignedTo: req.AssignedTo}
	if req.Status != nil {
		status := models.IssueStatus(*req.Status)
		input.Status = &status
	}
	if req.Severity != nil {
		severity := models.IssueSeverity(*req.Severity)
		input.Severity = &severity
	}

	issue, err := h.issues.Triage(ctx, userID, issueID, input)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("issue triaged",
		zap.String("request_id", requestID),
		zap.String("issue_id", issueID.String()),
		zap.String("actor", userID.String()))

	_ = utils.WriteOK(w, issueToResponse(issue))
}

// issueToResponse converts an Issue model to an IssueResponse
func issueToResponse(issue *models.Issue) IssueResponse {
	return IssueResponse{
		ID:          issue.ID,
		TraceID:     issue.TraceID,
		Fingerprint: issue.Fingerprint,
		Title:       issue.Title,
		Description: issue.Description,
		Severity:    string(issue.Severity),
		Status:      string(issue.Status),
		AssignedTo:  issue.AssignedTo,
		Evidence:    issue.Evidence,
		CreatedAt:   issue.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   issue.UpdatedAt.Format(time.RFC3339),
	}
}
