package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tracelens/tracelens/models"
	"github.com/tracelens/tracelens/repositories"
	"github.com/tracelens/tracelens/utils"
	"go.uber.org/zap"
)

// AuditReader defines the audit query operations the audit handler needs.
// The audit trail is append-only; there are no write endpoints.
type AuditReader interface {
	// List retrieves audit entries matching the filter, newest first.
	List(ctx context.Context, filter repositories.AuditFilter, limit, offset int) ([]*models.AuditEntry, error)

	// ForResource retrieves the audit history of one resource, oldest first.
	ForResource(ctx context.Context, resourceID uuid.UUID) ([]*models.AuditEntry, error)
}

// AuditEntryResponse represents an audit entry in API responses
type AuditEntryResponse struct {
	ID           uuid.UUID       `json:"id"`
	ActorUserID  *uuid.UUID      `json:"actor_user_id,omitempty"`
	Action       string          `json:"action_type"`
	ResourceType string          `json:"resource_type"`
	ResourceID   *uuid.UUID      `json:"resource_id,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    string          `json:"created_at"`
}

// AuditHandler handles audit-trail HTTP requests
type AuditHandler struct {
	reader AuditReader
	logger *zap.Logger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(reader AuditReader, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		reader: reader,
		logger: logger,
	}
}

// HandleListEntries handles GET /api/v1/audit/entries with optional action,
// resource_type, start, and end (RFC 3339) filters.
func (h *AuditHandler) HandleListEntries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	filter := repositories.AuditFilter{
		Action:       models.AuditAction(query.Get("action")),
		ResourceType: query.Get("resource_type"),
	}
	if raw := query.Get("start"); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			_ = utils.WriteBadRequest(w, "Invalid start timestamp, expected RFC 3339", nil)
			return
		}
		filter.Start = start
	}
	if raw := query.Get("end"); raw != "" {
		end, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			_ = utils.WriteBadRequest(w, "Invalid end timestamp, expected RFC 3339", nil)
			return
		}
		filter.End = end
	}

	limit, offset := utils.ParsePagination(query.Get("limit"), query.Get("offset"), 100, 500)

	entries, err := h.reader.List(ctx, filter, limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	responses := make([]AuditEntryResponse, len(entries))
	for i, entry := range entries {
		responses[i] = auditEntryToResponse(entry)
	}

	_ = utils.WriteOK(w, responses)
}

// HandleResourceHistory handles GET /api/v1/audit/resources/{id}
func (h *AuditHandler) HandleResourceHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resourceID, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid resource ID format", nil)
		return
	}

	entries, err := h.reader.ForResource(ctx, resourceID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	responses := make([]AuditEntryResponse, len(entries))
	for i, entry := range entries {
		responses[i] = auditEntryToResponse(entry)
	}

	_ = utils.WriteOK(w, responses)
}

// auditEntryToResponse converts an AuditEntry model to an AuditEntryResponse
func auditEntryToResponse(entry *models.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:           entry.ID,
		ActorUserID:  entry.ActorUserID,
		Action:       string(entry.Action),
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Metadata:     entry.Metadata,
		CreatedAt:    entry.CreatedAt.Format(time.RFC3339),
	}
}
