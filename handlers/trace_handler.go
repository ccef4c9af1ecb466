package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tracelens/tracelens/middleware"
	"github.com/tracelens/tracelens/models"
	"github.com/tracelens/tracelens/services"
	"github.com/tracelens/tracelens/utils"
	"go.uber.org/zap"
)

// TraceService defines the pipeline operations the trace handler needs.
type TraceService interface {
	// Upload stores a new pending trace with its payload.
	Upload(ctx context.Context, ownerID uuid.UUID, fileName string, payload []byte) (*models.Trace, error)

	// StartAnalysis runs one analysis over the trace.
	StartAnalysis(ctx context.Context, requester, traceID uuid.UUID) error

	// GetTrace retrieves a trace, enforcing ownership.
	GetTrace(ctx context.Context, requester, traceID uuid.UUID) (*models.Trace, error)

	// ListTraces retrieves the requester's traces.
	ListTraces(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*models.Trace, error)
}

// TraceResponse represents a trace in API responses
type TraceResponse struct {
	ID         uuid.UUID `json:"id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	FileName   string    `json:"file_name"`
	ByteSize   int64     `json:"byte_size"`
	Status     string    `json:"status"`
	FailReason *string   `json:"fail_reason,omitempty"`
	UploadedAt string    `json:"uploaded_at"`
	UpdatedAt  string    `json:"updated_at"`
}

// TraceHandler handles trace-related HTTP requests
type TraceHandler struct {
	traces         TraceService
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewTraceHandler creates a new TraceHandler
func NewTraceHandler(traces TraceService, maxUploadBytes int64, logger *zap.Logger) *TraceHandler {
	return &TraceHandler{
		traces:         traces,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// HandleUpload handles POST /api/v1/traces. The trace file arrives as the
// multipart form field "file". Analysis is kicked off in the background and
// the pending trace is returned immediately.
func (h *TraceHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	userID := middleware.GetUserIDFromContext(ctx)
	if userID == uuid.Nil {
		h.logger.Error("missing user ID in context")
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	// Some slack over the payload cap for the multipart framing itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+64<<10)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.logger.Warn("failed to parse upload form",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WritePayloadTooLarge(w, "Trace upload exceeds the size limit", map[string]interface{}{
			"max_bytes": h.maxUploadBytes,
		})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		_ = utils.WriteBadRequest(w, "Missing trace file (multipart field \"file\")", nil)
		return
	}
	defer file.Close()

	payload, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		h.logger.Error("failed to read upload",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to read trace file")
		return
	}
	if int64(len(payload)) > h.maxUploadBytes {
		_ = utils.WritePayloadTooLarge(w, "Trace upload exceeds the size limit", map[string]interface{}{
			"max_bytes": h.maxUploadBytes,
		})
		return
	}

	trace, err := h.traces.Upload(ctx, userID, header.Filename, payload)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("trace uploaded",
		zap.String("request_id", requestID),
		zap.String("trace_id", trace.ID.String()),
		zap.String("user_id", userID.String()))

	h.startBackgroundAnalysis(userID, trace.ID)

	_ = utils.WriteAccepted(w, traceToResponse(trace))
}

// HandleStartAnalysis handles POST /api/v1/traces/{id}/analyze. The analysis
// runs in the background; conflicts with an already-claimed or terminal
// trace surface synchronously.
func (h *TraceHandler) HandleStartAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middleware.GetUserIDFromContext(ctx)
	if userID == uuid.Nil {
		h.logger.Error("missing user ID in context")
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	traceID, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid trace ID format", nil)
		return
	}

	// Validate ownership and claimability before answering; the claim itself
	// happens inside the background run.
	trace, err := h.traces.GetTrace(ctx, userID, traceID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if trace.Status != models.TraceStatusPending {
		HandleServiceError(w, statusConflictError(trace), h.logger)
		return
	}

	h.startBackgroundAnalysis(userID, traceID)

	_ = utils.WriteAccepted(w, traceToResponse(trace))
}

// HandleGetTrace handles GET /api/v1/traces/{id}
func (h *TraceHandler) HandleGetTrace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middleware.GetUserIDFromContext(ctx)
	if userID == uuid.Nil {
		h.logger.Error("missing user ID in context")
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	traceID, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid trace ID format", nil)
		return
	}

	trace, err := h.traces.GetTrace(ctx, userID, traceID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, traceToResponse(trace))
}

// HandleListTraces handles GET /api/v1/traces
func (h *TraceHandler) HandleListTraces(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middleware.GetUserIDFromContext(ctx)
	if userID == uuid.Nil {
		h.logger.Error("missing user ID in context")
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	limit, offset := utils.ParsePagination(
		r.URL.Query().Get("limit"), r.URL.Query().Get("offset"), 50, 200)

	traces, err := h.traces.ListTraces(ctx, userID, limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	responses := make([]TraceResponse, len(traces))
	for i, trace := range traces {
		responses[i] = traceToResponse(trace)
	}

	_ = utils.WriteOK(w, responses)
}

// startBackgroundAnalysis launches one analysis run detached from the
// request. The run outcome lands in the trace status, the audit trail, and
// the owner's notifications, not in an HTTP response.
func (h *TraceHandler) startBackgroundAnalysis(userID, traceID uuid.UUID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if err := h.traces.StartAnalysis(ctx, userID, traceID); err != nil {
			h.logger.Warn("background analysis run finished with error",
				zap.String("trace_id", traceID.String()),
				zap.Error(err))
		}
	}()
}

// statusConflictError picks the conflict flavor for a trace that cannot be
// (re)claimed.
func statusConflictError(trace *models.Trace) error {
	if trace.Status.Terminal() {
		return services.ErrTraceTerminal
	}
	return services.ErrAlreadyRunning
}

// traceToResponse converts a Trace model to a TraceResponse
func traceToResponse(t *models.Trace) TraceResponse {
	return TraceResponse{
		ID:         t.ID,
		OwnerID:    t.OwnerID,
		FileName:   t.FileName,
		ByteSize:   t.ByteSize,
		Status:     string(t.Status),
		FailReason: t.FailReason,
		UploadedAt: t.UploadedAt.Format(time.RFC3339),
		UpdatedAt:  t.UpdatedAt.Format(time.RFC3339),
	}
}
