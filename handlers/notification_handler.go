package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tracelens/tracelens/middleware"
	"github.com/tracelens/tracelens/models"
	"github.com/tracelens/tracelens/repositories"
	"github.com/tracelens/tracelens/utils"
	"go.uber.org/zap"
)

// NotificationResponse represents a notification in API responses
type NotificationResponse struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Message         string    `json:"message"`
	RelatedResource string    `json:"related_resource"`
	Read            bool      `json:"read"`
	CreatedAt       string    `json:"created_at"`
}

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notificationRepo repositories.NotificationRepository
	logger           *zap.Logger
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notificationRepo repositories.NotificationRepository, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationRepo: notificationRepo,
		logger:           logger,
	}
}

// HandleListNotifications handles GET /api/v1/notifications. The unread=true
// query parameter filters to unread notifications only.
func (h *NotificationHandler) HandleListNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middleware.GetUserIDFromContext(ctx)
	if userID == uuid.Nil {
		h.logger.Error("missing user ID in context")
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	unreadOnly := r.URL.Query().Get("unread") == "true"
	limit, offset := utils.ParsePagination(
		r.URL.Query().Get("limit"), r.URL.Query().Get("offset"), 50, 200)

	notifications, err := h.notificationRepo.GetByUserID(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		h.logger.Error("failed to list notifications",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to retrieve notifications")
		return
	}

	responses := make([]NotificationResponse, len(notifications))
	for i, n := range notifications {
		responses[i] = notificationToResponse(n)
	}

	_ = utils.WriteOK(w, responses)
}

// HandleMarkRead handles POST /api/v1/notifications/{id}/read
func (h *NotificationHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middleware.GetUserIDFromContext(ctx)
	if userID == uuid.Nil {
		h.logger.Error("missing user ID in context")
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	notificationID, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid notification ID format", nil)
		return
	}

	if err := h.notificationRepo.MarkRead(ctx, notificationID, userID); err != nil {
		if errors.Is(err, repositories.ErrNotificationNotFound) {
			_ = utils.WriteNotFound(w, "Notification not found")
			return
		}
		h.logger.Error("failed to mark notification read",
			zap.String("notification_id", notificationID.String()),
			zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to mark notification read")
		return
	}

	utils.WriteNoContent(w)
}

// notificationToResponse converts a Notification model to a NotificationResponse
func notificationToResponse(n *models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:              n.ID,
		Title:           n.Title,
		Message:         n.Message,
		RelatedResource: n.RelatedResource,
		Read:            n.Read,
		CreatedAt:       n.CreatedAt.Format(time.RFC3339),
	}
}
