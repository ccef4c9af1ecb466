package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Notification is a user-facing notice about a pipeline event. It is created
// by the notification dispatcher and only ever mutated by mark-read.
type Notification struct {
	ID              uuid.UUID `json:"id" db:"id"`
	UserID          uuid.UUID `json:"user_id" db:"user_id"`
	Title           string    `json:"title" db:"title"`
	Message         string    `json:"message" db:"message"`
	RelatedResource string    `json:"related_resource" db:"related_resource"`
	Read            bool      `json:"read" db:"read"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Notification model
func (Notification) TableName() string {
	return "notifications"
}

// NewNotification creates an unread notification for a user.
func NewNotification(userID uuid.UUID, title, message, relatedResource string) *Notification {
	return &Notification{
		ID:              uuid.New(),
		UserID:          userID,
		Title:           title,
		Message:         message,
		RelatedResource: relatedResource,
		Read:            false,
		CreatedAt:       time.Now(),
	}
}

// ResourceRef formats a related_resource value such as "trace:<id>".
func ResourceRef(resourceType string, id uuid.UUID) string {
	return fmt.Sprintf("%s:%s", resourceType, id)
}
