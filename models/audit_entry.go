package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	AuditActionTraceUploaded          AuditAction = "trace_uploaded"
	AuditActionTraceAnalysisStart     AuditAction = "trace_analysis_start"
	AuditActionTraceAnalysisCompleted AuditAction = "trace_analysis_completed"
	AuditActionTraceAnalysisFailed    AuditAction = "trace_analysis_failed"
	AuditActionIssueDetected          AuditAction = "issue_detected"
	AuditActionIssueUpdated           AuditAction = "issue_updated"
	AuditActionIssueAssigned          AuditAction = "issue_assigned"
)

// Audited resource types.
const (
	ResourceTypeTrace        = "trace"
	ResourceTypeIssue        = "issue"
	ResourceTypeNotification = "notification"
)

// AuditEntry is an append-only record of a state-changing action. Entries are
// never updated or deleted. ActorUserID is nil for system-initiated actions
// such as automated issue detection.
type AuditEntry struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	ActorUserID  *uuid.UUID      `json:"actor_user_id,omitempty" db:"actor_user_id"`
	Action       AuditAction     `json:"action_type" db:"action_type"`
	ResourceType string          `json:"resource_type" db:"resource_type"`
	ResourceID   *uuid.UUID      `json:"resource_id,omitempty" db:"resource_id"`
	Metadata     json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the AuditEntry model
func (AuditEntry) TableName() string {
	return "audit_entries"
}

// NewAuditEntry creates a new AuditEntry instance
func NewAuditEntry(action AuditAction, resourceType string) *AuditEntry {
	return &AuditEntry{
		ID:           uuid.New(),
		Action:       action,
		ResourceType: resourceType,
		CreatedAt:    time.Now(),
	}
}

// WithActor sets the acting user. Leave unset for system actions.
func (a *AuditEntry) WithActor(userID uuid.UUID) *AuditEntry {
	a.ActorUserID = &userID
	return a
}

// WithResource sets the resource ID
func (a *AuditEntry) WithResource(resourceID uuid.UUID) *AuditEntry {
	a.ResourceID = &resourceID
	return a
}

// WithMetadata sets the opaque metadata payload. Persisted as-is and
// rendered by the caller.
func (a *AuditEntry) WithMetadata(metadata interface{}) *AuditEntry {
	if data, err := json.Marshal(metadata); err == nil {
		a.Metadata = data
	}
	return a
}
