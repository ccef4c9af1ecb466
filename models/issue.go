package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// IssueStatus represents the triage state of an issue.
type IssueStatus string

const (
	IssueStatusOpen     IssueStatus = "open"
	IssueStatusAssigned IssueStatus = "assigned"
	IssueStatusResolved IssueStatus = "resolved"
	IssueStatusClosed   IssueStatus = "closed"
)

// Valid reports whether the status is a known triage state.
func (s IssueStatus) Valid() bool {
	switch s {
	case IssueStatusOpen, IssueStatusAssigned, IssueStatusResolved, IssueStatusClosed:
		return true
	}
	return false
}

// Active reports whether the issue still participates in fingerprint
// deduplication. Resolved and closed issues are out of the dedup scope, so
// a recurrence after resolution opens a fresh issue.
func (s IssueStatus) Active() bool {
	return s == IssueStatusOpen || s == IssueStatusAssigned
}

// IssueSeverity represents how serious a detected issue is.
type IssueSeverity string

const (
	IssueSeverityLow      IssueSeverity = "low"
	IssueSeverityMedium   IssueSeverity = "medium"
	IssueSeverityHigh     IssueSeverity = "high"
	IssueSeverityCritical IssueSeverity = "critical"
)

// Valid reports whether the severity is a known level.
func (s IssueSeverity) Valid() bool {
	switch s {
	case IssueSeverityLow, IssueSeverityMedium, IssueSeverityHigh, IssueSeverityCritical:
		return true
	}
	return false
}

// Issue is a durable, triageable record derived from one or more findings
// sharing a fingerprint.
type Issue struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	TraceID     uuid.UUID       `json:"trace_id" db:"trace_id"`
	Fingerprint string          `json:"fingerprint" db:"fingerprint"`
	Title       string          `json:"title" db:"title"`
	Description string          `json:"description" db:"description"`
	Severity    IssueSeverity   `json:"severity" db:"severity"`
	Status      IssueStatus     `json:"status" db:"status"`
	AssignedTo  *uuid.UUID      `json:"assigned_to,omitempty" db:"assigned_to"`
	Evidence    json.RawMessage `json:"evidence,omitempty" db:"evidence"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Issue model
func (Issue) TableName() string {
	return "issues"
}

// NewIssueFromFinding creates a new open Issue for a finding detected on the
// given trace.
func NewIssueFromFinding(traceID uuid.UUID, f *Finding) *Issue {
	now := time.Now()
	issue := &Issue{
		ID:          uuid.New(),
		TraceID:     traceID,
		Fingerprint: f.Fingerprint,
		Title:       f.Title,
		Description: f.Description,
		Severity:    f.Severity,
		Status:      IssueStatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if f.Evidence != nil {
		if data, err := json.Marshal(f.Evidence); err == nil {
			issue.Evidence = data
		}
	}
	return issue
}
