package models

import (
	"time"

	"github.com/google/uuid"
)

// TraceStatus represents the lifecycle state of an uploaded trace.
type TraceStatus string

const (
	TraceStatusPending   TraceStatus = "pending"
	TraceStatusAnalyzing TraceStatus = "analyzing"
	TraceStatusCompleted TraceStatus = "completed"
	TraceStatusFailed    TraceStatus = "failed"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s TraceStatus) Valid() bool {
	switch s {
	case TraceStatusPending, TraceStatusAnalyzing, TraceStatusCompleted, TraceStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the status is a terminal state. Terminal traces
// are never mutated again; re-analysis creates a new run.
func (s TraceStatus) Terminal() bool {
	return s == TraceStatusCompleted || s == TraceStatusFailed
}

// Trace represents an uploaded trace/log artifact subject to analysis.
// Once analysis begins the trace is owned by the pipeline coordinator and
// mutated only through its state machine.
type Trace struct {
	ID         uuid.UUID   `json:"id" db:"id"`
	OwnerID    uuid.UUID   `json:"owner_id" db:"owner_id"`
	FileName   string      `json:"file_name" db:"file_name"`
	ByteSize   int64       `json:"byte_size" db:"byte_size"`
	Status     TraceStatus `json:"status" db:"status"`
	FailReason *string     `json:"fail_reason,omitempty" db:"fail_reason"`
	UploadedAt time.Time   `json:"uploaded_at" db:"uploaded_at"`
	UpdatedAt  time.Time   `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Trace model
func (Trace) TableName() string {
	return "traces"
}

// NewTrace creates a new Trace in pending state.
func NewTrace(ownerID uuid.UUID, fileName string, byteSize int64) *Trace {
	now := time.Now()
	return &Trace{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		FileName:   fileName,
		ByteSize:   byteSize,
		Status:     TraceStatusPending,
		UploadedAt: now,
		UpdatedAt:  now,
	}
}
