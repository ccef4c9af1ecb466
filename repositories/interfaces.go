package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tracelens/tracelens/models"
)

// TransactionManager manages database transactions.
type TransactionManager interface {
	// InTransaction executes a function within a transaction.
	// Automatically commits if function succeeds, rolls back on error.
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// TraceRepository handles trace data operations. The conditional status
// transitions are the storage-level guards behind the pipeline state
// machine, so they hold even across multiple process instances.
type TraceRepository interface {
	// Create persists a new trace in pending state.
	Create(ctx context.Context, trace *models.Trace) error

	// GetByID retrieves a trace by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Trace, error)

	// GetByOwnerID retrieves traces for an owner with pagination.
	GetByOwnerID(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*models.Trace, error)

	// ClaimForAnalysis atomically transitions a pending trace to analyzing.
	// Returns ErrTraceNotPending when the trace exists but is not pending
	// (another run already claimed it, or it is terminal), ErrTraceNotFound
	// when it does not exist.
	ClaimForAnalysis(ctx context.Context, id uuid.UUID) error

	// MarkCompleted transitions an analyzing trace to completed.
	MarkCompleted(ctx context.Context, id uuid.UUID) error

	// MarkFailed transitions an analyzing trace to failed with a reason.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// TracePayloadStore persists the raw uploaded bytes of a trace. The payload
// is written once at upload time, before analysis can start, and read by the
// analysis engine.
type TracePayloadStore interface {
	// Save stores the payload for a trace.
	Save(ctx context.Context, traceID uuid.UUID, payload []byte) error

	// Get retrieves the payload for a trace.
	Get(ctx context.Context, traceID uuid.UUID) ([]byte, error)
}

// IssueRepository handles issue data operations.
type IssueRepository interface {
	// UpsertByFingerprint creates the issue, or, when an open-or-assigned
	// issue with the same fingerprint already exists, refreshes that issue's
	// updated_at and evidence while leaving status and severity untouched.
	// The lookup-then-create is atomic on the fingerprint key. Returns the
	// stored issue and whether it was newly created.
	UpsertByFingerprint(ctx context.Context, issue *models.Issue) (*models.Issue, bool, error)

	// GetByID retrieves an issue by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Issue, error)

	// GetByTraceID retrieves all issues for a trace.
	GetByTraceID(ctx context.Context, traceID uuid.UUID) ([]*models.Issue, error)

	// List retrieves issues with pagination, newest first.
	List(ctx context.Context, limit, offset int) ([]*models.Issue, error)

	// UpdateTriage applies a human triage decision (status, severity,
	// assignee) to an issue.
	UpdateTriage(ctx context.Context, issue *models.Issue) error
}

// NotificationRepository handles notification data operations.
type NotificationRepository interface {
	// Create persists a notification.
	Create(ctx context.Context, n *models.Notification) error

	// GetByUserID retrieves notifications for a user, optionally filtered
	// to unread only, newest first.
	GetByUserID(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*models.Notification, error)

	// MarkRead marks one of the user's notifications as read.
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
}

// AuditFilter narrows audit entry listings. Zero values mean no filter.
type AuditFilter struct {
	Action       models.AuditAction
	ResourceType string
	Start        time.Time
	End          time.Time
}

// AuditRepository handles audit entry data operations. The table is
// append-only: there are no update or delete operations, ever.
type AuditRepository interface {
	// Insert appends a new audit entry.
	Insert(ctx context.Context, entry *models.AuditEntry) error

	// GetByResourceID retrieves audit entries for a resource, oldest first.
	GetByResourceID(ctx context.Context, resourceID uuid.UUID) ([]*models.AuditEntry, error)

	// List retrieves audit entries matching the filter with pagination,
	// newest first.
	List(ctx context.Context, filter AuditFilter, limit, offset int) ([]*models.AuditEntry, error)
}

// Repositories groups all repository instances.
type Repositories struct {
	Traces        TraceRepository
	TracePayloads TracePayloadStore
	Issues        IssueRepository
	Notifications NotificationRepository
	AuditEntries  AuditRepository
}
