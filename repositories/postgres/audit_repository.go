package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tracelens/tracelens/models"
	"github.com/tracelens/tracelens/repositories"
	"go.uber.org/zap"
)

// AuditRepository implements the repositories.AuditRepository interface.
// The audit_entries table is append-only; this type deliberately has no
// update or delete methods.
type AuditRepository struct {
	db        *DB
	dedicated bool
	logger    *zap.Logger
}

// NewAuditRepository creates a new audit repository. dedicated marks db as a
// separate audit database: transactions in the context were begun on the
// main database and must not be used, or the entry would land in the wrong
// database and never show up in audit reads.
func NewAuditRepository(db *DB, dedicated bool, logger *zap.Logger) repositories.AuditRepository {
	return &AuditRepository{
		db:        db,
		dedicated: dedicated,
		logger:    logger,
	}
}

const auditColumns = `id, actor_user_id, action_type, resource_type, resource_id, metadata, created_at`

// executor returns the executor for audit statements. A dedicated audit
// database always uses its own connection; only a shared database joins the
// caller's transaction.
func (r *AuditRepository) executor(ctx context.Context) Executor {
	if r.dedicated {
		return r.db.DB
	}
	return GetExecutor(ctx, r.db)
}

// Insert appends a new audit entry
func (r *AuditRepository) Insert(ctx context.Context, entry *models.AuditEntry) error {
	query := `
		INSERT INTO audit_entries (id, actor_user_id, action_type, resource_type, resource_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	executor := r.executor(ctx)
	_, err := executor.ExecContext(ctx, query,
		entry.ID,
		entry.ActorUserID,
		entry.Action,
		entry.ResourceType,
		entry.ResourceID,
		entry.Metadata,
		entry.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}

	r.logger.Debug("audit entry inserted",
		zap.String("id", entry.ID.String()),
		zap.String("action", string(entry.Action)))
	return nil
}

// GetByResourceID retrieves audit entries for a resource, oldest first
func (r *AuditRepository) GetByResourceID(ctx context.Context, resourceID uuid.UUID) ([]*models.AuditEntry, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_entries WHERE resource_id = $1 ORDER BY created_at ASC`
	return r.queryAuditEntries(ctx, query, resourceID)
}

// List retrieves audit entries matching the filter with pagination, newest
// first. Zero-valued filter fields are ignored.
func (r *AuditRepository) List(ctx context.Context, filter repositories.AuditFilter, limit, offset int) ([]*models.AuditEntry, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_entries
		WHERE ($1 = '' OR action_type = $1)
		  AND ($2 = '' OR resource_type = $2)
		  AND ($3::timestamp IS NULL OR created_at >= $3)
		  AND ($4::timestamp IS NULL OR created_at <= $4)
		ORDER BY created_at DESC
		LIMIT $5 OFFSET $6
	`

	var start, end interface{}
	if !filter.Start.IsZero() {
		start = filter.Start
	}
	if !filter.End.IsZero() {
		end = filter.End
	}

	return r.queryAuditEntries(ctx, query, string(filter.Action), filter.ResourceType, start, end, limit, offset)
}

// queryAuditEntries is a helper method to query multiple audit entries
func (r *AuditRepository) queryAuditEntries(ctx context.Context, query string, args ...interface{}) ([]*models.AuditEntry, error) {
	executor := r.executor(ctx)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		entry := &models.AuditEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.ActorUserID,
			&entry.Action,
			&entry.ResourceType,
			&entry.ResourceID,
			&entry.Metadata,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entry rows: %w", err)
	}

	return entries, nil
}
