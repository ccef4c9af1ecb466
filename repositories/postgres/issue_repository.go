package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/tracelens/tracelens/models"
	"github.com/tracelens/tracelens/repositories"
	"go.uber.org/zap"
)

// IssueRepository implements the repositories.IssueRepository interface
type IssueRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewIssueRepository creates a new issue repository
func NewIssueRepository(db *DB, logger *zap.Logger) repositories.IssueRepository {
	return &IssueRepository{
		db:     db,
		logger: logger,
	}
}

const issueColumns = `id, trace_id, fingerprint, title, description, severity, status, assigned_to, evidence, created_at, updated_at`

// UpsertByFingerprint creates the issue or refreshes the existing
// open-or-assigned issue with the same fingerprint. The conflict target is
// the partial unique index on (fingerprint) WHERE status IN
// ('open','assigned'), so the lookup-then-create is a single atomic
// statement: two racing analysis runs cannot both insert. A repeat finding
// only advances updated_at and evidence; status and severity stay whatever
// a human last set them to.
func (r *IssueRepository) UpsertByFingerprint(ctx context.Context, issue *models.Issue) (*models.Issue, bool, error) {
	query := `
		INSERT INTO issues (id, trace_id, fingerprint, title, description, severity, status, assigned_to, evidence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (fingerprint) WHERE status IN ('open', 'assigned')
		DO UPDATE SET
			evidence = EXCLUDED.evidence,
			updated_at = CURRENT_TIMESTAMP
		RETURNING ` + issueColumns + `, (xmax = 0) AS inserted
	`

	executor := GetExecutor(ctx, r.db)
	stored := &models.Issue{}
	var inserted bool

	err := executor.QueryRowContext(ctx, query,
		issue.ID,
		issue.TraceID,
		issue.Fingerprint,
		issue.Title,
		issue.Description,
		issue.Severity,
		issue.Status,
		issue.AssignedTo,
		issue.Evidence,
		issue.CreatedAt,
		issue.UpdatedAt,
	).Scan(
		&stored.ID,
		&stored.TraceID,
		&stored.Fingerprint,
		&stored.Title,
		&stored.Description,
		&stored.Severity,
		&stored.Status,
		&stored.AssignedTo,
		&stored.Evidence,
		&stored.CreatedAt,
		&stored.UpdatedAt,
		&inserted,
	)

	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert issue: %w", err)
	}

	r.logger.Debug("issue upserted",
		zap.String("id", stored.ID.String()),
		zap.String("fingerprint", stored.Fingerprint),
		zap.Bool("created", inserted))

	return stored, inserted, nil
}

// GetByID retrieves an issue by ID
func (r *IssueRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	row := executor.QueryRowContext(ctx, query, id)

	issue, err := scanIssue(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repositories.ErrIssueNotFound
		}
		return nil, fmt.Errorf("failed to get issue: %w", err)
	}

	return issue, nil
}

// GetByTraceID retrieves all issues for a trace
func (r *IssueRepository) GetByTraceID(ctx context.Context, traceID uuid.UUID) ([]*models.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues WHERE trace_id = $1 ORDER BY created_at DESC`
	return r.queryIssues(ctx, query, traceID)
}

// List retrieves issues with pagination, newest first
func (r *IssueRepository) List(ctx context.Context, limit, offset int) ([]*models.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	return r.queryIssues(ctx, query, limit, offset)
}

// UpdateTriage applies a human triage decision to an issue
func (r *IssueRepository) UpdateTriage(ctx context.Context, issue *models.Issue) error {
	query := `
		UPDATE issues
		SET status = $1, severity = $2, assigned_to = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $4
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query,
		issue.Status,
		issue.Severity,
		issue.AssignedTo,
		issue.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update issue: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return repositories.ErrIssueNotFound
	}

	return nil
}

// queryIssues is a helper method to query multiple issues
func (r *IssueRepository) queryIssues(ctx context.Context, query string, args ...interface{}) ([]*models.Issue, error) {
	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query issues: %w", err)
	}
	defer rows.Close()

	var issues []*models.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		issues = append(issues, issue)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating issue rows: %w", err)
	}

	return issues, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIssue(row rowScanner) (*models.Issue, error) {
	issue := &models.Issue{}
	err := row.Scan(
		&issue.ID,
		&issue.TraceID,
		&issue.Fingerprint,
		&issue.Title,
		&issue.Description,
		&issue.Severity,
		&issue.Status,
		&issue.AssignedTo,
		&issue.Evidence,
		&issue.CreatedAt,
		&issue.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return issue, nil
}
