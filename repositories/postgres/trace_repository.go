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

// TraceRepository implements the repositories.TraceRepository interface
type TraceRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewTraceRepository creates a new trace repository
func NewTraceRepository(db *DB, logger *zap.Logger) repositories.TraceRepository {
	return &TraceRepository{
		db:     db,
		logger: logger,
	}
}

// Create persists a new trace in pending state
func (r *TraceRepository) Create(ctx context.Context, trace *models.Trace) error {
	query := `
		INSERT INTO traces (id, owner_id, file_name, byte_size, status, uploaded_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		trace.ID,
		trace.OwnerID,
		trace.FileName,
		trace.ByteSize,
		trace.Status,
		trace.UploadedAt,
		trace.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to insert trace: %w", err)
	}

	r.logger.Debug("trace created", zap.String("id", trace.ID.String()))
	return nil
}

// GetByID retrieves a trace by ID
func (r *TraceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Trace, error) {
	query := `
		SELECT id, owner_id, file_name, byte_size, status, fail_reason, uploaded_at, updated_at
		FROM traces
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	trace := &models.Trace{}

	err := executor.QueryRowContext(ctx, query, id).Scan(
		&trace.ID,
		&trace.OwnerID,
		&trace.FileName,
		&trace.ByteSize,
		&trace.Status,
		&trace.FailReason,
		&trace.UploadedAt,
		&trace.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repositories.ErrTraceNotFound
		}
		return nil, fmt.Errorf("failed to get trace: %w", err)
	}

	return trace, nil
}

// GetByOwnerID retrieves traces for an owner with pagination
func (r *TraceRepository) GetByOwnerID(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*models.Trace, error) {
	query := `
		SELECT id, owner_id, file_name, byte_size, status, fail_reason, uploaded_at, updated_at
		FROM traces
		WHERE owner_id = $1
		ORDER BY uploaded_at DESC
		LIMIT $2 OFFSET $3
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query traces: %w", err)
	}
	defer rows.Close()

	var traces []*models.Trace
	for rows.Next() {
		trace := &models.Trace{}
		err := rows.Scan(
			&trace.ID,
			&trace.OwnerID,
			&trace.FileName,
			&trace.ByteSize,
			&trace.Status,
			&trace.FailReason,
			&trace.UploadedAt,
			&trace.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trace: %w", err)
		}
		traces = append(traces, trace)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trace rows: %w", err)
	}

	return traces, nil
}

// ClaimForAnalysis atomically transitions a pending trace to analyzing.
// The conditional UPDATE is the single-writer guard: only one caller can win
// the pending -> analyzing transition even across process instances.
func (r *TraceRepository) ClaimForAnalysis(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE traces
		SET status = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND status = $3
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, models.TraceStatusAnalyzing, id, models.TraceStatusPending)
	if err != nil {
		return fmt.Errorf("failed to claim trace for analysis: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		// Distinguish "already claimed" from "does not exist".
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return repositories.ErrTraceNotPending
	}

	r.logger.Debug("trace claimed for analysis", zap.String("id", id.String()))
	return nil
}

// MarkCompleted transitions an analyzing trace to completed
func (r *TraceRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	return r.finish(ctx, id, models.TraceStatusCompleted, nil)
}

// MarkFailed transitions an analyzing trace to failed with a reason
func (r *TraceRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.finish(ctx, id, models.TraceStatusFailed, &reason)
}

// finish applies a terminal transition. Only an analyzing trace can reach a
// terminal state; completed and failed traces are never mutated again.
func (r *TraceRepository) finish(ctx context.Context, id uuid.UUID, status models.TraceStatus, reason *string) error {
	query := `
		UPDATE traces
		SET status = $1, fail_reason = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3 AND status = $4
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, status, reason, id, models.TraceStatusAnalyzing)
	if err != nil {
		return fmt.Errorf("failed to mark trace %s: %w", status, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return repositories.ErrTraceNotAnalyzing
	}

	r.logger.Debug("trace finished",
		zap.String("id", id.String()),
		zap.String("status", string(status)))
	return nil
}

// TracePayloadStore implements the repositories.TracePayloadStore interface
type TracePayloadStore struct {
	db     *DB
	logger *zap.Logger
}

// NewTracePayloadStore creates a new trace payload store
func NewTracePayloadStore(db *DB, logger *zap.Logger) repositories.TracePayloadStore {
	return &TracePayloadStore{
		db:     db,
		logger: logger,
	}
}

// Save stores the payload for a trace
func (s *TracePayloadStore) Save(ctx context.Context, traceID uuid.UUID, payload []byte) error {
	query := `INSERT INTO trace_payloads (trace_id, payload) VALUES ($1, $2)`

	executor := GetExecutor(ctx, s.db)
	if _, err := executor.ExecContext(ctx, query, traceID, payload); err != nil {
		return fmt.Errorf("failed to save trace payload: %w", err)
	}
	return nil
}

// Get retrieves the payload for a trace
func (s *TracePayloadStore) Get(ctx context.Context, traceID uuid.UUID) ([]byte, error) {
	query := `SELECT payload FROM trace_payloads WHERE trace_id = $1`

	executor := GetExecutor(ctx, s.db)
	var payload []byte
	if err := executor.QueryRowContext(ctx, query, traceID).Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, repositories.ErrTraceNotFound
		}
		return nil, fmt.Errorf("failed to get trace payload: %w", err)
	}
	return payload, nil
}
