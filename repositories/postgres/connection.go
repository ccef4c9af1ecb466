package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/tracelens/tracelens/config"
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	dsn := cfg.DSN()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// InitSchema initializes the database schema
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
		-- Traces table
		CREATE TABLE IF NOT EXISTS traces (
			id UUID PRIMARY KEY,
			owner_id UUID NOT NULL,
			file_name VARCHAR(255) NOT NULL,
			byte_size BIGINT NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			fail_reason TEXT,
			uploaded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Trace payloads: stored bytes, persisted before analysis starts
		CREATE TABLE IF NOT EXISTS trace_payloads (
			trace_id UUID PRIMARY KEY REFERENCES traces(id) ON DELETE CASCADE,
			payload BYTEA NOT NULL
		);

		-- Issues table
		CREATE TABLE IF NOT EXISTS issues (
			id UUID PRIMARY KEY,
			trace_id UUID NOT NULL REFERENCES traces(id),
			fingerprint VARCHAR(64) NOT NULL,
			title VARCHAR(500) NOT NULL,
			description TEXT NOT NULL,
			severity VARCHAR(20) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'open',
			assigned_to UUID,
			evidence JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- The fingerprint uniqueness guard: at most one open-or-assigned
		-- issue per fingerprint. Resolved/closed issues leave dedup scope.
		CREATE UNIQUE INDEX IF NOT EXISTS uq_issues_active_fingerprint
			ON issues(fingerprint) WHERE status IN ('open', 'assigned');

		-- Notifications table
		CREATE TABLE IF NOT EXISTS notifications (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			title VARCHAR(500) NOT NULL,
			message TEXT NOT NULL,
			related_resource VARCHAR(100) NOT NULL,
			read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Audit entries table (append-only)
		CREATE TABLE IF NOT EXISTS audit_entries (
			id UUID PRIMARY KEY,
			actor_user_id UUID,
			action_type VARCHAR(100) NOT NULL,
			resource_type VARCHAR(100) NOT NULL,
			resource_id UUID,
			metadata JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Indexes for performance
		CREATE INDEX IF NOT EXISTS idx_traces_owner_id ON traces(owner_id);
		CREATE INDEX IF NOT EXISTS idx_traces_status ON traces(status);

		CREATE INDEX IF NOT EXISTS idx_issues_trace_id ON issues(trace_id);
		CREATE INDEX IF NOT EXISTS idx_issues_status ON issues(status);
		CREATE INDEX IF NOT EXISTS idx_issues_fingerprint ON issues(fingerprint);

		CREATE INDEX IF NOT EXISTS idx_notifications_user_id ON notifications(user_id);
		CREATE INDEX IF NOT EXISTS idx_notifications_read ON notifications(user_id, read);

		CREATE INDEX IF NOT EXISTS idx_audit_entries_action ON audit_entries(action_type);
		CREATE INDEX IF NOT EXISTS idx_audit_entries_resource ON audit_entries(resource_type, resource_id);
		CREATE INDEX IF NOT EXISTS idx_audit_entries_created_at ON audit_entries(created_at);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}

// InitAuditSchema initializes the audit database schema (audit_entries only).
// Use for the separate audit database when DATABASE_URL_AUDIT is set.
func (db *DB) InitAuditSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS audit_entries (
			id UUID PRIMARY KEY,
			actor_user_id UUID,
			action_type VARCHAR(100) NOT NULL,
			resource_type VARCHAR(100) NOT NULL,
			resource_id UUID,
			metadata JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_audit_entries_action ON audit_entries(action_type);
		CREATE INDEX IF NOT EXISTS idx_audit_entries_resource ON audit_entries(resource_type, resource_id);
		CREATE INDEX IF NOT EXISTS idx_audit_entries_created_at ON audit_entries(created_at);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize audit schema: %w", err)
	}
	db.logger.Info("audit schema initialized successfully")
	return nil
}
