// Package audit records the immutable trail of every state-changing action
// in the pipeline. Recording is synchronous: audit completeness is a
// correctness requirement, so a caller that cannot write its audit entry
// must abort the action instead of proceeding un-audited.
package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/tracelens/tracelens/models"
	"github.com/tracelens/tracelens/repositories"
	"github.com/tracelens/tracelens/services"
	"go.uber.org/zap"
)

// Recorder appends audit entries and serves audit queries.
type Recorder struct {
	auditRepo repositories.AuditRepository
	logger    *zap.Logger
}

// NewRecorder creates a new Recorder instance
func NewRecorder(auditRepo repositories.AuditRepository, logger *zap.Logger) *Recorder {
	return &Recorder{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// Record appends one audit entry. A storage failure is returned as an audit
// write failure so the caller can abort the current action.
func (r *Recorder) Record(ctx context.Context, entry *models.AuditEntry) error {
	if err := r.auditRepo.Insert(ctx, entry); err != nil {
		r.logger.Error("audit write failed",
			zap.Error(err),
			zap.String("action", string(entry.Action)),
			zap.String("resource_type", entry.ResourceType))
		return services.NewDomainError(services.ErrorTypeAudit, "failed to write audit entry", err)
	}
	return nil
}

// RecordAction is a convenience wrapper that builds and records an entry.
// actor may be uuid.Nil for system-initiated actions.
func (r *Recorder) RecordAction(ctx context.Context, actor uuid.UUID, action models.AuditAction, resourceType string, resourceID uuid.UUID, metadata map[string]interface{}) error {
	entry := models.NewAuditEntry(action, resourceType).WithResource(resourceID)
	if actor != uuid.Nil {
		entry.WithActor(actor)
	}
	if metadata != nil {
		entry.WithMetadata(metadata)
	}
	return r.Record(ctx, entry)
}

// List retrieves audit entries matching the filter.
func (r *Recorder) List(ctx context.Context, filter repositories.AuditFilter, limit, offset int) ([]*models.AuditEntry, error) {
	entries, err := r.auditRepo.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, services.WrapInternal("failed to list audit entries", err)
	}
	return entries, nil
}

// ForResource retrieves the audit history of one resource, oldest first.
func (r *Recorder) ForResource(ctx context.Context, resourceID uuid.UUID) ([]*models.AuditEntry, error) {
	entries, err := r.auditRepo.GetByResourceID(ctx, resourceID)
	if err != nil {
		return nil, services.WrapInternal("failed to load audit history", err)
	}
	return entries, nil
}
