// Package issues turns findings into durable, triageable issues and applies
// human triage decisions to them.
package issues

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/tracelens/tracelens/models"
	"github.com/tracelens/tracelens/repositories"
	"github.com/tracelens/tracelens/services"
	"github.com/tracelens/tracelens/services/audit"
	"github.com/tracelens/tracelens/services/notify"
	"go.uber.org/zap"
)

// Service manages issue lifecycle: creation from findings, deduplication by
// fingerprint, and triage.
type Service struct {
	issueRepo       repositories.IssueRepository
	txManager       repositories.TransactionManager
	recorder        *audit.Recorder
	notifier        notify.Sink
	refreshSeverity bool
	logger          *zap.Logger
}

// NewService creates a new issue Service instance.
func NewService(
	issueRepo repositories.IssueRepository,
	txManager repositories.TransactionManager,
	recorder *audit.Recorder,
	notifier notify.Sink,
	refreshSeverity bool,
	logger *zap.Logger,
) *Service {
	return &Service{
		issueRepo:       issueRepo,
		txManager:       txManager,
		recorder:        recorder,
		notifier:        notifier,
		refreshSeverity: refreshSeverity,
		logger:          logger,
	}
}

// ApplyFinding records a finding against the trace. A finding whose
// fingerprint matches an existing open or assigned issue refreshes that
// issue instead of creating a duplicate; the refresh never changes status,
// severity, or assignee set by a human. Returns the stored issue and whether
// it was newly created.
//
// The issue write and its audit entry commit together: if the audit entry
// cannot be written the issue change is rolled back.
func (s *Service) ApplyFinding(ctx context.Context, trace *models.Trace, f *models.Finding) (*models.Issue, bool, error) {
	candidate := models.NewIssueFromFinding(trace.ID, f)

	var stored *models.Issue
	var created bool
	err := s.txManager.InTransaction(ctx, func(txCtx context.Context) error {
		var err error
		stored, created, err = s.issueRepo.UpsertByFingerprint(txCtx, candidate)
		if err != nil {
			return services.WrapInternal("failed to upsert issue", err)
		}

		if created {
			return s.recorder.RecordAction(txCtx, uuid.Nil, models.AuditActionIssueDetected,
				models.ResourceTypeIssue, stored.ID, map[string]interface{}{
					"trace_id":    trace.ID.String(),
					"fingerprint": stored.Fingerprint,
					"kind":        string(f.Kind),
					"severity":    string(stored.Severity),
				})
		}

		// Repeat finding on an issue no human has touched yet: the severity
		// refresh is opt-in and still limited to open issues, so a triage
		// decision is never overridden by automation.
		if s.refreshSeverity && stored.Status == models.IssueStatusOpen && stored.Severity != f.Severity {
			previous := stored.Severity
			stored.Severity = f.Severity
			if err := s.issueRepo.UpdateTriage(txCtx, stored); err != nil {
				return services.WrapInternal("failed to refresh issue severity", err)
			}
			return s.recorder.RecordAction(txCtx, uuid.Nil, models.AuditActionIssueUpdated,
				models.ResourceTypeIssue, stored.ID, map[string]interface{}{
					"severity_from": string(previous),
					"severity_to":   string(stored.Severity),
					"trace_id":      trace.ID.String(),
				})
		}

		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		s.notifier.Dispatch(notify.IssueCreated(trace.OwnerID, stored))
	}

	s.logger.Info("finding applied",
		zap.String("trace_id", trace.ID.String()),
		zap.String("issue_id", stored.ID.String()),
		zap.String("kind", string(f.Kind)),
		zap.Bool("created", created))
	return stored, created, nil
}

// TriageInput carries a human triage decision. Nil fields are left unchanged.
type TriageInput struct {
	Status     *models.IssueStatus
	Severity   *models.IssueSeverity
	AssignedTo *uuid.UUID
}

// Triage applies a triage decision by actor to the issue. Assigning the issue
// to a user moves it to assigned unless the input sets a status explicitly,
// and notifies the new assignee.
func (s *Service) Triage(ctx context.Context, actor, issueID uuid.UUID, input TriageInput) (*models.Issue, error) {
	if input.Status == nil && input.Severity == nil && input.AssignedTo == nil {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "invalid input", nil).
			WithDetail("reason", "triage request changes nothing")
	}
	if input.Status != nil && !input.Status.Valid() {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "invalid issue status", nil).
			WithDetail("status", string(*input.Status))
	}
	if input.Severity != nil && !input.Severity.Valid() {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "invalid issue severity", nil).
			WithDetail("severity", string(*input.Severity))
	}

	issue, err := s.getIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}

	changes := make(map[string]interface{})
	assigneeChanged := false

	if input.AssignedTo != nil && (issue.AssignedTo == nil || *issue.AssignedTo != *input.AssignedTo) {
		issue.AssignedTo = input.AssignedTo
		assigneeChanged = true
		changes["assigned_to"] = input.AssignedTo.String()
		if input.Status == nil && issue.Status == models.IssueStatusOpen {
			issue.Status = models.IssueStatusAssigned
			changes["status"] = string(models.IssueStatusAssigned)
		}
	}
	if input.Status != nil && issue.Status != *input.Status {
		issue.Status = *input.Status
		changes["status"] = string(*input.Status)
	}
	if input.Severity != nil && issue.Severity != *input.Severity {
		issue.Severity = *input.Severity
		changes["severity"] = string(*input.Severity)
	}

	if len(changes) == 0 {
		return issue, nil
	}

	action := models.AuditActionIssueUpdated
	if assigneeChanged {
		action = models.AuditActionIssueAssigned
	}

	err = s.txManager.InTransaction(ctx, func(txCtx context.Context) error {
		if err := s.issueRepo.UpdateTriage(txCtx, issue); err != nil {
			if errors.Is(err, repositories.ErrIssueNotFound) {
				return services.ErrIssueNotFound
			}
			return services.WrapInternal("failed to update issue", err)
		}
		return s.recorder.RecordAction(txCtx, actor, action, models.ResourceTypeIssue, issue.ID, changes)
	})
	if err != nil {
		return nil, err
	}

	if assigneeChanged {
		s.notifier.Dispatch(notify.IssueAssigned(*issue.AssignedTo, issue))
	}

	s.logger.Info("issue triaged",
		zap.String("issue_id", issue.ID.String()),
		zap.String("actor", actor.String()),
		zap.String("action", string(action)))
	return issue, nil
}

// Get retrieves one issue by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Issue, error) {
	return s.getIssue(ctx, id)
}

// ForTrace retrieves all issues detected on a trace.
func (s *Service) ForTrace(ctx context.Context, traceID uuid.UUID) ([]*models.Issue, error) {
	issues, err := s.issueRepo.GetByTraceID(ctx, traceID)
	if err != nil {
		return nil, services.WrapInternal("failed to list issues for trace", err)
	}
	return issues, nil
}

// List retrieves issues with pagination, newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*models.Issue, error) {
	issues, err := s.issueRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, services.WrapInternal("failed to list issues", err)
	}
	return issues, nil
}

func (s *Service) getIssue(ctx context.Context, id uuid.UUID) (*models.Issue, error) {
	issue, err := s.issueRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrIssueNotFound) {
			return nil, services.ErrIssueNotFound
		}
		return nil, services.WrapInternal("failed to load issue", err)
	}
	return issue, nil
}
