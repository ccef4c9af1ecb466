// Package pipeline coordinates the trace lifecycle: upload, the analysis
// state machine, and the fan-out of findings into issues and notifications.
package pipeline

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/tracelens/tracelens/config"
	"github.com/tracelens/tracelens/models"
	"github.com/tracelens/tracelens/repositories"
	"github.com/tracelens/tracelens/services"
	"github.com/tracelens/tracelens/services/audit"
	"github.com/tracelens/tracelens/services/notify"
	"go.uber.org/zap"
)

// Analyzer runs detection rules over a raw trace payload.
type Analyzer interface {
	Analyze(ctx context.Context, traceID uuid.UUID, payload []byte) ([]models.Finding, error)
}

// FindingApplier turns findings into deduplicated issues.
type FindingApplier interface {
	ApplyFinding(ctx context.Context, trace *models.Trace, f *models.Finding) (*models.Issue, bool, error)
}

// Coordinator drives a trace through pending -> analyzing -> completed/failed.
// The claim on the pending trace is a conditional update in storage, so two
// concurrent runs on the same trace resolve there: exactly one proceeds and
// the other gets an already-running conflict, regardless of which process
// instance they run in.
type Coordinator struct {
	traceRepo repositories.TraceRepository
	payloads  repositories.TracePayloadStore
	txManager repositories.TransactionManager
	analyzer  Analyzer
	issues    FindingApplier
	recorder  *audit.Recorder
	notifier  notify.Sink
	cfg       config.PipelineConfig
	logger    *zap.Logger
}

// NewCoordinator creates a new Coordinator instance.
func NewCoordinator(
	traceRepo repositories.TraceRepository,
	payloads repositories.TracePayloadStore,
	txManager repositories.TransactionManager,
	analyzer Analyzer,
	issues FindingApplier,
	recorder *audit.Recorder,
	notifier notify.Sink,
	cfg config.PipelineConfig,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		traceRepo: traceRepo,
		payloads:  payloads,
		txManager: txManager,
		analyzer:  analyzer,
		issues:    issues,
		recorder:  recorder,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger,
	}
}

// Upload stores a new trace in pending state together with its raw payload
// and the upload audit entry. The payload is immutable after this point.
func (c *Coordinator) Upload(ctx context.Context, ownerID uuid.UUID, fileName string, payload []byte) (*models.Trace, error) {
	if len(payload) == 0 {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "invalid input", nil).
			WithDetail("reason", "empty trace payload")
	}
	if int64(len(payload)) > c.cfg.MaxUploadBytes {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "invalid input", nil).
			WithDetail("reason", "trace payload exceeds the upload size limit").
			WithDetail("max_bytes", c.cfg.MaxUploadBytes)
	}

	trace := models.NewTrace(ownerID, fileName, int64(len(payload)))
	err := c.txManager.InTransaction(ctx, func(txCtx context.Context) error {
		if err := c.traceRepo.Create(txCtx, trace); err != nil {
			return services.WrapInternal("failed to create trace", err)
		}
		if err := c.payloads.Save(txCtx, trace.ID, payload); err != nil {
			return services.WrapInternal("failed to store trace payload", err)
		}
		return c.recorder.RecordAction(txCtx, ownerID, models.AuditActionTraceUploaded,
			models.ResourceTypeTrace, trace.ID, map[string]interface{}{
				"file_name": fileName,
				"byte_size": len(payload),
			})
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("trace uploaded",
		zap.String("trace_id", trace.ID.String()),
		zap.String("owner_id", ownerID.String()),
		zap.Int("byte_size", len(payload)))
	return trace, nil
}

// StartAnalysis runs one analysis over the trace. requester must own the
// trace; pass uuid.Nil for system-initiated runs. The run is idempotent at
// the state machine level: a second call while the trace is analyzing fails
// with an already-running conflict and leaves the trace untouched, and a
// call on a terminal trace fails with a terminal conflict.
func (c *Coordinator) StartAnalysis(ctx context.Context, requester, traceID uuid.UUID) error {
	trace, err := c.GetTrace(ctx, requester, traceID)
	if err != nil {
		return err
	}

	// Claim and the start audit entry commit together, so a failed audit
	// write leaves the trace pending.
	err = c.txManager.InTransaction(ctx, func(txCtx context.Context) error {
		if err := c.traceRepo.ClaimForAnalysis(txCtx, traceID); err != nil {
			switch {
			case errors.Is(err, repositories.ErrTraceNotFound):
				return services.ErrTraceNotFound
			case errors.Is(err, repositories.ErrTraceNotPending):
				if trace.Status.Terminal() {
					return services.ErrTraceTerminal
				}
				return services.ErrAlreadyRunning
			}
			return services.WrapInternal("failed to claim trace for analysis", err)
		}
		return c.recorder.RecordAction(txCtx, uuid.Nil, models.AuditActionTraceAnalysisStart,
			models.ResourceTypeTrace, traceID, nil)
	})
	if err != nil {
		return err
	}

	payload, err := c.payloads.Get(ctx, traceID)
	if err != nil {
		return c.failRun(ctx, trace, services.WrapInternal("failed to load trace payload", err))
	}

	runCtx, cancel := context.WithTimeout(ctx, c.cfg.AnalysisTimeout)
	defer cancel()

	findings, err := c.analyzer.Analyze(runCtx, traceID, payload)
	if err != nil {
		return c.failRun(ctx, trace, err)
	}

	issuesCreated := 0
	for i := range findings {
		_, created, err := c.issues.ApplyFinding(ctx, trace, &findings[i])
		if err != nil {
			return c.failRun(ctx, trace, err)
		}
		if created {
			issuesCreated++
		}
	}

	err = c.txManager.InTransaction(ctx, func(txCtx context.Context) error {
		if err := c.traceRepo.MarkCompleted(txCtx, traceID); err != nil {
			return services.WrapInternal("failed to mark trace completed", err)
		}
		return c.recorder.RecordAction(txCtx, uuid.Nil, models.AuditActionTraceAnalysisCompleted,
			models.ResourceTypeTrace, traceID, map[string]interface{}{
				"findings":       len(findings),
				"issues_created": issuesCreated,
			})
	})
	if err != nil {
		return err
	}

	c.notifier.Dispatch(notify.TraceCompleted(trace.OwnerID, traceID, issuesCreated))
	c.logger.Info("trace analysis completed",
		zap.String("trace_id", traceID.String()),
		zap.Int("findings", len(findings)),
		zap.Int("issues_created", issuesCreated))
	return nil
}

// failRun moves an analyzing trace to failed and records the failure. A
// failed run produces no notifications; the outcome is visible through the
// trace status and the audit trail. The original analysis error is returned
// to the caller.
func (c *Coordinator) failRun(ctx context.Context, trace *models.Trace, cause error) error {
	reason := failReason(cause)

	err := c.txManager.InTransaction(ctx, func(txCtx context.Context) error {
		if err := c.traceRepo.MarkFailed(txCtx, trace.ID, reason); err != nil {
			return services.WrapInternal("failed to mark trace failed", err)
		}
		return c.recorder.RecordAction(txCtx, uuid.Nil, models.AuditActionTraceAnalysisFailed,
			models.ResourceTypeTrace, trace.ID, map[string]interface{}{
				"reason":     reason,
				"error_type": string(services.GetErrorType(cause)),
			})
	})
	if err != nil {
		c.logger.Error("failed to record trace failure",
			zap.String("trace_id", trace.ID.String()),
			zap.Error(err))
		return err
	}

	c.logger.Warn("trace analysis failed",
		zap.String("trace_id", trace.ID.String()),
		zap.String("reason", reason))
	return cause
}

// failReason renders the stored failure reason for a run error.
func failReason(err error) string {
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return "internal error"
}

// GetTrace retrieves a trace, enforcing that requester owns it. Pass
// uuid.Nil as requester for system access.
func (c *Coordinator) GetTrace(ctx context.Context, requester, traceID uuid.UUID) (*models.Trace, error) {
	trace, err := c.traceRepo.GetByID(ctx, traceID)
	if err != nil {
		if errors.Is(err, repositories.ErrTraceNotFound) {
			return nil, services.ErrTraceNotFound
		}
		return nil, services.WrapInternal("failed to load trace", err)
	}
	if requester != uuid.Nil && trace.OwnerID != requester {
		return nil, services.ErrNotTraceOwner
	}
	return trace, nil
}

// ListTraces retrieves the requester's traces with pagination.
func (c *Coordinator) ListTraces(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*models.Trace, error) {
	traces, err := c.traceRepo.GetByOwnerID(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, services.WrapInternal("failed to list traces", err)
	}
	return traces, nil
}
