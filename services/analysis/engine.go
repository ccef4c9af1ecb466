package analysis

import (
	"context"

	"github.com/google/uuid"
	"github.com/tracelens/tracelens/config"
	"github.com/tracelens/tracelens/models"
	"github.com/tracelens/tracelens/services"
	"go.uber.org/zap"
)

// Engine runs the registered detection rules over a trace payload. New rule
// kinds are added by registering another Rule variant, not by modifying the
// engine.
type Engine struct {
	rules  []Rule
	logger *zap.Logger
}

// NewEngine creates an engine with the given rules.
func NewEngine(logger *zap.Logger, rules ...Rule) *Engine {
	return &Engine{
		rules:  rules,
		logger: logger,
	}
}

// DefaultRules returns the standard rule set wired to the pipeline
// configuration.
func DefaultRules(cfg config.PipelineConfig) []Rule {
	return []Rule{
		&ErrorRateRule{Threshold: cfg.ErrorRateThreshold},
		&LatencyOutlierRule{Threshold: cfg.LatencyThreshold},
		&DependencyFailureChainRule{},
	}
}

// Analyze parses the payload and runs every rule over the parsed document.
// A payload that fails parsing yields a single structural error and no
// findings. The context deadline is the run's wall-clock budget; exceeding
// it aborts the run with an analysis timeout.
func (e *Engine) Analyze(ctx context.Context, traceID uuid.UUID, payload []byte) ([]models.Finding, error) {
	doc, err := Parse(payload)
	if err != nil {
		return nil, err
	}

	var findings []models.Finding
	for _, rule := range e.rules {
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return nil, services.NewDomainError(services.ErrorTypeTimeout, "analysis exceeded its time budget", ctx.Err())
			}
			return nil, ctx.Err()
		default:
		}

		ruleFindings := rule.Evaluate(traceID, doc)
		e.logger.Debug("rule evaluated",
			zap.String("trace_id", traceID.String()),
			zap.String("kind", string(rule.Kind())),
			zap.Int("findings", len(ruleFindings)))
		findings = append(findings, ruleFindings...)
	}

	return findings, nil
}
