package analysis

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tracelens/tracelens/models"
)

// Rule is one pluggable detection heuristic. A rule scans the parsed trace
// independently of all other rules and may emit zero or more findings.
// Implementations must be deterministic and free of external state: severity
// is a pure function of the rule kind and evidence magnitude.
type Rule interface {
	// Kind returns the finding kind this rule emits.
	Kind() models.FindingKind

	// Evaluate scans the document and returns findings for the trace.
	Evaluate(traceID uuid.UUID, doc *Document) []models.Finding
}

// ErrorRateRule fires when the fraction of error spans for a service
// exceeds the configured threshold.
type ErrorRateRule struct {
	// Threshold is the error-span ratio above which the rule fires (0..1).
	Threshold float64
}

// Kind returns the finding kind this rule emits.
func (r *ErrorRateRule) Kind() models.FindingKind {
	return models.FindingKindErrorRateSpike
}

// Evaluate emits one finding per service whose error ratio exceeds the
// threshold. Services are visited in sorted order so output is stable.
func (r *ErrorRateRule) Evaluate(traceID uuid.UUID, doc *Document) []models.Finding {
	type tally struct{ errors, total int }
	byService := make(map[string]*tally)
	for i := range doc.Spans {
		span := &doc.Spans[i]
		svc := span.Service
		if svc == "" {
			svc = "unknown"
		}
		t, ok := byService[svc]
		if !ok {
			t = &tally{}
			byService[svc] = t
		}
		t.total++
		if span.IsError() {
			t.errors++
		}
	}

	services := make([]string, 0, len(byService))
	for svc := range byService {
		services = append(services, svc)
	}
	sort.Strings(services)

	var findings []models.Finding
	for _, svc := range services {
		t := byService[svc]
		ratio := float64(t.errors) / float64(t.total)
		if ratio <= r.Threshold {
			continue
		}
		findings = append(findings, models.Finding{
			Kind:     r.Kind(),
			Severity: errorRateSeverity(ratio),
			Title:    fmt.Sprintf("Error rate spike in %s", svc),
			Description: fmt.Sprintf("%d of %d spans in service %q reported errors (ratio %.2f, threshold %.2f)",
				t.errors, t.total, svc, ratio, r.Threshold),
			Fingerprint: models.Fingerprint(traceID, r.Kind(), svc),
			Evidence: map[string]interface{}{
				"service":     svc,
				"error_spans": t.errors,
				"total_spans": t.total,
				"error_ratio": ratio,
				"threshold":   r.Threshold,
			},
		})
	}
	return findings
}

// errorRateSeverity maps an error ratio to a severity level.
func errorRateSeverity(ratio float64) models.IssueSeverity {
	switch {
	case ratio >= 0.9:
		return models.IssueSeverityCritical
	case ratio >= 0.3:
		return models.IssueSeverityHigh
	default:
		return models.IssueSeverityMedium
	}
}

// LatencyOutlierRule fires for operations whose slowest span exceeds the
// configured duration threshold.
type LatencyOutlierRule struct {
	// Threshold is the span duration above which a span counts as slow.
	Threshold time.Duration
}

// Kind returns the finding kind this rule emits.
func (r *LatencyOutlierRule) Kind() models.FindingKind {
	return models.FindingKindLatencyOutlier
}

// Evaluate emits one finding per operation with at least one slow span.
func (r *LatencyOutlierRule) Evaluate(traceID uuid.UUID, doc *Document) []models.Finding {
	type outlier struct {
		count int
		max   time.Duration
	}
	byOperation := make(map[string]*outlier)
	for i := range doc.Spans {
		span := &doc.Spans[i]
		if span.Duration() < r.Threshold {
			continue
		}
		o, ok := byOperation[span.Operation]
		if !ok {
			o = &outlier{}
			byOperation[span.Operation] = o
		}
		o.count++
		if span.Duration() > o.max {
			o.max = span.Duration()
		}
	}

	operations := make([]string, 0, len(byOperation))
	for op := range byOperation {
		operations = append(operations, op)
	}
	sort.Strings(operations)

	var findings []models.Finding
	for _, op := range operations {
		o := byOperation[op]
		findings = append(findings, models.Finding{
			Kind:     r.Kind(),
			Severity: latencySeverity(o.max, r.Threshold),
			Title:    fmt.Sprintf("Latency outlier on %s", op),
			Description: fmt.Sprintf("%d span(s) for operation %q exceeded the %s latency threshold (slowest: %s)",
				o.count, op, r.Threshold, o.max),
			Fingerprint: models.Fingerprint(traceID, r.Kind(), op),
			Evidence: map[string]interface{}{
				"operation":    op,
				"slow_spans":   o.count,
				"max_ms":       o.max.Milliseconds(),
				"threshold_ms": r.Threshold.Milliseconds(),
			},
		})
	}
	return findings
}

// latencySeverity maps the slowest span duration to a severity level based
// on how far it overshoots the threshold.
func latencySeverity(max, threshold time.Duration) models.IssueSeverity {
	switch {
	case max >= 16*threshold:
		return models.IssueSeverityCritical
	case max >= 4*threshold:
		return models.IssueSeverityHigh
	default:
		return models.IssueSeverityMedium
	}
}

// DependencyFailureChainRule fires when an error span's failure propagates
// from a failing child span in another service, i.e. a cross-service chain
// of failures linked by parent span ids.
type DependencyFailureChainRule struct{}

// Kind returns the finding kind this rule emits.
func (r *DependencyFailureChainRule) Kind() models.FindingKind {
	return models.FindingKindDependencyFailureChain
}

// Evaluate walks each error span up its parent links, collecting the chain
// of failing services. A chain spanning at least two distinct services is a
// dependency failure. One finding is emitted per distinct chain.
func (r *DependencyFailureChainRule) Evaluate(traceID uuid.UUID, doc *Document) []models.Finding {
	// Spans that have a failing child are interior chain links; walking
	// starts only at chain leaves so each chain is reported once, maximal.
	hasErrorChild := make(map[string]bool)
	for i := range doc.Spans {
		if doc.Spans[i].IsError() && doc.Spans[i].ParentID != "" {
			hasErrorChild[doc.Spans[i].ParentID] = true
		}
	}

	chains := make(map[string]int) // signature -> chain length
	for i := range doc.Spans {
		span := &doc.Spans[i]
		if !span.IsError() || hasErrorChild[span.SpanID] {
			continue
		}

		// Follow failing ancestors from this span to the chain root.
		services := []string{span.Service}
		current := span
		for depth := 0; current.ParentID != "" && depth < len(doc.Spans); depth++ {
			parent := doc.SpanByID(current.ParentID)
			if parent == nil || !parent.IsError() {
				break
			}
			if parent.Service != services[len(services)-1] {
				services = append(services, parent.Service)
			}
			current = parent
		}

		if len(services) < 2 {
			continue
		}
		signature := strings.Join(services, " -> ")
		if length, ok := chains[signature]; !ok || len(services) > length {
			chains[signature] = len(services)
		}
	}

	signatures := make([]string, 0, len(chains))
	for sig := range chains {
		signatures = append(signatures, sig)
	}
	sort.Strings(signatures)

	var findings []models.Finding
	for _, sig := range signatures {
		length := chains[sig]
		severity := models.IssueSeverityHigh
		if length >= 3 {
			severity = models.IssueSeverityCritical
		}
		findings = append(findings, models.Finding{
			Kind:        r.Kind(),
			Severity:    severity,
			Title:       fmt.Sprintf("Dependency failure chain: %s", sig),
			Description: fmt.Sprintf("a failure propagated across %d services (%s)", length, sig),
			Fingerprint: models.Fingerprint(traceID, r.Kind(), sig),
			Evidence: map[string]interface{}{
				"chain":        sig,
				"chain_length": length,
			},
		})
	}
	return findings
}
