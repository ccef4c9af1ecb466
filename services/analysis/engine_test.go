package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tracelens/tracelens/config"
	"github.com/tracelens/tracelens/models"
	"github.com/tracelens/tracelens/services"
	"go.uber.org/zap"
)

func newTestEngine() *Engine {
	cfg := config.PipelineConfig{
		ErrorRateThreshold: 0.05,
		LatencyThreshold:   time.Second,
	}
	return NewEngine(zap.NewNop(), DefaultRules(cfg)...)
}

func TestEngine_Analyze(t *testing.T) {
	engine := newTestEngine()
	traceID := uuid.New()

	payload := []byte(`{
		"spans": [
			{"span_id": "a", "service": "checkout", "operation": "POST /checkout", "timestamp": "2025-03-01T10:00:00Z", "duration_ms": 5500, "status": "error"},
			{"span_id": "b", "parent_span_id": "a", "service": "payments", "operation": "charge", "timestamp": "2025-03-01T10:00:00.100Z", "duration_ms": 5300, "status": "error"}
		]
	}`)

	findings, err := engine.Analyze(context.Background(), traceID, payload)
	require.NoError(t, err)
	require.NotEmpty(t, findings)

	kinds := make(map[models.FindingKind]bool)
	for _, f := range findings {
		kinds[f.Kind] = true
		assert.NotEmpty(t, f.Fingerprint)
		assert.True(t, f.Severity.Valid())
	}
	assert.True(t, kinds[models.FindingKindErrorRateSpike])
	assert.True(t, kinds[models.FindingKindLatencyOutlier])
	assert.True(t, kinds[models.FindingKindDependencyFailureChain])
}

func TestEngine_Analyze_HealthyTrace(t *testing.T) {
	engine := newTestEngine()

	payload := []byte(`{
		"spans": [
			{"span_id": "a", "service": "api", "operation": "GET /orders", "timestamp": "2025-03-01T10:00:00Z", "duration_ms": 12, "status": "ok"}
		]
	}`)

	findings, err := engine.Analyze(context.Background(), uuid.New(), payload)
	require.NoError(t, err)
	assert.Empty(t, findings, "a healthy trace yields no findings")
}

func TestEngine_Analyze_MalformedPayload(t *testing.T) {
	engine := newTestEngine()

	findings, err := engine.Analyze(context.Background(), uuid.New(), []byte(`not a trace`))
	require.Error(t, err)
	assert.Nil(t, findings)
	assert.ErrorIs(t, err, services.ErrMalformedTrace)
}

func TestEngine_Analyze_DeadlineExceeded(t *testing.T) {
	engine := newTestEngine()

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	payload := []byte(`{
		"spans": [
			{"span_id": "a", "service": "api", "operation": "GET /orders", "timestamp": "2025-03-01T10:00:00Z", "duration_ms": 12, "status": "ok"}
		]
	}`)

	findings, err := engine.Analyze(ctx, uuid.New(), payload)
	require.Error(t, err)
	assert.Nil(t, findings)
	assert.ErrorIs(t, err, services.ErrAnalysisTimeout)
}
