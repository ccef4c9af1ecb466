package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceStatus(t *testing.T) {
	assert.True(t, TraceStatusPending.Valid())
	assert.True(t, TraceStatusAnalyzing.Valid())
	assert.True(t, TraceStatusCompleted.Valid())
	assert.True(t, TraceStatusFailed.Valid())
	assert.False(t, TraceStatus("archived").Valid())

	assert.False(t, TraceStatusPending.Terminal())
	assert.False(t, TraceStatusAnalyzing.Terminal())
	assert.True(t, TraceStatusCompleted.Terminal())
	assert.True(t, TraceStatusFailed.Terminal())
}

func TestNewTrace(t *testing.T) {
	owner := uuid.New()
	trace := NewTrace(owner, "payments.jsonl", 2048)

	assert.NotEqual(t, uuid.Nil, trace.ID)
	assert.Equal(t, owner, trace.OwnerID)
	assert.Equal(t, "payments.jsonl", trace.FileName)
	assert.Equal(t, int64(2048), trace.ByteSize)
	assert.Equal(t, TraceStatusPending, trace.Status)
	assert.False(t, trace.UploadedAt.IsZero())
}

func TestIssueStatus(t *testing.T) {
	assert.True(t, IssueStatusOpen.Active())
	assert.True(t, IssueStatusAssigned.Active())
	assert.False(t, IssueStatusResolved.Active())
	assert.False(t, IssueStatusClosed.Active())
	assert.False(t, IssueStatus("wontfix").Valid())
}

func TestNewIssueFromFinding(t *testing.T) {
	traceID := uuid.New()
	finding := &Finding{
		Kind:        FindingKindErrorRateSpike,
		Severity:    IssueSeverityHigh,
		Title:       "Error rate spike",
		Description: "120 of 200 spans reported errors",
		Fingerprint: Fingerprint(traceID, FindingKindErrorRateSpike, "checkout-service"),
		Evidence:    map[string]interface{}{"error_spans": 120, "total_spans": 200},
	}

	issue := NewIssueFromFinding(traceID, finding)

	assert.Equal(t, traceID, issue.TraceID)
	assert.Equal(t, finding.Fingerprint, issue.Fingerprint)
	assert.Equal(t, IssueStatusOpen, issue.Status)
	assert.Equal(t, IssueSeverityHigh, issue.Severity)
	assert.NotEmpty(t, issue.Evidence)
	assert.Equal(t, issue.CreatedAt, issue.UpdatedAt)
}

func TestFingerprintDeterministic(t *testing.T) {
	traceID := uuid.New()

	a := Fingerprint(traceID, FindingKindLatencyOutlier, "GET /checkout")
	b := Fingerprint(traceID, FindingKindLatencyOutlier, "GET /checkout")
	require.Equal(t, a, b)
	require.Len(t, a, 64)

	// Different kind or signature must not collide on input construction.
	c := Fingerprint(traceID, FindingKindErrorRateSpike, "GET /checkout")
	d := Fingerprint(traceID, FindingKindLatencyOutlier, "GET /cart")
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
}

func TestAuditEntryBuilders(t *testing.T) {
	actor := uuid.New()
	resource := uuid.New()

	entry := NewAuditEntry(AuditActionIssueDetected, ResourceTypeIssue).
		WithResource(resource).
		WithMetadata(map[string]interface{}{"kind": "error_rate_spike"})

	require.Nil(t, entry.ActorUserID, "detection is a system action")
	require.NotNil(t, entry.ResourceID)
	assert.Equal(t, resource, *entry.ResourceID)
	assert.JSONEq(t, `{"kind":"error_rate_spike"}`, string(entry.Metadata))

	entry.WithActor(actor)
	require.NotNil(t, entry.ActorUserID)
	assert.Equal(t, actor, *entry.ActorUserID)
}

func TestResourceRef(t *testing.T) {
	id := uuid.MustParse("a2f7d1be-9f6f-4f44-93ea-4ab8f2a6f05e")
	assert.Equal(t, "trace:a2f7d1be-9f6f-4f44-93ea-4ab8f2a6f05e", ResourceRef(ResourceTypeTrace, id))
}
