package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tracelens/tracelens/services"
)

func TestParse(t *testing.T) {
	payload := []byte(`{
		"spans": [
			{"span_id": "a", "service": "api", "operation": "GET /orders", "timestamp": "2025-03-01T10:00:00Z", "duration_ms": 12, "status": "ok"},
			{"span_id": "b", "parent_span_id": "a", "service": "db", "operation": "SELECT orders", "timestamp": "2025-03-01T10:00:00.005Z", "duration_ms": 4, "status": "error", "message": "timeout"}
		]
	}`)

	doc, err := Parse(payload)
	require.NoError(t, err)
	require.Len(t, doc.Spans, 2)
	assert.Equal(t, "api", doc.Spans[0].Service)
	assert.True(t, doc.Spans[1].IsError())
	assert.Equal(t, 0.5, doc.ErrorRatio())
}

func TestParse_IgnoresUnknownFields(t *testing.T) {
	// Forward compatibility: producers may add fields we do not know about.
	payload := []byte(`{
		"schema_version": 3,
		"exporter": {"name": "otel-bridge"},
		"spans": [
			{"span_id": "a", "service": "api", "operation": "GET /orders", "timestamp": "2025-03-01T10:00:00Z", "status": "ok", "resource_attributes": {"k8s.pod": "api-7f9"}}
		]
	}`)

	doc, err := Parse(payload)
	require.NoError(t, err)
	assert.Len(t, doc.Spans, 1)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `this is not a trace`},
		{"empty payload", ``},
		{"no spans", `{"spans": []}`},
		{"missing span_id", `{"spans": [{"service": "api", "operation": "GET /orders", "timestamp": "2025-03-01T10:00:00Z"}]}`},
		{"missing operation", `{"spans": [{"span_id": "a", "service": "api", "timestamp": "2025-03-01T10:00:00Z"}]}`},
		{"missing timestamp", `{"spans": [{"span_id": "a", "service": "api", "operation": "GET /orders"}]}`},
		{"unknown status", `{"spans": [{"span_id": "a", "service": "api", "operation": "GET /orders", "timestamp": "2025-03-01T10:00:00Z", "status": "maybe"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse([]byte(tt.payload))
			require.Error(t, err)
			assert.Nil(t, doc)
			assert.ErrorIs(t, err, services.ErrMalformedTrace)
			assert.NotEmpty(t, services.GetErrorDetails(err)["parse_error"])
		})
	}
}
