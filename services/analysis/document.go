// Package analysis parses stored trace payloads and runs the root-cause
// detection rules over them. Rules are deterministic: identical input always
// yields identical findings, which keeps issue deduplication sound.
package analysis

import (
	"time"
)

// Span statuses recognized in trace payloads.
const (
	SpanStatusOK    = "ok"
	SpanStatusError = "error"
)

// Span is one operation recorded in a trace.
type Span struct {
	SpanID     string    `json:"span_id"`
	ParentID   string    `json:"parent_span_id,omitempty"`
	Service    string    `json:"service"`
	Operation  string    `json:"operation"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"duration_ms"`
	Status     string    `json:"status"`
	Message    string    `json:"message,omitempty"`
}

// IsError reports whether the span recorded a failure.
func (s *Span) IsError() bool {
	return s.Status == SpanStatusError
}

// Duration returns the span duration.
func (s *Span) Duration() time.Duration {
	return time.Duration(s.DurationMs) * time.Millisecond
}

// Document is the parsed representation of a trace payload. All detection
// rules run over the same document.
type Document struct {
	Spans []Span `json:"spans"`
}

// ErrorRatio returns the fraction of error spans in the document.
func (d *Document) ErrorRatio() float64 {
	if len(d.Spans) == 0 {
		return 0
	}
	errors := 0
	for i := range d.Spans {
		if d.Spans[i].IsError() {
			errors++
		}
	}
	return float64(errors) / float64(len(d.Spans))
}

// SpanByID returns the span with the given id, or nil.
func (d *Document) SpanByID(id string) *Span {
	for i := range d.Spans {
		if d.Spans[i].SpanID == id {
			return &d.Spans[i]
		}
	}
	return nil
}
