package analysis

import (
	"encoding/json"
	"fmt"

	"github.com/tracelens/tracelens/services"
)

// Parse decodes a raw trace payload into a Document. Unknown fields are
// ignored for forward compatibility; required fields are checked strictly so
// a broken payload fails fast with a single structural error instead of
// producing partial findings.
func Parse(payload []byte) (*Document, error) {
	if len(payload) == 0 {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "trace payload is malformed", nil).
			WithDetail("parse_error", "empty payload")
	}

	var doc Document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "trace payload is malformed", err).
			WithDetail("parse_error", err.Error())
	}

	if len(doc.Spans) == 0 {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "trace payload is malformed", nil).
			WithDetail("parse_error", "trace contains no spans")
	}

	for i := range doc.Spans {
		if err := validateSpan(i, &doc.Spans[i]); err != nil {
			return nil, err
		}
	}

	return &doc, nil
}

func validateSpan(index int, span *Span) error {
	missing := ""
	switch {
	case span.SpanID == "":
		missing = "span_id"
	case span.Operation == "":
		missing = "operation"
	case span.Timestamp.IsZero():
		missing = "timestamp"
	}
	if missing != "" {
		return services.NewDomainError(services.ErrorTypeValidation, "trace payload is malformed", nil).
			WithDetail("parse_error", fmt.Sprintf("span %d is missing required field %q", index, missing))
	}
	if span.Status != "" && span.Status != SpanStatusOK && span.Status != SpanStatusError {
		return services.NewDomainError(services.ErrorTypeValidation, "trace payload is malformed", nil).
			WithDetail("parse_error", fmt.Sprintf("span %d has unknown status %q", index, span.Status))
	}
	return nil
}
