package repositories

import "errors"

// Sentinel errors returned by repositories. Services translate these into
// their domain error taxonomy.
var (
	ErrTraceNotFound        = errors.New("trace not found")
	ErrTraceNotPending      = errors.New("trace is not in pending state")
	ErrTraceNotAnalyzing    = errors.New("trace is not in analyzing state")
	ErrIssueNotFound        = errors.New("issue not found")
	ErrNotificationNotFound = errors.New("notification not found")
)
