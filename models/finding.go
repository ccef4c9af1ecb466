package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// FindingKind identifies the detection rule that produced a finding.
type FindingKind string

const (
	FindingKindErrorRateSpike         FindingKind = "error_rate_spike"
	FindingKindLatencyOutlier         FindingKind = "latency_outlier"
	FindingKindDependencyFailureChain FindingKind = "dependency_failure_chain"
)

// Finding is a transient detection result produced by one analysis rule.
// Findings are never persisted; they are consumed immediately by the issue
// manager, which dedups them by fingerprint.
type Finding struct {
	Kind        FindingKind
	Severity    IssueSeverity
	Title       string
	Description string
	Fingerprint string
	Evidence    map[string]interface{}
}

// Fingerprint derives the deterministic dedup key for a finding. Identical
// input always yields the identical fingerprint, which is what makes issue
// deduplication sound.
func Fingerprint(traceID uuid.UUID, kind FindingKind, signature string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", traceID, kind, signature)))
	return hex.EncodeToString(sum[:])
}
