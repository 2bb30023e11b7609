// Package finding defines the Finding record produced by checks, its
// severity scale, and the evidence markers consumed by the scoring engine.
package finding

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Evidence keys with special meaning to the engine.
const (
	// EvidenceScoringImpact marks a finding's effect on the numeric score.
	// The only recognized value is ScoringImpactNone.
	EvidenceScoringImpact = "scoring_impact"

	// ScoringImpactNone exempts a finding from score deduction. The finding
	// still counts toward its severity tally.
	ScoringImpactNone = "none"
)

// Finding is a single detected condition on one asset during one scan.
// Findings are derived artifacts: the execution driver replaces the full
// finding set of a scan atomically on every run, so a finding never
// outlives or drifts from the run that produced it.
type Finding struct {
	// ID is the unique identifier for the finding.
	ID string `json:"id"`

	// ScanID identifies the scan run that produced this finding.
	ScanID string `json:"scan_id"`

	// AssetID identifies the asset the finding concerns.
	AssetID string `json:"asset_id"`

	// CheckID names the detected condition, namespaced by check,
	// e.g. "spf:missing" or "tls:expired".
	CheckID string `json:"check_id"`

	// Severity is the risk level driving score deduction.
	Severity Severity `json:"severity"`

	// Title is a brief human-readable summary.
	Title string `json:"title"`

	// Evidence holds structured supporting data for the finding.
	Evidence map[string]any `json:"evidence"`

	// Recommendation is remediation guidance for the owner.
	Recommendation string `json:"recommendation"`

	// CreatedAt is the timestamp when the finding was produced.
	CreatedAt time.Time `json:"created_at"`
}

// New creates a Finding with a generated id and the current timestamp.
// A nil evidence map is replaced with an empty one so markers can be set
// without nil checks.
func New(scanID, assetID, checkID string, severity Severity, title string, evidence map[string]any, recommendation string) *Finding {
	if evidence == nil {
		evidence = map[string]any{}
	}
	return &Finding{
		ID:             uuid.New().String(),
		ScanID:         scanID,
		AssetID:        assetID,
		CheckID:        checkID,
		Severity:       severity,
		Title:          title,
		Evidence:       evidence,
		Recommendation: recommendation,
		CreatedAt:      time.Now().UTC(),
	}
}

// Validate checks that the finding has all required fields and valid values.
func (f *Finding) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("finding ID is required")
	}
	if f.ScanID == "" {
		return fmt.Errorf("scan ID is required")
	}
	if f.AssetID == "" {
		return fmt.Errorf("asset ID is required")
	}
	if f.CheckID == "" {
		return fmt.Errorf("check ID is required")
	}
	if !f.Severity.IsValid() {
		return fmt.Errorf("invalid severity: %s", f.Severity)
	}
	if f.Title == "" {
		return fmt.Errorf("title is required")
	}
	return nil
}

// MarkScoringExempt flags the finding as informational for scoring: it
// increments its severity count but causes no score deduction. The flag is
// stored in evidence so it survives persistence round-trips unchanged.
func (f *Finding) MarkScoringExempt() *Finding {
	if f.Evidence == nil {
		f.Evidence = map[string]any{}
	}
	f.Evidence[EvidenceScoringImpact] = ScoringImpactNone
	return f
}

// ScoringExempt reports whether the finding is exempt from score deduction.
func (f *Finding) ScoringExempt() bool {
	if f.Evidence == nil {
		return false
	}
	v, ok := f.Evidence[EvidenceScoringImpact]
	if !ok {
		return false
	}
	s, ok := v.(string)
	return ok && s == ScoringImpactNone
}
