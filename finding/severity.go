package finding

import "fmt"

// Severity represents the ordinal risk level of a finding.
type Severity string

const (
	// SeverityCritical indicates an issue requiring immediate attention.
	// Examples: expired certificate, remote-desktop service exposed to the internet
	SeverityCritical Severity = "critical"

	// SeverityHigh indicates a high-impact issue.
	// Examples: missing SPF on a mail-sending domain, database port exposed
	SeverityHigh Severity = "high"

	// SeverityMedium indicates a moderate issue.
	// Examples: missing HSTS header, DMARC policy set to none
	SeverityMedium Severity = "medium"

	// SeverityLow indicates a minor or informational issue.
	// Examples: missing X-Frame-Options, open but benign ports
	SeverityLow Severity = "low"
)

// severityDeductions maps severity levels to the score deduction each
// non-exempt finding of that severity causes.
var severityDeductions = map[Severity]int{
	SeverityCritical: 25,
	SeverityHigh:     15,
	SeverityMedium:   7,
	SeverityLow:      3,
}

// IsValid returns true if the severity level is valid.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	default:
		return false
	}
}

// Deduction returns the score deduction for a non-exempt finding of this
// severity. Returns 0 for invalid severity levels.
func (s Severity) Deduction() int {
	return severityDeductions[s]
}

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// ParseSeverity parses a string into a Severity value.
// Returns an error if the string is not a valid severity level.
func ParseSeverity(s string) (Severity, error) {
	severity := Severity(s)
	if !severity.IsValid() {
		return "", fmt.Errorf("invalid severity: %s", s)
	}
	return severity, nil
}

// AllSeverities returns all valid severity levels ordered from critical to low.
func AllSeverities() []Severity {
	return []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}
}

// Counts tallies findings per severity level for reporting.
type Counts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Add increments the count for the given severity. Invalid severities are
// ignored.
func (c *Counts) Add(s Severity) {
	switch s {
	case SeverityCritical:
		c.Critical++
	case SeverityHigh:
		c.High++
	case SeverityMedium:
		c.Medium++
	case SeverityLow:
		c.Low++
	}
}

// Merge adds the values of other into c.
func (c *Counts) Merge(other Counts) {
	c.Critical += other.Critical
	c.High += other.High
	c.Medium += other.Medium
	c.Low += other.Low
}

// Total returns the number of findings counted across all severities.
func (c Counts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low
}
