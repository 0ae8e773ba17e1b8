package common

import "strings"

// Severity is the human-readable severity label shared by feed records and
// synthesized events.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
	SeverityUnknown  Severity = "Unknown"
)

// ParseSeverity normalizes provider spellings ("HIGH", "high", " High ") to a
// Severity. Anything unrecognized is SeverityUnknown.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return SeverityCritical
	case "high":
		return SeverityHigh
	case "medium":
		return SeverityMedium
	case "low":
		return SeverityLow
	default:
		return SeverityUnknown
	}
}

// SeverityFromConfidence buckets a 0-100 abuse confidence score.
func SeverityFromConfidence(score int) Severity {
	switch {
	case score > 90:
		return SeverityHigh
	case score > 75:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
