package domain

import (
	"strings"
	"time"
)

// Severity grades a compliance violation.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// NormalizeSeverity maps free-form evaluator severities onto the fixed scale.
func NormalizeSeverity(value string) Severity {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "low", "minor", "info":
		return SeverityLow
	case "high", "major", "severe":
		return SeverityHigh
	case "critical", "blocker":
		return SeverityCritical
	default:
		return SeverityMedium
	}
}

// Violation is an informational record derived from layer issues.
type Violation struct {
	ID                 string
	AnalysisID         string
	LayerNumber        int
	ViolationType      string
	Severity           Severity
	Description        string
	SuggestedFix       string
	GuidelineReference string
	CreatedAt          time.Time
}

// ViolationsFromIssues converts a layer's issues into violation records.
func ViolationsFromIssues(analysisID string, layer int, issues []Issue) []Violation {
	out := make([]Violation, 0, len(issues))
	for _, issue := range issues {
		out = append(out, Violation{
			AnalysisID:         analysisID,
			LayerNumber:        layer,
			ViolationType:      issue.Type,
			Severity:           NormalizeSeverity(issue.Severity),
			Description:        issue.Description,
			SuggestedFix:       issue.SuggestedFix,
			GuidelineReference: issue.GuidelineReference,
		})
	}
	return out
}
