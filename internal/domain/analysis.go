package domain

import (
	"fmt"
	"math"
	"time"
)

// OverallStatus is the derived verdict of an analysis.
type OverallStatus string

const (
	OverallPending      OverallStatus = "pending"
	OverallCompliant    OverallStatus = "compliant"
	OverallMinorIssues  OverallStatus = "minor_issues"
	OverallMajorIssues  OverallStatus = "major_issues"
	OverallNonCompliant OverallStatus = "non_compliant"
)

// HumanReviewThreshold is the lowest overall score that skips human validation.
const HumanReviewThreshold = 70

// StatusForScore maps an overall score onto a verdict; first match wins.
func StatusForScore(score int) OverallStatus {
	switch {
	case score >= 90:
		return OverallCompliant
	case score >= 70:
		return OverallMinorIssues
	case score >= 50:
		return OverallMajorIssues
	default:
		return OverallNonCompliant
	}
}

// AggregateScore is the rounded mean of the given layer scores.
func AggregateScore(scores ...int) int {
	if len(scores) == 0 {
		return 0
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return int(math.Round(float64(sum) / float64(len(scores))))
}

// RequiresHumanReview reports whether layer 3 must wait for a reviewer.
func RequiresHumanReview(score int) bool {
	return score < HumanReviewThreshold
}

// NewComplianceCode renders CEN-<year>-<4 digits>. Uniqueness is not checked.
func NewComplianceCode(now time.Time, intn func(int) int) string {
	return fmt.Sprintf("CEN-%d-%04d", now.Year(), intn(10000))
}

// Analysis is the aggregate root of one compliance run.
type Analysis struct {
	ID                 string
	CampaignID         string
	ComplianceCode     string
	SelectedGuidelines []string
	OverallScore       int
	OverallStatus      OverallStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time

	Layers     []VerificationLayer
	Violations []Violation
}

// Layer returns the layer with the given number.
func (a Analysis) Layer(number int) (VerificationLayer, bool) {
	for _, l := range a.Layers {
		if l.Number == number {
			return l, true
		}
	}
	return VerificationLayer{}, false
}

// AllLayersTerminal reports whether every layer is completed or failed.
func (a Analysis) AllLayersTerminal() bool {
	if len(a.Layers) == 0 {
		return false
	}
	for _, l := range a.Layers {
		if !l.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// AnalysisSummary is a listing row joining an analysis with its campaign.
type AnalysisSummary struct {
	ID             string
	ComplianceCode string
	OverallScore   int
	OverallStatus  OverallStatus
	CreatedAt      time.Time
	CampaignID     string
	CampaignTitle  string
	CampaignType   string
	CampaignStatus CampaignStatus
}

// AnalysisFilter narrows analysis listings.
type AnalysisFilter struct {
	Status       OverallStatus
	CampaignType string
	Limit        int
}

// GuidelineFilter narrows guideline listings.
type GuidelineFilter struct {
	Type   GuidelineType
	Status ExtractionStatus
}
