package domain

import "time"

// CampaignStatus tracks where a submission is in its analysis lifecycle.
type CampaignStatus string

const (
	CampaignNotStarted CampaignStatus = "not_started"
	CampaignAnalyzing  CampaignStatus = "analyzing"
	CampaignCompleted  CampaignStatus = "completed"
	CampaignFailed     CampaignStatus = "failed"
)

// IsTerminal reports whether no further transition may occur.
func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignCompleted || s == CampaignFailed
}

// CanTransitionTo enforces not_started -> analyzing -> completed|failed.
func (s CampaignStatus) CanTransitionTo(next CampaignStatus) bool {
	switch s {
	case CampaignNotStarted:
		return next == CampaignAnalyzing || next == CampaignFailed
	case CampaignAnalyzing:
		return next == CampaignCompleted || next == CampaignFailed
	default:
		return false
	}
}

// Campaign is the submitted marketing content under review.
type Campaign struct {
	ID             string
	Title          string
	Content        string
	CampaignType   string
	AnalysisStatus CampaignStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
