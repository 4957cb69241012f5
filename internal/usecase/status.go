package usecase

import (
	"context"
	"fmt"
	"strings"

	"CampaignCompliance/internal/domain"
	"CampaignCompliance/internal/ports"
)

// AnalysisView is the full status of one analysis as returned to pollers.
type AnalysisView struct {
	Analysis   domain.Analysis
	Campaign   domain.Campaign
	Guidelines []domain.Guideline
}

// StatusService answers read-only status and listing queries.
type StatusService struct {
	campaigns  ports.CampaignRepository
	analyses   ports.AnalysisRepository
	guidelines ports.GuidelineStore
}

// NewStatusService builds a StatusService.
func NewStatusService(campaigns ports.CampaignRepository, analyses ports.AnalysisRepository, guidelines ports.GuidelineStore) *StatusService {
	return &StatusService{campaigns: campaigns, analyses: analyses, guidelines: guidelines}
}

// GetStatus joins an analysis with its campaign and the selected guideline bodies.
func (s *StatusService) GetStatus(ctx context.Context, analysisID string) (AnalysisView, error) {
	analysisID = strings.TrimSpace(analysisID)
	if analysisID == "" {
		return AnalysisView{}, domain.NewValidationError("analysisId", "analysis id is required")
	}

	analysis, err := s.analyses.GetAnalysis(ctx, analysisID)
	if err != nil {
		return AnalysisView{}, fmt.Errorf("load analysis: %w", err)
	}
	campaign, err := s.campaigns.GetCampaign(ctx, analysis.CampaignID)
	if err != nil {
		return AnalysisView{}, fmt.Errorf("load campaign: %w", err)
	}

	var guidelines []domain.Guideline
	if len(analysis.SelectedGuidelines) > 0 {
		guidelines, err = s.guidelines.GetGuidelines(ctx, analysis.SelectedGuidelines)
		if err != nil {
			return AnalysisView{}, fmt.Errorf("load guidelines: %w", err)
		}
	}

	return AnalysisView{Analysis: analysis, Campaign: campaign, Guidelines: guidelines}, nil
}

// ListAnalyses returns analysis summaries newest first.
func (s *StatusService) ListAnalyses(ctx context.Context, filter domain.AnalysisFilter) ([]domain.AnalysisSummary, error) {
	if filter.Limit < 0 {
		return nil, domain.NewValidationError("limit", "limit must not be negative")
	}
	return s.analyses.ListAnalyses(ctx, filter)
}
