package httpapi

import (
	"encoding/json"
	"time"

	"CampaignCompliance/internal/domain"
	"CampaignCompliance/internal/usecase"
)

// SubmitAnalysisRequest is the body of POST /api/v1/analyses.
type SubmitAnalysisRequest struct {
	CampaignContent    string   `json:"campaignContent"`
	CampaignType       string   `json:"campaignType"`
	SelectedGuidelines []string `json:"selectedGuidelines"`
	Title              string   `json:"title,omitempty"`
	FileURL            string   `json:"fileUrl,omitempty"`
}

// SubmitAnalysisResponse acknowledges an accepted analysis.
type SubmitAnalysisResponse struct {
	Success        bool   `json:"success"`
	AnalysisID     string `json:"analysisId"`
	ComplianceCode string `json:"complianceCode"`
}

// UploadGuidelineRequest is the body of POST /api/v1/guidelines.
type UploadGuidelineRequest struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
	FileURL string `json:"fileUrl,omitempty"`
}

// ErrorResponse is written for every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CampaignDTO is the campaign_documents row of a status reply.
type CampaignDTO struct {
	ID             string                `json:"id"`
	Title          string                `json:"title"`
	Content        string                `json:"content"`
	CampaignType   string                `json:"campaign_type"`
	AnalysisStatus domain.CampaignStatus `json:"analysis_status"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// LayerDTO is one verification layer of an analysis.
type LayerDTO struct {
	ID                string             `json:"id"`
	AnalysisID        string             `json:"analysis_id"`
	LayerNumber       int                `json:"layer_number"`
	LayerName         string             `json:"layer_name"`
	Status            domain.LayerStatus `json:"status"`
	Score             *int               `json:"score"`
	Issues            []domain.Issue     `json:"issues"`
	Warnings          []json.RawMessage  `json:"warnings"`
	Recommendations   []string           `json:"recommendations"`
	ProcessingDetails map[string]any     `json:"processing_details"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// ViolationDTO is one compliance violation recorded by a layer.
type ViolationDTO struct {
	ID                 string          `json:"id"`
	AnalysisID         string          `json:"analysis_id"`
	LayerNumber        int             `json:"layer_number"`
	ViolationType      string          `json:"violation_type"`
	Severity           domain.Severity `json:"severity"`
	Description        string          `json:"description"`
	SuggestedFix       string          `json:"suggested_fix,omitempty"`
	GuidelineReference string          `json:"guideline_reference,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// GuidelineDTO is a stored guideline with its extracted rules.
type GuidelineDTO struct {
	ID               string                  `json:"id"`
	Name             string                  `json:"name"`
	Type             domain.GuidelineType    `json:"type"`
	FileURL          string                  `json:"file_url,omitempty"`
	ProcessedContent string                  `json:"processed_content"`
	ExtractionStatus domain.ExtractionStatus `json:"extraction_status"`
	Metadata         map[string]any          `json:"metadata"`
	CreatedAt        time.Time               `json:"created_at"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

// AnalysisDTO is the aggregate joined with its campaign, layers, violations and guideline bodies.
type AnalysisDTO struct {
	ID                 string               `json:"id"`
	CampaignID         string               `json:"campaign_id"`
	ComplianceCode     string               `json:"compliance_code"`
	SelectedGuidelines []string             `json:"selected_guidelines"`
	OverallScore       int                  `json:"overall_score"`
	OverallStatus      domain.OverallStatus `json:"overall_status"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`

	Campaign       *CampaignDTO   `json:"campaign_documents"`
	Layers         []LayerDTO     `json:"verification_layers"`
	Violations     []ViolationDTO `json:"compliance_violations"`
	GuidelinesData []GuidelineDTO `json:"selected_guidelines_data"`
}

// AllLayersTerminal reports whether every layer is completed or failed.
func (a AnalysisDTO) AllLayersTerminal() bool {
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

// Settled reports whether the automated layers are done. A run parked for
// human review is settled while layer 3 is still pending.
func (a AnalysisDTO) Settled() bool {
	if len(a.Layers) == 0 {
		return false
	}
	for _, l := range a.Layers {
		if l.LayerNumber == domain.LayerHumanValidation {
			continue
		}
		if !l.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// AnalysisResponse is the body of GET /api/v1/analyses/{analysisId}.
type AnalysisResponse struct {
	Success  bool        `json:"success"`
	Analysis AnalysisDTO `json:"analysis"`
}

// AnalysisSummaryDTO is one row of the analysis listing.
type AnalysisSummaryDTO struct {
	ID             string                `json:"id"`
	ComplianceCode string                `json:"compliance_code"`
	OverallScore   int                   `json:"overall_score"`
	OverallStatus  domain.OverallStatus  `json:"overall_status"`
	CreatedAt      time.Time             `json:"created_at"`
	CampaignID     string                `json:"campaign_id"`
	CampaignTitle  string                `json:"campaign_title"`
	CampaignType   string                `json:"campaign_type"`
	CampaignStatus domain.CampaignStatus `json:"campaign_status"`
}

// AnalysisListResponse is the body of GET /api/v1/analyses.
type AnalysisListResponse struct {
	Analyses []AnalysisSummaryDTO `json:"analyses"`
}

// GuidelineResponse wraps a single guideline.
type GuidelineResponse struct {
	Success   bool         `json:"success"`
	Guideline GuidelineDTO `json:"guideline"`
}

// GuidelineListResponse is the body of GET /api/v1/guidelines.
type GuidelineListResponse struct {
	Guidelines []GuidelineDTO `json:"guidelines"`
}

func toAnalysisDTO(view usecase.AnalysisView) AnalysisDTO {
	a := view.Analysis
	campaign := toCampaignDTO(view.Campaign)
	out := AnalysisDTO{
		ID:                 a.ID,
		CampaignID:         a.CampaignID,
		ComplianceCode:     a.ComplianceCode,
		SelectedGuidelines: nonNil(a.SelectedGuidelines),
		OverallScore:       a.OverallScore,
		OverallStatus:      a.OverallStatus,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
		Campaign:           &campaign,
		Layers:             make([]LayerDTO, 0, len(a.Layers)),
		Violations:         make([]ViolationDTO, 0, len(a.Violations)),
		GuidelinesData:     make([]GuidelineDTO, 0, len(view.Guidelines)),
	}
	for _, l := range a.Layers {
		out.Layers = append(out.Layers, LayerDTO{
			ID:                l.ID,
			AnalysisID:        l.AnalysisID,
			LayerNumber:       l.Number,
			LayerName:         l.Name,
			Status:            l.Status,
			Score:             l.Score,
			Issues:            nonNil(l.Issues),
			Warnings:          nonNil(l.Warnings),
			Recommendations:   nonNil(l.Recommendations),
			ProcessingDetails: l.ProcessingDetails,
			CreatedAt:         l.CreatedAt,
			UpdatedAt:         l.UpdatedAt,
		})
	}
	for _, v := range a.Violations {
		out.Violations = append(out.Violations, ViolationDTO{
			ID:                 v.ID,
			AnalysisID:         v.AnalysisID,
			LayerNumber:        v.LayerNumber,
			ViolationType:      v.ViolationType,
			Severity:           v.Severity,
			Description:        v.Description,
			SuggestedFix:       v.SuggestedFix,
			GuidelineReference: v.GuidelineReference,
			CreatedAt:          v.CreatedAt,
		})
	}
	for _, g := range view.Guidelines {
		out.GuidelinesData = append(out.GuidelinesData, toGuidelineDTO(g))
	}
	return out
}

func toCampaignDTO(c domain.Campaign) CampaignDTO {
	return CampaignDTO{
		ID:             c.ID,
		Title:          c.Title,
		Content:        c.Content,
		CampaignType:   c.CampaignType,
		AnalysisStatus: c.AnalysisStatus,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func toGuidelineDTO(g domain.Guideline) GuidelineDTO {
	return GuidelineDTO{
		ID:               g.ID,
		Name:             g.Name,
		Type:             g.Type,
		FileURL:          g.FileURL,
		ProcessedContent: g.ProcessedContent,
		ExtractionStatus: g.ExtractionStatus,
		Metadata:         g.Metadata,
		CreatedAt:        g.CreatedAt,
		UpdatedAt:        g.UpdatedAt,
	}
}

func toSummaryDTO(s domain.AnalysisSummary) AnalysisSummaryDTO {
	return AnalysisSummaryDTO{
		ID:             s.ID,
		ComplianceCode: s.ComplianceCode,
		OverallScore:   s.OverallScore,
		OverallStatus:  s.OverallStatus,
		CreatedAt:      s.CreatedAt,
		CampaignID:     s.CampaignID,
		CampaignTitle:  s.CampaignTitle,
		CampaignType:   s.CampaignType,
		CampaignStatus: s.CampaignStatus,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
