package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"CampaignCompliance/internal/domain"
)

type campaignRecord struct {
	ID             string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	Title          string    `gorm:"column:title;not null"`
	Content        string    `gorm:"column:content;type:text;not null"`
	CampaignType   string    `gorm:"column:campaign_type;index"`
	AnalysisStatus string    `gorm:"column:analysis_status;index;not null"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (campaignRecord) TableName() string { return "campaign_documents" }

type guidelineRecord struct {
	ID               string         `gorm:"primaryKey;column:id;type:varchar(36)"`
	Name             string         `gorm:"column:name;not null"`
	Type             string         `gorm:"column:type;index;not null"`
	FileURL          string         `gorm:"column:file_url"`
	ProcessedContent string         `gorm:"column:processed_content;type:text"`
	ExtractionStatus string         `gorm:"column:extraction_status;index;not null"`
	Metadata         datatypes.JSON `gorm:"column:metadata"`
	CreatedAt        time.Time      `gorm:"column:created_at;index"`
	UpdatedAt        time.Time      `gorm:"column:updated_at"`
}

func (guidelineRecord) TableName() string { return "compliance_guidelines" }

type analysisRecord struct {
	ID                 string         `gorm:"primaryKey;column:id;type:varchar(36)"`
	CampaignID         string         `gorm:"column:campaign_id;type:varchar(36);index;not null"`
	ComplianceCode     string         `gorm:"column:compliance_code;index;not null"`
	SelectedGuidelines datatypes.JSON `gorm:"column:selected_guidelines"`
	OverallScore       int            `gorm:"column:overall_score;not null;default:0"`
	OverallStatus      string         `gorm:"column:overall_status;index;not null"`
	CreatedAt          time.Time      `gorm:"column:created_at;index"`
	UpdatedAt          time.Time      `gorm:"column:updated_at"`
}

func (analysisRecord) TableName() string { return "analysis_results" }

type layerRecord struct {
	ID                string         `gorm:"primaryKey;column:id;type:varchar(36)"`
	AnalysisID        string         `gorm:"column:analysis_id;type:varchar(36);uniqueIndex:idx_layer_analysis_number,priority:1;not null"`
	LayerNumber       int            `gorm:"column:layer_number;uniqueIndex:idx_layer_analysis_number,priority:2;not null"`
	LayerName         string         `gorm:"column:layer_name;not null"`
	Status            string         `gorm:"column:status;index;not null"`
	Score             *int           `gorm:"column:score"`
	Issues            datatypes.JSON `gorm:"column:issues"`
	Warnings          datatypes.JSON `gorm:"column:warnings"`
	Recommendations   datatypes.JSON `gorm:"column:recommendations"`
	ProcessingDetails datatypes.JSON `gorm:"column:processing_details"`
	CreatedAt         time.Time      `gorm:"column:created_at"`
	UpdatedAt         time.Time      `gorm:"column:updated_at"`
}

func (layerRecord) TableName() string { return "verification_layers" }

type violationRecord struct {
	ID                 string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	AnalysisID         string    `gorm:"column:analysis_id;type:varchar(36);index;not null"`
	LayerNumber        int       `gorm:"column:layer_number;not null"`
	Position           int       `gorm:"column:position;not null"`
	ViolationType      string    `gorm:"column:violation_type;not null"`
	Severity           string    `gorm:"column:severity;not null"`
	Description        string    `gorm:"column:description;type:text"`
	SuggestedFix       string    `gorm:"column:suggested_fix;type:text"`
	GuidelineReference string    `gorm:"column:guideline_reference"`
	CreatedAt          time.Time `gorm:"column:created_at"`
}

func (violationRecord) TableName() string { return "compliance_violations" }

func encodeJSON(v any) (datatypes.JSON, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json column: %w", err)
	}
	return datatypes.JSON(raw), nil
}

func decodeJSON(raw datatypes.JSON, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode json column: %w", err)
	}
	return nil
}

func (r campaignRecord) toDomain() domain.Campaign {
	return domain.Campaign{
		ID:             r.ID,
		Title:          r.Title,
		Content:        r.Content,
		CampaignType:   r.CampaignType,
		AnalysisStatus: domain.CampaignStatus(r.AnalysisStatus),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func (r guidelineRecord) toDomain() (domain.Guideline, error) {
	g := domain.Guideline{
		ID:               r.ID,
		Name:             r.Name,
		Type:             domain.GuidelineType(r.Type),
		FileURL:          r.FileURL,
		ProcessedContent: r.ProcessedContent,
		ExtractionStatus: domain.ExtractionStatus(r.ExtractionStatus),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if err := decodeJSON(r.Metadata, &g.Metadata); err != nil {
		return domain.Guideline{}, err
	}
	return g, nil
}

func (r analysisRecord) toDomain() (domain.Analysis, error) {
	a := domain.Analysis{
		ID:             r.ID,
		CampaignID:     r.CampaignID,
		ComplianceCode: r.ComplianceCode,
		OverallScore:   r.OverallScore,
		OverallStatus:  domain.OverallStatus(r.OverallStatus),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if err := decodeJSON(r.SelectedGuidelines, &a.SelectedGuidelines); err != nil {
		return domain.Analysis{}, err
	}
	return a, nil
}

func (r layerRecord) toDomain() (domain.VerificationLayer, error) {
	l := domain.VerificationLayer{
		ID:         r.ID,
		AnalysisID: r.AnalysisID,
		Number:     r.LayerNumber,
		Name:       r.LayerName,
		Status:     domain.LayerStatus(r.Status),
		Score:      r.Score,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	for _, col := range []struct {
		raw datatypes.JSON
		dst any
	}{
		{r.Issues, &l.Issues},
		{r.Warnings, &l.Warnings},
		{r.Recommendations, &l.Recommendations},
		{r.ProcessingDetails, &l.ProcessingDetails},
	} {
		if err := decodeJSON(col.raw, col.dst); err != nil {
			return domain.VerificationLayer{}, fmt.Errorf("layer %d: %w", r.LayerNumber, err)
		}
	}
	return l, nil
}

func (r violationRecord) toDomain() domain.Violation {
	return domain.Violation{
		ID:                 r.ID,
		AnalysisID:         r.AnalysisID,
		LayerNumber:        r.LayerNumber,
		ViolationType:      r.ViolationType,
		Severity:           domain.Severity(r.Severity),
		Description:        r.Description,
		SuggestedFix:       r.SuggestedFix,
		GuidelineReference: r.GuidelineReference,
		CreatedAt:          r.CreatedAt,
	}
}
