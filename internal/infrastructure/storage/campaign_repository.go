package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"CampaignCompliance/internal/domain"
	"CampaignCompliance/internal/ports"
)

var allCampaignStatuses = []domain.CampaignStatus{
	domain.CampaignNotStarted,
	domain.CampaignAnalyzing,
	domain.CampaignCompleted,
	domain.CampaignFailed,
}

// campaignSources lists the statuses a campaign may leave to reach next.
func campaignSources(next domain.CampaignStatus) []string {
	out := make([]string, 0, len(allCampaignStatuses))
	for _, s := range allCampaignStatuses {
		if s.CanTransitionTo(next) {
			out = append(out, string(s))
		}
	}
	return out
}

// CampaignRepository persists campaign documents through GORM.
type CampaignRepository struct {
	db *gorm.DB
}

var _ ports.CampaignRepository = (*CampaignRepository)(nil)

// NewCampaignRepository wires a gorm.DB implementation.
func NewCampaignRepository(db *gorm.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// CreateCampaign inserts the campaign and fills its id and timestamps.
func (r *CampaignRepository) CreateCampaign(ctx context.Context, campaign *domain.Campaign) error {
	if campaign.ID == "" {
		campaign.ID = uuid.NewString()
	}
	if campaign.AnalysisStatus == "" {
		campaign.AnalysisStatus = domain.CampaignNotStarted
	}
	rec := campaignRecord{
		ID:             campaign.ID,
		Title:          campaign.Title,
		Content:        campaign.Content,
		CampaignType:   campaign.CampaignType,
		AnalysisStatus: string(campaign.AnalysisStatus),
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	campaign.CreatedAt = rec.CreatedAt
	campaign.UpdatedAt = rec.UpdatedAt
	return nil
}

// GetCampaign loads a campaign by id.
func (r *CampaignRepository) GetCampaign(ctx context.Context, id string) (domain.Campaign, error) {
	var rec campaignRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Campaign{}, fmt.Errorf("campaign %s: %w", id, domain.ErrNotFound)
		}
		return domain.Campaign{}, fmt.Errorf("get campaign: %w", err)
	}
	return rec.toDomain(), nil
}

// UpdateCampaignStatus moves the campaign forward. Terminal campaigns are never rewritten.
func (r *CampaignRepository) UpdateCampaignStatus(ctx context.Context, id string, status domain.CampaignStatus) error {
	res := r.db.WithContext(ctx).
		Model(&campaignRecord{}).
		Where("id = ? AND analysis_status IN ?", id, campaignSources(status)).
		Update("analysis_status", string(status))
	if res.Error != nil {
		return fmt.Errorf("update campaign status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		current, err := r.GetCampaign(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("campaign %s %s -> %s: %w", id, current.AnalysisStatus, status, domain.ErrInvalidTransition)
	}
	return nil
}
