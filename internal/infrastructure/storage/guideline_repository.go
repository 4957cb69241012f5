package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"CampaignCompliance/internal/domain"
	"CampaignCompliance/internal/ports"
)

// GuidelineRepository persists compliance guidelines through GORM.
type GuidelineRepository struct {
	db *gorm.DB
}

var _ ports.GuidelineRepository = (*GuidelineRepository)(nil)

// NewGuidelineRepository wires a gorm.DB implementation.
func NewGuidelineRepository(db *gorm.DB) *GuidelineRepository {
	return &GuidelineRepository{db: db}
}

// CreateGuideline inserts the guideline and fills its id and timestamps.
func (r *GuidelineRepository) CreateGuideline(ctx context.Context, guideline *domain.Guideline) error {
	if guideline.ID == "" {
		guideline.ID = uuid.NewString()
	}
	if guideline.ExtractionStatus == "" {
		guideline.ExtractionStatus = domain.ExtractionPending
	}
	metadata, err := encodeJSON(guideline.Metadata)
	if err != nil {
		return err
	}
	// Postgres stores microseconds.
	now := time.Now().UTC().Truncate(time.Microsecond)
	rec := guidelineRecord{
		ID:               guideline.ID,
		Name:             guideline.Name,
		Type:             string(guideline.Type),
		FileURL:          guideline.FileURL,
		ProcessedContent: guideline.ProcessedContent,
		ExtractionStatus: string(guideline.ExtractionStatus),
		Metadata:         metadata,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert guideline: %w", err)
	}
	guideline.CreatedAt = rec.CreatedAt
	guideline.UpdatedAt = rec.UpdatedAt
	return nil
}

// GetGuideline loads one guideline by id.
func (r *GuidelineRepository) GetGuideline(ctx context.Context, id string) (domain.Guideline, error) {
	var rec guidelineRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Guideline{}, fmt.Errorf("guideline %s: %w", id, domain.ErrNotFound)
		}
		return domain.Guideline{}, fmt.Errorf("get guideline: %w", err)
	}
	return rec.toDomain()
}

// GetGuidelines returns the guidelines matching ids in the order the ids were given.
// Unknown ids are skipped; callers compare lengths to detect them.
func (r *GuidelineRepository) GetGuidelines(ctx context.Context, ids []string) ([]domain.Guideline, error) {
	if len(ids) == 0 {
		return []domain.Guideline{}, nil
	}

	var records []guidelineRecord
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("query guidelines: %w", err)
	}

	byID := make(map[string]guidelineRecord, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}

	out := make([]domain.Guideline, 0, len(records))
	for _, id := range ids {
		rec, ok := byID[id]
		if !ok {
			continue
		}
		g, err := rec.toDomain()
		if err != nil {
			return nil, fmt.Errorf("guideline %s: %w", id, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// ListGuidelines returns guidelines newest first.
func (r *GuidelineRepository) ListGuidelines(ctx context.Context, filter domain.GuidelineFilter) ([]domain.Guideline, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC").Order("id ASC")
	if filter.Type != "" {
		query = query.Where("type = ?", string(filter.Type))
	}
	if filter.Status != "" {
		query = query.Where("extraction_status = ?", string(filter.Status))
	}

	var records []guidelineRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list guidelines: %w", err)
	}

	out := make([]domain.Guideline, 0, len(records))
	for _, rec := range records {
		g, err := rec.toDomain()
		if err != nil {
			return nil, fmt.Errorf("guideline %s: %w", rec.ID, err)
		}
		out = append(out, g)
	}
	return out, nil
}
