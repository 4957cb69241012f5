package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"CampaignCompliance/internal/domain"
	"CampaignCompliance/internal/ports"
)

const extractorNone = "none"

// GuidelineUpload is an ingestion request for one guideline document.
type GuidelineUpload struct {
	Name    string
	Type    string
	Content string
	FileURL string
}

// GuidelineServiceDeps wires the ingestion collaborators.
type GuidelineServiceDeps struct {
	Repository ports.GuidelineRepository
	Fetcher    ports.DocumentFetcher
	Extractor  ports.Extractor
	Logger     *zap.Logger
	Clock      func() time.Time
}

// GuidelineService ingests, lists and resolves guidelines.
type GuidelineService struct {
	repo      ports.GuidelineRepository
	fetcher   ports.DocumentFetcher
	extractor ports.Extractor
	logger    *zap.Logger
	now       func() time.Time
}

// NewGuidelineService builds the ingestion service. Fetcher and Extractor are optional.
func NewGuidelineService(deps GuidelineServiceDeps) *GuidelineService {
	s := &GuidelineService{
		repo:      deps.Repository,
		fetcher:   deps.Fetcher,
		extractor: deps.Extractor,
		logger:    deps.Logger,
		now:       deps.Clock,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Upload stores a guideline with its extracted rule text. Extraction failures fall back to the raw text.
func (s *GuidelineService) Upload(ctx context.Context, in GuidelineUpload) (domain.Guideline, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Guideline{}, domain.NewValidationError("name", "name is required")
	}
	gType, err := domain.ParseGuidelineType(in.Type)
	if err != nil {
		return domain.Guideline{}, err
	}

	raw, err := s.documentText(ctx, in)
	if err != nil {
		return domain.Guideline{}, err
	}

	processed, extractor := raw, extractorNone
	if s.extractor != nil {
		rules, xErr := s.extractor.Extract(ctx, gType, raw)
		switch {
		case xErr != nil:
			s.logger.Warn("guideline extraction failed, storing raw content",
				zap.String("name", name), zap.String("extractor", s.extractor.Name()), zap.Error(xErr))
		case strings.TrimSpace(rules) == "":
			s.logger.Warn("guideline extraction returned nothing, storing raw content",
				zap.String("name", name), zap.String("extractor", s.extractor.Name()))
		default:
			processed, extractor = strings.TrimSpace(rules), s.extractor.Name()
		}
	}

	g := domain.Guideline{
		Name:             name,
		Type:             gType,
		FileURL:          strings.TrimSpace(in.FileURL),
		ProcessedContent: processed,
		ExtractionStatus: domain.ExtractionCompleted,
		Metadata: map[string]any{
			"extracted_at":   s.now().Format(time.RFC3339),
			"content_length": len(raw),
			"extractor":      extractor,
		},
	}
	if err := s.repo.CreateGuideline(ctx, &g); err != nil {
		return domain.Guideline{}, fmt.Errorf("store guideline: %w", err)
	}

	s.logger.Info("guideline stored",
		zap.String("guideline_id", g.ID),
		zap.String("type", string(g.Type)),
		zap.String("extractor", extractor))
	return g, nil
}

// Get returns one guideline.
func (s *GuidelineService) Get(ctx context.Context, id string) (domain.Guideline, error) {
	return s.repo.GetGuideline(ctx, strings.TrimSpace(id))
}

// List returns guidelines newest first.
func (s *GuidelineService) List(ctx context.Context, filter domain.GuidelineFilter) ([]domain.Guideline, error) {
	return s.repo.ListGuidelines(ctx, filter)
}

func (s *GuidelineService) documentText(ctx context.Context, in GuidelineUpload) (string, error) {
	content := strings.TrimSpace(in.Content)
	fileURL := strings.TrimSpace(in.FileURL)

	switch {
	case content != "" && s.fetcher != nil:
		text, err := s.fetcher.PlainText(content)
		if err != nil {
			return "", domain.NewValidationError("content", err.Error())
		}
		content = text
	case content == "" && fileURL != "":
		if s.fetcher == nil {
			return "", domain.NewValidationError("fileUrl", "document fetching is not available")
		}
		text, err := s.fetcher.FetchText(ctx, fileURL)
		if err != nil {
			return "", domain.NewValidationError("fileUrl", err.Error())
		}
		content = text
	}

	if content == "" {
		return "", domain.NewValidationError("content", "content or fileUrl is required")
	}
	return content, nil
}
