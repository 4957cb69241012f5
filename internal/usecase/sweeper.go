package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"CampaignCompliance/internal/domain"
	"CampaignCompliance/internal/ports"
)

const staleReason = "analysis abandoned before completion"

// SweeperDeps configures the stale-run sweeper.
type SweeperDeps struct {
	Campaigns  ports.CampaignRepository
	Analyses   ports.AnalysisRepository
	Pipeline   *Pipeline
	Metrics    ports.PipelineMetrics
	Logger     *zap.Logger
	StaleAfter time.Duration
}

// Sweeper fails analyses whose run stopped without reaching a terminal layer state,
// typically because the process that owned the run exited.
type Sweeper struct {
	campaigns  ports.CampaignRepository
	analyses   ports.AnalysisRepository
	pipeline   *Pipeline
	metrics    ports.PipelineMetrics
	logger     *zap.Logger
	staleAfter time.Duration
}

// NewSweeper builds a Sweeper.
func NewSweeper(deps SweeperDeps) *Sweeper {
	s := &Sweeper{
		campaigns:  deps.Campaigns,
		analyses:   deps.Analyses,
		pipeline:   deps.Pipeline,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		staleAfter: deps.StaleAfter,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.staleAfter <= 0 {
		s.staleAfter = 15 * time.Minute
	}
	return s
}

// Sweep fails every stale analysis not owned by a live run. It returns the number swept.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	stale, err := s.analyses.ListStaleAnalyses(ctx, now.Add(-s.staleAfter))
	if err != nil {
		return 0, fmt.Errorf("list stale analyses: %w", err)
	}

	swept := 0
	for _, analysis := range stale {
		if s.pipeline != nil && s.pipeline.InFlight(analysis.ID) {
			continue
		}

		n, err := s.analyses.FailOpenLayers(ctx, analysis.ID, staleReason)
		if err != nil {
			return swept, fmt.Errorf("fail layers of %s: %w", analysis.ID, err)
		}
		if n == 0 {
			continue
		}
		if err := s.campaigns.UpdateCampaignStatus(ctx, analysis.CampaignID, domain.CampaignFailed); err != nil {
			s.logger.Warn("mark swept campaign failed", zap.String("campaign_id", analysis.CampaignID), zap.Error(err))
		}

		swept++
		s.metrics.RunFinished(OutcomeSwept)
		s.logger.Warn("stale analysis swept",
			zap.String("analysis_id", analysis.ID),
			zap.String("compliance_code", analysis.ComplianceCode),
			zap.Int64("layers_failed", n))
	}
	return swept, nil
}
