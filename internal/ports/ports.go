package ports

import (
	"context"
	"time"

	"CampaignCompliance/internal/domain"
)

// CampaignRepository persists submitted campaigns.
type CampaignRepository interface {
	CreateCampaign(ctx context.Context, campaign *domain.Campaign) error
	GetCampaign(ctx context.Context, id string) (domain.Campaign, error)
	UpdateCampaignStatus(ctx context.Context, id string, status domain.CampaignStatus) error
}

// GuidelineStore resolves guideline bodies for an analysis. Read-only.
type GuidelineStore interface {
	GetGuidelines(ctx context.Context, ids []string) ([]domain.Guideline, error)
}

// GuidelineRepository is the full guideline persistence surface used by ingestion.
type GuidelineRepository interface {
	GuidelineStore
	CreateGuideline(ctx context.Context, guideline *domain.Guideline) error
	GetGuideline(ctx context.Context, id string) (domain.Guideline, error)
	ListGuidelines(ctx context.Context, filter domain.GuidelineFilter) ([]domain.Guideline, error)
}

// LayerOutcome is what the orchestrator writes when a layer finishes.
type LayerOutcome struct {
	Status     domain.LayerStatus
	Evaluation *domain.Evaluation
	Details    map[string]any
	Violations []domain.Violation
}

// AnalysisRepository persists analysis aggregates and their layers.
// Layer writes only move forward; backwards moves return domain.ErrInvalidTransition.
type AnalysisRepository interface {
	CreateAnalysis(ctx context.Context, analysis *domain.Analysis) error
	GetAnalysis(ctx context.Context, id string) (domain.Analysis, error)
	ListAnalyses(ctx context.Context, filter domain.AnalysisFilter) ([]domain.AnalysisSummary, error)
	StartLayer(ctx context.Context, analysisID string, number int, details map[string]any) error
	FinishLayer(ctx context.Context, analysisID string, number int, outcome LayerOutcome) error
	AnnotateLayer(ctx context.Context, analysisID string, number int, details map[string]any) error
	FailOpenLayers(ctx context.Context, analysisID string, reason string) (int64, error)
	UpdateOverall(ctx context.Context, analysisID string, score int, status domain.OverallStatus) error
	ListStaleAnalyses(ctx context.Context, createdBefore time.Time) ([]domain.Analysis, error)
}

// CompletionRequest is a role/context message pair sent to a text-generation service.
type CompletionRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	JSON        bool
}

// ChatClient calls an external text-generation service (OpenAI, Gemini, ...).
type ChatClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Configurable is implemented by clients that can report missing credentials up front.
type Configurable interface {
	Configured() bool
}

// Extractor turns a raw guideline document into structured rule text.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, guidelineType domain.GuidelineType, content string) (string, error)
}

// DocumentFetcher downloads a document and returns its plain text.
// PlainText applies the same reduction to content supplied inline.
type DocumentFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
	PlainText(content string) (string, error)
}

// ReviewRequest describes an analysis parked for human validation.
type ReviewRequest struct {
	AnalysisID     string
	ComplianceCode string
	CampaignTitle  string
	Score          int
	Status         domain.OverallStatus
}

// ReviewNotifier tells reviewers that an analysis waits for human validation.
type ReviewNotifier interface {
	NotifyReviewQueued(ctx context.Context, req ReviewRequest) error
}

// Scheduler controls when periodic jobs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// PipelineMetrics records orchestrator activity.
type PipelineMetrics interface {
	AnalysisStarted(campaignType string)
	RunFinished(outcome string)
	LayerEvaluated(layer int, result string, elapsed time.Duration)
	OverallScored(score int, status domain.OverallStatus)
}
