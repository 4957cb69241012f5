package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"CampaignCompliance/internal/domain"
	"CampaignCompliance/internal/evaluator"
	"CampaignCompliance/internal/ports"
)

const (
	defaultLayerTimeout = 90 * time.Second
	maxDerivedTitle     = 80
)

// Run outcomes reported to metrics.
const (
	OutcomeCompleted    = "completed"
	OutcomeReviewQueued = "review_queued"
	OutcomeFailed       = "failed"
	OutcomeSwept        = "swept"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Campaigns        ports.CampaignRepository
	Analyses         ports.AnalysisRepository
	Guidelines       ports.GuidelineStore
	InitialScan      evaluator.Evaluator
	RegulatoryReview evaluator.Evaluator
	Fetcher          ports.DocumentFetcher
	Notifier         ports.ReviewNotifier
	Metrics          ports.PipelineMetrics
	Logger           *zap.Logger
	LayerTimeout     time.Duration

	// Clock, Rand and Runner are replaced in tests.
	Clock  func() time.Time
	Rand   func(n int) int
	Runner func(run func())
}

// Submission is a request to analyse one campaign.
type Submission struct {
	Title        string
	Content      string
	FileURL      string
	CampaignType string
	GuidelineIDs []string
}

// StartResult identifies an accepted analysis run.
type StartResult struct {
	AnalysisID     string
	ComplianceCode string
}

// Pipeline drives analysis runs from submission to a terminal state.
// It is the only writer of layer and aggregate state for the runs it starts.
type Pipeline struct {
	campaigns        ports.CampaignRepository
	analyses         ports.AnalysisRepository
	guidelines       ports.GuidelineStore
	initialScan      evaluator.Evaluator
	regulatoryReview evaluator.Evaluator
	fetcher          ports.DocumentFetcher
	notifier         ports.ReviewNotifier
	metrics          ports.PipelineMetrics
	logger           *zap.Logger
	layerTimeout     time.Duration

	now    func() time.Time
	intn   func(int) int
	runner func(func())

	wg       sync.WaitGroup
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		campaigns:        deps.Campaigns,
		analyses:         deps.Analyses,
		guidelines:       deps.Guidelines,
		initialScan:      deps.InitialScan,
		regulatoryReview: deps.RegulatoryReview,
		fetcher:          deps.Fetcher,
		notifier:         deps.Notifier,
		metrics:          deps.Metrics,
		logger:           deps.Logger,
		layerTimeout:     deps.LayerTimeout,
		now:              deps.Clock,
		intn:             deps.Rand,
		runner:           deps.Runner,
		inFlight:         make(map[string]struct{}),
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.metrics == nil {
		p.metrics = noopMetrics{}
	}
	if p.layerTimeout <= 0 {
		p.layerTimeout = defaultLayerTimeout
	}
	if p.now == nil {
		p.now = func() time.Time { return time.Now().UTC() }
	}
	if p.intn == nil {
		p.intn = rand.IntN
	}
	if p.runner == nil {
		p.runner = func(run func()) { go run() }
	}
	return p
}

// StartAnalysis validates the submission, records the campaign and analysis,
// and launches the layer run in the background. It returns once the analysis exists.
func (p *Pipeline) StartAnalysis(ctx context.Context, sub Submission) (StartResult, error) {
	content, err := p.resolveContent(ctx, sub)
	if err != nil {
		return StartResult{}, err
	}

	ids := normalizeIDs(sub.GuidelineIDs)
	if len(ids) == 0 {
		return StartResult{}, domain.NewValidationError("selectedGuidelines", "at least one guideline is required")
	}

	guidelines, err := p.guidelines.GetGuidelines(ctx, ids)
	if err != nil {
		return StartResult{}, fmt.Errorf("load guidelines: %w", err)
	}
	if err := checkSelectable(ids, guidelines); err != nil {
		return StartResult{}, err
	}

	for _, ev := range []evaluator.Evaluator{p.initialScan, p.regulatoryReview} {
		if ev == nil {
			return StartResult{}, domain.ErrNotConfigured
		}
		if err := ev.Ready(); err != nil {
			return StartResult{}, fmt.Errorf("%s: %w", ev.Name(), err)
		}
	}

	campaign := domain.Campaign{
		Title:          campaignTitle(sub.Title, content),
		Content:        content,
		CampaignType:   strings.TrimSpace(sub.CampaignType),
		AnalysisStatus: domain.CampaignAnalyzing,
	}
	if err := p.campaigns.CreateCampaign(ctx, &campaign); err != nil {
		return StartResult{}, fmt.Errorf("create campaign: %w", err)
	}

	analysis := domain.Analysis{
		CampaignID:         campaign.ID,
		ComplianceCode:     domain.NewComplianceCode(p.now(), p.intn),
		SelectedGuidelines: ids,
	}
	if err := p.analyses.CreateAnalysis(ctx, &analysis); err != nil {
		if uErr := p.campaigns.UpdateCampaignStatus(ctx, campaign.ID, domain.CampaignFailed); uErr != nil {
			p.logger.Warn("mark campaign failed", zap.String("campaign_id", campaign.ID), zap.Error(uErr))
		}
		return StartResult{}, fmt.Errorf("create analysis: %w", err)
	}

	p.metrics.AnalysisStarted(campaign.CampaignType)
	p.logger.Info("analysis accepted",
		zap.String("analysis_id", analysis.ID),
		zap.String("compliance_code", analysis.ComplianceCode),
		zap.String("campaign_type", campaign.CampaignType),
		zap.Int("guidelines", len(guidelines)))

	p.track(analysis.ID)
	runCtx := context.WithoutCancel(ctx)
	p.runner(func() {
		defer p.untrack(analysis.ID)
		defer p.recoverRun(runCtx, campaign.ID, analysis)
		p.run(runCtx, campaign, analysis, guidelines)
	})

	return StartResult{AnalysisID: analysis.ID, ComplianceCode: analysis.ComplianceCode}, nil
}

// Wait blocks until every run started by this pipeline has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// InFlight reports whether this process is still running the given analysis.
func (p *Pipeline) InFlight(analysisID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.inFlight[analysisID]
	return ok
}

func (p *Pipeline) track(id string) {
	p.wg.Add(1)
	p.mu.Lock()
	p.inFlight[id] = struct{}{}
	p.mu.Unlock()
}

func (p *Pipeline) untrack(id string) {
	p.mu.Lock()
	delete(p.inFlight, id)
	p.mu.Unlock()
	p.wg.Done()
}

func (p *Pipeline) run(ctx context.Context, campaign domain.Campaign, analysis domain.Analysis, guidelines []domain.Guideline) {
	log := p.logger.With(zap.String("analysis_id", analysis.ID), zap.String("compliance_code", analysis.ComplianceCode))

	first, err := p.evaluateLayer(ctx, analysis.ID, domain.LayerInitialScan, p.initialScan, evaluator.Request{
		Content:    campaign.Content,
		Guidelines: guidelines,
	})
	if err != nil {
		p.abort(ctx, log, campaign.ID, analysis.ID, err)
		return
	}

	regulatory := domain.RegulatoryOnly(guidelines)
	if err := p.analyses.StartLayer(ctx, analysis.ID, domain.LayerRegulatoryReview, map[string]any{
		"evaluator":       p.regulatoryReview.Name(),
		"guideline_count": len(regulatory),
		"started_at":      p.now(),
	}); err != nil {
		p.abort(ctx, log, campaign.ID, analysis.ID, fmt.Errorf("start layer 2: %w", err))
		return
	}

	second, err := p.evaluateLayer(ctx, analysis.ID, domain.LayerRegulatoryReview, p.regulatoryReview, evaluator.Request{
		Content:    campaign.Content,
		Guidelines: regulatory,
		Prior:      &first,
	})
	if err != nil {
		p.abort(ctx, log, campaign.ID, analysis.ID, err)
		return
	}

	score := domain.AggregateScore(first.Score, second.Score)
	status := domain.StatusForScore(score)
	if err := p.analyses.UpdateOverall(ctx, analysis.ID, score, status); err != nil {
		p.abort(ctx, log, campaign.ID, analysis.ID, fmt.Errorf("store overall score: %w", err))
		return
	}
	p.metrics.OverallScored(score, status)

	outcome, err := p.resolveHumanLayer(ctx, log, campaign, analysis, score, status)
	if err != nil {
		p.abort(ctx, log, campaign.ID, analysis.ID, err)
		return
	}

	if err := p.campaigns.UpdateCampaignStatus(ctx, campaign.ID, domain.CampaignCompleted); err != nil {
		log.Warn("mark campaign completed", zap.Error(err))
	}
	p.metrics.RunFinished(outcome)
	log.Info("analysis finished",
		zap.Int("overall_score", score),
		zap.String("overall_status", string(status)),
		zap.String("outcome", outcome))
}

// evaluateLayer runs one evaluator and persists the layer as completed or failed.
// The returned error has already been recorded on the layer.
func (p *Pipeline) evaluateLayer(ctx context.Context, analysisID string, number int, ev evaluator.Evaluator, req evaluator.Request) (domain.Evaluation, error) {
	started := p.now()
	details := map[string]any{
		"evaluator":       ev.Name(),
		"guideline_count": len(req.Guidelines),
		"started_at":      started,
	}

	layerCtx, cancel := context.WithTimeout(ctx, p.layerTimeout)
	result, evalErr := ev.Evaluate(layerCtx, req)
	cancel()

	finished := p.now()
	details["finished_at"] = finished
	details["duration_ms"] = finished.Sub(started).Milliseconds()

	if evalErr != nil {
		if errors.Is(evalErr, context.DeadlineExceeded) {
			evalErr = fmt.Errorf("evaluator timed out after %s: %w", p.layerTimeout, evalErr)
		}
		details["error"] = evalErr.Error()
		p.metrics.LayerEvaluated(number, string(domain.LayerFailed), finished.Sub(started))
		if err := p.analyses.FinishLayer(ctx, analysisID, number, ports.LayerOutcome{
			Status:  domain.LayerFailed,
			Details: details,
		}); err != nil {
			return domain.Evaluation{}, errors.Join(fmt.Errorf("layer %d: %w", number, evalErr), fmt.Errorf("record failure: %w", err))
		}
		return domain.Evaluation{}, fmt.Errorf("layer %d: %w", number, evalErr)
	}

	p.metrics.LayerEvaluated(number, string(domain.LayerCompleted), finished.Sub(started))
	if err := p.analyses.FinishLayer(ctx, analysisID, number, ports.LayerOutcome{
		Status:     domain.LayerCompleted,
		Evaluation: &result,
		Details:    details,
		Violations: domain.ViolationsFromIssues(analysisID, number, result.Issues),
	}); err != nil {
		return domain.Evaluation{}, fmt.Errorf("store layer %d: %w", number, err)
	}
	return result, nil
}

func (p *Pipeline) resolveHumanLayer(ctx context.Context, log *zap.Logger, campaign domain.Campaign, analysis domain.Analysis, score int, status domain.OverallStatus) (string, error) {
	details := map[string]any{
		"threshold":     domain.HumanReviewThreshold,
		"overall_score": score,
	}

	if !domain.RequiresHumanReview(score) {
		details["decision"] = "auto_approved"
		if err := p.analyses.FinishLayer(ctx, analysis.ID, domain.LayerHumanValidation, ports.LayerOutcome{
			Status:  domain.LayerCompleted,
			Details: details,
		}); err != nil {
			return "", fmt.Errorf("complete layer 3: %w", err)
		}
		return OutcomeCompleted, nil
	}

	details["decision"] = "awaiting_human_review"
	details["queued_at"] = p.now()
	if err := p.analyses.AnnotateLayer(ctx, analysis.ID, domain.LayerHumanValidation, details); err != nil {
		return "", fmt.Errorf("queue layer 3: %w", err)
	}

	if p.notifier != nil {
		err := p.notifier.NotifyReviewQueued(ctx, ports.ReviewRequest{
			AnalysisID:     analysis.ID,
			ComplianceCode: analysis.ComplianceCode,
			CampaignTitle:  campaign.Title,
			Score:          score,
			Status:         status,
		})
		if err != nil {
			log.Warn("notify reviewers", zap.Error(err))
		}
	}
	return OutcomeReviewQueued, nil
}

// abort fails every open layer and the campaign. The aggregate keeps its last score.
func (p *Pipeline) abort(ctx context.Context, log *zap.Logger, campaignID, analysisID string, cause error) {
	log.Error("analysis aborted", zap.Error(cause))

	if _, err := p.analyses.FailOpenLayers(ctx, analysisID, cause.Error()); err != nil {
		log.Error("fail open layers", zap.Error(err))
	}
	if err := p.campaigns.UpdateCampaignStatus(ctx, campaignID, domain.CampaignFailed); err != nil {
		log.Warn("mark campaign failed", zap.Error(err))
	}
	p.metrics.RunFinished(OutcomeFailed)
}

// recoverRun turns a panic inside a run into an ordinary abort.
func (p *Pipeline) recoverRun(ctx context.Context, campaignID string, analysis domain.Analysis) {
	r := recover()
	if r == nil {
		return
	}
	log := p.logger.With(zap.String("analysis_id", analysis.ID), zap.String("compliance_code", analysis.ComplianceCode))
	log.Error("analysis run panicked", zap.Any("panic", r), zap.Stack("stack"))
	p.abort(ctx, log, campaignID, analysis.ID, fmt.Errorf("analysis run panicked: %v", r))
}

func (p *Pipeline) resolveContent(ctx context.Context, sub Submission) (string, error) {
	content := strings.TrimSpace(sub.Content)
	if content != "" {
		return content, nil
	}

	fileURL := strings.TrimSpace(sub.FileURL)
	if fileURL == "" {
		return "", domain.NewValidationError("campaignContent", "content or fileUrl is required")
	}
	if p.fetcher == nil {
		return "", domain.NewValidationError("fileUrl", "document fetching is not available")
	}

	text, err := p.fetcher.FetchText(ctx, fileURL)
	if err != nil {
		return "", domain.NewValidationError("fileUrl", err.Error())
	}
	if text == "" {
		return "", domain.NewValidationError("fileUrl", "document has no text content")
	}
	return text, nil
}

func checkSelectable(ids []string, guidelines []domain.Guideline) error {
	found := make(map[string]domain.Guideline, len(guidelines))
	for _, g := range guidelines {
		found[g.ID] = g
	}
	for _, id := range ids {
		g, ok := found[id]
		if !ok {
			return domain.NewValidationError("selectedGuidelines", fmt.Sprintf("guideline %s not found", id))
		}
		if !g.Selectable() {
			return domain.NewValidationError("selectedGuidelines",
				fmt.Sprintf("guideline %s is not ready (extraction %s)", id, g.ExtractionStatus))
		}
	}
	return nil
}

func normalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// campaignTitle falls back to the first line of content.
func campaignTitle(title, content string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	line, _, _ := strings.Cut(content, "\n")
	line = strings.TrimSpace(line)
	if utf8.RuneCountInString(line) <= maxDerivedTitle {
		return line
	}
	runes := []rune(line)
	return string(runes[:maxDerivedTitle-3]) + "..."
}

type noopMetrics struct{}

func (noopMetrics) AnalysisStarted(string) {}
func (noopMetrics) RunFinished(string) {}
func (noopMetrics) LayerEvaluated(int, string, time.Duration) {}
func (noopMetrics) OverallScored(int, domain.OverallStatus) {}
