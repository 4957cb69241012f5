package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"CampaignCompliance/internal/domain"
	"CampaignCompliance/internal/evaluator"
	"CampaignCompliance/internal/infrastructure/storage"
	"CampaignCompliance/internal/ports"
)

type stubEvaluator struct {
	name     string
	score    int
	issues   []domain.Issue
	err      error
	notReady bool

	mu    sync.Mutex
	calls []evaluator.Request
}

func (s *stubEvaluator) Name() string { return s.name }

func (s *stubEvaluator) Ready() error {
	if s.notReady {
		return domain.ErrNotConfigured
	}
	return nil
}

func (s *stubEvaluator) Evaluate(_ context.Context, req evaluator.Request) (domain.Evaluation, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	if s.err != nil {
		return domain.Evaluation{}, s.err
	}
	return domain.Evaluation{
		Score:           s.score,
		Issues:          s.issues,
		Warnings:        []json.RawMessage{},
		Recommendations: []string{"keep disclaimers visible"},
	}, nil
}

func (s *stubEvaluator) requests() []evaluator.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]evaluator.Request(nil), s.calls...)
}

type recordingNotifier struct {
	mu       sync.Mutex
	requests []ports.ReviewRequest
	err      error
}

func (n *recordingNotifier) NotifyReviewQueued(_ context.Context, req ports.ReviewRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requests = append(n.requests, req)
	return n.err
}

type stubFetcher struct {
	text string
	err  error
}

func (f stubFetcher) FetchText(context.Context, string) (string, error) { return f.text, f.err }

func (f stubFetcher) PlainText(content string) (string, error) { return content, nil }

type fixture struct {
	db         *gorm.DB
	campaigns  *storage.CampaignRepository
	analyses   *storage.AnalysisRepository
	guidelines *storage.GuidelineRepository
	scan       *stubEvaluator
	review     *stubEvaluator
	notifier   *recordingNotifier
	pipeline   *Pipeline
}

var fixedNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := storage.Open(storage.DriverSQLite, dsn, logger.Default.LogMode(logger.Silent))
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close(db) })
	return db
}

func newFixture(t *testing.T, scanScore, reviewScore int) *fixture {
	t.Helper()
	db := openDB(t)
	f := &fixture{
		db:         db,
		campaigns:  storage.NewCampaignRepository(db),
		analyses:   storage.NewAnalysisRepository(db),
		guidelines: storage.NewGuidelineRepository(db),
		scan:       &stubEvaluator{name: "initial_scan", score: scanScore},
		review:     &stubEvaluator{name: "regulatory_review", score: reviewScore},
		notifier:   &recordingNotifier{},
	}
	f.pipeline = f.newPipeline(func(run func()) { run() })
	return f
}

func (f *fixture) newPipeline(runner func(func())) *Pipeline {
	return NewPipeline(PipelineDeps{
		Campaigns:        f.campaigns,
		Analyses:         f.analyses,
		Guidelines:       f.guidelines,
		InitialScan:      f.scan,
		RegulatoryReview: f.review,
		Notifier:         f.notifier,
		Clock:            func() time.Time { return fixedNow },
		Rand:             func(int) int { return 42 },
		Runner:           runner,
	})
}

func (f *fixture) seedGuideline(t *testing.T, id string, gType domain.GuidelineType, status domain.ExtractionStatus) {
	t.Helper()
	g := domain.Guideline{
		ID:               id,
		Name:             id,
		Type:             gType,
		ProcessedContent: "rules for " + id,
		ExtractionStatus: status,
	}
	require.NoError(t, f.guidelines.CreateGuideline(context.Background(), &g))
}

func (f *fixture) submit(t *testing.T, ids ...string) StartResult {
	t.Helper()
	res, err := f.pipeline.StartAnalysis(context.Background(), Submission{
		Content:      "Invest now for guaranteed returns!",
		CampaignType: "mutual_fund",
		GuidelineIDs: ids,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) load(t *testing.T, id string) (domain.Analysis, domain.Campaign) {
	t.Helper()
	ctx := context.Background()
	a, err := f.analyses.GetAnalysis(ctx, id)
	require.NoError(t, err)
	c, err := f.campaigns.GetCampaign(ctx, a.CampaignID)
	require.NoError(t, err)
	return a, c
}

func layerStatuses(a domain.Analysis) []domain.LayerStatus {
	out := make([]domain.LayerStatus, 0, len(a.Layers))
	for _, l := range a.Layers {
		out = append(out, l.Status)
	}
	return out
}

func TestEndToEndMinorIssuesAutoApproved(t *testing.T) {
	f := newFixture(t, 96, 82)
	f.seedGuideline(t, "brand-guideline-1", domain.GuidelineBrand, domain.ExtractionCompleted)
	f.seedGuideline(t, "sebi-guideline-1", domain.GuidelineSEBI, domain.ExtractionCompleted)

	res := f.submit(t, "brand-guideline-1", "sebi-guideline-1")
	assert.Equal(t, "CEN-2026-0042", res.ComplianceCode)

	a, c := f.load(t, res.AnalysisID)
	assert.Equal(t, 89, a.OverallScore)
	assert.Equal(t, domain.OverallMinorIssues, a.OverallStatus)
	assert.Equal(t, []domain.LayerStatus{domain.LayerCompleted, domain.LayerCompleted, domain.LayerCompleted}, layerStatuses(a))
	require.NotNil(t, a.Layers[0].Score)
	assert.Equal(t, 96, *a.Layers[0].Score)
	require.NotNil(t, a.Layers[1].Score)
	assert.Equal(t, 82, *a.Layers[1].Score)
	assert.Equal(t, "auto_approved", a.Layers[2].ProcessingDetails["decision"])

	assert.Equal(t, domain.CampaignCompleted, c.AnalysisStatus)
	assert.Equal(t, "mutual_fund", c.CampaignType)
	assert.Equal(t, "Invest now for guaranteed returns!", c.Title)
	assert.Empty(t, f.notifier.requests)
	assert.False(t, f.pipeline.InFlight(res.AnalysisID))
}

func TestRegulatoryReviewSeesOnlyRegulatoryGuidelines(t *testing.T) {
	f := newFixture(t, 80, 80)
	f.seedGuideline(t, "brand-1", domain.GuidelineBrand, domain.ExtractionCompleted)
	f.seedGuideline(t, "sebi-1", domain.GuidelineSEBI, domain.ExtractionCompleted)
	f.seedGuideline(t, "internal-1", domain.GuidelineInternal, domain.ExtractionCompleted)
	f.seedGuideline(t, "gov-1", domain.GuidelineGovernment, domain.ExtractionCompleted)

	f.submit(t, "brand-1", "sebi-1", "internal-1", "gov-1")

	scanCalls := f.scan.requests()
	require.Len(t, scanCalls, 1)
	assert.Len(t, scanCalls[0].Guidelines, 4)
	assert.Nil(t, scanCalls[0].Prior)

	reviewCalls := f.review.requests()
	require.Len(t, reviewCalls, 1)
	var ids []string
	for _, g := range reviewCalls[0].Guidelines {
		ids = append(ids, g.ID)
	}
	assert.Equal(t, []string{"sebi-1", "gov-1"}, ids)
	require.NotNil(t, reviewCalls[0].Prior)
	assert.Equal(t, 80, reviewCalls[0].Prior.Score)
}

func TestLowScoreQueuesHumanReview(t *testing.T) {
	f := newFixture(t, 60, 55)
	f.seedGuideline(t, "sebi-1", domain.GuidelineSEBI, domain.ExtractionCompleted)

	res := f.submit(t, "sebi-1")

	a, c := f.load(t, res.AnalysisID)
	assert.Equal(t, 58, a.OverallScore)
	assert.Equal(t, domain.OverallMajorIssues, a.OverallStatus)
	assert.Equal(t, []domain.LayerStatus{domain.LayerCompleted, domain.LayerCompleted, domain.LayerPending}, layerStatuses(a))
	assert.Equal(t, "awaiting_human_review", a.Layers[2].ProcessingDetails["decision"])
	assert.Equal(t, domain.CampaignCompleted, c.AnalysisStatus)

	require.Len(t, f.notifier.requests, 1)
	assert.Equal(t, res.ComplianceCode, f.notifier.requests[0].ComplianceCode)
	assert.Equal(t, 58, f.notifier.requests[0].Score)
}

func TestNotifierFailureDoesNotFailRun(t *testing.T) {
	f := newFixture(t, 40, 40)
	f.notifier.err = errors.New("telegram down")
	f.seedGuideline(t, "sebi-1", domain.GuidelineSEBI, domain.ExtractionCompleted)

	res := f.submit(t, "sebi-1")

	a, _ := f.load(t, res.AnalysisID)
	assert.Equal(t, domain.OverallNonCompliant, a.OverallStatus)
	assert.Equal(t, domain.LayerPending, a.Layers[2].Status)
}

func TestInitialScanFailureFailsAllLayers(t *testing.T) {
	f := newFixture(t, 0, 90)
	f.scan.err = fmt.Errorf("%w: missing score", domain.ErrMalformedEvaluation)
	f.seedGuideline(t, "brand-1", domain.GuidelineBrand, domain.ExtractionCompleted)

	res := f.submit(t, "brand-1")

	a, c := f.load(t, res.AnalysisID)
	assert.Equal(t, []domain.LayerStatus{domain.LayerFailed, domain.LayerFailed, domain.LayerFailed}, layerStatuses(a))
	assert.Equal(t, 0, a.OverallScore)
	assert.Equal(t, domain.OverallPending, a.OverallStatus)
	assert.Nil(t, a.Layers[0].Score)
	assert.Contains(t, a.Layers[0].ProcessingDetails["error"], "missing score")
	assert.Equal(t, domain.CampaignFailed, c.AnalysisStatus)
	assert.Empty(t, f.review.requests(), "layer 2 must not run after layer 1 failed")
}

func TestRegulatoryFailureKeepsFirstLayer(t *testing.T) {
	f := newFixture(t, 88, 0)
	f.scan.issues = []domain.Issue{{Type: "claim", Severity: "major", Description: "guaranteed returns"}}
	f.review.err = errors.New("upstream 500")
	f.seedGuideline(t, "sebi-1", domain.GuidelineSEBI, domain.ExtractionCompleted)

	res := f.submit(t, "sebi-1")

	a, c := f.load(t, res.AnalysisID)
	assert.Equal(t, []domain.LayerStatus{domain.LayerCompleted, domain.LayerFailed, domain.LayerFailed}, layerStatuses(a))
	require.NotNil(t, a.Layers[0].Score)
	assert.Equal(t, 88, *a.Layers[0].Score)
	assert.Equal(t, domain.OverallPending, a.OverallStatus)
	assert.Equal(t, 0, a.OverallScore)
	assert.Equal(t, domain.CampaignFailed, c.AnalysisStatus)

	require.Len(t, a.Violations, 1)
	assert.Equal(t, domain.SeverityHigh, a.Violations[0].Severity)
	assert.Equal(t, domain.LayerInitialScan, a.Violations[0].LayerNumber)
}

type slowEvaluator struct{ stubEvaluator }

func (s *slowEvaluator) Evaluate(ctx context.Context, _ evaluator.Request) (domain.Evaluation, error) {
	<-ctx.Done()
	return domain.Evaluation{}, ctx.Err()
}

func TestLayerTimeoutFailsRun(t *testing.T) {
	f := newFixture(t, 0, 0)
	f.seedGuideline(t, "sebi-1", domain.GuidelineSEBI, domain.ExtractionCompleted)
	p := NewPipeline(PipelineDeps{
		Campaigns:        f.campaigns,
		Analyses:         f.analyses,
		Guidelines:       f.guidelines,
		InitialScan:      &slowEvaluator{stubEvaluator{name: "initial_scan"}},
		RegulatoryReview: f.review,
		LayerTimeout:     20 * time.Millisecond,
		Runner:           func(run func()) { run() },
	})

	res, err := p.StartAnalysis(context.Background(), Submission{Content: "x", GuidelineIDs: []string{"sebi-1"}})
	require.NoError(t, err)

	a, _ := f.load(t, res.AnalysisID)
	assert.Equal(t, domain.LayerFailed, a.Layers[0].Status)
	assert.Contains(t, a.Layers[0].ProcessingDetails["error"], "timed out")
}

type panickingEvaluator struct{ stubEvaluator }

func (p *panickingEvaluator) Evaluate(context.Context, evaluator.Request) (domain.Evaluation, error) {
	panic("sdk exploded")
}

func TestPanickingEvaluatorFailsRun(t *testing.T) {
	f := newFixture(t, 90, 90)
	f.seedGuideline(t, "sebi-1", domain.GuidelineSEBI, domain.ExtractionCompleted)
	p := NewPipeline(PipelineDeps{
		Campaigns:        f.campaigns,
		Analyses:         f.analyses,
		Guidelines:       f.guidelines,
		InitialScan:      f.scan,
		RegulatoryReview: &panickingEvaluator{stubEvaluator{name: "regulatory_review"}},
		Runner:           func(run func()) { run() },
	})

	var res StartResult
	require.NotPanics(t, func() {
		var err error
		res, err = p.StartAnalysis(context.Background(), Submission{Content: "x", GuidelineIDs: []string{"sebi-1"}})
		require.NoError(t, err)
	})

	a, c := f.load(t, res.AnalysisID)
	assert.Equal(t, []domain.LayerStatus{domain.LayerCompleted, domain.LayerFailed, domain.LayerFailed}, layerStatuses(a))
	assert.Equal(t, domain.CampaignFailed, c.AnalysisStatus)
	assert.False(t, p.InFlight(res.AnalysisID))
}

func TestStartAnalysisValidation(t *testing.T) {
	f := newFixture(t, 90, 90)
	f.seedGuideline(t, "ready", domain.GuidelineBrand, domain.ExtractionCompleted)
	f.seedGuideline(t, "pending", domain.GuidelineBrand, domain.ExtractionPending)

	cases := []struct {
		name  string
		sub   Submission
		field string
	}{
		{"empty content", Submission{Content: "  ", GuidelineIDs: []string{"ready"}}, "campaignContent"},
		{"no guidelines", Submission{Content: "x"}, "selectedGuidelines"},
		{"blank guideline ids", Submission{Content: "x", GuidelineIDs: []string{" ", ""}}, "selectedGuidelines"},
		{"unknown guideline", Submission{Content: "x", GuidelineIDs: []string{"ready", "nope"}}, "selectedGuidelines"},
		{"guideline not extracted", Submission{Content: "x", GuidelineIDs: []string{"pending"}}, "selectedGuidelines"},
		{"file url without fetcher", Submission{FileURL: "https://example.com/ad.html", GuidelineIDs: []string{"ready"}}, "fileUrl"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.pipeline.StartAnalysis(context.Background(), tc.sub)
			require.ErrorIs(t, err, domain.ErrValidation)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}

	var campaigns int64
	require.NoError(t, f.db.Table("campaign_documents").Count(&campaigns).Error)
	assert.Zero(t, campaigns, "rejected submissions must not create records")
}

func TestStartAnalysisRequiresConfiguredEvaluator(t *testing.T) {
	f := newFixture(t, 90, 90)
	f.review.notReady = true
	f.seedGuideline(t, "ready", domain.GuidelineSEBI, domain.ExtractionCompleted)

	_, err := f.pipeline.StartAnalysis(context.Background(), Submission{Content: "x", GuidelineIDs: []string{"ready"}})
	require.ErrorIs(t, err, domain.ErrNotConfigured)

	var analyses int64
	require.NoError(t, f.db.Table("analysis_results").Count(&analyses).Error)
	assert.Zero(t, analyses)
}

func TestStartAnalysisFetchesFileURL(t *testing.T) {
	f := newFixture(t, 95, 95)
	f.seedGuideline(t, "ready", domain.GuidelineBrand, domain.ExtractionCompleted)
	f.pipeline.fetcher = stubFetcher{text: "Spring savings plan\nLow fees, no lock-in."}

	res, err := f.pipeline.StartAnalysis(context.Background(), Submission{
		FileURL:      "https://example.com/ad.html",
		GuidelineIDs: []string{"ready", "ready"},
	})
	require.NoError(t, err)

	a, c := f.load(t, res.AnalysisID)
	assert.Equal(t, "Spring savings plan", c.Title)
	assert.Equal(t, []string{"ready"}, a.SelectedGuidelines)
	assert.Equal(t, domain.OverallCompliant, a.OverallStatus)

	f.pipeline.fetcher = stubFetcher{err: errors.New("404")}
	_, err = f.pipeline.StartAnalysis(context.Background(), Submission{FileURL: "https://example.com/x", GuidelineIDs: []string{"ready"}})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestStatusReadsAreStable(t *testing.T) {
	f := newFixture(t, 96, 82)
	f.seedGuideline(t, "brand-1", domain.GuidelineBrand, domain.ExtractionCompleted)
	f.seedGuideline(t, "sebi-1", domain.GuidelineSEBI, domain.ExtractionCompleted)
	res := f.submit(t, "sebi-1", "brand-1")

	status := NewStatusService(f.campaigns, f.analyses, f.guidelines)
	first, err := status.GetStatus(context.Background(), res.AnalysisID)
	require.NoError(t, err)
	second, err := status.GetStatus(context.Background(), res.AnalysisID)
	require.NoError(t, err)

	b1, err := json.Marshal(first)
	require.NoError(t, err)
	b2, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(b1), string(b2))

	require.Len(t, first.Guidelines, 2)
	assert.Equal(t, "sebi-1", first.Guidelines[0].ID)
	assert.Equal(t, domain.CampaignCompleted, first.Campaign.AnalysisStatus)

	_, err = status.GetStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConcurrentRunsFinishWithoutLeaks(t *testing.T) {
	f := newFixture(t, 91, 93)
	f.seedGuideline(t, "sebi-1", domain.GuidelineSEBI, domain.ExtractionCompleted)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	core, logs := observer.New(zap.InfoLevel)
	p := NewPipeline(PipelineDeps{
		Campaigns:        f.campaigns,
		Analyses:         f.analyses,
		Guidelines:       f.guidelines,
		InitialScan:      f.scan,
		RegulatoryReview: f.review,
		Logger:           zap.New(core),
	})

	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		res, err := p.StartAnalysis(context.Background(), Submission{
			Content:      fmt.Sprintf("campaign %d", i),
			GuidelineIDs: []string{"sebi-1"},
		})
		require.NoError(t, err)
		ids = append(ids, res.AnalysisID)
	}
	p.Wait()

	for _, id := range ids {
		a, _ := f.load(t, id)
		assert.Equal(t, 92, a.OverallScore)
		assert.True(t, a.AllLayersTerminal())
		assert.False(t, p.InFlight(id))
	}
	assert.Equal(t, 5, logs.FilterMessage("analysis finished").Len())
}

func TestSweeperFailsAbandonedRuns(t *testing.T) {
	f := newFixture(t, 90, 90)
	f.seedGuideline(t, "sebi-1", domain.GuidelineSEBI, domain.ExtractionCompleted)

	var queued []func()
	held := f.newPipeline(func(run func()) { queued = append(queued, run) })
	orphan, err := held.StartAnalysis(context.Background(), Submission{Content: "held", GuidelineIDs: []string{"sebi-1"}})
	require.NoError(t, err)
	finished := f.submit(t, "sebi-1")

	crashed := f.newPipeline(func(run func()) {})
	lost, err := crashed.StartAnalysis(context.Background(), Submission{Content: "lost", GuidelineIDs: []string{"sebi-1"}})
	require.NoError(t, err)

	sweeper := NewSweeper(SweeperDeps{
		Campaigns:  f.campaigns,
		Analyses:   f.analyses,
		Pipeline:   held,
		StaleAfter: time.Minute,
	})
	n, err := sweeper.Sweep(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the run nobody owns is swept")

	a, c := f.load(t, lost.AnalysisID)
	assert.Equal(t, []domain.LayerStatus{domain.LayerFailed, domain.LayerFailed, domain.LayerFailed}, layerStatuses(a))
	assert.Equal(t, domain.CampaignFailed, c.AnalysisStatus)

	a, _ = f.load(t, orphan.AnalysisID)
	assert.Equal(t, domain.LayerProcessing, a.Layers[0].Status)
	a, _ = f.load(t, finished.AnalysisID)
	assert.True(t, a.AllLayersTerminal())

	n, err = sweeper.Sweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	for _, run := range queued {
		run()
	}
	held.Wait()
}
