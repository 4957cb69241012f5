package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"CampaignCompliance/internal/config"
	"CampaignCompliance/internal/evaluator"
	"CampaignCompliance/internal/httpapi"
	"CampaignCompliance/internal/infrastructure/llm"
	"CampaignCompliance/internal/infrastructure/ml"
	"CampaignCompliance/internal/infrastructure/parser"
	"CampaignCompliance/internal/infrastructure/scheduler"
	"CampaignCompliance/internal/infrastructure/storage"
	"CampaignCompliance/internal/infrastructure/telegram"
	"CampaignCompliance/internal/logging"
	"CampaignCompliance/internal/metrics"
	"CampaignCompliance/internal/ports"
	"CampaignCompliance/internal/usecase"
	gormlog "CampaignCompliance/pkg/logger"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *zap.Logger
	db        *gorm.DB
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	handler   http.Handler
	server    *http.Server
}

// New opens storage and builds every adapter and use case.
func New(ctx context.Context, cfg config.Config, baseLogger *zap.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	db, err := storage.Open(cfg.Database.Driver, cfg.Database.DSN,
		gormlog.NewGormLogger(baseLogger.With(zap.String("component", "gorm")), cfg.Database.SlowQueryThreshold))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	chat, err := newChatClient(ctx, cfg.LLM)
	if err != nil {
		_ = storage.Close(db)
		return nil, err
	}
	if c, ok := chat.(ports.Configurable); ok && !c.Configured() {
		baseLogger.Warn("llm credentials missing, analyses will be rejected", zap.String("provider", cfg.LLM.Provider))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pipelineMetrics, err := metrics.NewPipelineMetrics(registry)
	if err != nil {
		_ = storage.Close(db)
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	campaigns := storage.NewCampaignRepository(db)
	analyses := storage.NewAnalysisRepository(db)
	guidelines := storage.NewCachedGuidelines(storage.NewGuidelineRepository(db), cfg.Cache.GuidelineTTL)
	fetcher := parser.NewDocumentFetcher(nil)

	temperature := cfg.LLM.ResolvedTemperature()
	evalOpts := evaluator.Options{Temperature: &temperature, MaxTokens: cfg.LLM.MaxTokens}
	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Campaigns:        campaigns,
		Analyses:         analyses,
		Guidelines:       guidelines,
		InitialScan:      evaluator.NewInitialScan(chat, evalOpts),
		RegulatoryReview: evaluator.NewRegulatoryReview(chat, evalOpts),
		Fetcher:          fetcher,
		Notifier:         newNotifier(cfg.Notifications.Telegram),
		Metrics:          pipelineMetrics,
		Logger:           baseLogger.With(zap.String("component", "pipeline")),
		LayerTimeout:     cfg.Pipeline.LayerTimeout,
	})

	sweeper := usecase.NewSweeper(usecase.SweeperDeps{
		Campaigns:  campaigns,
		Analyses:   analyses,
		Pipeline:   pipeline,
		Metrics:    pipelineMetrics,
		Logger:     baseLogger.With(zap.String("component", "sweeper")),
		StaleAfter: cfg.Sweeper.StaleAfter,
	})

	guidelineService := usecase.NewGuidelineService(usecase.GuidelineServiceDeps{
		Repository: guidelines,
		Fetcher:    fetcher,
		Extractor:  newExtractor(cfg.Extraction, chat),
		Logger:     baseLogger.With(zap.String("component", "guidelines")),
	})

	handler := httpapi.NewRouter(httpapi.RouterDeps{
		Analyses:       pipeline,
		Status:         usecase.NewStatusService(campaigns, analyses, guidelines),
		Guidelines:     guidelineService,
		Gatherer:       registry,
		Logger:         baseLogger.With(zap.String("component", "http")),
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	sweepScheduler := usecase.NewScheduler(
		scheduler.NewTickerScheduler(cfg.Sweeper.Interval),
		sweeper,
		baseLogger.With(zap.String("component", "scheduler")),
	)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		db:        db,
		pipeline:  pipeline,
		scheduler: sweepScheduler,
		handler:   handler,
		server:    server,
	}, nil
}

// Handler exposes the HTTP routes without starting a listener.
func (a *Application) Handler() http.Handler {
	return a.handler
}

// Run serves HTTP and sweeps stale runs until ctx is cancelled, then drains in-flight analyses.
func (a *Application) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("http server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.scheduler.Start(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		return a.shutdown()
	})

	err := g.Wait()
	if closeErr := storage.Close(a.db); closeErr != nil {
		err = errors.Join(err, fmt.Errorf("close database: %w", closeErr))
	}
	return err
}

// Close releases storage for an application that was built but never run.
func (a *Application) Close() error {
	return storage.Close(a.db)
}

func (a *Application) shutdown() error {
	var errs []error

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}
	if err := a.scheduler.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 2*a.cfg.Pipeline.LayerTimeout)
	defer drainCancel()
	drained := make(chan struct{})
	go func() {
		a.pipeline.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-drainCtx.Done():
		errs = append(errs, fmt.Errorf("drain analyses: %w", drainCtx.Err()))
	}

	return errors.Join(errs...)
}

func newChatClient(ctx context.Context, cfg config.LLMConfig) (ports.ChatClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		client, err := llm.NewGeminiClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		return client, nil
	default:
		return llm.NewChatGPTClient(cfg), nil
	}
}

// newExtractor prefers the remote extraction service, then the LLM. Nil stores guidelines as supplied.
func newExtractor(cfg config.ExtractionConfig, chat ports.ChatClient) ports.Extractor {
	if cfg.ServiceURL != "" {
		return ml.NewClient(cfg.ServiceURL, cfg.APIKey)
	}
	if c, ok := chat.(ports.Configurable); ok && c.Configured() {
		return llm.NewRuleExtractor(chat)
	}
	return nil
}

func newNotifier(cfg config.TelegramConfig) ports.ReviewNotifier {
	if !cfg.Enabled() {
		return nil
	}
	return telegram.NewNotifier(cfg.BotToken, cfg.ChatID)
}
