// Package metrics exposes Prometheus collectors for the compliance pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"CampaignCompliance/internal/domain"
	"CampaignCompliance/internal/ports"
)

// PipelineMetrics contains Prometheus metrics for analysis runs.
type PipelineMetrics struct {
	analysesStarted *prometheus.CounterVec
	runsFinished    *prometheus.CounterVec
	layerEvaluated  *prometheus.CounterVec
	layerDuration   *prometheus.HistogramVec
	overallScore    *prometheus.HistogramVec
}

var _ ports.PipelineMetrics = (*PipelineMetrics)(nil)

// NewPipelineMetrics creates and registers the pipeline collectors.
func NewPipelineMetrics(registry prometheus.Registerer) (*PipelineMetrics, error) {
	m := &PipelineMetrics{
		analysesStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compliance_analyses_started_total",
				Help: "Total number of accepted analysis submissions",
			},
			[]string{"campaign_type"},
		),
		runsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compliance_runs_finished_total",
				Help: "Total number of analysis runs that reached an end state",
			},
			[]string{"outcome"}, // outcome: completed, review_queued, failed, swept
		),
		layerEvaluated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compliance_layer_evaluations_total",
				Help: "Total number of layer evaluations",
			},
			[]string{"layer", "result"},
		),
		layerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "compliance_layer_evaluation_duration_seconds",
				Help:    "Time taken by a layer evaluator call",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
			},
			[]string{"layer"},
		),
		overallScore: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "compliance_overall_score",
				Help:    "Distribution of aggregated analysis scores",
				Buckets: prometheus.LinearBuckets(10, 10, 10),
			},
			[]string{"status"},
		),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Describe implements prometheus.Collector.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.analysesStarted.Describe(ch)
	m.runsFinished.Describe(ch)
	m.layerEvaluated.Describe(ch)
	m.layerDuration.Describe(ch)
	m.overallScore.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.analysesStarted.Collect(ch)
	m.runsFinished.Collect(ch)
	m.layerEvaluated.Collect(ch)
	m.layerDuration.Collect(ch)
	m.overallScore.Collect(ch)
}

func (m *PipelineMetrics) AnalysisStarted(campaignType string) {
	if campaignType == "" {
		campaignType = "unknown"
	}
	m.analysesStarted.WithLabelValues(campaignType).Inc()
}

func (m *PipelineMetrics) RunFinished(outcome string) {
	m.runsFinished.WithLabelValues(outcome).Inc()
}

func (m *PipelineMetrics) LayerEvaluated(layer int, result string, elapsed time.Duration) {
	l := strconv.Itoa(layer)
	m.layerEvaluated.WithLabelValues(l, result).Inc()
	m.layerDuration.WithLabelValues(l).Observe(elapsed.Seconds())
}

func (m *PipelineMetrics) OverallScored(score int, status domain.OverallStatus) {
	m.overallScore.WithLabelValues(string(status)).Observe(float64(score))
}
