package domain

import (
	"encoding/json"
	"time"
)

// Layer numbers of the fixed verification pipeline.
const (
	LayerInitialScan      = 1
	LayerRegulatoryReview = 2
	LayerHumanValidation  = 3

	LayerCount = 3
)

var layerNames = map[int]string{
	LayerInitialScan:      "AI Initial Scan",
	LayerRegulatoryReview: "Compliance Agent Review",
	LayerHumanValidation:  "Human Validation Queue",
}

// LayerName returns the display name of a layer number.
func LayerName(number int) string {
	return layerNames[number]
}

// LayerStatus is the lifecycle state of one verification layer.
type LayerStatus string

const (
	LayerPending    LayerStatus = "pending"
	LayerProcessing LayerStatus = "processing"
	LayerCompleted  LayerStatus = "completed"
	LayerFailed     LayerStatus = "failed"
)

// IsTerminal reports whether the layer can no longer change.
func (s LayerStatus) IsTerminal() bool {
	return s == LayerCompleted || s == LayerFailed
}

// CanTransitionTo allows only forward moves: pending -> processing -> completed|failed.
// A pending layer may be resolved directly (auto-pass or abort).
func (s LayerStatus) CanTransitionTo(next LayerStatus) bool {
	switch s {
	case LayerPending:
		return next == LayerProcessing || next == LayerCompleted || next == LayerFailed
	case LayerProcessing:
		return next == LayerCompleted || next == LayerFailed
	default:
		return false
	}
}

// Issue is one finding reported by an evaluator.
type Issue struct {
	Type               string `json:"type"`
	Severity           string `json:"severity"`
	Description        string `json:"description"`
	SuggestedFix       string `json:"suggested_fix,omitempty"`
	GuidelineReference string `json:"guideline_reference,omitempty"`
}

// Evaluation is the validated output of a layer evaluator.
type Evaluation struct {
	Score           int               `json:"score"`
	Issues          []Issue           `json:"issues"`
	Warnings        []json.RawMessage `json:"warnings"`
	Recommendations []string          `json:"recommendations"`
}

// VerificationLayer is one stage of an analysis run.
type VerificationLayer struct {
	ID                string
	AnalysisID        string
	Number            int
	Name              string
	Status            LayerStatus
	Score             *int
	Issues            []Issue
	Warnings          []json.RawMessage
	Recommendations   []string
	ProcessingDetails map[string]any
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// InitialLayers returns the three layers in their creation states.
func InitialLayers(analysisID string) []VerificationLayer {
	layers := make([]VerificationLayer, 0, LayerCount)
	for n := 1; n <= LayerCount; n++ {
		status := LayerPending
		if n == LayerInitialScan {
			status = LayerProcessing
		}
		layers = append(layers, VerificationLayer{
			AnalysisID: analysisID,
			Number:     n,
			Name:       LayerName(n),
			Status:     status,
		})
	}
	return layers
}
