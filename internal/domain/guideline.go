package domain

import (
	"fmt"
	"strings"
	"time"
)

// GuidelineType classifies a guideline document.
type GuidelineType string

const (
	GuidelineBrand      GuidelineType = "brand"
	GuidelineSEBI       GuidelineType = "sebi"
	GuidelineGovernment GuidelineType = "government"
	GuidelineInternal   GuidelineType = "internal"
)

// ParseGuidelineType normalizes and validates a type tag.
func ParseGuidelineType(value string) (GuidelineType, error) {
	t := GuidelineType(strings.ToLower(strings.TrimSpace(value)))
	switch t {
	case GuidelineBrand, GuidelineSEBI, GuidelineGovernment, GuidelineInternal:
		return t, nil
	}
	return "", NewValidationError("type", fmt.Sprintf("unknown guideline type %q", value))
}

// IsRegulatory reports whether the type feeds the regulatory review layer.
func (t GuidelineType) IsRegulatory() bool {
	return t == GuidelineSEBI || t == GuidelineGovernment
}

// ExtractionStatus tracks guideline body extraction.
type ExtractionStatus string

const (
	ExtractionPending    ExtractionStatus = "pending"
	ExtractionProcessing ExtractionStatus = "processing"
	ExtractionCompleted  ExtractionStatus = "completed"
	ExtractionFailed     ExtractionStatus = "failed"
)

// Guideline is a stored brand, regulatory or internal rule document.
type Guideline struct {
	ID               string
	Name             string
	Type             GuidelineType
	FileURL          string
	ProcessedContent string
	ExtractionStatus ExtractionStatus
	Metadata         map[string]any
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Selectable reports whether the guideline may be used in an analysis.
func (g Guideline) Selectable() bool {
	return g.ExtractionStatus == ExtractionCompleted
}

// RegulatoryOnly keeps sebi and government guidelines, preserving order.
func RegulatoryOnly(guidelines []Guideline) []Guideline {
	out := make([]Guideline, 0, len(guidelines))
	for _, g := range guidelines {
		if g.Type.IsRegulatory() {
			out = append(out, g)
		}
	}
	return out
}
