package llm

import (
	"context"
	"fmt"
	"strings"

	"CampaignCompliance/internal/domain"
	"CampaignCompliance/internal/ports"
)

const (
	extractionSystemPrompt = "You are a compliance expert who extracts actionable rules from policy documents."
	extractionTemperature  = 0.1
	extractionMaxTokens    = 3000
)

var typePrompts = map[domain.GuidelineType]string{
	domain.GuidelineBrand:      "Extract brand guidelines including logo usage, color schemes, typography, messaging tone, and visual identity requirements.",
	domain.GuidelineSEBI:       "Extract SEBI compliance requirements for financial communications, including mandatory disclosures, risk warnings, and regulatory language.",
	domain.GuidelineGovernment: "Extract government regulatory requirements including advertising standards, consumer protection rules, and industry-specific compliance.",
	domain.GuidelineInternal:   "Extract internal policy guidelines including approval processes, content standards, and organizational requirements.",
}

// RuleExtractor turns guideline documents into structured rules through a ChatClient.
type RuleExtractor struct {
	chat ports.ChatClient
}

var _ ports.Extractor = (*RuleExtractor)(nil)

// NewRuleExtractor wraps chat for guideline extraction.
func NewRuleExtractor(chat ports.ChatClient) *RuleExtractor {
	return &RuleExtractor{chat: chat}
}

func (e *RuleExtractor) Name() string { return "llm_rules" }

// Extract asks the model for structured compliance rules in plain text.
func (e *RuleExtractor) Extract(ctx context.Context, guidelineType domain.GuidelineType, content string) (string, error) {
	if e == nil || e.chat == nil {
		return "", fmt.Errorf("rule extractor: %w", domain.ErrNotConfigured)
	}

	out, err := e.chat.Complete(ctx, ports.CompletionRequest{
		System:      extractionSystemPrompt,
		User:        extractionPrompt(guidelineType, content),
		Temperature: extractionTemperature,
		MaxTokens:   extractionMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("extract %s rules: %w", guidelineType, err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("extract %s rules: empty response", guidelineType)
	}
	return out, nil
}

func extractionPrompt(guidelineType domain.GuidelineType, content string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Extract and structure compliance rules from this %s document:\n\n", guidelineType)
	b.WriteString(content)
	b.WriteString("\n\n")
	b.WriteString(typePrompts[guidelineType])
	b.WriteString(`

Format the output as structured compliance rules with:
- Rule categories
- Specific requirements
- Mandatory elements
- Prohibited content
- Risk levels
- Approval requirements

Make it actionable for automated compliance checking.`)
	return b.String()
}
