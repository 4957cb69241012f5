package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"CampaignCompliance/internal/domain"
	"CampaignCompliance/internal/ports"
)

const (
	defaultTemperature = 0.1
	defaultMaxTokens   = 2000
)

// Request carries everything a layer needs to evaluate campaign content.
type Request struct {
	Content    string
	Guidelines []domain.Guideline
	Prior      *domain.Evaluation
}

// Evaluator scores content against a guideline subset. Implementations are stateless.
// Ready reports domain.ErrNotConfigured when the backend has no credentials.
type Evaluator interface {
	Name() string
	Ready() error
	Evaluate(ctx context.Context, req Request) (domain.Evaluation, error)
}

// Options tunes the completion request sent by an evaluator.
// A nil Temperature selects the default; zero is a valid setting.
type Options struct {
	Temperature *float64
	MaxTokens   int
}

func (o Options) withDefaults() Options {
	if o.Temperature == nil || *o.Temperature < 0 {
		t := defaultTemperature
		o.Temperature = &t
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = defaultMaxTokens
	}
	return o
}

// InitialScan is the broad brand/compliance evaluator used by layer 1.
type InitialScan struct {
	client ports.ChatClient
	opts   Options
}

var _ Evaluator = (*InitialScan)(nil)

// NewInitialScan wires the layer 1 evaluator to a chat client.
func NewInitialScan(client ports.ChatClient, opts Options) *InitialScan {
	return &InitialScan{client: client, opts: opts.withDefaults()}
}

// Name identifies the evaluator in processing details and metrics.
func (e *InitialScan) Name() string { return "initial_scan" }

func (e *InitialScan) Ready() error { return ready(e.client) }

// Evaluate runs the brand scan over every supplied guideline.
func (e *InitialScan) Evaluate(ctx context.Context, req Request) (domain.Evaluation, error) {
	return complete(ctx, e.client, e.opts, initialScanSystem, buildInitialScanPrompt(req))
}

// RegulatoryReview is the narrow regulatory evaluator used by layer 2.
type RegulatoryReview struct {
	client ports.ChatClient
	opts   Options
}

var _ Evaluator = (*RegulatoryReview)(nil)

// NewRegulatoryReview wires the layer 2 evaluator to a chat client.
func NewRegulatoryReview(client ports.ChatClient, opts Options) *RegulatoryReview {
	return &RegulatoryReview{client: client, opts: opts.withDefaults()}
}

// Name identifies the evaluator in processing details and metrics.
func (e *RegulatoryReview) Name() string { return "regulatory_review" }

func (e *RegulatoryReview) Ready() error { return ready(e.client) }

// Evaluate reviews content against sebi/government guidelines with the prior layer as context.
func (e *RegulatoryReview) Evaluate(ctx context.Context, req Request) (domain.Evaluation, error) {
	prompt, err := buildRegulatoryPrompt(req)
	if err != nil {
		return domain.Evaluation{}, err
	}
	return complete(ctx, e.client, e.opts, regulatorySystem, prompt)
}

func ready(client ports.ChatClient) error {
	if client == nil {
		return domain.ErrNotConfigured
	}
	if c, ok := client.(ports.Configurable); ok && !c.Configured() {
		return domain.ErrNotConfigured
	}
	return nil
}

func complete(ctx context.Context, client ports.ChatClient, opts Options, system, user string) (domain.Evaluation, error) {
	if err := ready(client); err != nil {
		return domain.Evaluation{}, err
	}

	raw, err := client.Complete(ctx, ports.CompletionRequest{
		System:      system,
		User:        user,
		Temperature: *opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		JSON:        true,
	})
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("request completion: %w", err)
	}

	return ParseEvaluation(raw)
}

const (
	initialScanSystem = "You are a brand compliance expert. Analyze content strictly against provided guidelines."
	regulatorySystem  = "You are a regulatory compliance expert specializing in SEBI and government guidelines."
)

const outputContract = `Respond with a single JSON object:
{"score": <integer 0-100>,
 "issues": [{"type": string, "severity": "low|medium|high|critical", "description": string, "suggested_fix": string, "guideline_reference": string}],
 "warnings": [ ... ],
 "recommendations": [string, ...]}`

func buildInitialScanPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Analyze the following marketing campaign content against brand compliance guidelines.\n\n")
	b.WriteString("Campaign Content:\n")
	b.WriteString(req.Content)
	b.WriteString("\n\nGuidelines:\n")
	writeGuidelines(&b, req.Guidelines)
	b.WriteString("\nFocus on: logo usage, font compliance, color scheme, messaging tone, regulatory language.\n\n")
	b.WriteString(outputContract)
	return b.String()
}

func buildRegulatoryPrompt(req Request) (string, error) {
	var b strings.Builder
	b.WriteString("Perform a detailed compliance review building on the initial scan.\n\n")
	b.WriteString("Campaign Content:\n")
	b.WriteString(req.Content)
	b.WriteString("\n\nRegulatory Guidelines:\n")
	writeGuidelines(&b, domain.RegulatoryOnly(req.Guidelines))

	if req.Prior != nil {
		prior, err := json.MarshalIndent(req.Prior, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal prior evaluation: %w", err)
		}
		b.WriteString("\nInitial Scan Results:\n")
		b.Write(prior)
		b.WriteString("\n")
	}

	b.WriteString("\nFocus on: SEBI compliance for financial content, government regulatory requirements, ")
	b.WriteString("cross-reference with industry standards, legal risk assessment.\n\n")
	b.WriteString(outputContract)
	return b.String(), nil
}

func writeGuidelines(b *strings.Builder, guidelines []domain.Guideline) {
	if len(guidelines) == 0 {
		b.WriteString("(none supplied)\n")
		return
	}
	for _, g := range guidelines {
		fmt.Fprintf(b, "%s (%s): %s\n\n", g.Name, g.Type, g.ProcessedContent)
	}
}
