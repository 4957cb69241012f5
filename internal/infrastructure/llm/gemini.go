package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"CampaignCompliance/internal/config"
	"CampaignCompliance/internal/domain"
	"CampaignCompliance/internal/ports"
)

// GeminiClient implements ports.ChatClient on the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

var _ ports.ChatClient = (*GeminiClient)(nil)

// NewGeminiClient creates a client; without an API key every call reports ErrNotConfigured.
// A non-empty cfg.Endpoint replaces the API base URL.
func NewGeminiClient(ctx context.Context, cfg config.LLMConfig) (*GeminiClient, error) {
	g := &GeminiClient{model: cfg.ResolvedModel()}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return g, nil
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Endpoint != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}
	if cfg.Timeout > 0 {
		timeout := cfg.Timeout
		clientCfg.HTTPOptions.Timeout = &timeout
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	g.client = client
	return g, nil
}

// Configured reports whether an API key was supplied.
func (g *GeminiClient) Configured() bool { return g != nil && g.client != nil }

// Complete runs a single generateContent call and returns the concatenated text parts.
func (g *GeminiClient) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	if g == nil || g.client == nil {
		return "", fmt.Errorf("gemini: %w", domain.ErrNotConfigured)
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.System != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSON {
		genCfg.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.User), genCfg)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("gemini response has no text")
	}
	return text, nil
}
