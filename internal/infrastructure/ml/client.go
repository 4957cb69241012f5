// Package ml calls a remote document extraction service.
package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"CampaignCompliance/internal/domain"
	"CampaignCompliance/internal/ports"
)

const maxErrorBody = 4 << 10

// Client posts guideline documents to an extraction service and reads back their rules.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.Extractor = (*Client)(nil)

type extractRequest struct {
	Type    domain.GuidelineType `json:"type"`
	Content string               `json:"content"`
}

type extractResponse struct {
	Rules string `json:"rules"`
}

// NewClient returns a client for the service rooted at endpoint.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Name() string { return "extraction_service" }

// Extract returns the rules the service found in content.
func (c *Client) Extract(ctx context.Context, guidelineType domain.GuidelineType, content string) (string, error) {
	if c.endpoint == "" {
		return "", fmt.Errorf("extraction service: %w", domain.ErrNotConfigured)
	}

	var out extractResponse
	if err := c.call(ctx, "/extract", extractRequest{Type: guidelineType, Content: content}, &out); err != nil {
		return "", fmt.Errorf("extract %s rules: %w", guidelineType, err)
	}

	rules := strings.TrimSpace(out.Rules)
	if rules == "" {
		return "", fmt.Errorf("extract %s rules: empty result", guidelineType)
	}
	return rules, nil
}

func (c *Client) call(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if msg := strings.TrimSpace(string(detail)); msg != "" {
			return fmt.Errorf("service returned %s: %s", resp.Status, msg)
		}
		return fmt.Errorf("service returned %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
