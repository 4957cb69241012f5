// Package client is a Go client for the compliance HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"CampaignCompliance/internal/httpapi"
)

// ErrMissingAnalysisID is returned for a blank analysis id.
var ErrMissingAnalysisID = errors.New("analysis id is required")

// APIError is a non-2xx reply decoded from the {"error": "..."} body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Client calls the compliance API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for baseURL. A nil httpClient selects one with a 30s timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// SubmitAnalysis starts an analysis run.
func (c *Client) SubmitAnalysis(ctx context.Context, req httpapi.SubmitAnalysisRequest) (httpapi.SubmitAnalysisResponse, error) {
	var out httpapi.SubmitAnalysisResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/analyses", nil, req, &out)
	return out, err
}

// GetAnalysis fetches the full status of one analysis.
// A success reply without an analysis body is an error.
func (c *Client) GetAnalysis(ctx context.Context, analysisID string) (httpapi.AnalysisDTO, error) {
	analysisID = strings.TrimSpace(analysisID)
	if analysisID == "" {
		return httpapi.AnalysisDTO{}, ErrMissingAnalysisID
	}
	var out httpapi.AnalysisResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/analyses/"+url.PathEscape(analysisID), nil, nil, &out); err != nil {
		return httpapi.AnalysisDTO{}, err
	}
	if out.Analysis.ID == "" {
		return httpapi.AnalysisDTO{}, fmt.Errorf("get analysis %s: reply carried no analysis", analysisID)
	}
	return out.Analysis, nil
}

// ListAnalyses lists analyses newest first. Zero-valued filter fields are omitted.
func (c *Client) ListAnalyses(ctx context.Context, status, campaignType string, limit int) ([]httpapi.AnalysisSummaryDTO, error) {
	q := url.Values{}
	setIf(q, "status", status)
	setIf(q, "campaignType", campaignType)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out httpapi.AnalysisListResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/analyses", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Analyses, nil
}

// UploadGuideline ingests a guideline document.
func (c *Client) UploadGuideline(ctx context.Context, req httpapi.UploadGuidelineRequest) (httpapi.GuidelineDTO, error) {
	var out httpapi.GuidelineResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/guidelines", nil, req, &out); err != nil {
		return httpapi.GuidelineDTO{}, err
	}
	return out.Guideline, nil
}

// ListGuidelines lists guidelines, optionally filtered by type and extraction status.
func (c *Client) ListGuidelines(ctx context.Context, guidelineType, status string) ([]httpapi.GuidelineDTO, error) {
	q := url.Values{}
	setIf(q, "type", guidelineType)
	setIf(q, "status", status)
	var out httpapi.GuidelineListResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/guidelines", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Guidelines, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, v any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
	var payload httpapi.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err == nil && payload.Error != "" {
		apiErr.Message = payload.Error
	}
	return apiErr
}

// IsNotFound reports whether err is a 404 reply.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}
