package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CampaignCompliance/internal/domain"
	"CampaignCompliance/internal/httpapi"
)

func intPtr(v int) *int { return &v }

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	analysis := httpapi.AnalysisDTO{
		ID:             "a-1",
		ComplianceCode: "CEN-2026-0042",
		OverallScore:   89,
		OverallStatus:  domain.OverallMinorIssues,
		Campaign:       &httpapi.CampaignDTO{Title: "Spring fund launch"},
		Layers: []httpapi.LayerDTO{
			{LayerNumber: 1, LayerName: "Initial AI Scan", Status: domain.LayerCompleted, Score: intPtr(96)},
			{LayerNumber: 2, LayerName: "Regulatory Compliance Check", Status: domain.LayerCompleted, Score: intPtr(82)},
			{LayerNumber: 3, LayerName: "Human Validation", Status: domain.LayerCompleted},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analyses/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.PathValue("id") != analysis.ID {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(httpapi.ErrorResponse{Error: "analysis not found"})
			return
		}
		_ = json.NewEncoder(w).Encode(httpapi.AnalysisResponse{Success: true, Analysis: analysis})
	})
	mux.HandleFunc("POST /api/v1/guidelines", func(w http.ResponseWriter, r *http.Request) {
		var req httpapi.UploadGuidelineRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(httpapi.GuidelineResponse{Success: true, Guideline: httpapi.GuidelineDTO{
			ID:               "g-1",
			Name:             req.Name,
			Type:             domain.GuidelineType(req.Type),
			ProcessedContent: req.Content,
			ExtractionStatus: domain.ExtractionCompleted,
		}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestStatusTable(t *testing.T) {
	srv := testServer(t)

	out, err := run(t, "", "--server", srv.URL, "status", "a-1")
	require.NoError(t, err)
	assert.Contains(t, out, `CEN-2026-0042  "Spring fund launch"  score=89`)
	assert.Contains(t, out, "LAYER")
	assert.Contains(t, out, "Regulatory Compliance Check")
	assert.Contains(t, out, "82")
}

func TestStatusJSONAndYAML(t *testing.T) {
	srv := testServer(t)

	out, err := run(t, "", "--server", srv.URL, "-o", "json", "status", "a-1")
	require.NoError(t, err)
	var decoded httpapi.AnalysisDTO
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, 89, decoded.OverallScore)
	require.Len(t, decoded.Layers, 3)

	out, err = run(t, "", "--server", srv.URL, "-o", "yaml", "status", "a-1")
	require.NoError(t, err)
	assert.Contains(t, out, "compliance_code: CEN-2026-0042")
}

func TestStatusNotFound(t *testing.T) {
	srv := testServer(t)

	_, err := run(t, "", "--server", srv.URL, "status", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis not found")
}

func TestUploadFromStdin(t *testing.T) {
	srv := testServer(t)

	out, err := run(t, "No guaranteed returns.", "--server", srv.URL, "guidelines", "upload",
		"--name", "SEBI ads", "--type", "sebi", "--file", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "g-1")
	assert.Contains(t, out, "SEBI ads")
	assert.Contains(t, out, "sebi")
}

func TestRejectsUnknownOutput(t *testing.T) {
	_, err := run(t, "", "-o", "xml", "status", "a-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestParseOutputFormat(t *testing.T) {
	for in, want := range map[string]outputFormat{"": outputTable, "TABLE": outputTable, "json": outputJSON, "yaml": outputYAML} {
		got, err := parseOutputFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
