package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"CampaignCompliance/internal/client"
	"CampaignCompliance/internal/config"
	"CampaignCompliance/internal/httpapi"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Load()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Database.Driver = config.DriverSQLite
	cfg.Database.DSN = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	cfg.LLM.Provider = config.ProviderOpenAI
	cfg.LLM.APIKey = ""
	cfg.Extraction = config.ExtractionConfig{}
	cfg.Notifications = config.NotificationConfig{}
	cfg.Sweeper.Interval = time.Hour
	return cfg
}

func TestHandlerWiring(t *testing.T) {
	application, err := New(context.Background(), testConfig(t), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	srv := httptest.NewServer(application.Handler())
	defer srv.Close()
	c := client.New(srv.URL, srv.Client())
	ctx := context.Background()

	g, err := c.UploadGuideline(ctx, httpapi.UploadGuidelineRequest{
		Name:    "SEBI advertising code",
		Type:    "sebi",
		Content: "<p>Mutual fund investments are subject to market risks.</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, "Mutual fund investments are subject to market risks.", g.ProcessedContent)
	assert.Equal(t, "none", g.Metadata["extractor"])

	list, err := c.ListGuidelines(ctx, "sebi", "completed")
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = c.SubmitAnalysis(ctx, httpapi.SubmitAnalysisRequest{
		CampaignContent:    "Invest now for guaranteed returns!",
		CampaignType:       "mutual_fund",
		SelectedGuidelines: []string{g.ID},
	})
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode, "missing llm key rejects the submission")

	analyses, err := c.ListAnalyses(ctx, "", "", 0)
	require.NoError(t, err)
	assert.Empty(t, analyses)

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = "oracle"

	_, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "oracle"))
}

func TestRunStopsOnCancel(t *testing.T) {
	application, err := New(context.Background(), testConfig(t), zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
