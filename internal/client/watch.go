package client

import (
	"context"
	"time"

	"CampaignCompliance/internal/httpapi"
	"CampaignCompliance/internal/poller"
)

// WatchOptions controls WatchAnalysis.
type WatchOptions struct {
	Interval time.Duration
	// UntilSettled stops once layers 1 and 2 are terminal, so runs parked for
	// human review do not poll forever.
	UntilSettled bool
	OnUpdate     func(httpapi.AnalysisDTO)
}

// WatchAnalysis polls an analysis until every layer is terminal, or until it is
// settled when opts.UntilSettled is set. A failed fetch ends the watch.
func (c *Client) WatchAnalysis(ctx context.Context, analysisID string, opts WatchOptions) (httpapi.AnalysisDTO, error) {
	done := httpapi.AnalysisDTO.AllLayersTerminal
	if opts.UntilSettled {
		done = httpapi.AnalysisDTO.Settled
	}
	return poller.Poll(ctx, func(ctx context.Context) (httpapi.AnalysisDTO, error) {
		return c.GetAnalysis(ctx, analysisID)
	}, poller.Options[httpapi.AnalysisDTO]{
		Interval: opts.Interval,
		Done:     done,
		OnUpdate: opts.OnUpdate,
	})
}
