package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"CampaignCompliance/internal/client"
	"CampaignCompliance/internal/httpapi"
	"CampaignCompliance/internal/poller"
)

var layerHeaders = []string{"LAYER", "NAME", "STATUS", "SCORE", "ISSUES"}

func newSubmitCmd() *cobra.Command {
	var (
		req          httpapi.SubmitAnalysisRequest
		contentFile  string
		watch        bool
		untilSettled bool
		interval     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit campaign content for analysis",
		Long: `Submit campaign content for the three-layer compliance analysis.

Content comes from --content, --file (use - for stdin) or --file-url.
With --watch the command follows the analysis until it finishes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if contentFile != "" {
				raw, err := readInput(cmd, contentFile)
				if err != nil {
					return err
				}
				req.CampaignContent = raw
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			res, err := api.SubmitAnalysis(ctx, req)
			if err != nil {
				return fmt.Errorf("submit analysis: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "accepted %s (analysis %s)\n", res.ComplianceCode, res.AnalysisID)

			if !watch {
				return printOutput(cmd.OutOrStdout(), res,
					[]string{"ANALYSIS", "CODE"}, [][]string{{res.AnalysisID, res.ComplianceCode}})
			}
			return watchAnalysis(ctx, cmd, res.AnalysisID, interval, untilSettled)
		},
	}

	cmd.Flags().StringVar(&req.CampaignContent, "content", "", "Campaign text")
	cmd.Flags().StringVar(&contentFile, "file", "", "Read campaign text from a file (- for stdin)")
	cmd.Flags().StringVar(&req.FileURL, "file-url", "", "URL of a campaign document to fetch server-side")
	cmd.Flags().StringVar(&req.Title, "title", "", "Campaign title (defaults to the first line)")
	cmd.Flags().StringVar(&req.CampaignType, "type", "", "Campaign type, e.g. mutual_fund")
	cmd.Flags().StringSliceVarP(&req.SelectedGuidelines, "guideline", "g", nil, "Guideline id (repeatable)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Follow the analysis after submitting")
	cmd.Flags().BoolVar(&untilSettled, "until-settled", true, "With --watch, stop once the automated layers finish")
	cmd.Flags().DurationVar(&interval, "interval", poller.DefaultInterval, "Polling interval for --watch")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status ANALYSIS_ID",
		Short: "Show the current state of an analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			a, err := api.GetAnalysis(ctx, args[0])
			if err != nil {
				return fmt.Errorf("get analysis: %w", err)
			}
			return printAnalysis(cmd, a)
		},
	}
}

func newWatchCmd() *cobra.Command {
	var (
		interval     time.Duration
		untilSettled bool
	)
	cmd := &cobra.Command{
		Use:   "watch ANALYSIS_ID",
		Short: "Poll an analysis until every layer is completed or failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			return watchAnalysis(ctx, cmd, args[0], interval, untilSettled)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", poller.DefaultInterval, "Polling interval")
	cmd.Flags().BoolVar(&untilSettled, "until-settled", false, "Stop once layers 1 and 2 are done, even if human review is pending")
	return cmd
}

func newAnalysesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyses",
		Short: "Work with analyses",
	}

	var (
		status       string
		campaignType string
		limit        int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List analyses, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			items, err := api.ListAnalyses(ctx, status, campaignType, limit)
			if err != nil {
				return fmt.Errorf("list analyses: %w", err)
			}
			rows := make([][]string, 0, len(items))
			for _, a := range items {
				rows = append(rows, []string{
					a.ComplianceCode,
					a.CampaignTitle,
					a.CampaignType,
					strconv.Itoa(a.OverallScore),
					string(a.OverallStatus),
					a.CreatedAt.Format(time.RFC3339),
					a.ID,
				})
			}
			return printOutput(cmd.OutOrStdout(), items,
				[]string{"CODE", "TITLE", "TYPE", "SCORE", "STATUS", "CREATED", "ID"}, rows)
		},
	}
	list.Flags().StringVar(&status, "status", "", "Filter by overall status")
	list.Flags().StringVar(&campaignType, "type", "", "Filter by campaign type")
	list.Flags().IntVar(&limit, "limit", 0, "Maximum number of rows")

	cmd.AddCommand(list)
	return cmd
}

func watchAnalysis(ctx context.Context, cmd *cobra.Command, id string, interval time.Duration, untilSettled bool) error {
	stderr := cmd.ErrOrStderr()
	last := ""
	a, err := api.WatchAnalysis(ctx, id, client.WatchOptions{
		Interval:     interval,
		UntilSettled: untilSettled,
		OnUpdate: func(a httpapi.AnalysisDTO) {
			line := progressLine(a)
			if line != last {
				fmt.Fprintln(stderr, line)
				last = line
			}
		},
	})
	if err != nil {
		return fmt.Errorf("watch analysis: %w", err)
	}
	return printAnalysis(cmd, a)
}

func progressLine(a httpapi.AnalysisDTO) string {
	line := string(a.OverallStatus)
	for _, l := range a.Layers {
		line += fmt.Sprintf("  L%d=%s", l.LayerNumber, l.Status)
	}
	return line
}

func printAnalysis(cmd *cobra.Command, a httpapi.AnalysisDTO) error {
	if format, _ := parseOutputFormat(outputFlag); format == outputTable {
		fmt.Fprintln(cmd.OutOrStdout(), analysisHeadline(a))
	}
	return printOutput(cmd.OutOrStdout(), a, layerHeaders, analysisRows(a))
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		raw, err := readAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return raw, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(raw), nil
}
