package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"CampaignCompliance/internal/httpapi"
)

func newGuidelinesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guidelines",
		Short: "Upload and list compliance guidelines",
	}
	cmd.AddCommand(newGuidelinesListCmd(), newGuidelinesUploadCmd())
	return cmd
}

func newGuidelinesListCmd() *cobra.Command {
	var guidelineType, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List guidelines, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			items, err := api.ListGuidelines(ctx, guidelineType, status)
			if err != nil {
				return fmt.Errorf("list guidelines: %w", err)
			}
			rows := make([][]string, 0, len(items))
			for _, g := range items {
				rows = append(rows, []string{g.ID, g.Name, string(g.Type), string(g.ExtractionStatus), fmt.Sprint(len(g.ProcessedContent))})
			}
			return printOutput(cmd.OutOrStdout(), items, []string{"ID", "NAME", "TYPE", "STATUS", "CHARS"}, rows)
		},
	}
	cmd.Flags().StringVar(&guidelineType, "type", "", "Filter by type: brand, sebi, government, internal")
	cmd.Flags().StringVar(&status, "status", "", "Filter by extraction status")
	return cmd
}

func newGuidelinesUploadCmd() *cobra.Command {
	var (
		req         httpapi.UploadGuidelineRequest
		contentFile string
	)
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a guideline document",
		RunE: func(cmd *cobra.Command, args []string) error {
			if contentFile != "" {
				raw, err := readInput(cmd, contentFile)
				if err != nil {
					return err
				}
				req.Content = raw
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			g, err := api.UploadGuideline(ctx, req)
			if err != nil {
				return fmt.Errorf("upload guideline: %w", err)
			}
			return printOutput(cmd.OutOrStdout(), g,
				[]string{"ID", "NAME", "TYPE", "STATUS"},
				[][]string{{g.ID, g.Name, string(g.Type), string(g.ExtractionStatus)}})
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "Guideline name")
	cmd.Flags().StringVar(&req.Type, "type", "", "Guideline type: brand, sebi, government, internal")
	cmd.Flags().StringVar(&req.Content, "content", "", "Guideline text")
	cmd.Flags().StringVar(&contentFile, "file", "", "Read guideline text from a file (- for stdin)")
	cmd.Flags().StringVar(&req.FileURL, "file-url", "", "URL of the guideline document to fetch server-side")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func readAll(r io.Reader) (string, error) {
	raw, err := io.ReadAll(r)
	return string(raw), err
}
