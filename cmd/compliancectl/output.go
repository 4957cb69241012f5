package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"CampaignCompliance/internal/httpapi"
)

type outputFormat string

const (
	outputTable outputFormat = "table"
	outputJSON  outputFormat = "json"
	outputYAML  outputFormat = "yaml"
)

func parseOutputFormat(s string) (outputFormat, error) {
	switch strings.ToLower(s) {
	case "table", "":
		return outputTable, nil
	case "json":
		return outputJSON, nil
	case "yaml":
		return outputYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (supported: table, json, yaml)", s)
	}
}

// printOutput renders data as JSON/YAML, or as a table built from headers and rows.
func printOutput(w io.Writer, data any, headers []string, rows [][]string) error {
	format, err := parseOutputFormat(outputFlag)
	if err != nil {
		return err
	}
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case outputYAML:
		// Round trip through JSON so YAML keys match the API field names.
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(generic)
	default:
		return printTable(w, headers, rows)
	}
}

func printTable(w io.Writer, headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func analysisRows(a httpapi.AnalysisDTO) [][]string {
	rows := make([][]string, 0, len(a.Layers))
	for _, l := range a.Layers {
		rows = append(rows, []string{
			strconv.Itoa(l.LayerNumber),
			l.LayerName,
			string(l.Status),
			scoreText(l.Score),
			strconv.Itoa(len(l.Issues)),
		})
	}
	return rows
}

func analysisHeadline(a httpapi.AnalysisDTO) string {
	title := ""
	if a.Campaign != nil {
		title = a.Campaign.Title
	}
	return fmt.Sprintf("%s  %q  score=%d  status=%s", a.ComplianceCode, title, a.OverallScore, a.OverallStatus)
}

func scoreText(score *int) string {
	if score == nil {
		return "-"
	}
	return strconv.Itoa(*score)
}
