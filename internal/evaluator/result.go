package evaluator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"CampaignCompliance/internal/domain"
)

// ParseEvaluation validates a raw model response against the layer output contract.
// Any deviation is reported as domain.ErrMalformedEvaluation; nothing is coerced.
func ParseEvaluation(raw string) (domain.Evaluation, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &fields); err != nil {
		return domain.Evaluation{}, malformed("response is not a JSON object: %v", err)
	}

	score, err := parseScore(fields["score"])
	if err != nil {
		return domain.Evaluation{}, err
	}

	issues, err := parseIssues(fields["issues"])
	if err != nil {
		return domain.Evaluation{}, err
	}

	var warnings []json.RawMessage
	if err := decodeArray(fields["warnings"], "warnings", &warnings); err != nil {
		return domain.Evaluation{}, err
	}

	var recommendations []string
	if err := decodeArray(fields["recommendations"], "recommendations", &recommendations); err != nil {
		return domain.Evaluation{}, err
	}

	return domain.Evaluation{
		Score:           score,
		Issues:          issues,
		Warnings:        warnings,
		Recommendations: recommendations,
	}, nil
}

func parseScore(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, malformed("score is missing")
	}
	if raw[0] == '"' {
		return 0, malformed("score must be a number, got %s", raw)
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, malformed("score must be a number: %v", err)
	}
	v, err := n.Int64()
	if err != nil {
		return 0, malformed("score must be an integer, got %s", n)
	}
	if v < 0 || v > 100 {
		return 0, malformed("score %d out of range [0,100]", v)
	}
	return int(v), nil
}

func parseIssues(raw json.RawMessage) ([]domain.Issue, error) {
	var items []map[string]any
	if err := decodeArray(raw, "issues", &items); err != nil {
		return nil, err
	}

	issues := make([]domain.Issue, 0, len(items))
	for i, item := range items {
		issue := domain.Issue{
			Type:               stringField(item, "type"),
			Severity:           stringField(item, "severity"),
			Description:        stringField(item, "description"),
			SuggestedFix:       stringField(item, "suggested_fix", "suggestion", "fix"),
			GuidelineReference: stringField(item, "guideline_reference", "guideline"),
		}
		if issue.Type == "" || issue.Severity == "" || issue.Description == "" {
			return nil, malformed("issue %d requires type, severity and description", i)
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

func decodeArray(raw json.RawMessage, name string, dst any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return malformed("%s is missing", name)
	}
	if raw[0] != '[' {
		return malformed("%s must be an array", name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return malformed("%s: %v", name, err)
	}
	return nil
}

func stringField(item map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := item[key].(string); ok {
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrMalformedEvaluation, fmt.Sprintf(format, args...))
}
