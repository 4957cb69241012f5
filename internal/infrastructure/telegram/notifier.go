// Package telegram announces analyses that wait for a human reviewer.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"CampaignCompliance/internal/ports"
)

const defaultAPIBase = "https://api.telegram.org"

// Notifier posts review requests to one chat through the Bot API.
type Notifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

var _ ports.ReviewNotifier = (*Notifier)(nil)

type sendMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type apiReply struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// NewNotifier builds a notifier for the given bot and chat.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// WithAPIBase points the notifier at a different Bot API host.
func (n *Notifier) WithAPIBase(base string) *Notifier {
	n.apiBase = strings.TrimRight(base, "/")
	return n
}

// NotifyReviewQueued sends one Markdown message for the parked analysis.
func (n *Notifier) NotifyReviewQueued(ctx context.Context, review ports.ReviewRequest) error {
	if n.botToken == "" || n.chatID == "" {
		return fmt.Errorf("telegram notifier: bot token and chat id are required")
	}

	body, err := json.Marshal(sendMessage{ChatID: n.chatID, Text: reviewMessage(review), ParseMode: "Markdown"})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	var reply apiReply
	decodeErr := json.NewDecoder(resp.Body).Decode(&reply)
	if resp.StatusCode != http.StatusOK || !reply.OK {
		if reply.Description != "" {
			return fmt.Errorf("telegram rejected message (%s): %s", resp.Status, reply.Description)
		}
		return fmt.Errorf("telegram rejected message: %s", resp.Status)
	}
	if decodeErr != nil {
		return fmt.Errorf("decode reply: %w", decodeErr)
	}
	return nil
}

func reviewMessage(review ports.ReviewRequest) string {
	var b strings.Builder
	b.WriteString("*Human validation required*\n")
	fmt.Fprintf(&b, "Code: `%s`\n", review.ComplianceCode)
	if review.CampaignTitle != "" {
		fmt.Fprintf(&b, "Campaign: %s\n", review.CampaignTitle)
	}
	fmt.Fprintf(&b, "Score: %d (%s)\n", review.Score, review.Status)
	fmt.Fprintf(&b, "Analysis: `%s`", review.AnalysisID)
	return b.String()
}
