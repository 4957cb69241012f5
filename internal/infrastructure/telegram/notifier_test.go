package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"CampaignCompliance/internal/domain"
	"CampaignCompliance/internal/ports"
)

func TestNotifyReviewQueued(t *testing.T) {
	t.Parallel()

	var gotText, gotChat string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottoken/sendMessage" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var msg sendMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil || msg.ParseMode != "Markdown" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		gotChat = msg.ChatID
		gotText = msg.Text
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer srv.Close()

	n := NewNotifier("token", "chat-1").WithAPIBase(srv.URL + "/")
	err := n.NotifyReviewQueued(context.Background(), ports.ReviewRequest{
		AnalysisID:     "a-1",
		ComplianceCode: "CEN-2026-0042",
		CampaignTitle:  "Festive SIP push",
		Score:          55,
		Status:         domain.OverallMajorIssues,
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if gotChat != "chat-1" {
		t.Fatalf("unexpected chat %q", gotChat)
	}
	for _, want := range []string{"CEN-2026-0042", "Festive SIP push", "55 (major_issues)"} {
		if !strings.Contains(gotText, want) {
			t.Fatalf("message %q does not mention %q", gotText, want)
		}
	}
}

func TestNotifyReviewQueuedErrors(t *testing.T) {
	t.Parallel()

	if err := NewNotifier("", "").NotifyReviewQueued(context.Background(), ports.ReviewRequest{}); err == nil {
		t.Fatalf("expected misconfiguration error")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Forbidden: bot was blocked by the user"}`))
	}))
	defer srv.Close()

	err := NewNotifier("t", "c").WithAPIBase(srv.URL).NotifyReviewQueued(context.Background(), ports.ReviewRequest{})
	if err == nil || !strings.Contains(err.Error(), "bot was blocked") {
		t.Fatalf("expected rejection with description, got %v", err)
	}
}
