package parser

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"CampaignCompliance/internal/ports"
)

const maxDocumentBytes = 5 << 20

// blockSelector lists elements that end a line of extracted text.
const blockSelector = "p, li, h1, h2, h3, h4, h5, h6, tr, br, div, section, article, blockquote, pre"

// DocumentFetcher downloads guideline documents and reduces them to plain text.
type DocumentFetcher struct {
	client *http.Client
}

var _ ports.DocumentFetcher = (*DocumentFetcher)(nil)

// NewDocumentFetcher wires an HTTP client; nil selects a client with a 20s timeout.
func NewDocumentFetcher(client *http.Client) *DocumentFetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &DocumentFetcher{client: client}
}

// FetchText downloads rawURL. HTML bodies are converted to text; other text bodies are returned trimmed.
func (f *DocumentFetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", fmt.Errorf("unsupported document url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "CampaignCompliance/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("document server returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	if len(body) > maxDocumentBytes {
		return "", fmt.Errorf("document exceeds %d bytes", maxDocumentBytes)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	text := string(body)
	switch {
	case mediaType == "text/html" || mediaType == "application/xhtml+xml" || LooksLikeHTML(text):
		return HTMLToText(text)
	case mediaType == "" || strings.HasPrefix(mediaType, "text/") || mediaType == "application/json":
		return strings.TrimSpace(text), nil
	default:
		return "", fmt.Errorf("unsupported document type %s", mediaType)
	}
}

// PlainText converts inline HTML to text and trims anything else.
func (f *DocumentFetcher) PlainText(content string) (string, error) {
	if LooksLikeHTML(content) {
		return HTMLToText(content)
	}
	return strings.TrimSpace(content), nil
}

// LooksLikeHTML reports whether s appears to be an HTML document or fragment.
func LooksLikeHTML(s string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(s))
	if !strings.HasPrefix(trimmed, "<") {
		return false
	}
	for _, marker := range []string{"<!doctype html", "<html", "<body", "<p", "<div", "<h1", "<ul", "<table"} {
		if strings.Contains(trimmed, marker) {
			return true
		}
	}
	return false
}

// HTMLToText strips markup, scripts and styles, keeping one line per block element.
func HTMLToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}

	doc.Find("script, style, noscript, head, nav, footer").Remove()
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		s.AfterHtml("\n")
	})

	lines := strings.Split(doc.Text(), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n"), nil
}
