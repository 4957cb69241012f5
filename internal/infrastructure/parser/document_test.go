package parser

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTMLToText(t *testing.T) {
	t.Parallel()

	html := `
	<html>
	  <head><title>SEBI circular</title><style>p { color: red }</style></head>
	  <body>
	    <h1>Advertising Code</h1>
	    <p>Mutual fund   investments are subject to <b>market risks</b>.</p>
	    <ul><li>No guaranteed returns</li><li>Show risk-o-meter</li></ul>
	    <script>track()</script>
	  </body>
	</html>`

	got, err := HTMLToText(html)
	if err != nil {
		t.Fatalf("HTMLToText returned error: %v", err)
	}

	want := "Advertising Code\nMutual fund investments are subject to market risks.\nNo guaranteed returns\nShow risk-o-meter"
	if got != want {
		t.Fatalf("unexpected text:\n%q\nwant\n%q", got, want)
	}
}

func TestLooksLikeHTML(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"<p>Use the logo</p>":           true,
		"<!DOCTYPE html><html></html>":  true,
		"Plain rules: no guarantees":    false,
		"<note>not really html</note>":  false,
		"   <DIV>spaced markup</DIV>  ": true,
	}
	for in, want := range cases {
		if got := LooksLikeHTML(in); got != want {
			t.Fatalf("LooksLikeHTML(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFetchText(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/page.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body><p>Brand blue is #0044FF</p></body></html>"))
	})
	mux.HandleFunc("/rules.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("  disclose all fees \n"))
	})
	mux.HandleFunc("/deck.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	fetcher := NewDocumentFetcher(srv.Client())
	ctx := context.Background()

	text, err := fetcher.FetchText(ctx, srv.URL+"/page.html")
	if err != nil || text != "Brand blue is #0044FF" {
		t.Fatalf("html fetch = %q, %v", text, err)
	}

	text, err = fetcher.FetchText(ctx, srv.URL+"/rules.txt")
	if err != nil || text != "disclose all fees" {
		t.Fatalf("text fetch = %q, %v", text, err)
	}

	if _, err := fetcher.FetchText(ctx, srv.URL+"/deck.pdf"); err == nil {
		t.Fatalf("expected error for binary document")
	}
	if _, err := fetcher.FetchText(ctx, srv.URL+"/missing"); err == nil {
		t.Fatalf("expected error for 404")
	}
	if _, err := fetcher.FetchText(ctx, "ftp://example.com/file"); err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
}

func TestPlainText(t *testing.T) {
	t.Parallel()

	f := NewDocumentFetcher(nil)
	got, err := f.PlainText("<div>Logo on <i>white</i></div>")
	if err != nil || got != "Logo on white" {
		t.Fatalf("PlainText(html) = %q, %v", got, err)
	}
	got, err = f.PlainText("  keep as is  ")
	if err != nil || got != "keep as is" {
		t.Fatalf("PlainText(text) = %q, %v", got, err)
	}
}

func TestFetchTextRejectsOversizedDocument(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/exact.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write(bytes.Repeat([]byte("a"), maxDocumentBytes))
	})
	mux.HandleFunc("/huge.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write(bytes.Repeat([]byte("a"), maxDocumentBytes))
		_, _ = w.Write([]byte("TAIL-RULE"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	fetcher := NewDocumentFetcher(srv.Client())
	ctx := context.Background()

	text, err := fetcher.FetchText(ctx, srv.URL+"/exact.txt")
	if err != nil || len(text) != maxDocumentBytes {
		t.Fatalf("document at the limit = %d bytes, %v", len(text), err)
	}

	text, err = fetcher.FetchText(ctx, srv.URL+"/huge.txt")
	if err == nil {
		t.Fatalf("expected error for oversized document, got %d bytes", len(text))
	}
	if !strings.Contains(err.Error(), "exceeds") {
		t.Fatalf("unexpected error %v", err)
	}
}
