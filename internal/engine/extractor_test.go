package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yangwenmai/taskforge/internal/model"
)

func TestHTTPExtractor_PlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Write([]byte("name,score\n\n\n\nalice,  10\n"))
	}))
	defer srv.Close()

	got, err := NewHTTPExtractor().Extract(context.Background(), srv.URL+"/data.csv")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.NormalizedText != "name,score\n\nalice, 10" {
		t.Errorf("NormalizedText = %q", got.NormalizedText)
	}
}

func TestHTTPExtractor_NotFound(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		http.NotFound(w, nil)
	}))
	defer srv.Close()

	e := NewHTTPExtractor()
	e.retryDelay = time.Millisecond
	if _, err := e.Extract(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 404")
	}
	if hits != maxRetries {
		t.Errorf("hits = %d, want %d", hits, maxRetries)
	}
}

func TestSummarizeAttachments_FetchFailureFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewHTTPExtractor()
	e.retryDelay = time.Millisecond
	lines := summarizeAttachments(context.Background(), e, []model.Attachment{
		{Name: "broken", URL: srv.URL + "/x"},
		{Name: "notes.txt", URL: "data:,hello"},
	})
	if len(lines) != 2 {
		t.Fatalf("lines = %v", lines)
	}
	if lines[0] != "broken: "+srv.URL+"/x" {
		t.Errorf("lines[0] = %q", lines[0])
	}
	if !strings.Contains(lines[1], "text/plain") {
		t.Errorf("lines[1] = %q", lines[1])
	}
}
