package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	nurl "net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

const (
	// maxRetries is the number of fetch attempts before giving up.
	maxRetries = 2
	// maxBodySize is the maximum HTTP response body size (2MB).
	maxBodySize = 2 * 1024 * 1024
)

// HTTPExtractor fetches attachment URLs and reduces them to readable text.
// HTML goes through go-readability; other text types are returned as-is.
type HTTPExtractor struct {
	client     *http.Client
	retryDelay time.Duration
}

// NewHTTPExtractor creates a new HTTP-based content extractor.
func NewHTTPExtractor() *HTTPExtractor {
	return &HTTPExtractor{
		client: &http.Client{
			Timeout: 20 * time.Second,
		},
		retryDelay: time.Second,
	}
}

// Extract fetches the URL and extracts the main content with one retry.
func (e *HTTPExtractor) Extract(ctx context.Context, url string) (*ExtractedContent, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * e.retryDelay):
			}
		}

		content, err := e.doExtract(ctx, url)
		if err == nil {
			return content, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", maxRetries, lastErr)
}

func (e *HTTPExtractor) doExtract(ctx context.Context, url string) (*ExtractedContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "taskforge/1.0 (+attachment fetcher)")
	req.Header.Set("Accept", "text/html,text/plain,application/json;q=0.9,*/*;q=0.5")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch {
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		parsedURL, _ := nurl.Parse(url)
		article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
		if err != nil {
			return nil, fmt.Errorf("readability: %w", err)
		}
		text := normalizeText(article.TextContent)
		return &ExtractedContent{Title: article.Title, NormalizedText: text, WordCount: len(strings.Fields(text))}, nil
	case strings.HasPrefix(mediaType, "text/") || mediaType == "application/json":
		text := normalizeText(string(body))
		return &ExtractedContent{NormalizedText: text, WordCount: len(strings.Fields(text))}, nil
	default:
		return nil, fmt.Errorf("unsupported content type %q", mediaType)
	}
}

var multiSpace = regexp.MustCompile(`[ \t]+`)
var multiNewline = regexp.MustCompile(`\n{3,}`)

func normalizeText(s string) string {
	s = strings.TrimSpace(s)
	s = multiSpace.ReplaceAllString(s, " ")
	s = multiNewline.ReplaceAllString(s, "\n\n")
	return s
}
