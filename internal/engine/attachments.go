package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yangwenmai/taskforge/internal/model"
)

// summarizeAttachments describes each attachment in one entry. Data URLs are
// never embedded; http(s) URLs are fetched when an extractor is available and
// fall back to a name and URL line on failure.
func summarizeAttachments(ctx context.Context, ex ContentExtractor, atts []model.Attachment) []string {
	out := make([]string, 0, len(atts))
	for _, a := range atts {
		if a.IsDataURL() {
			out = append(out, fmt.Sprintf("%s (inline data URL, type %s)", a.Name, a.MediaType()))
			continue
		}
		line := fmt.Sprintf("%s: %s", a.Name, a.URL)
		if ex == nil || !isHTTPURL(a.URL) {
			out = append(out, line)
			continue
		}
		content, err := ex.Extract(ctx, a.URL)
		if err != nil || content.NormalizedText == "" {
			slog.Warn("attachment fetch failed, using reference only", "attachment", a.Name, "error", err)
			out = append(out, line)
			continue
		}
		out = append(out, line+"\n  Content excerpt:\n  "+
			strings.ReplaceAll(truncateRunes(content.NormalizedText, maxAttachmentText), "\n", "\n  "))
	}
	return out
}

func isHTTPURL(u string) bool {
	l := strings.ToLower(u)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}
