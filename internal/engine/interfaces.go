package engine

import "context"

// ModelClient abstracts LLM calls. Implementations can wrap OpenAI, local models, etc.
// The system prompt carries the output contract; user carries the task.
type ModelClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ContentExtractor abstracts web content extraction.
type ContentExtractor interface {
	Extract(ctx context.Context, url string) (*ExtractedContent, error)
}

// ExtractedContent holds the result of content extraction.
type ExtractedContent struct {
	Title          string `json:"title,omitempty"`
	NormalizedText string `json:"normalized_text"`
	WordCount      int    `json:"word_count"`
}
