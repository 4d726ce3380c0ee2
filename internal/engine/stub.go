package engine

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/yangwenmai/taskforge/internal/model"
)

// StubExtractor returns fixed extraction results (for development/testing).
type StubExtractor struct{}

func (e *StubExtractor) Extract(_ context.Context, url string) (*ExtractedContent, error) {
	return &ExtractedContent{
		NormalizedText: "Stub content fetched from " + url + ".",
		WordCount:      4,
	}, nil
}

// StubModelClient returns a canned artifact set (for development/testing).
// It records the prompts of the last call.
type StubModelClient struct {
	// Response overrides the canned JSON when non-empty.
	Response string
	// Err is returned instead of a response when set.
	Err error

	mu         sync.Mutex
	calls      int
	lastSystem string
	lastUser   string
}

func (m *StubModelClient) Complete(_ context.Context, system, user string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.lastSystem, m.lastUser = system, user
	m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	if m.Response != "" {
		return m.Response, nil
	}

	title := "Generated App"
	if strings.Contains(system, "revising") {
		title = "Revised App"
	}
	set := model.ArtifactSet{
		IndexHTML: "<!DOCTYPE html>\n<html><head><title>" + title + "</title><link rel=\"stylesheet\" href=\"style.css\"></head>\n<body><h1 id=\"title\">" + title + "</h1><script src=\"script.js\"></script></body></html>",
		StyleCSS:  "body { font-family: sans-serif; }",
		ScriptJS:  "document.getElementById('title').dataset.ready = 'true';",
		ReadmeMD:  "# " + title + "\n\nStub output.\n\n## License\n\nMIT",
	}
	b, _ := json.Marshal(set)
	return string(b), nil
}

// Calls returns how many times Complete ran.
func (m *StubModelClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastPrompts returns the system and user prompts of the last call.
func (m *StubModelClient) LastPrompts() (system, user string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSystem, m.lastUser
}
