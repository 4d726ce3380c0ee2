package engine

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yangwenmai/taskforge/internal/model"
)

// ExecutableCheckPrefix marks checks that are evaluated as in-page JavaScript.
const ExecutableCheckPrefix = "js:"

// maxAttachmentText caps extracted attachment text per attachment.
const maxAttachmentText = 4000

const outputContract = `Output ONLY one valid JSON object with exactly these four string keys (no markdown, no explanation):
{"index_html": "...", "style_css": "...", "script_js": "...", "readme_md": "..."}

Rules:
- index_html links style.css and script.js with relative paths
- every value is a complete file, never a placeholder or diff
- escape newlines and quotes inside values so the object is valid JSON
- readme_md documents the app, how to use it, and its MIT license`

func generateSystemPrompt() string {
	return `You are a senior front-end engineer. Build a complete, working static web application that runs on GitHub Pages without a build step.

` + outputContract
}

func reviseSystemPrompt() string {
	return `You are a senior front-end engineer revising an existing static web application.
Preserve every behavior that already works, change only what the new brief and checks require, and return the full updated files.

` + outputContract
}

// promptInput is the seed-substituted material for one prompt.
type promptInput struct {
	Brief       string
	Checks      []string
	Attachments []string
	Prior       *model.ArtifactSet
}

func buildUserPrompt(in promptInput) string {
	var b strings.Builder

	if in.Prior != nil {
		b.WriteString("Current application files (JSON):\n")
		b.WriteString(mustJSON(in.Prior))
		b.WriteString("\n\nRevision brief:\n")
	} else {
		b.WriteString("Brief:\n")
	}
	b.WriteString(in.Brief)
	b.WriteString("\n\n")

	b.WriteString(formatChecks(in.Checks))

	if len(in.Attachments) > 0 {
		b.WriteString("\nAttachments:\n")
		for _, a := range in.Attachments {
			b.WriteString("- ")
			b.WriteString(a)
			b.WriteString("\n")
		}
		b.WriteString("Inline attachments are not included here; the app must decode and use them as the brief describes.\n")
	}
	return b.String()
}

// formatChecks lists checks as numbered pass/fail requirements and flags
// executable ones.
func formatChecks(checks []string) string {
	var b strings.Builder
	b.WriteString("The result is graded against these checks; each must pass:\n")
	executable := false
	for i, c := range checks {
		if strings.HasPrefix(strings.TrimSpace(c), ExecutableCheckPrefix) {
			executable = true
			fmt.Fprintf(&b, "%d. [runs in the page] %s\n", i+1, c)
			continue
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, c)
	}
	if executable {
		b.WriteString("Checks marked [runs in the page] are executed as JavaScript against the loaded page; use the exact element ids and structure they reference.\n")
	}
	return b.String()
}

// truncateRunes truncates s to maxRunes runes (Unicode-safe).
func truncateRunes(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes]) + "\n... [truncated]"
}

// mustJSON marshals v to indented JSON without HTML escaping. It panics on
// error because callers only pass known struct types that are guaranteed to
// be serializable.
func mustJSON(v any) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		panic(fmt.Sprintf("engine: json.Marshal failed on known type: %v", err))
	}
	return strings.TrimSuffix(b.String(), "\n")
}
