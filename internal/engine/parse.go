package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/yangwenmai/taskforge/internal/model"
)

// artifactKeys are the four keys the backend must return.
var artifactKeys = []string{"index_html", "style_css", "script_js", "readme_md"}

var fieldPatterns = func() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp, len(artifactKeys))
	for _, k := range artifactKeys {
		m[k] = regexp.MustCompile(`(?s)"` + k + `"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	}
	return m
}()

// ParseArtifacts turns a raw backend response into an artifact set.
// It tries, in order: strict JSON, JSON after escaping raw control characters
// inside strings, and per-key extraction (which requires a non-empty index_html).
func ParseArtifacts(raw string) (*model.ArtifactSet, error) {
	text := stripCodeFences(raw)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", model.ErrGenerationFailed)
	}

	var set model.ArtifactSet
	if err := json.Unmarshal([]byte(text), &set); err == nil {
		return &set, nil
	}

	if err := json.Unmarshal([]byte(escapeControlInStrings(text)), &set); err == nil {
		return &set, nil
	}

	if extracted, ok := extractFields(text); ok {
		return extracted, nil
	}

	return nil, fmt.Errorf("%w: response is not a usable artifact object", model.ErrGenerationFailed)
}

// stripCodeFences removes a surrounding markdown code block.
func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	return s
}

// escapeControlInStrings rewrites literal newlines, carriage returns and tabs
// that occur inside JSON string literals into their escaped forms.
func escapeControlInStrings(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 64)
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			b.WriteByte(c)
			continue
		}
		switch {
		case escaped:
			escaped = false
			b.WriteByte(c)
		case c == '\\':
			escaped = true
			b.WriteByte(c)
		case c == '"':
			inString = false
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// extractFields pulls each known key with a regex. It succeeds only when
// index_html is present and ends in a closed tag; an unescaped quote inside
// the markup otherwise cuts it short.
func extractFields(s string) (*model.ArtifactSet, bool) {
	values := make(map[string]string, len(artifactKeys))
	for _, k := range artifactKeys {
		m := fieldPatterns[k].FindStringSubmatch(s)
		if m == nil {
			continue
		}
		values[k] = unescapeJSONString(m[1])
	}
	if !strings.HasSuffix(strings.TrimSpace(values["index_html"]), ">") {
		return nil, false
	}
	return &model.ArtifactSet{
		IndexHTML: values["index_html"],
		StyleCSS:  values["style_css"],
		ScriptJS:  values["script_js"],
		ReadmeMD:  values["readme_md"],
	}, true
}

// unescapeJSONString decodes a JSON string body, falling back to the raw text.
func unescapeJSONString(body string) string {
	var out string
	if err := json.Unmarshal([]byte(escapeControlInStrings(`"`+body+`"`)), &out); err == nil {
		return out
	}
	return body
}
