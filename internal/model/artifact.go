package model

import (
	"errors"
	"strings"
	"time"
)

// Generated file names, in upload order.
const (
	FileIndexHTML = "index.html"
	FileStyleCSS  = "style.css"
	FileScriptJS  = "script.js"
	FileReadmeMD  = "README.md"
)

// File is a named text blob destined for the repository.
type File struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// ArtifactSet is the four generated files for one round.
type ArtifactSet struct {
	IndexHTML string `json:"index_html"`
	StyleCSS  string `json:"style_css"`
	ScriptJS  string `json:"script_js"`
	ReadmeMD  string `json:"readme_md"`
}

// Validate fails when any of the four artifacts is empty.
func (s ArtifactSet) Validate() error {
	var missing []string
	for _, f := range s.Files() {
		if strings.TrimSpace(f.Content) == "" {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return errors.New("empty artifacts: " + strings.Join(missing, ", "))
	}
	return nil
}

// Files returns the artifacts as repository files in upload order.
func (s ArtifactSet) Files() []File {
	return []File{
		{Name: FileIndexHTML, Content: s.IndexHTML},
		{Name: FileStyleCSS, Content: s.StyleCSS},
		{Name: FileScriptJS, Content: s.ScriptJS},
		{Name: FileReadmeMD, Content: s.ReadmeMD},
	}
}

// RoundArtifacts is a persisted artifact set for (task, nonce, round).
type RoundArtifacts struct {
	ID        string      `json:"id"`
	Task      string      `json:"task"`
	Nonce     string      `json:"nonce"`
	Round     int         `json:"round"`
	Artifacts ArtifactSet `json:"artifacts"`
	RepoURL   string      `json:"repo_url"`
	CommitSHA string      `json:"commit_sha"`
	PagesURL  string      `json:"pages_url"`
	CreatedAt string      `json:"created_at"`
}

// NewRoundArtifacts creates a persisted artifact snapshot.
func NewRoundArtifacts(id, task, nonce string, round int, set ArtifactSet, res PublicationResult) RoundArtifacts {
	return RoundArtifacts{
		ID:        id,
		Task:      task,
		Nonce:     nonce,
		Round:     round,
		Artifacts: set,
		RepoURL:   res.RepoURL,
		CommitSHA: res.CommitSHA,
		PagesURL:  res.PagesURL,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
}
