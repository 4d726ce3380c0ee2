package model

import (
	"fmt"
	"mime"
	"regexp"
	"strings"
	"time"
)

// Record status constants
const (
	StatusProcessing     = "processing"
	StatusGeneratingCode = "generating_code"
	StatusCompleted      = "completed"
	StatusFailed         = "failed"
)

// EstimatedCompletionText is the human-readable ETA echoed to callers.
const EstimatedCompletionText = "2-5 minutes"

// EstimatedDuration is used to stamp Record.EstimatedCompletion.
const EstimatedDuration = 5 * time.Minute

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	urlPattern   = regexp.MustCompile(`^https?://[^\s/$.?#].[^\s]*$`)
)

// Attachment is a named reference supplied with a task. URL may be a data URL.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// IsDataURL reports whether the attachment carries inline content.
func (a Attachment) IsDataURL() bool {
	return strings.HasPrefix(strings.ToLower(a.URL), "data:")
}

// MediaType returns the declared content type of a data URL, or "" for other URLs.
// A data URL without a declared type defaults to text/plain per RFC 2397.
func (a Attachment) MediaType() string {
	if !a.IsDataURL() {
		return ""
	}
	header, _, ok := strings.Cut(a.URL[len("data:"):], ",")
	if !ok {
		return ""
	}
	header = strings.TrimSuffix(header, ";base64")
	if header == "" || strings.HasPrefix(header, ";") {
		return "text/plain"
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return header
	}
	return mt
}

// TaskRequest is an inbound unit of work.
type TaskRequest struct {
	Email         string       `json:"email"`
	Secret        string       `json:"secret"`
	Task          string       `json:"task"`
	Round         int          `json:"round"`
	Nonce         string       `json:"nonce"`
	Brief         string       `json:"brief"`
	Checks        []string     `json:"checks"`
	Attachments   []Attachment `json:"attachments"`
	EvaluationURL string       `json:"evaluation_url"`
}

// Validate checks the request shape. It does not check the secret value.
func (r TaskRequest) Validate() error {
	var verr ValidationError
	if !emailPattern.MatchString(r.Email) {
		verr.add("email", "must be a valid email address")
	}
	if len(r.Secret) < 8 {
		verr.add("secret", "must be at least 8 characters")
	}
	if strings.TrimSpace(r.Task) == "" {
		verr.add("task", "is required")
	}
	if r.Round < 1 {
		verr.add("round", "must be >= 1")
	}
	if strings.TrimSpace(r.Nonce) == "" {
		verr.add("nonce", "is required")
	}
	if strings.TrimSpace(r.Brief) == "" {
		verr.add("brief", "is required")
	}
	if len(r.Checks) == 0 {
		verr.add("checks", "must contain at least one check")
	}
	for i, a := range r.Attachments {
		if a.Name == "" || a.URL == "" {
			verr.add(fmt.Sprintf("attachments[%d]", i), "name and url are required")
		}
	}
	if !urlPattern.MatchString(r.EvaluationURL) {
		verr.add("evaluation_url", "must be an http(s) URL")
	}
	if len(verr.Fields) > 0 {
		return &verr
	}
	return nil
}

// IsRevision reports whether the request revises an earlier round.
func (r TaskRequest) IsRevision() bool {
	return r.Round >= 2
}

// Acceptance is returned to the caller as soon as a task is scheduled.
type Acceptance struct {
	Status              string `json:"status"`
	TrackingID          string `json:"tracking_id"`
	Task                string `json:"task"`
	Round               int    `json:"round"`
	Nonce               string `json:"nonce"`
	Message             string `json:"message"`
	EstimatedCompletion string `json:"estimated_completion"`
}

// NewAcceptance echoes the request identity with the tracking id.
func NewAcceptance(trackingID string, req TaskRequest) Acceptance {
	return Acceptance{
		Status:              "accepted",
		TrackingID:          trackingID,
		Task:                req.Task,
		Round:               req.Round,
		Nonce:               req.Nonce,
		Message:             "Task accepted; results will be posted to the evaluation URL.",
		EstimatedCompletion: EstimatedCompletionText,
	}
}

// PublicationResult identifies what was published for one round.
type PublicationResult struct {
	RepoURL   string `json:"repo_url"`
	CommitSHA string `json:"commit_sha"`
	PagesURL  string `json:"pages_url"`
}

// CompletionPayload is posted to the evaluation URL on success.
type CompletionPayload struct {
	Email     string `json:"email"`
	Task      string `json:"task"`
	Round     int    `json:"round"`
	Nonce     string `json:"nonce"`
	RepoURL   string `json:"repo_url"`
	CommitSHA string `json:"commit_sha"`
	PagesURL  string `json:"pages_url"`
	Status    string `json:"status"`
}

// FailurePayload is posted to the evaluation URL when the pipeline fails.
type FailurePayload struct {
	Email  string `json:"email"`
	Task   string `json:"task"`
	Round  int    `json:"round"`
	Nonce  string `json:"nonce"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

// NewCompletionPayload builds the success callback body.
func NewCompletionPayload(req TaskRequest, res PublicationResult) CompletionPayload {
	return CompletionPayload{
		Email:     req.Email,
		Task:      req.Task,
		Round:     req.Round,
		Nonce:     req.Nonce,
		RepoURL:   res.RepoURL,
		CommitSHA: res.CommitSHA,
		PagesURL:  res.PagesURL,
		Status:    StatusCompleted,
	}
}

// NewFailurePayload builds the failure callback body.
func NewFailurePayload(req TaskRequest, err error) FailurePayload {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return FailurePayload{
		Email:  req.Email,
		Task:   req.Task,
		Round:  req.Round,
		Nonce:  req.Nonce,
		Status: StatusFailed,
		Error:  msg,
	}
}
