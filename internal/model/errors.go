package model

import (
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy. Callers test with errors.Is.
var (
	ErrUnauthorized          = errors.New("forbidden: invalid secret key")
	ErrGenerationUnavailable = errors.New("generation backend unavailable")
	ErrGenerationFailed      = errors.New("generation failed")
	ErrDuplicateName         = errors.New("repository name already exists")
	ErrRepositoryCreation    = errors.New("repository creation failed")
	ErrUpload                = errors.New("file upload failed")
	ErrPagesActivation       = errors.New("pages activation failed")
	ErrNotification          = errors.New("evaluation notification failed")
)

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every invalid field of a request.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// UploadError names the file whose upload failed.
type UploadError struct {
	File string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("failed to upload %s: %v", e.File, e.Err)
}

// Unwrap exposes both ErrUpload and the underlying cause.
func (e *UploadError) Unwrap() []error {
	return []error{ErrUpload, e.Err}
}

// ErrorInfo holds structured failure information for a Record.
type ErrorInfo struct {
	FailedStep string `json:"failed_step"`
	Message    string `json:"message"`
	FailedAt   string `json:"failed_at"`
}
