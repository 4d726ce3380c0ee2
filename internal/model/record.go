package model

import (
	"fmt"
	"time"
)

// Record is the in-memory processing state of one tracking id.
type Record struct {
	TrackingID          string             `json:"tracking_id"`
	Task                string             `json:"task"`
	Round               int                `json:"round"`
	Nonce               string             `json:"nonce"`
	Status              string             `json:"status"`
	StartedAt           time.Time          `json:"started_at"`
	EstimatedCompletion time.Time          `json:"estimated_completion"`
	UpdatedAt           time.Time          `json:"updated_at"`
	Result              *PublicationResult `json:"result,omitempty"`
	Error               string             `json:"error,omitempty"`
	ErrorInfo           *ErrorInfo         `json:"error_info,omitempty"`
}

// NewRecord creates a record in the processing state.
func NewRecord(trackingID string, req TaskRequest, now time.Time) Record {
	return Record{
		TrackingID:          trackingID,
		Task:                req.Task,
		Round:               req.Round,
		Nonce:               req.Nonce,
		Status:              StatusProcessing,
		StartedAt:           now,
		EstimatedCompletion: now.Add(EstimatedDuration),
		UpdatedAt:           now,
	}
}

// Terminal reports whether no further transitions are allowed.
func (r Record) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// allowedTransitions maps each status to the statuses it may move to.
var allowedTransitions = map[string][]string{
	StatusProcessing:     {StatusGeneratingCode, StatusFailed},
	StatusGeneratingCode: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether a record may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidateTransition checks whether the record can move to the target status.
func (r Record) ValidateTransition(to string) error {
	if !CanTransition(r.Status, to) {
		return fmt.Errorf("invalid transition %s -> %s", r.Status, to)
	}
	return nil
}
