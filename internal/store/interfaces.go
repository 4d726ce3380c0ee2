package store

import (
	"context"
	"errors"

	"github.com/yangwenmai/taskforge/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches nothing.
	ErrNotFound = errors.New("not found")
	// ErrTerminal is returned when a finished record is written again.
	ErrTerminal = errors.New("record already finished")
)

// RoundReader provides read access to persisted rounds.
type RoundReader interface {
	GetRoundArtifacts(ctx context.Context, task, nonce string, round int) (*model.RoundArtifacts, error)
	ListRounds(ctx context.Context, task, nonce string) ([]model.RoundArtifacts, error)
}

// RoundWriter provides write access to persisted rounds.
type RoundWriter interface {
	SaveRoundArtifacts(ctx context.Context, ra model.RoundArtifacts) error
}

// RoundRepository combines round persistence for the orchestrator.
type RoundRepository interface {
	RoundReader
	RoundWriter
}

// RecordRegistry holds the in-memory processing record of each tracking id.
type RecordRegistry interface {
	Create(rec model.Record) error
	Get(trackingID string) (model.Record, bool)
	Transition(trackingID, status string) error
	Complete(trackingID string, res model.PublicationResult) error
	Fail(trackingID string, info model.ErrorInfo) error
	Len() int
}
