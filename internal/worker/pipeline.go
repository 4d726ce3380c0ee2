package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/yangwenmai/taskforge/internal/model"
)

// Step is one stage of the publishing pipeline.
type Step interface {
	Name() string
	Run(ctx context.Context, sc *StepContext) error
}

// StepContext carries the request and the outputs accumulated by earlier steps.
type StepContext struct {
	TrackingID string
	Request    model.TaskRequest
	Prior      *model.ArtifactSet

	Artifacts *model.ArtifactSet
	Result    model.PublicationResult
}

// Pipeline runs steps in order and stops at the first failure.
type Pipeline struct {
	steps []Step
}

// NewPipeline creates a pipeline from the given steps.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Run executes every step. On failure it returns a *StepError naming the step.
func (p *Pipeline) Run(ctx context.Context, sc *StepContext) error {
	for _, s := range p.steps {
		start := time.Now()
		if err := s.Run(ctx, sc); err != nil {
			return &StepError{Step: s.Name(), Err: err}
		}
		slog.Info("step done", "tracking_id", sc.TrackingID, "step", s.Name(), "elapsed", time.Since(start).Round(time.Millisecond).String())
	}
	return nil
}

// StepError wraps an error with the step name that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// StepName returns the failing step.
func (e *StepError) StepName() string {
	return e.Step
}
