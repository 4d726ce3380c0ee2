// Package worker accepts tasks and runs the generate-and-publish pipeline for
// each one in the background.
package worker

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yangwenmai/taskforge/internal/engine"
	"github.com/yangwenmai/taskforge/internal/model"
	"github.com/yangwenmai/taskforge/internal/store"
)

// Generator produces the artifact set for one round.
type Generator interface {
	Generate(ctx context.Context, in engine.GenerateInput) (*model.ArtifactSet, error)
}

// Publisher creates and populates the GitHub repository of a round.
type Publisher interface {
	CreateRepository(ctx context.Context, name string) (string, error)
	UploadFiles(ctx context.Context, repoURL string, files []model.File) (string, error)
	EnablePages(ctx context.Context, repoURL string) (string, error)
}

// Notifier delivers the outcome to the evaluation callback.
type Notifier interface {
	Notify(ctx context.Context, callbackURL string, payload any) error
}

// Alerter reports outcomes to operators. Optional.
type Alerter interface {
	Completed(ctx context.Context, req model.TaskRequest, res model.PublicationResult) error
	Failed(ctx context.Context, req model.TaskRequest, step string, cause error) error
}

// Orchestrator validates the secret, registers a tracking record and runs the
// pipeline for each accepted task on its own goroutine.
type Orchestrator struct {
	secret   string
	registry store.RecordRegistry
	rounds   store.RoundRepository
	notifier Notifier
	alerter  Alerter
	pipeline *Pipeline
	now      func() time.Time

	wg sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithAlerter enables operator alerts.
func WithAlerter(a Alerter) Option {
	return func(o *Orchestrator) { o.alerter = a }
}

// WithClock replaces the time source used for record timestamps.
func WithClock(fn func() time.Time) Option {
	return func(o *Orchestrator) { o.now = fn }
}

// NewOrchestrator wires the pipeline generate, create_repository,
// upload_files, enable_pages.
func NewOrchestrator(secret string, registry store.RecordRegistry, rounds store.RoundRepository,
	gen Generator, pub Publisher, notifier Notifier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		secret:   secret,
		registry: registry,
		rounds:   rounds,
		notifier: notifier,
		now:      time.Now,
		pipeline: NewPipeline(
			&GenerateStep{Generator: gen},
			&CreateRepositoryStep{Publisher: pub},
			&UploadFilesStep{Publisher: pub},
			&EnablePagesStep{Publisher: pub},
		),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit authorizes req, records it as processing and schedules the pipeline.
// It returns as soon as the task is scheduled. The request must already be
// shape-validated.
func (o *Orchestrator) Submit(ctx context.Context, req model.TaskRequest) (*model.Acceptance, error) {
	if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(o.secret)) != 1 {
		slog.Warn("secret mismatch", "task", req.Task, "round", req.Round)
		return nil, model.ErrUnauthorized
	}

	id := NewTrackingID(req)
	if err := o.registry.Create(model.NewRecord(id, req, o.now().UTC())); err != nil {
		return nil, fmt.Errorf("register task: %w", err)
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(context.WithoutCancel(ctx), id, req)
	}()

	slog.Info("task accepted", "tracking_id", id, "task", req.Task, "round", req.Round)
	acc := model.NewAcceptance(id, req)
	return &acc, nil
}

// Wait blocks until every scheduled pipeline has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// NewTrackingID returns {task}-{nonce}-r{round}-{8 hex chars}.
func NewTrackingID(req model.TaskRequest) string {
	return fmt.Sprintf("%s-%s-r%d-%s", req.Task, req.Nonce, req.Round, uuid.New().String()[:8])
}

func (o *Orchestrator) run(ctx context.Context, id string, req model.TaskRequest) {
	log := slog.With("tracking_id", id, "task", req.Task, "round", req.Round)

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline panic", "panic", r)
			o.fail(ctx, id, req, fmt.Errorf("internal error: %v", r))
		}
	}()

	if err := o.registry.Transition(id, model.StatusGeneratingCode); err != nil {
		o.fail(ctx, id, req, fmt.Errorf("start: %w", err))
		return
	}

	sc := &StepContext{TrackingID: id, Request: req, Prior: o.loadPrior(ctx, req)}
	if err := o.pipeline.Run(ctx, sc); err != nil {
		o.fail(ctx, id, req, err)
		return
	}

	ra := model.NewRoundArtifacts(uuid.New().String(), req.Task, req.Nonce, req.Round, *sc.Artifacts, sc.Result)
	if err := o.rounds.SaveRoundArtifacts(ctx, ra); err != nil {
		log.Warn("failed to persist round artifacts", "error", err)
	}

	if err := o.registry.Complete(id, sc.Result); err != nil {
		log.Error("failed to mark completed", "error", err)
	}
	log.Info("task completed", "repo_url", sc.Result.RepoURL, "pages_url", sc.Result.PagesURL)

	if err := o.notifier.Notify(ctx, req.EvaluationURL, model.NewCompletionPayload(req, sc.Result)); err != nil {
		log.Error("evaluation notification failed", "error", err)
	}
	if o.alerter != nil {
		if err := o.alerter.Completed(ctx, req, sc.Result); err != nil {
			log.Warn("alert failed", "error", err)
		}
	}
}

// loadPrior returns the previous round's files, or nil for round 1 or when
// nothing was stored.
func (o *Orchestrator) loadPrior(ctx context.Context, req model.TaskRequest) *model.ArtifactSet {
	if !req.IsRevision() {
		return nil
	}
	prev, err := o.rounds.GetRoundArtifacts(ctx, req.Task, req.Nonce, req.Round-1)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("failed to load prior round", "task", req.Task, "round", req.Round-1, "error", err)
		} else {
			slog.Info("no prior round stored, revising from empty context", "task", req.Task, "round", req.Round-1)
		}
		return nil
	}
	return &prev.Artifacts
}

// stepNamer is implemented by errors that carry a pipeline step name.
type stepNamer interface {
	StepName() string
}

func (o *Orchestrator) fail(ctx context.Context, id string, req model.TaskRequest, err error) {
	step := "internal"
	var sn stepNamer
	if errors.As(err, &sn) {
		step = sn.StepName()
	}
	info := model.ErrorInfo{
		FailedStep: step,
		Message:    err.Error(),
		FailedAt:   o.now().UTC().Format(time.RFC3339),
	}

	log := slog.With("tracking_id", id, "task", req.Task, "round", req.Round, "step", step)
	log.Error("task failed", "error", err)
	if sErr := o.registry.Fail(id, info); sErr != nil {
		log.Error("failed to mark failed", "error", sErr)
	}

	if nErr := o.notifier.Notify(ctx, req.EvaluationURL, model.NewFailurePayload(req, err)); nErr != nil {
		log.Error("evaluation notification failed", "error", nErr)
	}
	if o.alerter != nil {
		if aErr := o.alerter.Failed(ctx, req, step, err); aErr != nil {
			log.Warn("alert failed", "error", aErr)
		}
	}
}
