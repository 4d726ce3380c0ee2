package worker

import (
	"context"
	"errors"

	"github.com/yangwenmai/taskforge/internal/engine"
	"github.com/yangwenmai/taskforge/internal/github"
)

// Step names, as reported in failure records.
const (
	StepGenerate         = "generate"
	StepCreateRepository = "create_repository"
	StepUploadFiles      = "upload_files"
	StepEnablePages      = "enable_pages"
)

var errNoArtifacts = errors.New("no artifacts generated")

// ---------------------------------------------------------------------------
// Step 1: Generate
// ---------------------------------------------------------------------------

// GenerateStep asks the generation backend for the round's files.
type GenerateStep struct {
	Generator Generator
}

func (s *GenerateStep) Name() string { return StepGenerate }

func (s *GenerateStep) Run(ctx context.Context, sc *StepContext) error {
	req := sc.Request
	set, err := s.Generator.Generate(ctx, engine.GenerateInput{
		Brief:       req.Brief,
		Round:       req.Round,
		Prior:       sc.Prior,
		Checks:      req.Checks,
		Attachments: req.Attachments,
		Email:       req.Email,
	})
	if err != nil {
		return err
	}
	sc.Artifacts = set
	return nil
}

// ---------------------------------------------------------------------------
// Step 2: Create repository
// ---------------------------------------------------------------------------

// CreateRepositoryStep creates the public repository for the round.
type CreateRepositoryStep struct {
	Publisher Publisher
}

func (s *CreateRepositoryStep) Name() string { return StepCreateRepository }

func (s *CreateRepositoryStep) Run(ctx context.Context, sc *StepContext) error {
	name := github.RepositoryName(sc.Request.Task, sc.Request.Nonce, sc.Request.Round)
	repoURL, err := s.Publisher.CreateRepository(ctx, name)
	if err != nil {
		return err
	}
	sc.Result.RepoURL = repoURL
	return nil
}

// ---------------------------------------------------------------------------
// Step 3: Upload files
// ---------------------------------------------------------------------------

// UploadFilesStep commits the generated files in order.
type UploadFilesStep struct {
	Publisher Publisher
}

func (s *UploadFilesStep) Name() string { return StepUploadFiles }

func (s *UploadFilesStep) Run(ctx context.Context, sc *StepContext) error {
	if sc.Artifacts == nil {
		return errNoArtifacts
	}
	sha, err := s.Publisher.UploadFiles(ctx, sc.Result.RepoURL, sc.Artifacts.Files())
	if err != nil {
		return err
	}
	sc.Result.CommitSHA = sha
	return nil
}

// ---------------------------------------------------------------------------
// Step 4: Enable Pages
// ---------------------------------------------------------------------------

// EnablePagesStep turns on GitHub Pages for the repository.
type EnablePagesStep struct {
	Publisher Publisher
}

func (s *EnablePagesStep) Name() string { return StepEnablePages }

func (s *EnablePagesStep) Run(ctx context.Context, sc *StepContext) error {
	pagesURL, err := s.Publisher.EnablePages(ctx, sc.Result.RepoURL)
	if err != nil {
		return err
	}
	sc.Result.PagesURL = pagesURL
	return nil
}
