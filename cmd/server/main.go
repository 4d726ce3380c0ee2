package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yangwenmai/taskforge/internal/api"
	"github.com/yangwenmai/taskforge/internal/config"
	"github.com/yangwenmai/taskforge/internal/engine"
	"github.com/yangwenmai/taskforge/internal/github"
	"github.com/yangwenmai/taskforge/internal/logging"
	"github.com/yangwenmai/taskforge/internal/notify"
	"github.com/yangwenmai/taskforge/internal/store"
	"github.com/yangwenmai/taskforge/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	_, logCloser, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logCloser.Close()

	if !cfg.SecretConfigured() {
		slog.Warn("SECRET is not set; every task will be rejected")
	}
	if !cfg.GitHubConfigured() {
		slog.Warn("GITHUB_TOKEN is not set; publishing will fail")
	}

	// Round artifacts, for revisions.
	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	rounds, err := store.New(db)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	registry := store.NewRegistry()

	// Generation backend. Startup continues without one; /health reports it.
	var extractor engine.ContentExtractor = engine.NewHTTPExtractor()
	if cfg.LLMProvider == config.ProviderStub {
		extractor = &engine.StubExtractor{}
	}
	gateway := engine.NewGateway(engine.NewClientFactory(cfg), engine.WithExtractor(extractor))
	_ = gateway.Initialize(ctx)

	githubToken := ""
	if cfg.GitHubConfigured() {
		githubToken = cfg.GitHubToken
	}
	publisher, err := github.NewPublisher(githubToken,
		github.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		github.WithRateLimit(cfg.GitHubRateLimit),
	)
	if err != nil {
		return fmt.Errorf("init publisher: %w", err)
	}

	secret := ""
	if cfg.SecretConfigured() {
		secret = cfg.SecretKey
	}
	orch := worker.NewOrchestrator(secret, registry, rounds, gateway, publisher,
		notify.NewEvaluator(notify.WithTimeout(cfg.NotifyTimeout)),
		worker.WithAlerter(notify.NewSlackAlerter(cfg.SlackWebhookURL)),
	)

	srv := api.New(api.Deps{
		Submitter:        orch,
		Records:          registry,
		Rounds:           rounds,
		Backend:          gateway,
		Secret:           secret,
		GitHubConfigured: publisher.Configured(),
	})
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", httpServer.Addr, "provider", cfg.LLMProvider, "ai_available", gateway.Available())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down", "timeout", cfg.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "error", err)
	}

	done := make(chan struct{})
	go func() {
		orch.Wait()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("all pipelines finished")
	case <-shutdownCtx.Done():
		slog.Warn("shutdown timeout reached with pipelines still running")
	}
	return nil
}
