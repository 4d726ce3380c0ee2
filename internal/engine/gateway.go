package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/yangwenmai/taskforge/internal/model"
)

// ClientFactory builds the long-lived model client. It returns ErrNotConfigured
// when no backend credential is available.
type ClientFactory func(ctx context.Context) (ModelClient, error)

// ErrNotConfigured is returned by a ClientFactory with nothing to build.
var ErrNotConfigured = errors.New("no generation backend configured")

// GenerateInput is everything the backend sees for one round.
type GenerateInput struct {
	Brief       string
	Round       int
	Prior       *model.ArtifactSet
	Checks      []string
	Attachments []model.Attachment
	Email       string
}

// Gateway turns a task brief into an artifact set through a single shared
// model client.
type Gateway struct {
	factory   ClientFactory
	extractor ContentExtractor

	group singleflight.Group

	mu     sync.RWMutex
	client ModelClient
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithExtractor enables fetching http(s) attachments for prompt context.
func WithExtractor(ex ContentExtractor) GatewayOption {
	return func(g *Gateway) { g.extractor = ex }
}

// NewGateway creates a Gateway. Call Initialize before Generate.
func NewGateway(factory ClientFactory, opts ...GatewayOption) *Gateway {
	g := &Gateway{factory: factory}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Initialize (re)builds the model client. Concurrent calls share one build.
// A failed rebuild keeps the previous client, unless the factory reports
// ErrNotConfigured, in which case the gateway becomes unavailable.
func (g *Gateway) Initialize(ctx context.Context) error {
	_, err, _ := g.group.Do("init", func() (any, error) {
		if g.factory == nil {
			g.setClient(nil)
			return nil, fmt.Errorf("%w: %w", model.ErrGenerationUnavailable, ErrNotConfigured)
		}
		c, err := g.factory(ctx)
		if err != nil {
			if errors.Is(err, ErrNotConfigured) {
				g.setClient(nil)
			}
			return nil, fmt.Errorf("%w: %w", model.ErrGenerationUnavailable, err)
		}
		g.setClient(c)
		return nil, nil
	})
	if err != nil {
		slog.Warn("generation backend unavailable", "error", err)
		return err
	}
	slog.Info("generation backend ready")
	return nil
}

// Available reports whether a model client is ready.
func (g *Gateway) Available() bool {
	return g.currentClient() != nil
}

func (g *Gateway) setClient(c ModelClient) {
	g.mu.Lock()
	g.client = c
	g.mu.Unlock()
}

func (g *Gateway) currentClient() ModelClient {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.client
}

// Generate produces the four artifacts for one round. Round 1 generates fresh;
// later rounds revise in.Prior. Errors wrap model.ErrGenerationUnavailable or
// model.ErrGenerationFailed.
func (g *Gateway) Generate(ctx context.Context, in GenerateInput) (*model.ArtifactSet, error) {
	client := g.currentClient()
	if client == nil {
		return nil, fmt.Errorf("%w: client not initialized", model.ErrGenerationUnavailable)
	}

	seed := DeriveSeed(in.Email)
	pin := promptInput{
		Brief:       SubstituteSeed(in.Brief, seed),
		Checks:      substituteAll(in.Checks, seed),
		Attachments: summarizeAttachments(ctx, g.extractor, in.Attachments),
	}
	system := generateSystemPrompt()
	if in.Round >= 2 {
		system = reviseSystemPrompt()
		pin.Prior = in.Prior
		if pin.Prior == nil {
			pin.Prior = &model.ArtifactSet{}
		}
	}

	raw, err := client.Complete(ctx, system, buildUserPrompt(pin))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrGenerationFailed, err)
	}

	set, err := ParseArtifacts(raw)
	if err != nil {
		slog.Warn("unparseable generation output", "round", in.Round, "bytes", len(raw))
		return nil, err
	}
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrGenerationFailed, err)
	}
	return set, nil
}
