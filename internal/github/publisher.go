// Package github publishes generated artifact sets as GitHub repositories
// served through GitHub Pages.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	gh "github.com/google/go-github/v66/github"
	"golang.org/x/time/rate"

	"github.com/yangwenmai/taskforge/internal/model"
)

const (
	defaultMaxAttempts = 5
	defaultRetryDelay  = time.Second
	pagesBranch        = "main"
	pagesPath          = "/"
)

// Publisher creates repositories, uploads files and enables Pages.
type Publisher struct {
	client     *gh.Client
	configured bool

	maxAttempts int
	retryDelay  time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
	suffix      func() int
}

// Option configures a Publisher.
type Option func(*publisherOptions)

type publisherOptions struct {
	baseURL     string
	httpClient  *http.Client
	rateLimit   float64
	maxAttempts int
	retryDelay  time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
	suffix      func() int
}

// WithBaseURL points the client at a GitHub-compatible API (tests, GHES).
func WithBaseURL(u string) Option {
	return func(o *publisherOptions) { o.baseURL = u }
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *publisherOptions) { o.httpClient = c }
}

// WithRateLimit caps API calls per second; zero or less disables pacing.
func WithRateLimit(rps float64) Option {
	return func(o *publisherOptions) { o.rateLimit = rps }
}

// WithRetryDelay sets the fixed delay between duplicate-name attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(o *publisherOptions) { o.retryDelay = d }
}

// WithSleep replaces the delay function used between attempts.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *publisherOptions) { o.sleep = fn }
}

// WithClock replaces the time source used for retry name suffixes.
func WithClock(fn func() time.Time) Option {
	return func(o *publisherOptions) { o.now = fn }
}

// WithSuffix replaces the random four-digit suffix source.
func WithSuffix(fn func() int) Option {
	return func(o *publisherOptions) { o.suffix = fn }
}

// NewPublisher creates a Publisher authenticated with token.
func NewPublisher(token string, opts ...Option) (*Publisher, error) {
	o := publisherOptions{
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
		sleep:       sleepContext,
		now:         time.Now,
		suffix:      func() int { return 1000 + rand.IntN(9000) },
	}
	for _, opt := range opts {
		opt(&o)
	}

	hc := *o.httpClient
	if o.rateLimit > 0 {
		base := hc.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		hc.Transport = &rateLimitedTransport{
			base:    base,
			limiter: rate.NewLimiter(rate.Limit(o.rateLimit), 1),
		}
	}

	client := gh.NewClient(&hc)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	if o.baseURL != "" {
		u, err := url.Parse(strings.TrimRight(o.baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		client.BaseURL = u
	}

	return &Publisher{
		client:      client,
		configured:  token != "",
		maxAttempts: o.maxAttempts,
		retryDelay:  o.retryDelay,
		sleep:       o.sleep,
		now:         o.now,
		suffix:      o.suffix,
	}, nil
}

// Configured reports whether a token was supplied.
func (p *Publisher) Configured() bool {
	return p.configured
}

// CreateRepository creates a public, MIT-licensed, auto-initialized repository.
// A taken name is retried with a millisecond timestamp and random suffix up to five attempts
// in total. Errors wrap model.ErrRepositoryCreation.
func (p *Publisher) CreateRepository(ctx context.Context, name string) (string, error) {
	base := SanitizeName(name)
	delays := backoff.NewConstantBackOff(p.retryDelay)

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		candidate := base
		if attempt > 1 {
			candidate = fmt.Sprintf("%s-%d-%d", base, p.now().UnixMilli(), p.suffix())
		}

		repoURL, err := p.createOnce(ctx, candidate)
		if err == nil {
			slog.Info("repository created", "repo", candidate, "attempt", attempt)
			return repoURL, nil
		}
		if !errors.Is(err, model.ErrDuplicateName) {
			return "", fmt.Errorf("%w: %w", model.ErrRepositoryCreation, err)
		}

		slog.Warn("repository name taken", "repo", candidate, "attempt", attempt)
		if attempt < p.maxAttempts {
			if err := p.sleep(ctx, delays.NextBackOff()); err != nil {
				return "", fmt.Errorf("%w: %w", model.ErrRepositoryCreation, err)
			}
		}
	}
	return "", fmt.Errorf("%w: name %q still taken after %d attempts", model.ErrRepositoryCreation, base, p.maxAttempts)
}

func (p *Publisher) createOnce(ctx context.Context, name string) (string, error) {
	repo, _, err := p.client.Repositories.Create(ctx, "", &gh.Repository{
		Name:            gh.String(name),
		Private:         gh.Bool(false),
		AutoInit:        gh.Bool(true),
		LicenseTemplate: gh.String("mit"),
	})
	if err != nil {
		if isNameTaken(err) {
			return "", fmt.Errorf("%w: %s", model.ErrDuplicateName, name)
		}
		return "", err
	}
	return repo.GetHTMLURL(), nil
}

// isNameTaken matches GitHub's 422 "name already exists on this account".
func isNameTaken(err error) bool {
	var er *gh.ErrorResponse
	if !errors.As(err, &er) || er.Response == nil || er.Response.StatusCode != http.StatusUnprocessableEntity {
		return false
	}
	if strings.Contains(strings.ToLower(er.Message), "already exists") {
		return true
	}
	for _, e := range er.Errors {
		if strings.Contains(strings.ToLower(e.Message), "already exists") {
			return true
		}
	}
	return false
}

// UploadFiles writes files in order, updating any that already exist.
// It stops at the first failure without rolling back and returns the
// commit SHA of the last write.
func (p *Publisher) UploadFiles(ctx context.Context, repoURL string, files []model.File) (string, error) {
	if len(files) == 0 {
		return "", fmt.Errorf("%w: no files to upload", model.ErrUpload)
	}
	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrUpload, err)
	}

	var commitSHA string
	for _, f := range files {
		sha, err := p.uploadOne(ctx, owner, repo, f)
		if err != nil {
			return "", &model.UploadError{File: f.Name, Err: err}
		}
		commitSHA = sha
		slog.Debug("file uploaded", "repo", repo, "file", f.Name, "commit", sha)
	}
	return commitSHA, nil
}

func (p *Publisher) uploadOne(ctx context.Context, owner, repo string, f model.File) (string, error) {
	opts := &gh.RepositoryContentFileOptions{
		Message: gh.String("Add/Update " + f.Name),
		Content: []byte(f.Content),
	}

	existing, _, resp, err := p.client.Repositories.GetContents(ctx, owner, repo, f.Name, nil)
	switch {
	case err == nil && existing != nil:
		opts.SHA = existing.SHA
		res, _, err := p.client.Repositories.UpdateFile(ctx, owner, repo, f.Name, opts)
		if err != nil {
			return "", err
		}
		return res.Commit.GetSHA(), nil
	case err == nil || (resp != nil && resp.StatusCode == http.StatusNotFound):
		res, _, err := p.client.Repositories.CreateFile(ctx, owner, repo, f.Name, opts)
		if err != nil {
			return "", err
		}
		return res.Commit.GetSHA(), nil
	default:
		return "", fmt.Errorf("look up existing file: %w", err)
	}
}

// EnablePages turns on Pages from main:/. If activation fails but the site is
// already configured, the existing URL is returned.
func (p *Publisher) EnablePages(ctx context.Context, repoURL string) (string, error) {
	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrPagesActivation, err)
	}

	pages, _, err := p.client.Repositories.EnablePages(ctx, owner, repo, &gh.Pages{
		Source: &gh.PagesSource{Branch: gh.String(pagesBranch), Path: gh.String(pagesPath)},
	})
	if err == nil {
		return pagesURL(pages, owner, repo), nil
	}

	existing, _, getErr := p.client.Repositories.GetPagesInfo(ctx, owner, repo)
	if getErr != nil {
		return "", fmt.Errorf("%w: %w", model.ErrPagesActivation, errors.Join(err, getErr))
	}
	slog.Info("pages already enabled", "repo", repo)
	return pagesURL(existing, owner, repo), nil
}

func pagesURL(pages *gh.Pages, owner, repo string) string {
	if u := pages.GetHTMLURL(); u != "" {
		return u
	}
	return fmt.Sprintf("https://%s.github.io/%s/", strings.ToLower(owner), repo)
}

var repoURLPath = regexp.MustCompile(`^/([^/]+)/([^/]+?)(?:\.git)?/?$`)

// ParseRepoURL extracts owner and repository name from a repository HTML URL.
func ParseRepoURL(repoURL string) (owner, repo string, err error) {
	u, err := url.Parse(repoURL)
	if err != nil {
		return "", "", fmt.Errorf("parse repo url: %w", err)
	}
	m := repoURLPath.FindStringSubmatch(u.Path)
	if m == nil {
		return "", "", fmt.Errorf("not a repository url: %q", repoURL)
	}
	return m[1], m[2], nil
}

var (
	invalidNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	repeatedDashes   = regexp.MustCompile(`-{2,}`)
)

// SanitizeName maps a name onto GitHub's repository charset.
func SanitizeName(name string) string {
	s := invalidNameChars.ReplaceAllString(strings.TrimSpace(name), "-")
	s = repeatedDashes.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-.")
	if s == "" {
		return "app"
	}
	return s
}

// RepositoryName is {task}-{nonce} for round 1 and {task}-{nonce}-r{round} after.
func RepositoryName(task, nonce string, round int) string {
	name := task + "-" + nonce
	if round >= 2 {
		name = fmt.Sprintf("%s-r%d", name, round)
	}
	return SanitizeName(name)
}

type rateLimitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
