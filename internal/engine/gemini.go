package engine

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

const defaultGeminiTemperature float32 = 0.2

// GeminiClient implements ModelClient using the Google Gen AI SDK.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// GeminiOption configures the Gemini client.
type GeminiOption func(*geminiOptions)

type geminiOptions struct {
	model   string
	baseURL string
	timeout time.Duration
}

// WithGeminiModel sets the model name.
func WithGeminiModel(model string) GeminiOption {
	return func(o *geminiOptions) {
		if model != "" {
			o.model = model
		}
	}
}

// WithGeminiBaseURL overrides the API endpoint.
func WithGeminiBaseURL(url string) GeminiOption {
	return func(o *geminiOptions) { o.baseURL = url }
}

// WithGeminiTimeout sets the HTTP timeout for each request.
func WithGeminiTimeout(d time.Duration) GeminiOption {
	return func(o *geminiOptions) { o.timeout = d }
}

// NewGeminiClient creates a Gemini model client backed by the genai SDK.
func NewGeminiClient(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiClient, error) {
	o := geminiOptions{model: "gemini-2.5-flash", timeout: 120 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: o.timeout},
	}
	if o.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: o.baseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	return &GeminiClient{client: client, model: o.model}, nil
}

// artifactSchema constrains the response to the four artifact keys.
func artifactSchema() *genai.Schema {
	props := make(map[string]*genai.Schema, len(artifactKeys))
	for _, k := range artifactKeys {
		props[k] = &genai.Schema{Type: genai.TypeString}
	}
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: props,
		Required:   artifactKeys,
	}
}

// Complete sends the prompts to Gemini with a structured-output schema and returns the text.
func (c *GeminiClient) Complete(ctx context.Context, system, user string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(defaultGeminiTemperature),
		ResponseMIMEType: "application/json",
		ResponseSchema:   artifactSchema(),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(user), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("gemini: no content in response")
	}
	return text, nil
}
