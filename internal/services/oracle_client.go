package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"

	"narrative-timeline/backend/internal/metrics"
)

// OracleConfig configures the Gemini client. A non-empty Project selects
// Vertex AI with application default credentials and APIKey is not sent;
// otherwise the Gemini API is called with APIKey.
type OracleConfig struct {
	APIKey     string
	Project    string
	Location   string
	BaseURL    string
	ProModel   string
	FlashModel string
	// Timeout bounds one HTTP exchange. Zero means no timeout.
	Timeout time.Duration
}

// GeminiClient implements OracleClient on the Google GenAI SDK.
type GeminiClient struct {
	cfg     OracleConfig
	client  *genai.Client
	metrics *metrics.Recorder
}

// NewGeminiClient creates a new GeminiClient.
func NewGeminiClient(ctx context.Context, cfg OracleConfig, rec *metrics.Recorder) (*GeminiClient, error) {
	if cfg.Location == "" {
		cfg.Location = "global"
	}
	if cfg.ProModel == "" {
		cfg.ProModel = "gemini-2.5-pro"
	}
	if cfg.FlashModel == "" {
		cfg.FlashModel = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, clientConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiClient{
		cfg:     cfg,
		client:  client,
		metrics: rec,
	}, nil
}

// clientConfig maps OracleConfig onto the SDK's backend selection.
func clientConfig(cfg OracleConfig) *genai.ClientConfig {
	cc := &genai.ClientConfig{
		HTTPClient:  &http.Client{Timeout: cfg.Timeout},
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	}
	if cfg.Project != "" {
		cc.Backend = genai.BackendVertexAI
		cc.Project = cfg.Project
		cc.Location = cfg.Location
		return cc
	}
	cc.Backend = genai.BackendGeminiAPI
	cc.APIKey = cfg.APIKey
	return cc
}

// Complete sends a single prompt and returns the generated text.
func (c *GeminiClient) Complete(ctx context.Context, tier Tier, prompt string) (string, error) {
	text, err := c.complete(ctx, tier, prompt)
	c.metrics.OracleCall(ctx, string(tier), err)
	return text, err
}

func (c *GeminiClient) complete(ctx context.Context, tier Tier, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model(tier), genai.Text(prompt), nil)
	if err != nil {
		return "", &OracleError{Tier: tier, StatusCode: statusCode(err), Err: err}
	}
	if len(resp.Candidates) == 0 {
		return "", &OracleError{Tier: tier, Err: errors.New("no candidates in response")}
	}
	text := resp.Text()
	if text == "" {
		return "", &OracleError{Tier: tier, Err: errors.New("empty candidate text")}
	}
	return text, nil
}

func (c *GeminiClient) model(tier Tier) string {
	if tier == TierPro {
		return c.cfg.ProModel
	}
	return c.cfg.FlashModel
}

// statusCode extracts the HTTP status of an API error, or 0 for transport
// and decoding failures.
func statusCode(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code
	}
	return 0
}
