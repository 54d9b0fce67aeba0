package gateway

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/kleverhq/appilot/internal/config"
)

// Gemini sends completions through the official Gemini SDK with screenshots
// attached as inline PNG parts.
type Gemini struct {
	cfg    config.GatewayConfig
	client *genai.Client
	logger *zap.Logger
}

// NewGemini initializes the SDK client.
func NewGemini(cfg config.GatewayConfig, logger *zap.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gateway API key is required")
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &Gemini{
		cfg:    cfg,
		client: client,
		logger: logger.Named("gateway.gemini"),
	}, nil
}

func (c *Gemini) Complete(ctx context.Context, prompt string, imagePaths []string) (*Completion, error) {
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	for _, path := range imagePaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading screenshot %q: %w", path, err)
		}
		parts = append(parts, genai.NewPartFromBytes(data, "image/png"))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	genCfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(c.cfg.Temperature),
		MaxOutputTokens: int32(c.cfg.MaxTokens),
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, contents, genCfg)
	latency := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyReply
	}

	usage := Usage{}
	if resp.UsageMetadata != nil {
		usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	c.logger.Info("completion received",
		zap.Duration("latency", latency),
		zap.Int("prompt_tokens", usage.PromptTokens),
		zap.Int("completion_tokens", usage.CompletionTokens),
	)
	return &Completion{Text: text, Usage: usage, Latency: latency}, nil
}

// Check issues a minimal text-only completion to validate the credentials.
func (c *Gemini) Check(ctx context.Context) error {
	contents := []*genai.Content{genai.NewContentFromText("ping", genai.RoleUser)}
	_, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, contents, &genai.GenerateContentConfig{
		MaxOutputTokens: 8,
	})
	if err != nil {
		return fmt.Errorf("gateway connection check: %w", err)
	}
	return nil
}
