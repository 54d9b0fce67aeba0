package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/kleverhq/appilot/internal/config"
)

// OpenAI talks to any OpenAI-compatible chat-completions endpoint, which
// covers the hosted API as well as local inference servers (vLLM, Ollama,
// LM Studio) behind the same wire format.
type OpenAI struct {
	cfg        config.GatewayConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// Chat-completions wire structures, internal to this file.
type oaiContentPart struct {
	Type     string       `json:"type"`
	Text     string       `json:"text,omitempty"`
	ImageURL *oaiImageURL `json:"image_url,omitempty"`
}

type oaiImageURL struct {
	URL string `json:"url"`
}

type oaiMessage struct {
	Role    string           `json:"role"`
	Content []oaiContentPart `json:"content"`
}

type oaiRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	Temperature float32      `json:"temperature"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
}

type oaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewOpenAI initializes the client.
func NewOpenAI(cfg config.GatewayConfig, logger *zap.Logger) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gateway API key is required")
	}
	return &OpenAI{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: TimeoutFor(cfg),
		},
		logger: logger.Named("gateway.openai"),
	}, nil
}

// Complete sends the prompt plus screenshots and returns the first choice.
// Transient HTTP failures (429, 5xx) are retried with exponential backoff;
// everything else fails immediately.
func (c *OpenAI) Complete(ctx context.Context, prompt string, imagePaths []string) (*Completion, error) {
	parts := []oaiContentPart{{Type: "text", Text: prompt}}
	for _, path := range imagePaths {
		b64, err := encodeImage(path)
		if err != nil {
			return nil, err
		}
		parts = append(parts, oaiContentPart{
			Type:     "image_url",
			ImageURL: &oaiImageURL{URL: "data:image/png;base64," + b64},
		})
	}

	body, err := json.Marshal(oaiRequest{
		Model:       c.cfg.Model,
		Messages:    []oaiMessage{{Role: "user", Content: parts}},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	b.MaxInterval = 30 * time.Second

	var completion *Completion
	operation := func() error {
		start := time.Now()
		payload, err := c.post(ctx, body)
		if err != nil {
			return err
		}
		latency := time.Since(start)

		if len(payload.Choices) == 0 || strings.TrimSpace(payload.Choices[0].Message.Content) == "" {
			return backoff.Permanent(ErrEmptyReply)
		}

		c.logger.Info("completion received",
			zap.Duration("latency", latency),
			zap.Int("prompt_tokens", payload.Usage.PromptTokens),
			zap.Int("completion_tokens", payload.Usage.CompletionTokens),
		)
		completion = &Completion{
			Text: payload.Choices[0].Message.Content,
			Usage: Usage{
				PromptTokens:     payload.Usage.PromptTokens,
				CompletionTokens: payload.Usage.CompletionTokens,
			},
			Latency: latency,
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return completion, nil
}

// Check issues a minimal text-only completion to validate endpoint and key.
func (c *OpenAI) Check(ctx context.Context) error {
	body, err := json.Marshal(oaiRequest{
		Model:     c.cfg.Model,
		Messages:  []oaiMessage{{Role: "user", Content: []oaiContentPart{{Type: "text", Text: "ping"}}}},
		MaxTokens: 8,
	})
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	if _, err := c.post(ctx, body); err != nil {
		return fmt.Errorf("gateway connection check: %w", err)
	}
	return nil
}

func (c *OpenAI) post(ctx context.Context, body []byte) (*oaiResponse, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("network error during gateway request, retrying", zap.Error(err))
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp.StatusCode, respBody)
	}

	var payload oaiResponse
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decoding response: %w", err))
	}
	if payload.Error != nil {
		return nil, backoff.Permanent(fmt.Errorf("gateway error: %s (%s)", payload.Error.Message, payload.Error.Type))
	}
	return &payload, nil
}

func (c *OpenAI) statusError(status int, body []byte) error {
	c.logger.Error("gateway returned error status",
		zap.Int("status", status),
		zap.ByteString("response", body),
	)
	err := fmt.Errorf("gateway status %d: %s", status, body)
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
		return err // transient, retry
	default:
		return backoff.Permanent(err)
	}
}
