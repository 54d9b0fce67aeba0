// Package gateway is the transport to the model-inference endpoint: send one
// prompt plus a set of screenshots, get back raw text and token usage. It
// knows nothing about prompts or response grammars.
package gateway

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kleverhq/appilot/internal/config"
)

// ErrEmptyReply marks a request that succeeded at the transport level but
// carried no usable text. Callers must treat this differently from a network
// or auth failure, which may be worth re-invoking the whole run for.
var ErrEmptyReply = errors.New("gateway: model returned an empty reply")

// Usage is the token accounting for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Completion is one raw model reply.
type Completion struct {
	Text    string        `json:"text"`
	Usage   Usage         `json:"usage"`
	Latency time.Duration `json:"latency"`
}

// Gateway sends a prompt with attached PNG screenshots and returns the model
// reply. Implementations are synchronous; the deadline comes from ctx.
type Gateway interface {
	Complete(ctx context.Context, prompt string, imagePaths []string) (*Completion, error)

	// Check verifies that the endpoint is reachable and the credentials work
	// with a minimal request, so a misconfiguration fails before round one.
	Check(ctx context.Context) error
}

// New builds the configured gateway implementation.
func New(cfg config.GatewayConfig, logger *zap.Logger) (Gateway, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAI(cfg, logger)
	case config.ProviderGemini:
		return NewGemini(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown gateway provider %q", cfg.Provider)
	}
}

// TimeoutFor returns the per-call deadline for the configured model.
// Extended-deliberation models emit long reasoning streams before answering
// and get the longer budget.
func TimeoutFor(cfg config.GatewayConfig) time.Duration {
	model := strings.ToLower(cfg.Model)
	for _, s := range cfg.DeliberateModels {
		if s != "" && strings.Contains(model, strings.ToLower(s)) {
			return cfg.DeliberateTimeout
		}
	}
	return cfg.RequestTimeout
}

// encodeImage reads a PNG screenshot and returns its base64 payload.
func encodeImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading screenshot %q: %w", path, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
