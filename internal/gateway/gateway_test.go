package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kleverhq/appilot/internal/config"
)

func testGatewayConfig(baseURL string) config.GatewayConfig {
	return config.GatewayConfig{
		Provider:          config.ProviderOpenAI,
		Model:             "gpt-4o",
		BaseURL:           baseURL,
		APIKey:            "test-key",
		MaxTokens:         1024,
		RequestTimeout:    30 * time.Second,
		DeliberateTimeout: 300 * time.Second,
		DeliberateModels:  []string{"gelab", "qwen3", "o1"},
	}
}

func writeTestPNG(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG fake"), 0o600))
	return path
}

func okResponse(text string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": text}},
		},
		"usage": map[string]any{"prompt_tokens": 321, "completion_tokens": 45},
	}
}

func TestOpenAIComplete(t *testing.T) {
	var gotAuth string
	var gotBody oaiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		require.NoError(t, json.NewEncoder(w).Encode(okResponse(`{"Action":"tap(1)"}`)))
	}))
	defer srv.Close()

	gw, err := NewOpenAI(testGatewayConfig(srv.URL), zap.NewNop())
	require.NoError(t, err)

	comp, err := gw.Complete(context.Background(), "what next?", []string{writeTestPNG(t)})
	require.NoError(t, err)

	assert.Equal(t, `{"Action":"tap(1)"}`, comp.Text)
	assert.Equal(t, 321, comp.Usage.PromptTokens)
	assert.Equal(t, 45, comp.Usage.CompletionTokens)
	assert.Greater(t, comp.Latency, time.Duration(0))

	assert.Equal(t, "Bearer test-key", gotAuth)
	require.Len(t, gotBody.Messages, 1)
	require.Len(t, gotBody.Messages[0].Content, 2)
	assert.Equal(t, "text", gotBody.Messages[0].Content[0].Type)
	assert.True(t, strings.HasPrefix(gotBody.Messages[0].Content[1].ImageURL.URL, "data:image/png;base64,"))
}

func TestOpenAIComplete_EmptyReplyIsDistinct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(okResponse("  ")))
	}))
	defer srv.Close()

	gw, err := NewOpenAI(testGatewayConfig(srv.URL), zap.NewNop())
	require.NoError(t, err)

	_, err = gw.Complete(context.Background(), "p", nil)
	assert.ErrorIs(t, err, ErrEmptyReply)
}

func TestOpenAIComplete_AuthFailureDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	gw, err := NewOpenAI(testGatewayConfig(srv.URL), zap.NewNop())
	require.NoError(t, err)

	_, err = gw.Complete(context.Background(), "p", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIComplete_RetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusTooManyRequests)
			return
		}
		require.NoError(t, json.NewEncoder(w).Encode(okResponse("ok")))
	}))
	defer srv.Close()

	gw, err := NewOpenAI(testGatewayConfig(srv.URL), zap.NewNop())
	require.NoError(t, err)

	comp, err := gw.Complete(context.Background(), "p", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", comp.Text)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestOpenAICheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(okResponse("pong")))
	}))
	defer srv.Close()

	gw, err := NewOpenAI(testGatewayConfig(srv.URL), zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, gw.Check(context.Background()))
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	cfg := testGatewayConfig("http://localhost")
	cfg.APIKey = ""
	_, err := NewOpenAI(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestTimeoutFor(t *testing.T) {
	t.Parallel()

	cfg := testGatewayConfig("http://localhost")

	cases := []struct {
		model string
		want  time.Duration
	}{
		{"gpt-4o", cfg.RequestTimeout},
		{"gemini-2.5-pro", cfg.RequestTimeout},
		{"qwen3-vl-plus", cfg.DeliberateTimeout},
		{"openrouter/o1-preview", cfg.DeliberateTimeout},
		{"GELab-Zero-4B-preview", cfg.DeliberateTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.model, func(t *testing.T) {
			c := cfg
			c.Model = tc.model
			assert.Equal(t, tc.want, TimeoutFor(c))
		})
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	t.Parallel()

	cfg := testGatewayConfig("http://localhost")
	cfg.Provider = "carrier-pigeon"
	_, err := New(cfg, zap.NewNop())
	assert.Error(t, err)
}
