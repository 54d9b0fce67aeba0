package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "appilot", cfg.Logger().ServiceName)
	assert.Equal(t, ProviderOpenAI, cfg.Gateway().Provider)
	assert.Equal(t, 60*time.Second, cfg.Gateway().RequestTimeout)
	assert.Equal(t, 600*time.Second, cfg.Gateway().DeliberateTimeout)
	assert.Contains(t, cfg.Gateway().DeliberateModels, "gelab")
	assert.Equal(t, DeviceAndroid, cfg.Device().Kind)
	assert.Equal(t, 20, cfg.Task().MaxRounds)
	assert.Equal(t, 10*time.Second, cfg.Task().RequestInterval)
	assert.Equal(t, 30.0, cfg.Task().MinDist)
	assert.True(t, cfg.Task().Reflection)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
gateway:
  provider: gemini
  model: gemini-2.5-pro
task:
  max_rounds: 5
device:
  kind: web
  web:
    headless: false
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderGemini, cfg.Gateway().Provider)
	assert.Equal(t, "gemini-2.5-pro", cfg.Gateway().Model)
	assert.Equal(t, 5, cfg.Task().MaxRounds)
	assert.Equal(t, DeviceWeb, cfg.Device().Kind)
	assert.False(t, cfg.Device().Web.Headless)

	// Untouched sections keep their defaults.
	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, 10*time.Second, cfg.Task().RequestInterval)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_Validation(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "bad device kind",
			body: "device:\n  kind: toaster\n",
			want: "device kind",
		},
		{
			name: "bad provider",
			body: "gateway:\n  provider: smoke-signals\n",
			want: "gateway provider",
		},
		{
			name: "non-positive rounds",
			body: "task:\n  max_rounds: 0\n",
			want: "max_rounds",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, tc.name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.body), 0o600))
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
