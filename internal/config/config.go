// Package config loads and exposes the application configuration. The Config
// value is built once at startup from defaults, an optional YAML file and
// APPILOT_* environment variables, and is treated as immutable afterwards.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Interface is the read-only contract components depend on, which keeps them
// mockable in tests.
type Interface interface {
	Logger() LoggerConfig
	Gateway() GatewayConfig
	Device() DeviceConfig
	Task() TaskConfig
	Output() OutputConfig
}

// Config holds the entire application configuration. Private fields enforce
// access through the getter methods; decoding goes through rawConfig because
// mapstructure cannot set unexported fields.
type Config struct {
	logger  LoggerConfig
	gateway GatewayConfig
	device  DeviceConfig
	task    TaskConfig
	output  OutputConfig
}

type rawConfig struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Gateway GatewayConfig `mapstructure:"gateway" yaml:"gateway"`
	Device  DeviceConfig  `mapstructure:"device" yaml:"device"`
	Task    TaskConfig    `mapstructure:"task" yaml:"task"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output"`
}

func (r rawConfig) config() *Config {
	return &Config{
		logger:  r.Logger,
		gateway: r.Gateway,
		device:  r.Device,
		task:    r.Task,
		output:  r.Output,
	}
}

func (c *Config) Logger() LoggerConfig   { return c.logger }
func (c *Config) Gateway() GatewayConfig { return c.gateway }
func (c *Config) Device() DeviceConfig   { return c.device }
func (c *Config) Task() TaskConfig       { return c.task }
func (c *Config) Output() OutputConfig   { return c.output }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// GatewayProvider selects the model gateway implementation.
type GatewayProvider string

const (
	ProviderOpenAI GatewayProvider = "openai"
	ProviderGemini GatewayProvider = "gemini"
)

// GatewayConfig configures the model gateway. BaseURL applies to the
// OpenAI-compatible provider only; the API key is read from config or the
// APPILOT_GATEWAY_API_KEY environment variable.
type GatewayConfig struct {
	Provider    GatewayProvider `mapstructure:"provider" yaml:"provider"`
	Model       string          `mapstructure:"model" yaml:"model"`
	BaseURL     string          `mapstructure:"base_url" yaml:"base_url"`
	APIKey      string          `mapstructure:"api_key" yaml:"-"`
	Temperature float32         `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int             `mapstructure:"max_tokens" yaml:"max_tokens"`

	// RequestTimeout is the per-call deadline. Models listed in
	// DeliberateModels (matched by substring) get DeliberateTimeout instead,
	// since extended-reasoning models routinely run several minutes per
	// reply.
	RequestTimeout    time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	DeliberateTimeout time.Duration `mapstructure:"deliberate_timeout" yaml:"deliberate_timeout"`
	DeliberateModels  []string      `mapstructure:"deliberate_models" yaml:"deliberate_models"`
}

// DeviceKind selects the device adapter.
type DeviceKind string

const (
	DeviceAndroid DeviceKind = "android"
	DeviceWeb     DeviceKind = "web"
)

// AndroidConfig holds the ADB-backed adapter settings.
type AndroidConfig struct {
	Serial  string `mapstructure:"serial" yaml:"serial"`
	ADBPath string `mapstructure:"adb_path" yaml:"adb_path"`
}

// WebConfig holds the chromedp-backed adapter settings.
type WebConfig struct {
	Headless       bool          `mapstructure:"headless" yaml:"headless"`
	StartURL       string        `mapstructure:"start_url" yaml:"start_url"`
	ViewportWidth  int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	NavTimeout     time.Duration `mapstructure:"nav_timeout" yaml:"nav_timeout"`
}

// DeviceConfig selects and configures the device adapter.
type DeviceConfig struct {
	Kind    DeviceKind    `mapstructure:"kind" yaml:"kind"`
	Android AndroidConfig `mapstructure:"android" yaml:"android"`
	Web     WebConfig     `mapstructure:"web" yaml:"web"`
}

// TaskConfig tunes the exploration loop.
type TaskConfig struct {
	MaxRounds       int           `mapstructure:"max_rounds" yaml:"max_rounds"`
	RequestInterval time.Duration `mapstructure:"request_interval" yaml:"request_interval"`
	// MinDist is the center-distance (device pixels) under which two
	// interactive elements are treated as duplicates.
	MinDist    float64 `mapstructure:"min_dist" yaml:"min_dist"`
	DarkMode   bool    `mapstructure:"dark_mode" yaml:"dark_mode"`
	Reflection bool    `mapstructure:"reflection" yaml:"reflection"`
}

// OutputConfig locates run artifacts on disk.
type OutputConfig struct {
	RootDir string `mapstructure:"root_dir" yaml:"root_dir"`
	DocsDir string `mapstructure:"docs_dir" yaml:"docs_dir"`
}

// Load reads configuration from an optional file path, layering defaults,
// file values and APPILOT_* environment variables in that order.
func Load(path string) (*Config, error) {
	return LoadWithOverrides(path, nil)
}

// LoadWithOverrides is Load with an extra top-precedence layer, used for CLI
// flag overrides. Keys use the dotted viper form ("task.max_rounds").
func LoadWithOverrides(path string, overrides map[string]any) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("APPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %q: %w", path, err)
		}
	}
	for key, value := range overrides {
		v.Set(key, value)
	}

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg := raw.config()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewDefaultConfig creates a configuration populated with defaults only.
// Used by tests and as the base for CLI flag overrides.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		// Cannot happen with defaults alone.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return raw.config()
}

func (c *Config) validate() error {
	switch c.device.Kind {
	case DeviceAndroid, DeviceWeb:
	default:
		return fmt.Errorf("unknown device kind %q", c.device.Kind)
	}
	switch c.gateway.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unknown gateway provider %q", c.gateway.Provider)
	}
	if c.task.MaxRounds < 1 {
		return fmt.Errorf("task.max_rounds must be positive, got %d", c.task.MaxRounds)
	}
	return nil
}

// SetDefaults initializes default values for every configuration parameter.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "appilot")
	v.SetDefault("logger.log_file", "appilot.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Gateway --
	v.SetDefault("gateway.provider", "openai")
	v.SetDefault("gateway.model", "gpt-4o")
	v.SetDefault("gateway.base_url", "https://api.openai.com/v1")
	v.SetDefault("gateway.temperature", 0.0)
	v.SetDefault("gateway.max_tokens", 4096)
	v.SetDefault("gateway.request_timeout", "60s")
	v.SetDefault("gateway.deliberate_timeout", "600s")
	v.SetDefault("gateway.deliberate_models", []string{"gelab", "qwen3", "o1", "o3"})

	// -- Device --
	v.SetDefault("device.kind", "android")
	v.SetDefault("device.android.adb_path", "adb")
	v.SetDefault("device.web.headless", true)
	v.SetDefault("device.web.viewport_width", 1280)
	v.SetDefault("device.web.viewport_height", 800)
	v.SetDefault("device.web.nav_timeout", "90s")

	// -- Task --
	v.SetDefault("task.max_rounds", 20)
	v.SetDefault("task.request_interval", "10s")
	v.SetDefault("task.min_dist", 30)
	v.SetDefault("task.dark_mode", false)
	v.SetDefault("task.reflection", true)

	// -- Output --
	v.SetDefault("output.root_dir", "./runs")
	v.SetDefault("output.docs_dir", "./docs")
}
