package llm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"quant-api/pkg/confkit"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"

	defaultProvider      = ProviderOpenAI
	defaultBaseURL       = "https://api.deepseek.com/v1"
	defaultTimeout       = 60 * time.Second
	defaultStreamTimeout = 5 * time.Minute
	defaultMaxRetries    = 3
	defaultMaxTokens     = 4096
	defaultLogLevel      = "info"

	envProvider      = "QUANT_LLM_PROVIDER"
	envAPIKey        = "QUANT_LLM_API_KEY"
	envBaseURL       = "QUANT_LLM_BASE_URL"
	envDefaultModel  = "QUANT_LLM_MODEL"
	envTimeout       = "QUANT_LLM_TIMEOUT"
	envStreamTimeout = "QUANT_LLM_STREAM_TIMEOUT"
	envMaxRetries    = "QUANT_LLM_MAX_RETRIES"
)

// Config holds runtime settings for the LLM backends.
type Config struct {
	// Provider selects the backend: openai (any compatible endpoint), anthropic or gemini.
	Provider     string        `yaml:"provider"`
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"api_key"`
	DefaultModel string        `yaml:"default_model"`
	Timeout      time.Duration `yaml:"-"`
	// StreamTimeout bounds one whole streamed generation.
	StreamTimeout time.Duration          `yaml:"-"`
	MaxRetries    int                    `yaml:"max_retries"`
	LogLevel      string                 `yaml:"log_level"`
	Models        map[string]ModelConfig `yaml:"models"`

	timeoutRaw       string
	streamTimeoutRaw string
}

// ModelConfig defines defaults for a particular model alias.
type ModelConfig struct {
	Provider    string   `yaml:"provider"`
	ModelName   string   `yaml:"model_name"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	MaxTokens   *int     `yaml:"max_tokens,omitempty"`
	TopP        *float64 `yaml:"top_p,omitempty"`
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open llm config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// MustLoad reads LLM configuration from the default project location and panics on error.
func MustLoad() *Config {
	cfg, err := LoadConfig(confkit.MustProjectPath("etc/llm.yaml"))
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadConfigFromReader constructs a Config from a reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	var raw struct {
		Provider      string                 `yaml:"provider"`
		BaseURL       string                 `yaml:"base_url"`
		APIKey        string                 `yaml:"api_key"`
		DefaultModel  string                 `yaml:"default_model"`
		Timeout       string                 `yaml:"timeout"`
		StreamTimeout string                 `yaml:"stream_timeout"`
		MaxRetries    int                    `yaml:"max_retries"`
		LogLevel      string                 `yaml:"log_level"`
		Models        map[string]ModelConfig `yaml:"models"`
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read llm config: %w", err)
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal llm config: %w", err)
	}

	cfg := &Config{
		Provider:         raw.Provider,
		BaseURL:          raw.BaseURL,
		APIKey:           raw.APIKey,
		DefaultModel:     raw.DefaultModel,
		MaxRetries:       raw.MaxRetries,
		LogLevel:         raw.LogLevel,
		Models:           raw.Models,
		timeoutRaw:       raw.Timeout,
		streamTimeoutRaw: raw.StreamTimeout,
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	if err := cfg.parseTimeouts(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
	default:
		return fmt.Errorf("llm config: unsupported provider %q", c.Provider)
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New("llm config: api_key is required")
	}
	if c.Provider == ProviderOpenAI && strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("llm config: base_url is required")
	}
	if strings.TrimSpace(c.DefaultModel) == "" {
		return errors.New("llm config: default_model is required")
	}
	if c.Timeout <= 0 {
		return errors.New("llm config: timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return errors.New("llm config: max_retries cannot be negative")
	}
	return nil
}

// Model returns the configuration for the given model alias.
func (c *Config) Model(name string) (ModelConfig, bool) {
	if c.Models == nil {
		return ModelConfig{}, false
	}
	modelCfg, ok := c.Models[name]
	return modelCfg, ok
}

// Clone returns a shallow copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Models != nil {
		cp.Models = make(map[string]ModelConfig, len(c.Models))
		for k, v := range c.Models {
			cp.Models[k] = v
		}
	}
	return &cp
}

func (c *Config) applyDefaults() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = defaultProvider
	}
	if c.Provider == ProviderOpenAI && strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
}

func (c *Config) applyEnvOverrides() {
	c.Provider = expandAndOverride(c.Provider, envProvider)
	c.BaseURL = expandAndOverride(c.BaseURL, envBaseURL)
	c.APIKey = expandAndOverride(c.APIKey, envAPIKey)
	c.DefaultModel = expandAndOverride(c.DefaultModel, envDefaultModel)
	c.timeoutRaw = expandAndOverride(c.timeoutRaw, envTimeout)
	c.streamTimeoutRaw = expandAndOverride(c.streamTimeoutRaw, envStreamTimeout)

	if raw := os.Getenv(envMaxRetries); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			c.MaxRetries = v
		}
	}
}

func (c *Config) parseTimeouts() error {
	var err error
	if c.Timeout, err = parsePositive("timeout", c.timeoutRaw, defaultTimeout); err != nil {
		return err
	}
	if c.StreamTimeout, err = parsePositive("stream_timeout", c.streamTimeoutRaw, defaultStreamTimeout); err != nil {
		return err
	}
	return nil
}

func parsePositive(field, raw string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("llm config: invalid %s %q: %w", field, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("llm config: %s must be positive, got %s", field, d)
	}
	return d, nil
}

func expandAndOverride(current, envKey string) string {
	current = os.ExpandEnv(current)
	if envVal := os.Getenv(envKey); envVal != "" {
		return envVal
	}
	return current
}
