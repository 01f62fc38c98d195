package analysis

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"quant-api/pkg/confkit"
	"quant-api/pkg/datasource"
)

const (
	defaultNewsTemperature       = 0.3
	defaultFilingTemperature     = 0.2
	defaultPredictionTemperature = 0.3
	defaultNewsDays              = 7
	defaultPeriod                = "1y"
	defaultMaxNewsItems          = 20
	defaultMaxFilingChars        = 60000
)

// Config tunes the pipeline and the inputs gathered for it.
type Config struct {
	Temperatures Temperatures `yaml:"temperatures"`
	Prompts      PromptPaths  `yaml:"prompts"`

	// NewsDays is the look-back window for news.
	NewsDays int `yaml:"news_days"`
	// Period is the price history range requested from the price provider.
	Period     string `yaml:"period"`
	FilingType string `yaml:"filing_type"`
	// MaxNewsItems caps the cleaned news passed into the news prompt.
	MaxNewsItems   int `yaml:"max_news_items"`
	MaxFilingChars int `yaml:"max_filing_chars"`
}

// Temperatures are per-stage sampling temperatures.
type Temperatures struct {
	News       *float64 `yaml:"news"`
	Filing     *float64 `yaml:"filing"`
	Prediction *float64 `yaml:"prediction"`
}

// PromptPaths override the embedded prompt templates. Empty keeps the default.
type PromptPaths struct {
	News       string `yaml:"news"`
	Filing     string `yaml:"filing"`
	Prediction string `yaml:"prediction"`
}

// DefaultConfig returns the configuration used when no file is supplied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads configuration from disk. Relative prompt paths resolve
// against the directory of path.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open analysis config: %w", err)
	}
	defer file.Close()
	cfg, err := LoadConfigFromReader(file)
	if err != nil {
		return nil, err
	}
	cfg.Prompts.resolve(path)
	return cfg, nil
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read analysis config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal analysis config: %w", err)
	}
	cfg.Prompts.News = strings.TrimSpace(os.ExpandEnv(cfg.Prompts.News))
	cfg.Prompts.Filing = strings.TrimSpace(os.ExpandEnv(cfg.Prompts.Filing))
	cfg.Prompts.Prediction = strings.TrimSpace(os.ExpandEnv(cfg.Prompts.Prediction))
	cfg.Period = strings.TrimSpace(cfg.Period)
	cfg.FilingType = strings.ToUpper(strings.TrimSpace(cfg.FilingType))
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Temperatures.News == nil {
		c.Temperatures.News = floatPtr(defaultNewsTemperature)
	}
	if c.Temperatures.Filing == nil {
		c.Temperatures.Filing = floatPtr(defaultFilingTemperature)
	}
	if c.Temperatures.Prediction == nil {
		c.Temperatures.Prediction = floatPtr(defaultPredictionTemperature)
	}
	if c.NewsDays <= 0 {
		c.NewsDays = defaultNewsDays
	}
	if c.Period == "" {
		c.Period = defaultPeriod
	}
	if c.FilingType == "" {
		c.FilingType = datasource.FilingAnnual
	}
	if c.MaxNewsItems == 0 {
		c.MaxNewsItems = defaultMaxNewsItems
	}
	if c.MaxFilingChars == 0 {
		c.MaxFilingChars = defaultMaxFilingChars
	}
}

// Validate ensures the configuration is structurally sound.
func (c *Config) Validate() error {
	for name, t := range map[string]*float64{
		"news":       c.Temperatures.News,
		"filing":     c.Temperatures.Filing,
		"prediction": c.Temperatures.Prediction,
	} {
		if t != nil && (*t < 0 || *t > 2) {
			return fmt.Errorf("analysis config: %s temperature must be within [0,2], got %v", name, *t)
		}
	}
	switch c.FilingType {
	case datasource.FilingAnnual, datasource.FilingQuarterly:
	default:
		return fmt.Errorf("analysis config: unsupported filing_type %q", c.FilingType)
	}
	if c.MaxNewsItems < 0 {
		return fmt.Errorf("analysis config: max_news_items cannot be negative")
	}
	if c.MaxFilingChars < 0 {
		return fmt.Errorf("analysis config: max_filing_chars cannot be negative")
	}
	return nil
}

func (p *PromptPaths) resolve(configPath string) {
	base := confkit.BaseDir(configPath)
	for _, f := range []*string{&p.News, &p.Filing, &p.Prediction} {
		if *f != "" {
			*f = confkit.ResolvePath(base, *f)
		}
	}
}

func floatPtr(v float64) *float64 { return &v }
