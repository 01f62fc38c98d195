package analysis

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"quant-api/pkg/indicators"
)

func TestLoadConfigFromReaderDefaults(t *testing.T) {
	cfg, err := LoadConfigFromReader(strings.NewReader("period: 6mo\n"))
	require.NoError(t, err)

	require.InDelta(t, 0.3, *cfg.Temperatures.News, 1e-9)
	require.InDelta(t, 0.2, *cfg.Temperatures.Filing, 1e-9)
	require.InDelta(t, 0.3, *cfg.Temperatures.Prediction, 1e-9)
	require.Equal(t, 7, cfg.NewsDays)
	require.Equal(t, "6mo", cfg.Period)
	require.Equal(t, "10-K", cfg.FilingType)
	require.Equal(t, 20, cfg.MaxNewsItems)
}

func TestLoadConfigFromReaderOverrides(t *testing.T) {
	data := `
temperatures:
  news: 0
  prediction: 0.7
news_days: 3
filing_type: "10-q"
max_filing_chars: 1000
`
	cfg, err := LoadConfigFromReader(strings.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 0.0, *cfg.Temperatures.News)
	require.InDelta(t, 0.2, *cfg.Temperatures.Filing, 1e-9)
	require.InDelta(t, 0.7, *cfg.Temperatures.Prediction, 1e-9)
	require.Equal(t, 3, cfg.NewsDays)
	require.Equal(t, "10-Q", cfg.FilingType)
	require.Equal(t, 1000, cfg.MaxFilingChars)
}

func TestLoadConfigValidation(t *testing.T) {
	cases := map[string]string{
		"temperature": "temperatures:\n  filing: 3\n",
		"filing type": "filing_type: 8-K\n",
		"news items":  "max_news_items: -1\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfigFromReader(strings.NewReader(data))
			require.Error(t, err)
		})
	}
}

func TestLoadConfigResolvesPromptPaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "news.tmpl"), []byte("custom {{.Symbol}}"), 0o644))
	path := filepath.Join(dir, "analysis.yaml")
	require.NoError(t, os.WriteFile(path, []byte("prompts:\n  news: news.tmpl\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "news.tmpl"), cfg.Prompts.News)
	require.Empty(t, cfg.Prompts.Filing)

	prompts, err := LoadPrompts(cfg.Prompts)
	require.NoError(t, err)
	out, err := prompts.News.Render(NewsPromptData{Symbol: "TSLA"})
	require.NoError(t, err)
	require.Equal(t, "custom TSLA", out)
	require.Equal(t, "prompts/filing.tmpl", prompts.Filing.Name())
}

func TestDefaultPromptsRender(t *testing.T) {
	prompts := MustDefaultPrompts()
	ma := 101.5
	out, err := prompts.Prediction.Render(PredictionPromptData{
		Symbol:         "NVDA",
		NewsAnalysis:   NoAnalysis,
		FilingAnalysis: "Revenue: 10",
		Indicators:     indicators.Snapshot{MA5: &ma, Trend: indicators.TrendUnknown},
	})
	require.NoError(t, err)
	require.Contains(t, out, "NVDA")
	require.Contains(t, out, "MA5: 101.50")
	require.Contains(t, out, "MA10: n/a")
	require.NotEmpty(t, prompts.Prediction.Digest())
}
