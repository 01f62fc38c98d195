package llm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseModelID(t *testing.T) {
	tests := []struct {
		input    string
		provider string
		model    string
	}{
		{"deepseek/deepseek-chat", "deepseek", "deepseek-chat"},
		{"deepseek-chat", "", "deepseek-chat"},
		{"anthropic/claude-sonnet-4-5", "anthropic", "claude-sonnet-4-5"},
		{"google/gemini-2.5-flash/preview", "google", "gemini-2.5-flash/preview"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			provider, model := ParseModelID(tt.input)
			require.Equal(t, tt.provider, provider)
			require.Equal(t, tt.model, model)
		})
	}
}

func TestResolveModelID(t *testing.T) {
	require.Equal(t, "deepseek/deepseek-chat", ResolveModelID("deepseek/deepseek-chat", ModelConfig{Provider: "other"}))
	require.Equal(t, "deepseek-reasoner", ResolveModelID("reasoner", ModelConfig{ModelName: "deepseek-reasoner"}))
	require.Equal(t, "deepseek/deepseek-reasoner", ResolveModelID("reasoner", ModelConfig{Provider: "deepseek", ModelName: "deepseek-reasoner"}))
	require.Equal(t, "deepseek-chat", ResolveModelID(" deepseek-chat ", ModelConfig{}))
}

func TestBareModelName(t *testing.T) {
	cfg := &Config{
		DefaultModel: "fast",
		Models: map[string]ModelConfig{
			"fast": {Provider: "google", ModelName: "gemini-2.5-flash"},
		},
	}
	require.Equal(t, "gemini-2.5-flash", BareModelName(cfg, ""))
	require.Equal(t, "claude-haiku-4-5", BareModelName(cfg, "anthropic/claude-haiku-4-5"))
	require.Equal(t, "gemini-2.5-pro", BareModelName(cfg, "gemini-2.5-pro"))
}
