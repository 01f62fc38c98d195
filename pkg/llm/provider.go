package llm

import (
	"cmp"
	"strings"
)

// Model ids may carry a routing prefix, "deepseek/deepseek-chat", which
// gateway providers need and native SDKs reject.
const modelSeparator = "/"

// ResolveModelID turns an alias from llm.yaml into the id sent to the
// gateway. Ids that already carry a prefix are returned as they are.
func ResolveModelID(alias string, cfg ModelConfig) string {
	alias = strings.TrimSpace(alias)
	if strings.Contains(alias, modelSeparator) {
		return alias
	}
	name := cmp.Or(strings.TrimSpace(cfg.ModelName), alias)
	prefix := strings.TrimSpace(cfg.Provider)
	if prefix == "" || strings.Contains(name, modelSeparator) {
		return name
	}
	return prefix + modelSeparator + name
}

// ParseModelID splits at the first separator. Ids without one have no provider.
func ParseModelID(model string) (provider, name string) {
	provider, name, ok := strings.Cut(model, modelSeparator)
	if !ok {
		return "", model
	}
	return provider, name
}

// BareModelName resolves alias, or the default model when alias is empty,
// and strips the routing prefix for the Anthropic and Gemini SDKs.
func BareModelName(cfg *Config, alias string) string {
	alias = cmp.Or(strings.TrimSpace(alias), cfg.DefaultModel)
	mc, ok := cfg.Model(alias)
	if !ok {
		mc = ModelConfig{ModelName: alias}
	}
	_, name := ParseModelID(ResolveModelID(alias, mc))
	return name
}

