package cli

import (
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"quant-api/internal/config"
	"quant-api/pkg/confkit"
)

// ConfigSummaryLines returns human readable lines describing the loaded app config.
func ConfigSummaryLines(cfg *config.Config) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}

	lines := []string{
		fmt.Sprintf("Environment: %s", cfg.Env),
		fmt.Sprintf("Listen: %s:%d", cfg.Host, cfg.Port),
		storeLine(cfg.Store),
		fmt.Sprintf("Redis: %s", presence(cfg.HasRedis())),
		fmt.Sprintf("TTL (short/medium/long): %ds / %ds / %ds", cfg.TTL.Short, cfg.TTL.Medium, cfg.TTL.Long),
		sectionLine("LLM config", cfg.LLM),
		sectionLine("DataSource config", cfg.DataSource),
		sectionLine("Analysis config", cfg.Analysis),
	}
	if len(cfg.Cron.Watchlist) > 0 {
		lines = append(lines, fmt.Sprintf("Cron: %q %s watchlist=%s",
			cfg.Cron.Spec, cfg.Cron.Timezone, strings.Join(cfg.Cron.Watchlist, ",")))
	}
	return lines
}

// LogConfigSummary emits the configuration summary using logx.
func LogConfigSummary(cfg *config.Config) {
	lines := ConfigSummaryLines(cfg)
	if len(lines) == 0 {
		return
	}
	logx.Info("configuration summary")
	for _, line := range lines {
		logx.Infof("config • %s", line)
	}
}

func storeLine(s config.StoreConf) string {
	if s.Driver == config.DriverJournal {
		return fmt.Sprintf("Store: journal (%s)", s.JournalDir)
	}
	return fmt.Sprintf("Store: %s (dsn %s)", s.Driver, presence(strings.TrimSpace(s.DSN) != ""))
}

func presence(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func sectionLine[T any](name string, section confkit.Section[T]) string {
	switch {
	case strings.TrimSpace(section.File) != "":
		return fmt.Sprintf("%s: %s", name, section.File)
	case section.Value != nil:
		return fmt.Sprintf("%s: inline", name)
	default:
		return fmt.Sprintf("%s: not configured", name)
	}
}
