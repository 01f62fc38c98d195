package cache

import (
	"strconv"
	"strings"
	"time"

	"quant-api/internal/config"
)

// Namespace is the Redis key prefix for the service.
const Namespace = "quant"

// TTLClass represents a config-driven TTL bucket.
type TTLClass string

const (
	TTLShort  TTLClass = "short"
	TTLMedium TTLClass = "medium"
	TTLLong   TTLClass = "long"
)

// TTLSet normalises cache TTLs from config into time.Duration values.
type TTLSet struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// NewTTLSet converts config TTLs (in seconds) into durations.
func NewTTLSet(cfg config.CacheTTL) TTLSet {
	return TTLSet{
		Short:  durationOrDefault(cfg.Short, 15*time.Minute),
		Medium: durationOrDefault(cfg.Medium, time.Hour),
		Long:   durationOrDefault(cfg.Long, 24*time.Hour),
	}
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds < 0 {
		return 0
	}
	if seconds == 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Duration returns the configured duration for the given TTL class.
func (t TTLSet) Duration(class TTLClass) time.Duration {
	switch class {
	case TTLShort:
		return t.Short
	case TTLMedium:
		return t.Medium
	case TTLLong:
		return t.Long
	default:
		return 0
	}
}

func formatKey(parts ...string) string {
	values := make([]string, 0, len(parts)+1)
	values = append(values, Namespace)
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		values = append(values, clean)
	}
	return strings.Join(values, ":")
}

// --- Raw provider data ------------------------------------------------------

// PricesKey caches daily bars for one symbol and period.
func PricesKey(symbol, period string) string {
	return formatKey("raw", "prices", strings.ToUpper(symbol), period)
}

// NewsKey caches unfiltered news for a symbol set and look-back window.
func NewsKey(symbols []string, days int) string {
	upper := make([]string, len(symbols))
	for i, s := range symbols {
		upper[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	return formatKey("raw", "news", strings.Join(upper, ","), strconv.Itoa(days))
}

// FilingKey caches the latest filing text of one type.
func FilingKey(symbol, filingType string) string {
	return formatKey("raw", "filing", strings.ToUpper(symbol), strings.ToUpper(filingType))
}

// --- Analysis ---------------------------------------------------------------

// AnalysisLatestKey caches the most recent persisted record of a symbol.
func AnalysisLatestKey(symbol string) string {
	return formatKey("analysis", "latest", strings.ToUpper(symbol))
}

// --- TTL helpers ------------------------------------------------------------

// PricesTTL returns the TTL for daily bars.
func PricesTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLMedium)
}

// NewsTTL returns the TTL for news.
func NewsTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLShort)
}

// FilingTTL returns the TTL for filings, which change at most quarterly.
func FilingTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLLong)
}

// AnalysisLatestTTL returns the TTL for the latest-record cache.
func AnalysisLatestTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLMedium)
}
