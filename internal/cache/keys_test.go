package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"quant-api/internal/config"
)

func TestKeys(t *testing.T) {
	require.Equal(t, "quant:raw:prices:AAPL:1y", PricesKey("aapl", "1y"))
	require.Equal(t, "quant:raw:news:AAPL,MSFT:7", NewsKey([]string{"aapl", " msft"}, 7))
	require.Equal(t, "quant:raw:filing:AAPL:10-K", FilingKey("AAPL", "10-k"))
	require.Equal(t, "quant:analysis:latest:TSLA", AnalysisLatestKey("tsla"))
	require.Equal(t, "quant:raw:prices:AAPL", PricesKey("AAPL", " "))
}

func TestNewTTLSet(t *testing.T) {
	ttl := NewTTLSet(config.CacheTTL{Short: 30, Medium: 0, Long: -1})
	require.Equal(t, 30*time.Second, ttl.Short)
	require.Equal(t, time.Hour, ttl.Medium)
	require.Zero(t, ttl.Long)

	require.Equal(t, ttl.Short, NewsTTL(ttl))
	require.Equal(t, ttl.Medium, PricesTTL(ttl))
	require.Equal(t, ttl.Long, FilingTTL(ttl))
	require.Equal(t, ttl.Medium, AnalysisLatestTTL(ttl))
	require.Zero(t, ttl.Duration("unknown"))
}
