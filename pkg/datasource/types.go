// Package datasource defines the raw market data records and the provider
// capabilities the analysis pipeline consumes.
package datasource

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is one daily bar as reported by a provider. Any numeric field may
// be missing; the cleaner repairs them.
type PricePoint struct {
	Date     time.Time           `json:"date"`
	Open     decimal.NullDecimal `json:"open"`
	High     decimal.NullDecimal `json:"high"`
	Low      decimal.NullDecimal `json:"low"`
	Close    decimal.NullDecimal `json:"close"`
	Volume   *int64              `json:"volume"`
	Currency string              `json:"currency,omitempty"`
}

// NewsItem is an unfiltered article. Timestamp is kept as delivered.
type NewsItem struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
	URL       string `json:"url,omitempty"`
	Symbol    string `json:"symbol,omitempty"`
}

// Filing is the text of a periodic report.
type Filing struct {
	Text string    `json:"text"`
	Type string    `json:"type"`
	Date time.Time `json:"date"`
}

// Filing types understood by the providers.
const (
	FilingAnnual    = "10-K"
	FilingQuarterly = "10-Q"
)

// Provider is implemented by every configured data provider. Concrete
// providers additionally implement one or more of the fetcher interfaces.
type Provider interface {
	Name() string
}

// PriceFetcher returns daily bars ordered oldest first.
type PriceFetcher interface {
	FetchPrices(ctx context.Context, symbol, period string) ([]PricePoint, error)
}

// NewsFetcher returns recent articles mentioning any of symbols.
type NewsFetcher interface {
	FetchNews(ctx context.Context, symbols []string, days int) ([]NewsItem, error)
}

// FilingFetcher returns the most recent filing of filingType.
type FilingFetcher interface {
	FetchFiling(ctx context.Context, symbol, filingType string) (*Filing, error)
}

// Source bundles every capability needed by one analysis request.
type Source interface {
	PriceFetcher
	NewsFetcher
	FilingFetcher
}

// DecimalOf wraps f as a valid NullDecimal.
func DecimalOf(f float64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromFloat(f))
}

// Int64Of returns a pointer to v.
func Int64Of(v int64) *int64 {
	return &v
}
