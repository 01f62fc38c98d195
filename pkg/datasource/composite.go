package datasource

import (
	"context"
	"errors"
)

var errNotConfigured = errors.New("capability not configured")

// Composite routes each capability to a dedicated provider.
type Composite struct {
	prices  PriceFetcher
	news    NewsFetcher
	filings FilingFetcher
}

// CompositeOption binds a provider to a capability.
type CompositeOption func(*Composite)

// WithPrices sets the price provider.
func WithPrices(p PriceFetcher) CompositeOption {
	return func(c *Composite) { c.prices = p }
}

// WithNews sets the news provider.
func WithNews(p NewsFetcher) CompositeOption {
	return func(c *Composite) { c.news = p }
}

// WithFilings sets the filing provider.
func WithFilings(p FilingFetcher) CompositeOption {
	return func(c *Composite) { c.filings = p }
}

// NewComposite builds a Source from the supplied bindings.
func NewComposite(opts ...CompositeOption) *Composite {
	c := &Composite{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Composite) FetchPrices(ctx context.Context, symbol, period string) ([]PricePoint, error) {
	if c.prices == nil {
		return nil, &ProviderError{Provider: "composite", Op: "prices", Err: errNotConfigured}
	}
	return c.prices.FetchPrices(ctx, symbol, period)
}

func (c *Composite) FetchNews(ctx context.Context, symbols []string, days int) ([]NewsItem, error) {
	if c.news == nil {
		return nil, &ProviderError{Provider: "composite", Op: "news", Err: errNotConfigured}
	}
	return c.news.FetchNews(ctx, symbols, days)
}

func (c *Composite) FetchFiling(ctx context.Context, symbol, filingType string) (*Filing, error) {
	if c.filings == nil {
		return nil, &ProviderError{Provider: "composite", Op: "filing", Err: errNotConfigured}
	}
	return c.filings.FetchFiling(ctx, symbol, filingType)
}
