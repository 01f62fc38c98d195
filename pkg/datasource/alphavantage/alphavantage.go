// Package alphavantage fetches news sentiment feeds and fundamentals from
// the Alpha Vantage query API.
package alphavantage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"quant-api/pkg/datasource"
)

const (
	ProviderType   = "alphavantage"
	defaultBaseURL = "https://www.alphavantage.co"

	publishedLayout = "20060102T150405"
	newsLimit       = 50
)

func init() {
	datasource.RegisterProvider(ProviderType, func(name string, cfg *datasource.ProviderConfig) (datasource.Provider, error) {
		if cfg == nil || strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("alphavantage: api_key is required")
		}
		return New(name, cfg), nil
	})
}

// Provider implements datasource.NewsFetcher and datasource.FilingFetcher.
type Provider struct {
	name    string
	baseURL string
	apiKey  string
	http    *datasource.HTTPClient
	now     func() time.Time
}

// New constructs an Alpha Vantage provider.
func New(name string, cfg *datasource.ProviderConfig, opts ...datasource.HTTPOption) *Provider {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return &Provider{
		name:    name,
		baseURL: base,
		apiKey:  cfg.APIKey,
		http:    datasource.NewHTTPClient(cfg, opts...),
		now:     time.Now,
	}
}

func (p *Provider) Name() string { return p.name }

// apiMessage captures the soft error fields Alpha Vantage returns with HTTP 200.
type apiMessage struct {
	ErrorMessage string `json:"Error Message"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
}

func (m apiMessage) err() error {
	switch {
	case m.ErrorMessage != "":
		return errors.New(m.ErrorMessage)
	case m.Note != "":
		return errors.New(m.Note)
	case m.Information != "":
		return errors.New(m.Information)
	}
	return nil
}

func (p *Provider) query(params url.Values) string {
	params.Set("apikey", p.apiKey)
	return p.baseURL + "/query?" + params.Encode()
}

type newsResponse struct {
	apiMessage
	Feed []struct {
		Title           string `json:"title"`
		URL             string `json:"url"`
		TimePublished   string `json:"time_published"`
		Summary         string `json:"summary"`
		Source          string `json:"source"`
		TickerSentiment []struct {
			Ticker string `json:"ticker"`
		} `json:"ticker_sentiment"`
	} `json:"feed"`
}

// FetchNews returns articles from the last days days tagged with any of symbols.
// An article tagged with several requested symbols is returned once per symbol.
func (p *Provider) FetchNews(ctx context.Context, symbols []string, days int) ([]datasource.NewsItem, error) {
	wanted := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			wanted = append(wanted, s)
		}
	}
	if len(wanted) == 0 {
		return nil, &datasource.ProviderError{Provider: p.name, Op: "news", Err: errors.New("at least one symbol is required")}
	}
	if days <= 0 {
		days = 7
	}

	params := url.Values{}
	params.Set("function", "NEWS_SENTIMENT")
	params.Set("tickers", strings.Join(wanted, ","))
	params.Set("limit", strconv.Itoa(newsLimit))

	var resp newsResponse
	if err := p.http.GetJSON(ctx, p.query(params), &resp); err != nil {
		return nil, datasource.Wrap(p.name, "news", err)
	}
	if err := resp.err(); err != nil {
		return nil, &datasource.ProviderError{Provider: p.name, Op: "news", Err: err}
	}

	cutoff := p.now().UTC().AddDate(0, 0, -days)
	var items []datasource.NewsItem
	for _, entry := range resp.Feed {
		published, err := time.Parse(publishedLayout, entry.TimePublished)
		if err != nil || published.Before(cutoff) {
			continue
		}
		for _, ts := range entry.TickerSentiment {
			ticker := strings.ToUpper(ts.Ticker)
			if !slices.Contains(wanted, ticker) {
				continue
			}
			items = append(items, datasource.NewsItem{
				Title:     entry.Title,
				Content:   entry.Summary,
				Timestamp: published.Format(time.RFC3339),
				Source:    entry.Source,
				URL:       entry.URL,
				Symbol:    ticker,
			})
		}
	}
	return items, nil
}

type incomeStatementResponse struct {
	apiMessage
	Symbol        string              `json:"symbol"`
	AnnualReports []map[string]string `json:"annualReports"`
}

type earningsResponse struct {
	apiMessage
	Symbol            string              `json:"symbol"`
	QuarterlyEarnings []map[string]string `json:"quarterlyEarnings"`
}

// incomeFields are rendered in this order; Alpha Vantage reports raw currency units.
var incomeFields = []struct{ key, label string }{
	{"totalRevenue", "Revenue"},
	{"grossProfit", "Gross profit"},
	{"operatingIncome", "Operating income"},
	{"netIncome", "Net profit"},
	{"ebitda", "EBITDA"},
	{"researchAndDevelopment", "Research and development"},
}

var earningsFields = []struct{ key, label string }{
	{"reportedEPS", "EPS"},
	{"estimatedEPS", "Estimated EPS"},
	{"surprise", "Surprise"},
	{"surprisePercentage", "Surprise percentage"},
}

// FetchFiling returns the latest income statement (10-K) or quarterly
// earnings report (10-Q) rendered as labelled text.
func (p *Provider) FetchFiling(ctx context.Context, symbol, filingType string) (*datasource.Filing, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if filingType == "" {
		filingType = datasource.FilingAnnual
	}

	params := url.Values{}
	params.Set("symbol", symbol)

	var (
		reports []map[string]string
		fields  = incomeFields
	)
	switch filingType {
	case datasource.FilingAnnual:
		params.Set("function", "INCOME_STATEMENT")
		var resp incomeStatementResponse
		if err := p.http.GetJSON(ctx, p.query(params), &resp); err != nil {
			return nil, datasource.Wrap(p.name, "filing", err)
		}
		if err := resp.err(); err != nil {
			return nil, &datasource.ProviderError{Provider: p.name, Op: "filing", Err: err}
		}
		reports = resp.AnnualReports
	case datasource.FilingQuarterly:
		params.Set("function", "EARNINGS")
		var resp earningsResponse
		if err := p.http.GetJSON(ctx, p.query(params), &resp); err != nil {
			return nil, datasource.Wrap(p.name, "filing", err)
		}
		if err := resp.err(); err != nil {
			return nil, &datasource.ProviderError{Provider: p.name, Op: "filing", Err: err}
		}
		reports = resp.QuarterlyEarnings
		fields = earningsFields
	default:
		return nil, &datasource.ProviderError{Provider: p.name, Op: "filing", Err: fmt.Errorf("unsupported filing type %q", filingType)}
	}

	if len(reports) == 0 {
		return nil, fmt.Errorf("%s %s %s: %w", p.name, symbol, filingType, datasource.ErrNotFound)
	}
	latest := reports[0]
	return &datasource.Filing{
		Text: renderReport(symbol, filingType, latest, fields),
		Type: filingType,
		Date: parseDate(latest["fiscalDateEnding"]),
	}, nil
}

func renderReport(symbol, filingType string, report map[string]string, fields []struct{ key, label string }) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s report", symbol, filingType)
	if end := report["fiscalDateEnding"]; end != "" {
		fmt.Fprintf(&b, " for fiscal period ending %s", end)
	}
	b.WriteString("\n")
	if cur := report["reportedCurrency"]; cur != "" {
		fmt.Fprintf(&b, "Currency: %s\n", cur)
	}
	for _, f := range fields {
		v, ok := report[f.key]
		if !ok || v == "" || v == "None" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", f.label, v)
	}
	return b.String()
}

func parseDate(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
