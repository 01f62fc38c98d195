// Package yahoo fetches daily price history from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"quant-api/pkg/datasource"
)

const (
	ProviderType   = "yahoo"
	defaultBaseURL = "https://query1.finance.yahoo.com"
	defaultAgent   = "Mozilla/5.0 (compatible; quant-api)"
)

var validRanges = map[string]bool{
	"1d": true, "5d": true, "1mo": true, "3mo": true, "6mo": true,
	"1y": true, "2y": true, "5y": true, "10y": true, "ytd": true, "max": true,
}

func init() {
	datasource.RegisterProvider(ProviderType, func(name string, cfg *datasource.ProviderConfig) (datasource.Provider, error) {
		return New(name, cfg), nil
	})
}

// Provider implements datasource.PriceFetcher.
type Provider struct {
	name    string
	baseURL string
	http    *datasource.HTTPClient
}

// New constructs a Yahoo provider.
func New(name string, cfg *datasource.ProviderConfig, opts ...datasource.HTTPOption) *Provider {
	if cfg == nil {
		cfg = &datasource.ProviderConfig{}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	httpCfg := *cfg
	if httpCfg.UserAgent == "" {
		httpCfg.UserAgent = defaultAgent
	}
	return &Provider{
		name:    name,
		baseURL: base,
		http:    datasource.NewHTTPClient(&httpCfg, opts...),
	}
}

func (p *Provider) Name() string { return p.name }

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency string `json:"currency"`
				Symbol   string `json:"symbol"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchPrices returns daily bars for period (a Yahoo range such as "1y").
func (p *Provider) FetchPrices(ctx context.Context, symbol, period string) ([]datasource.PricePoint, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, &datasource.ProviderError{Provider: p.name, Op: "prices", Err: errors.New("symbol is required")}
	}
	period = strings.ToLower(strings.TrimSpace(period))
	if period == "" {
		period = "1y"
	}
	if !validRanges[period] {
		return nil, &datasource.ProviderError{Provider: p.name, Op: "prices", Err: fmt.Errorf("unsupported period %q", period)}
	}

	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=%s", p.baseURL, url.PathEscape(symbol), url.QueryEscape(period))
	var chart chartResponse
	if err := p.http.GetJSON(ctx, u, &chart); err != nil {
		return nil, datasource.Wrap(p.name, "prices", err)
	}
	if chart.Chart.Error != nil {
		if strings.EqualFold(chart.Chart.Error.Code, "Not Found") {
			return nil, fmt.Errorf("%s %s: %w", p.name, symbol, datasource.ErrNotFound)
		}
		return nil, &datasource.ProviderError{Provider: p.name, Op: "prices", Err: errors.New(chart.Chart.Error.Description)}
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, fmt.Errorf("%s %s: %w", p.name, symbol, datasource.ErrNotFound)
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, &datasource.ProviderError{Provider: p.name, Op: "prices", Err: errors.New("response has no quote block")}
	}
	quote := result.Indicators.Quote[0]
	points := make([]datasource.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		pt := datasource.PricePoint{
			Date:     time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Open:     at(quote.Open, i),
			High:     at(quote.High, i),
			Low:      at(quote.Low, i),
			Close:    at(quote.Close, i),
			Currency: result.Meta.Currency,
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			pt.Volume = datasource.Int64Of(int64(*quote.Volume[i]))
		}
		points = append(points, pt)
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points, nil
}

// at tolerates short or null-filled columns; Yahoo sends null on halted days.
func at(col []*float64, i int) decimal.NullDecimal {
	if i >= len(col) || col[i] == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(*col[i]).Round(4))
}
