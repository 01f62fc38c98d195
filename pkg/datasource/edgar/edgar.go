// Package edgar fetches periodic filings from SEC EDGAR and converts the
// primary document to plain text.
package edgar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"quant-api/pkg/datasource"
)

const (
	ProviderType = "edgar"

	defaultWWWURL  = "https://www.sec.gov"
	defaultDataURL = "https://data.sec.gov"
	defaultAgent   = "quant-api research contact@example.com"
	// SEC fair access policy allows 10 requests per second.
	defaultRateLimit = 10
	defaultMaxChars  = 60000
)

func init() {
	datasource.RegisterProvider(ProviderType, func(name string, cfg *datasource.ProviderConfig) (datasource.Provider, error) {
		return New(name, cfg), nil
	})
}

// Provider implements datasource.FilingFetcher.
type Provider struct {
	name     string
	wwwURL   string
	dataURL  string
	maxChars int
	http     *datasource.HTTPClient

	mu   sync.Mutex
	ciks map[string]int64
}

// New constructs an EDGAR provider. A non-empty BaseURL serves both the
// www and data hosts, which is how tests point it at a single fake server.
func New(name string, cfg *datasource.ProviderConfig, opts ...datasource.HTTPOption) *Provider {
	httpCfg := datasource.ProviderConfig{}
	if cfg != nil {
		httpCfg = *cfg
	}
	if httpCfg.UserAgent == "" {
		httpCfg.UserAgent = defaultAgent
	}
	if httpCfg.RateLimit == 0 {
		httpCfg.RateLimit = defaultRateLimit
	}
	p := &Provider{
		name:     name,
		wwwURL:   defaultWWWURL,
		dataURL:  defaultDataURL,
		maxChars: httpCfg.MaxChars,
		http:     datasource.NewHTTPClient(&httpCfg, opts...),
	}
	if base := strings.TrimRight(httpCfg.BaseURL, "/"); base != "" {
		p.wwwURL, p.dataURL = base, base
	}
	if p.maxChars <= 0 {
		p.maxChars = defaultMaxChars
	}
	return p
}

func (p *Provider) Name() string { return p.name }

type tickerEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

type submissions struct {
	CIK     string `json:"cik"`
	Name    string `json:"name"`
	Filings struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			FilingDate      []string `json:"filingDate"`
			Form            []string `json:"form"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

// FetchFiling returns the text of the most recent filing of filingType.
func (p *Provider) FetchFiling(ctx context.Context, symbol, filingType string) (*datasource.Filing, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if filingType == "" {
		filingType = datasource.FilingAnnual
	}
	cik, err := p.lookupCIK(ctx, symbol)
	if err != nil {
		return nil, err
	}

	var subs submissions
	if err := p.http.GetJSON(ctx, fmt.Sprintf("%s/submissions/CIK%010d.json", p.dataURL, cik), &subs); err != nil {
		return nil, datasource.Wrap(p.name, "submissions", err)
	}

	recent := subs.Filings.Recent
	idx := -1
	for i, form := range recent.Form {
		if strings.EqualFold(form, filingType) {
			idx = i
			break
		}
	}
	if idx < 0 || idx >= len(recent.AccessionNumber) || idx >= len(recent.PrimaryDocument) {
		return nil, fmt.Errorf("%s %s %s: %w", p.name, symbol, filingType, datasource.ErrNotFound)
	}

	accession := strings.ReplaceAll(recent.AccessionNumber[idx], "-", "")
	docURL := fmt.Sprintf("%s/Archives/edgar/data/%d/%s/%s", p.wwwURL, cik, accession, recent.PrimaryDocument[idx])
	body, err := p.http.Get(ctx, docURL)
	if err != nil {
		return nil, datasource.Wrap(p.name, "document", err)
	}
	text, err := HTMLToText(body)
	if err != nil {
		return nil, &datasource.ProviderError{Provider: p.name, Op: "document", Err: err}
	}

	var filed time.Time
	if idx < len(recent.FilingDate) {
		filed, _ = time.Parse(time.DateOnly, recent.FilingDate[idx])
	}
	return &datasource.Filing{
		Text: truncate(text, p.maxChars),
		Type: filingType,
		Date: filed,
	}, nil
}

func (p *Provider) lookupCIK(ctx context.Context, symbol string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ciks == nil {
		var raw map[string]tickerEntry
		if err := p.http.GetJSON(ctx, p.wwwURL+"/files/company_tickers.json", &raw); err != nil {
			return 0, datasource.Wrap(p.name, "tickers", err)
		}
		ciks := make(map[string]int64, len(raw))
		for _, entry := range raw {
			ciks[strings.ToUpper(entry.Ticker)] = entry.CIK
		}
		p.ciks = ciks
	}
	cik, ok := p.ciks[symbol]
	if !ok {
		return 0, fmt.Errorf("%s %s: %w", p.name, symbol, datasource.ErrNotFound)
	}
	return cik, nil
}

// HTMLToText extracts readable text from an HTML filing, one block element per line.
func HTMLToText(html []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, head").Remove()

	var lines []string
	doc.Find("p, div, td, li, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		if s.Children().Filter("p, div, table, ul, ol").Length() > 0 {
			return
		}
		if line := collapseSpace(s.Text()); line != "" {
			lines = append(lines, line)
		}
	})
	if len(lines) == 0 {
		text := collapseSpace(doc.Text())
		if text == "" {
			return "", errors.New("document has no text")
		}
		return text, nil
	}
	return strings.Join(dedupeAdjacent(lines), "\n"), nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// dedupeAdjacent drops a line that repeats its predecessor.
func dedupeAdjacent(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if len(out) > 0 && out[len(out)-1] == l {
			continue
		}
		out = append(out, l)
	}
	return out
}

func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	s = s[:limit]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
