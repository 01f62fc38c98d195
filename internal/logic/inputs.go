package logic

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"quant-api/internal/errorx"
	"quant-api/internal/svc"
	"quant-api/pkg/analysis"
	"quant-api/pkg/cleaner"
	"quant-api/pkg/datasource"
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-^=]{0,14}$`)

// NormalizeSymbol upper-cases raw and rejects anything that is not a ticker.
func NormalizeSymbol(raw string) (string, error) {
	symbol := strings.ToUpper(strings.TrimSpace(raw))
	if symbol == "" {
		return "", errorx.BadRequest("symbol is required")
	}
	if !symbolPattern.MatchString(symbol) {
		return "", errorx.BadRequest("invalid symbol " + raw)
	}
	return symbol, nil
}

// InputOptions overrides the configured look-back windows. Zero values keep the configuration.
type InputOptions struct {
	Period     string
	Days       int
	FilingType string
}

// GatherInputs fetches and cleans everything one pipeline run needs. Only a
// symbol without price history is fatal; news and filing failures leave the
// corresponding input empty.
func GatherInputs(ctx context.Context, svcCtx *svc.ServiceContext, symbol string, opts InputOptions) (analysis.Request, error) {
	cfg := svcCtx.Pipeline.Config()
	logger := logx.WithContext(ctx)
	if opts.Period == "" {
		opts.Period = cfg.Period
	}
	if opts.Days <= 0 {
		opts.Days = cfg.NewsDays
	}
	opts.FilingType = strings.ToUpper(strings.TrimSpace(opts.FilingType))
	if opts.FilingType == "" {
		opts.FilingType = cfg.FilingType
	}

	req := analysis.Request{Symbol: symbol, FilingType: opts.FilingType}

	prices, err := svcCtx.Source.FetchPrices(ctx, symbol, opts.Period)
	switch {
	case errors.Is(err, datasource.ErrNotFound):
		return req, err
	case err != nil:
		logger.Errorf("logic: fetch prices symbol=%s period=%s err=%v", symbol, opts.Period, err)
	}
	req.Series = cleaner.CleanSeries(prices)

	news, err := svcCtx.Source.FetchNews(ctx, []string{symbol}, opts.Days)
	if err != nil {
		logger.Errorf("logic: fetch news symbol=%s days=%d err=%v", symbol, opts.Days, err)
	}
	req.News = cleaner.CleanNews(news, time.Now())

	filing, err := svcCtx.Source.FetchFiling(ctx, symbol, opts.FilingType)
	switch {
	case err != nil:
		logger.Errorf("logic: fetch filing symbol=%s type=%s err=%v", symbol, opts.FilingType, err)
	case filing != nil:
		req.FilingText = filing.Text
		if filing.Type != "" {
			req.FilingType = filing.Type
		}
	}

	logger.Infof("logic: inputs symbol=%s rows=%d news=%d/%d filing_chars=%d",
		symbol, req.Series.Len(), len(req.News), len(news), len(req.FilingText))
	return req, nil
}
