// Package datacache fronts a datasource.Source with a Redis cache of raw
// provider replies.
package datacache

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/redis"

	cachekeys "quant-api/internal/cache"
	"quant-api/pkg/datasource"
)

var _ datasource.Source = (*Source)(nil)

// Source is a cache-first datasource.Source.
type Source struct {
	next datasource.Source
	rds  *redis.Redis
	ttl  cachekeys.TTLSet
}

// New wraps next. A nil rds disables caching.
func New(next datasource.Source, rds *redis.Redis, ttl cachekeys.TTLSet) *Source {
	return &Source{next: next, rds: rds, ttl: ttl}
}

type pricePoint struct {
	Date     int64   `msgpack:"d"`
	Open     *string `msgpack:"o"`
	High     *string `msgpack:"h"`
	Low      *string `msgpack:"l"`
	Close    *string `msgpack:"c"`
	Volume   *int64  `msgpack:"v"`
	Currency string  `msgpack:"cur,omitempty"`
}

type filing struct {
	Text string `msgpack:"t"`
	Type string `msgpack:"k"`
	Date int64  `msgpack:"d"`
}

func (s *Source) FetchPrices(ctx context.Context, symbol, period string) ([]datasource.PricePoint, error) {
	key := cachekeys.PricesKey(symbol, period)
	var cached []pricePoint
	if s.load(ctx, key, &cached) {
		return fromPriceDTO(cached)
	}
	rows, err := s.next.FetchPrices(ctx, symbol, period)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		s.store(ctx, key, toPriceDTO(rows), cachekeys.PricesTTL(s.ttl))
	}
	return rows, nil
}

func (s *Source) FetchNews(ctx context.Context, symbols []string, days int) ([]datasource.NewsItem, error) {
	key := cachekeys.NewsKey(symbols, days)
	var cached []datasource.NewsItem
	if s.load(ctx, key, &cached) {
		return cached, nil
	}
	items, err := s.next.FetchNews(ctx, symbols, days)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, items, cachekeys.NewsTTL(s.ttl))
	return items, nil
}

func (s *Source) FetchFiling(ctx context.Context, symbol, filingType string) (*datasource.Filing, error) {
	key := cachekeys.FilingKey(symbol, filingType)
	var cached filing
	if s.load(ctx, key, &cached) {
		return &datasource.Filing{Text: cached.Text, Type: cached.Type, Date: time.Unix(cached.Date, 0).UTC()}, nil
	}
	f, err := s.next.FetchFiling(ctx, symbol, filingType)
	if err != nil {
		return nil, err
	}
	if f != nil {
		s.store(ctx, key, filing{Text: f.Text, Type: f.Type, Date: f.Date.Unix()}, cachekeys.FilingTTL(s.ttl))
	}
	return f, nil
}

func (s *Source) load(ctx context.Context, key string, dst any) bool {
	if s.rds == nil {
		return false
	}
	raw, err := s.rds.GetCtx(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logx.WithContext(ctx).Errorf("datacache: get key=%s err=%v", key, err)
		}
		return false
	}
	if raw == "" {
		return false
	}
	if err := msgpack.Unmarshal([]byte(raw), dst); err != nil {
		logx.WithContext(ctx).Errorf("datacache: decode key=%s err=%v", key, err)
		return false
	}
	logx.WithContext(ctx).Debugf("datacache: hit key=%s", key)
	return true
}

func (s *Source) store(ctx context.Context, key string, v any, ttl time.Duration) {
	if s.rds == nil || ttl <= 0 {
		return
	}
	data, err := msgpack.Marshal(v)
	if err != nil {
		logx.WithContext(ctx).Errorf("datacache: encode key=%s err=%v", key, err)
		return
	}
	if err := s.rds.SetexCtx(ctx, key, string(data), int(ttl/time.Second)); err != nil {
		logx.WithContext(ctx).Errorf("datacache: set key=%s err=%v", key, err)
	}
}

func toPriceDTO(rows []datasource.PricePoint) []pricePoint {
	out := make([]pricePoint, len(rows))
	for i, r := range rows {
		out[i] = pricePoint{
			Date:     r.Date.Unix(),
			Open:     decimalString(r.Open),
			High:     decimalString(r.High),
			Low:      decimalString(r.Low),
			Close:    decimalString(r.Close),
			Volume:   r.Volume,
			Currency: r.Currency,
		}
	}
	return out
}

func fromPriceDTO(rows []pricePoint) ([]datasource.PricePoint, error) {
	out := make([]datasource.PricePoint, len(rows))
	for i, r := range rows {
		p := datasource.PricePoint{Date: time.Unix(r.Date, 0).UTC(), Volume: r.Volume, Currency: r.Currency}
		var err error
		if p.Open, err = parseDecimal(r.Open); err != nil {
			return nil, err
		}
		if p.High, err = parseDecimal(r.High); err != nil {
			return nil, err
		}
		if p.Low, err = parseDecimal(r.Low); err != nil {
			return nil, err
		}
		if p.Close, err = parseDecimal(r.Close); err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

func decimalString(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

func parseDecimal(s *string) (decimal.NullDecimal, error) {
	if s == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}
