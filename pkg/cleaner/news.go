// Package cleaner filters noisy news items and repairs raw price series
// before they reach the indicator engine and the analysis stages.
package cleaner

import (
	"strings"
	"time"
	"unicode/utf8"

	"quant-api/pkg/datasource"
)

const (
	defaultMinContentRunes = 50
	defaultMaxOffTopic     = 2
	futureTolerance        = 24 * time.Hour
)

// Promotional markers. A single hit drops the item.
var defaultPromoKeywords = []string{
	"推广", "广告", "立即购买", "点击购买", "优惠", "折扣", "限时", "特价",
	"sponsored", "promoted", "advertisement", "buy now", "promo code", "special offer", "limited-time offer",
}

// Entertainment and engagement-bait vocabulary. More than MaxOffTopic distinct
// hits mark the item irrelevant.
var defaultOffTopicKeywords = []string{
	"游戏", "娱乐", "明星", "八卦", "点击量", "转发量", "观看量",
	"celebrity", "gossip", "entertainment", "red carpet", "box office", "viral video", "page views",
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"20060102T150405",
	"20060102T1504",
	time.DateOnly,
}

// NewsFilter drops incomplete, stale-dated, promotional and off-topic articles.
// The zero value is not usable; start from DefaultNewsFilter.
type NewsFilter struct {
	MinContentRunes  int
	PromoKeywords    []string
	OffTopicKeywords []string
	MaxOffTopic      int
}

// DefaultNewsFilter returns the filter used by the pipeline.
func DefaultNewsFilter() NewsFilter {
	return NewsFilter{
		MinContentRunes:  defaultMinContentRunes,
		PromoKeywords:    defaultPromoKeywords,
		OffTopicKeywords: defaultOffTopicKeywords,
		MaxOffTopic:      defaultMaxOffTopic,
	}
}

// CleanNews applies DefaultNewsFilter.
func CleanNews(items []datasource.NewsItem, now time.Time) []datasource.NewsItem {
	return DefaultNewsFilter().Clean(items, now)
}

// Clean returns the items that pass every check, in input order. It does not
// modify items.
func (f NewsFilter) Clean(items []datasource.NewsItem, now time.Time) []datasource.NewsItem {
	out := make([]datasource.NewsItem, 0, len(items))
	for _, item := range items {
		if f.Reason(item, now) == "" {
			out = append(out, item)
		}
	}
	return out
}

// Reason names the first check item fails, or "" when it passes.
func (f NewsFilter) Reason(item datasource.NewsItem, now time.Time) string {
	if strings.TrimSpace(item.Title) == "" || strings.TrimSpace(item.Content) == "" || strings.TrimSpace(item.Timestamp) == "" {
		return "missing_field"
	}
	if utf8.RuneCountInString(item.Content) < f.MinContentRunes {
		return "too_short"
	}
	ts, ok := ParseTimestamp(item.Timestamp)
	if !ok {
		return "bad_timestamp"
	}
	if ts.After(now.Add(futureTolerance)) {
		return "future_timestamp"
	}
	if containsAny(strings.ToLower(item.Title+" "+item.Content), f.PromoKeywords) {
		return "promotional"
	}
	if countDistinct(strings.ToLower(item.Content), f.OffTopicKeywords) > f.MaxOffTopic {
		return "off_topic"
	}
	return ""
}

// ParseTimestamp accepts RFC 3339 and the compact layouts news providers emit.
// Values without a zone are read as UTC.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func countDistinct(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			n++
		}
	}
	return n
}
