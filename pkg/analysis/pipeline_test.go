package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"quant-api/pkg/cleaner"
	"quant-api/pkg/datasource"
	"quant-api/pkg/sentiment"
	"quant-api/pkg/stream"
)

func newsItems() []datasource.NewsItem {
	return []datasource.NewsItem{
		{Title: "Apple beats", Content: "Apple reported strong growth and record profit this quarter.", Timestamp: "2024-04-30T10:00:00Z", Source: "wire"},
		{Title: "Apple rally", Content: "Shares surged after the upgrade from analysts.", Timestamp: "2024-04-30T11:00:00Z", Source: "wire"},
	}
}

func risingSeries(n int) cleaner.Series {
	points := make([]datasource.PricePoint, n)
	for i := range points {
		c := datasource.DecimalOf(100 + float64(i))
		points[i] = datasource.PricePoint{
			Date:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Open:  c,
			High:  c,
			Low:   c,
			Close: c,
		}
	}
	return cleaner.CleanSeries(points)
}

func newTestPipeline(gen TextGenerator, store ResultStore) *Pipeline {
	return NewPipeline(gen,
		WithStore(store),
		WithNow(fixedClock()),
		WithRunID(func() string { return "run-1" }),
	)
}

func kinds(events []stream.Event) []stream.Kind {
	out := make([]stream.Kind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind()
	}
	return out
}

func TestPipelineHappyPath(t *testing.T) {
	prediction := "Short term: up\nMedium term: up\nLong term: flat\nRisk: supply chain\nAdvice: hold\nTarget: 190-200\nEnd"
	gen := &scriptedGen{scripts: []script{
		{deltas: []string{"News ", "view"}},
		{deltas: []string{"Revenue: 383,285\n", "EPS: 6.13"}},
		{deltas: strings.SplitAfter(prediction, "\n")},
	}}
	store := &memStore{}
	p := newTestPipeline(gen, store)

	events := collect(p.Analyze(context.Background(), Request{
		Symbol:     "aapl",
		News:       newsItems(),
		FilingText: "Total net sales 383,285",
		FilingType: "10-k",
		Series:     risingSeries(20),
	}))

	require.Equal(t, []stream.Kind{
		stream.KindStatus, stream.KindContent, stream.KindContent, stream.KindComplete,
		stream.KindStatus, stream.KindContent, stream.KindContent, stream.KindComplete,
		stream.KindStatus, stream.KindContent, stream.KindContent, stream.KindContent, stream.KindContent,
		stream.KindContent, stream.KindContent, stream.KindContent, stream.KindComplete,
		stream.KindComplete,
	}, kinds(events))

	var news NewsPayload
	require.NoError(t, events[3].(stream.Complete).Decode(&news))
	require.Equal(t, "News view", news.Analysis)
	require.Equal(t, 2, news.SourceCount)
	require.Equal(t, "AAPL", news.Symbol)
	require.Greater(t, news.SentimentConsistency, 0.0)

	var filing FilingPayload
	require.NoError(t, events[7].(stream.Complete).Decode(&filing))
	require.Equal(t, "10-K", filing.ReportType)
	require.Equal(t, map[string]float64{"revenue": 383285, "eps": 6.13}, filing.KeyMetrics)

	var final FinalPayload
	require.NoError(t, events[len(events)-1].(stream.Complete).Decode(&final))
	require.Equal(t, "AAPL", final.Symbol)
	require.Equal(t, prediction, final.Prediction)
	require.NotNil(t, final.ConfidenceScore)
	require.Equal(t, 0.7, *final.ConfidenceScore)

	require.Len(t, gen.prompts, 3)
	require.Contains(t, gen.prompts[0], "Apple beats")
	require.Contains(t, gen.prompts[1], "Total net sales 383,285")
	require.Contains(t, gen.prompts[2], "News view")
	require.Contains(t, gen.prompts[2], "Revenue: 383,285")
	require.Contains(t, gen.prompts[2], "Trend: up")
	require.Equal(t, []float64{0.3, 0.2, 0.3}, gen.temps)

	require.Len(t, store.saved, 1)
	rec := store.saved[0]
	require.Equal(t, "run-1", rec.RunID)
	require.Equal(t, "News view", rec.NewsAnalysis)
	require.Equal(t, "Revenue: 383,285\nEPS: 6.13", rec.FilingAnalysis)
	require.Equal(t, prediction, rec.Prediction)
	require.Equal(t, 0.7, *rec.ConfidenceScore)
}

func TestPipelineAllStagesFail(t *testing.T) {
	gen := &scriptedGen{scripts: []script{
		{openErr: errors.New("news down")},
		{deltas: []string{"half"}, failErr: errors.New("filing timeout")},
		{openErr: errors.New("prediction down")},
	}}
	store := &memStore{}
	p := newTestPipeline(gen, store)

	events := collect(p.Analyze(context.Background(), Request{
		Symbol:     "AAPL",
		FilingText: "some filing",
	}))

	require.Equal(t, []stream.Kind{
		stream.KindStatus, stream.KindError,
		stream.KindStatus, stream.KindContent, stream.KindError,
		stream.KindStatus, stream.KindError,
		stream.KindComplete,
	}, kinds(events))

	completes := 0
	for _, ev := range events {
		if ev.Kind() == stream.KindComplete {
			completes++
		}
	}
	require.Equal(t, 1, completes)

	final := events[len(events)-1].(stream.Complete)
	require.JSONEq(t, `{"symbol":"AAPL","prediction":"","confidence_score":null,"timestamp":"2024-05-01T08:00:00Z"}`, string(final.Data))

	require.Contains(t, gen.prompts[2], NoAnalysis)
	require.NotContains(t, gen.prompts[2], "half")

	require.Len(t, store.saved, 1)
	require.Nil(t, store.saved[0].ConfidenceScore)
	require.Equal(t, "half", store.saved[0].FilingAnalysis)
}

func TestPipelineWithoutFiling(t *testing.T) {
	gen := &scriptedGen{scripts: []script{
		{deltas: []string{"news"}},
		{deltas: []string{"hold"}},
	}}
	p := newTestPipeline(gen, nil)

	events := collect(p.Analyze(context.Background(), Request{Symbol: "MSFT"}))

	require.Equal(t, []stream.Kind{
		stream.KindStatus, stream.KindContent, stream.KindComplete,
		stream.KindError,
		stream.KindStatus, stream.KindContent, stream.KindComplete,
		stream.KindComplete,
	}, kinds(events))
	require.Equal(t, stream.Error{Message: "filing stage: no filing available"}, events[3])
	require.Equal(t, 2, gen.calls())
	require.Contains(t, gen.prompts[1], "Trend: unknown")
	require.Contains(t, gen.prompts[1], "MA5: n/a")

	var final FinalPayload
	require.NoError(t, events[len(events)-1].(stream.Complete).Decode(&final))
	require.Equal(t, 0.37, *final.ConfidenceScore)
}

func TestPipelineStorageFailure(t *testing.T) {
	gen := &scriptedGen{scripts: []script{
		{deltas: []string{"n"}},
		{deltas: []string{"f"}},
		{deltas: []string{"p"}},
	}}
	p := newTestPipeline(gen, &memStore{err: errors.New("db gone")})

	events := collect(p.Analyze(context.Background(), Request{Symbol: "AAPL", FilingText: "x"}))

	n := len(events)
	require.Equal(t, stream.Error{Message: "persist analysis: db gone"}, events[n-2])
	require.Equal(t, stream.KindComplete, events[n-1].Kind())
}

func TestPipelineConsumerDisconnects(t *testing.T) {
	gen := &scriptedGen{scripts: []script{
		{deltas: []string{"a", "b"}},
		{deltas: []string{"c"}},
		{deltas: []string{"d"}},
	}}
	store := &memStore{}
	p := newTestPipeline(gen, store)

	var got []stream.Event
	rec, err := p.Run(context.Background(), Request{Symbol: "AAPL", FilingText: "x"}, func(ev stream.Event) bool {
		got = append(got, ev)
		return len(got) < 2
	})

	require.ErrorIs(t, err, ErrStopped)
	require.Nil(t, rec)
	require.Len(t, got, 2)
	require.Equal(t, 1, gen.calls())
	require.Empty(t, store.saved)
}

func TestPipelineContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &scriptedGen{scripts: []script{
		{deltas: []string{"a"}},
		{deltas: []string{"b"}},
		{deltas: []string{"c"}},
	}}
	store := &memStore{}
	p := newTestPipeline(gen, store)

	var got []stream.Event
	rec, err := p.Run(ctx, Request{Symbol: "AAPL", FilingText: "x"}, func(ev stream.Event) bool {
		got = append(got, ev)
		if ev.Kind() == stream.KindComplete {
			cancel()
		}
		return true
	})

	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, rec)
	require.Equal(t, 1, gen.calls())
	require.Empty(t, store.saved)
	require.Len(t, got, 3)
}

func TestPipelineTruncatesInputs(t *testing.T) {
	gen := &scriptedGen{scripts: []script{{}, {}, {}}}
	cfg := DefaultConfig()
	cfg.MaxNewsItems = 1
	cfg.MaxFilingChars = 4
	scorer := fixedScorer{"Apple reported": 1, "Shares surged": -1}
	p := NewPipeline(gen, WithConfig(cfg), WithNow(fixedClock()), WithScorer(scorer))

	events := collect(p.Analyze(context.Background(), Request{
		Symbol:     "AAPL",
		News:       newsItems(),
		FilingText: "季度报告全文内容",
	}))

	require.Contains(t, gen.prompts[0], "Apple beats")
	require.NotContains(t, gen.prompts[0], "Apple rally")
	require.Contains(t, gen.prompts[1], "季度报告")
	require.NotContains(t, gen.prompts[1], "季度报告全")

	require.Equal(t, stream.KindComplete, events[1].Kind())
	var news NewsPayload
	require.NoError(t, events[1].(stream.Complete).Decode(&news))
	require.Equal(t, 2, news.SourceCount)
	require.Equal(t, sentiment.Consistency([]float64{1, -1}), news.SentimentConsistency)
	require.InDelta(t, 0.0, news.SentimentConsistency, 1e-9)

	var final FinalPayload
	require.NoError(t, events[len(events)-1].(stream.Complete).Decode(&final))
	require.Nil(t, final.ConfidenceScore)
}

// fixedScorer scores an item by the first key its content starts with.
type fixedScorer map[string]float64

func (f fixedScorer) Polarity(text string) float64 {
	for prefix, v := range f {
		if strings.HasPrefix(text, prefix) {
			return v
		}
	}
	return 0
}
