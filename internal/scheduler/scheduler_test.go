package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"quant-api/internal/config"
	"quant-api/internal/svc"
	"quant-api/pkg/analysis"
	"quant-api/pkg/datasource"
	"quant-api/pkg/journal"
)

type stubSource struct{}

func (stubSource) FetchPrices(_ context.Context, symbol, _ string) ([]datasource.PricePoint, error) {
	if symbol == "GONE" {
		return nil, datasource.ErrNotFound
	}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]datasource.PricePoint, 12)
	for i := range rows {
		rows[i] = datasource.PricePoint{Date: start.AddDate(0, 0, i), Close: datasource.DecimalOf(50 + float64(i))}
	}
	return rows, nil
}

func (stubSource) FetchNews(context.Context, []string, int) ([]datasource.NewsItem, error) {
	return nil, errors.New("news feed offline")
}

func (stubSource) FetchFiling(context.Context, string, string) (*datasource.Filing, error) {
	return &datasource.Filing{Text: "Net income: 12", Type: "10-Q"}, nil
}

type constGen struct{ text string }

func (g constGen) Stream(context.Context, string, float64) (analysis.TextStream, error) {
	return &oneShot{text: g.text}, nil
}

type oneShot struct {
	text string
	done bool
}

func (o *oneShot) Next() bool {
	if o.done {
		return false
	}
	o.done = true
	return true
}
func (o *oneShot) Delta() string { return o.text }
func (o *oneShot) Err() error    { return nil }
func (o *oneShot) Close() error  { return nil }

func newScheduler(t *testing.T, watchlist ...string) (*Scheduler, *journal.Writer) {
	t.Helper()
	w, err := journal.NewWriter(t.TempDir())
	require.NoError(t, err)
	gen := constGen{text: "Price target 210 with limited risk"}
	svcCtx := &svc.ServiceContext{
		Source:    stubSource{},
		Generator: gen,
		Store:     w,
		Pipeline:  analysis.NewPipeline(gen, analysis.WithStore(w)),
	}
	s, err := New(svcCtx, config.CronConf{Spec: "30 16 * * 1-5", Timezone: "America/New_York", Watchlist: watchlist}, time.Minute)
	require.NoError(t, err)
	return s, w
}

func TestRunOnce(t *testing.T) {
	s, w := newScheduler(t, "aapl", "GONE", "bad symbol!")
	results := s.RunOnce(context.Background())
	require.Len(t, results, 3)

	require.NoError(t, results[0].Err)
	require.Equal(t, "AAPL", results[0].Symbol)
	require.NotEmpty(t, results[0].RunID)
	require.Empty(t, results[0].Errors)
	require.NotNil(t, results[0].Confidence)
	require.InDelta(t, 0.57, *results[0].Confidence, 1e-9)

	require.ErrorIs(t, results[1].Err, datasource.ErrNotFound)
	require.Error(t, results[2].Err)

	rec, err := w.Latest(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Equal(t, results[0].RunID, rec.RunID)
}

func TestRunOnceStopsOnCancel(t *testing.T) {
	s, _ := newScheduler(t, "AAPL", "MSFT")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Empty(t, s.RunOnce(ctx))
}

func TestRegister(t *testing.T) {
	s, _ := newScheduler(t)
	require.ErrorContains(t, s.Register(context.Background()), "watchlist is empty")

	s, _ = newScheduler(t, "AAPL")
	s.conf.Spec = "not a spec"
	require.ErrorContains(t, s.Register(context.Background()), "register")

	s.conf.Spec = "0 17 * * 1-5"
	require.NoError(t, s.Register(context.Background()))
	require.Len(t, s.cron.Entries(), 1)
}

func TestNewRejectsBadTimezone(t *testing.T) {
	_, err := New(&svc.ServiceContext{}, config.CronConf{Timezone: "Mars/Olympus"}, 0)
	require.Error(t, err)
}
