package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeromicro/go-zero/rest/httpx"
	"github.com/zeromicro/go-zero/rest/pathvar"

	"quant-api/internal/errorx"
	"quant-api/internal/svc"
	"quant-api/internal/types"
	"quant-api/pkg/analysis"
	"quant-api/pkg/datasource"
	"quant-api/pkg/journal"
	"quant-api/pkg/stream"
)

func TestMain(m *testing.M) {
	httpx.SetErrorHandlerCtx(errorx.Handler)
	os.Exit(m.Run())
}

type fakeSource struct {
	prices []datasource.PricePoint
	news   []datasource.NewsItem
	filing *datasource.Filing
	err    error
}

func (f *fakeSource) FetchPrices(context.Context, string, string) ([]datasource.PricePoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.prices, nil
}

func (f *fakeSource) FetchNews(context.Context, []string, int) ([]datasource.NewsItem, error) {
	return f.news, nil
}

func (f *fakeSource) FetchFiling(context.Context, string, string) (*datasource.Filing, error) {
	if f.filing == nil {
		return nil, datasource.ErrNotFound
	}
	return f.filing, nil
}

type echoGen struct {
	mu    sync.Mutex
	calls int
	block chan struct{}
}

func (g *echoGen) Stream(ctx context.Context, _ string, _ float64) (analysis.TextStream, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	return &wordStream{ctx: ctx, words: []string{"Revenue: 120", "\nrisk ", "is moderate"}, pos: -1, block: g.block}, nil
}

type wordStream struct {
	ctx   context.Context
	words []string
	pos   int
	err   error
	block chan struct{}
}

func (s *wordStream) Next() bool {
	if s.block != nil && s.pos >= 0 {
		select {
		case <-s.block:
		case <-s.ctx.Done():
			s.err = s.ctx.Err()
			return false
		}
	}
	s.pos++
	return s.pos < len(s.words)
}

func (s *wordStream) Delta() string { return s.words[s.pos] }
func (s *wordStream) Err() error    { return s.err }
func (s *wordStream) Close() error  { return nil }

func priceHistory(n int) []datasource.PricePoint {
	start := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	out := make([]datasource.PricePoint, n)
	for i := range out {
		c := 100 + float64(i)
		out[i] = datasource.PricePoint{
			Date:   start.AddDate(0, 0, i),
			Open:   datasource.DecimalOf(c - 0.5),
			High:   datasource.DecimalOf(c + 1),
			Low:    datasource.DecimalOf(c - 1),
			Close:  datasource.DecimalOf(c),
			Volume: datasource.Int64Of(1000),
		}
	}
	return out
}

func newTestContext(t *testing.T, src datasource.Source, gen analysis.TextGenerator) *svc.ServiceContext {
	t.Helper()
	w, err := journal.NewWriter(t.TempDir())
	require.NoError(t, err)
	return &svc.ServiceContext{
		Source:    src,
		Generator: gen,
		Store:     w,
		Pipeline:  analysis.NewPipeline(gen, analysis.WithStore(w)),
	}
}

func withSymbol(r *http.Request, symbol string) *http.Request {
	return pathvar.WithVars(r, map[string]string{"symbol": symbol})
}

func TestIndexHandler(t *testing.T) {
	svcCtx := newTestContext(t, &fakeSource{}, &echoGen{})
	rec := httptest.NewRecorder()
	IndexHandler(svcCtx)(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp types.IndexResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "1.0.0", resp.Version)
}

func TestStockHandler(t *testing.T) {
	svcCtx := newTestContext(t, &fakeSource{prices: priceHistory(20)}, &echoGen{})
	rec := httptest.NewRecorder()
	req := withSymbol(httptest.NewRequest(http.MethodGet, "/api/v1/stock/aapl?period=1mo", nil), "aapl")
	StockHandler(svcCtx)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp types.StockResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "AAPL", resp.Symbol)
	assert.Equal(t, "1mo", resp.Period)
	require.Len(t, resp.Rows, 20)
	assert.Equal(t, "2024-04-01", resp.Rows[0].Date)
	assert.Equal(t, "up", resp.Indicators.Trend)
	require.NotNil(t, resp.Indicators.MA5)
	assert.InDelta(t, 117.0, *resp.Indicators.MA5, 1e-9)
}

func TestStockHandlerErrors(t *testing.T) {
	tests := []struct {
		name   string
		symbol string
		src    *fakeSource
		code   int
	}{
		{"invalid symbol", "AA PL!", &fakeSource{}, http.StatusBadRequest},
		{"no rows", "AAPL", &fakeSource{}, http.StatusNotFound},
		{"not found", "AAPL", &fakeSource{err: datasource.ErrNotFound}, http.StatusNotFound},
		{"provider down", "AAPL", &fakeSource{err: &datasource.ProviderError{Provider: "yahoo", Op: "prices", Err: errors.New("503")}}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svcCtx := newTestContext(t, tt.src, &echoGen{})
			rec := httptest.NewRecorder()
			StockHandler(svcCtx)(rec, withSymbol(httptest.NewRequest(http.MethodGet, "/", nil), tt.symbol))
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func readEvents(t *testing.T, r io.Reader) []stream.Event {
	t.Helper()
	var events []stream.Event
	reader := stream.NewReader(r)
	for {
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return events
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

func TestAnalyzeHandlerStreamsAndPersists(t *testing.T) {
	src := &fakeSource{
		prices: priceHistory(20),
		news: []datasource.NewsItem{{
			Title:     "Apple beats estimates",
			Content:   strings.Repeat("Apple reported strong quarterly growth in services. ", 2),
			Timestamp: time.Now().Add(-time.Hour).UTC().Format(time.RFC3339),
			Source:    "wire",
		}},
		filing: &datasource.Filing{Text: "Total revenue 120 billion", Type: "10-K"},
	}
	gen := &echoGen{}
	svcCtx := newTestContext(t, src, gen)

	rec := httptest.NewRecorder()
	AnalyzeHandler(svcCtx)(rec, withSymbol(httptest.NewRequest(http.MethodGet, "/api/v1/stock/AAPL/analyze", nil), "AAPL"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ndjsonContentType, rec.Header().Get("Content-Type"))

	events := readEvents(t, rec.Body)
	require.NotEmpty(t, events)
	last, ok := events[len(events)-1].(stream.Complete)
	require.True(t, ok)
	var final analysis.FinalPayload
	require.NoError(t, last.Decode(&final))
	assert.Equal(t, "AAPL", final.Symbol)
	assert.Equal(t, "Revenue: 120\nrisk is moderate", final.Prediction)
	require.NotNil(t, final.ConfidenceScore)
	assert.Equal(t, 3, gen.calls)

	for _, ev := range events {
		_, isErr := ev.(stream.Error)
		assert.False(t, isErr)
	}

	latest, err := svcCtx.Store.Latest(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, final.Prediction, latest.Prediction)

	lrec := httptest.NewRecorder()
	LatestHandler(svcCtx)(lrec, withSymbol(httptest.NewRequest(http.MethodGet, "/", nil), "aapl"))
	require.Equal(t, http.StatusOK, lrec.Code)
	var body types.AnalysisRecord
	require.NoError(t, json.Unmarshal(lrec.Body.Bytes(), &body))
	assert.Equal(t, latest.RunID, body.RunID)
}

func TestAnalyzeHandlerWithoutFiling(t *testing.T) {
	svcCtx := newTestContext(t, &fakeSource{prices: priceHistory(3)}, &echoGen{})
	rec := httptest.NewRecorder()
	AnalyzeHandler(svcCtx)(rec, withSymbol(httptest.NewRequest(http.MethodGet, "/", nil), "MSFT"))

	events := readEvents(t, rec.Body)
	var messages []string
	for _, ev := range events {
		if e, ok := ev.(stream.Error); ok {
			messages = append(messages, e.Message)
		}
	}
	assert.Equal(t, []string{"filing stage: no filing available"}, messages)
	_, ok := events[len(events)-1].(stream.Complete)
	assert.True(t, ok)
}

func TestAnalyzeHandlerRejectsBeforeStreaming(t *testing.T) {
	svcCtx := newTestContext(t, &fakeSource{err: datasource.ErrNotFound}, &echoGen{})
	rec := httptest.NewRecorder()
	AnalyzeHandler(svcCtx)(rec, withSymbol(httptest.NewRequest(http.MethodGet, "/", nil), "NOPE"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	AnalyzeHandler(svcCtx)(rec, withSymbol(httptest.NewRequest(http.MethodGet, "/?days=abc", nil), "AAPL"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLatestHandlerNotFound(t *testing.T) {
	svcCtx := newTestContext(t, &fakeSource{}, &echoGen{})
	rec := httptest.NewRecorder()
	LatestHandler(svcCtx)(rec, withSymbol(httptest.NewRequest(http.MethodGet, "/", nil), "TSLA"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyzeWSHandler(t *testing.T) {
	svcCtx := newTestContext(t, &fakeSource{prices: priceHistory(12)}, &echoGen{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		AnalyzeWSHandler(svcCtx)(w, withSymbol(r, "AAPL"))
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	var events []stream.Event
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			break
		}
		ev, err := stream.Unmarshal(data)
		require.NoError(t, err)
		events = append(events, ev)
	}
	require.NotEmpty(t, events)
	_, ok := events[0].(stream.Status)
	assert.True(t, ok)
	_, ok = events[len(events)-1].(stream.Complete)
	assert.True(t, ok)
}

func TestAnalyzeWSHandlerStopsWhenClientLeaves(t *testing.T) {
	gen := &echoGen{block: make(chan struct{})}
	svcCtx := newTestContext(t, &fakeSource{prices: priceHistory(12)}, gen)
	finished := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(finished)
		AnalyzeWSHandler(svcCtx)(w, withSymbol(r, "AAPL"))
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	_, _, err = conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not stop")
	}
	_, err = svcCtx.Store.Latest(context.Background(), "AAPL")
	assert.ErrorIs(t, err, analysis.ErrNoRecord)
	assert.Equal(t, 1, gen.calls)
}
