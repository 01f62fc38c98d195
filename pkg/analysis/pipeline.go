package analysis

import (
	"context"
	"errors"
	"iter"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"quant-api/pkg/cleaner"
	"quant-api/pkg/datasource"
	"quant-api/pkg/indicators"
	"quant-api/pkg/sentiment"
	"quant-api/pkg/stream"
)

// Request carries the cleaned inputs of one pipeline run.
type Request struct {
	Symbol     string
	News       []datasource.NewsItem
	FilingText string
	FilingType string
	Series     cleaner.Series
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithStore persists each finished run. Without a store records are only streamed.
func WithStore(store ResultStore) Option {
	return func(p *Pipeline) { p.store = store }
}

// WithScorer replaces the news polarity scorer.
func WithScorer(scorer sentiment.Scorer) Option {
	return func(p *Pipeline) {
		if scorer != nil {
			p.scorer = scorer
		}
	}
}

// WithPrompts replaces the embedded stage templates.
func WithPrompts(prompts *Prompts) Option {
	return func(p *Pipeline) {
		if prompts != nil {
			p.prompts = prompts
		}
	}
}

// WithConfig sets temperatures and input limits.
func WithConfig(cfg *Config) Option {
	return func(p *Pipeline) {
		if cfg != nil {
			p.cfg = cfg
		}
	}
}

// WithNow overrides the clock used for timestamps.
func WithNow(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithRunID overrides the run identifier generator.
func WithRunID(newID func() string) Option {
	return func(p *Pipeline) {
		if newID != nil {
			p.newID = newID
		}
	}
}

// Pipeline sequences the news, filing and prediction stages and closes every
// run with a single summary Complete event.
type Pipeline struct {
	gen     TextGenerator
	store   ResultStore
	scorer  sentiment.Scorer
	prompts *Prompts
	cfg     *Config
	now     func() time.Time
	newID   func() string
}

// NewPipeline builds a Pipeline over gen.
func NewPipeline(gen TextGenerator, opts ...Option) *Pipeline {
	p := &Pipeline{
		gen:    gen,
		scorer: sentiment.NewLexicon(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.prompts == nil {
		p.prompts = MustDefaultPrompts()
	}
	if p.cfg == nil {
		p.cfg = DefaultConfig()
	}
	return p
}

// Config returns the effective configuration.
func (p *Pipeline) Config() *Config { return p.cfg }

// Analyze returns the event sequence of one run. Breaking out of the loop
// stops the run before any further stage starts and nothing is persisted.
func (p *Pipeline) Analyze(ctx context.Context, req Request) iter.Seq[stream.Event] {
	return func(yield func(stream.Event) bool) {
		_, _ = p.Run(ctx, req, yield)
	}
}

// Run executes the stages and pushes their events into yield. Stage and
// storage faults are reported in-band; the returned error is non-nil only
// when the consumer stopped or ctx was cancelled, in which case no record is
// persisted and no summary event is emitted.
func (p *Pipeline) Run(ctx context.Context, req Request, yield func(stream.Event) bool) (*Record, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	runID := p.newID()
	logger := logx.WithContext(ctx)
	started := p.now()

	news := req.News
	if limit := p.cfg.MaxNewsItems; limit > 0 && len(news) > limit {
		news = news[:limit]
	}
	newsOut, err := p.runStage(ctx, runID, StageNews, NewsPromptData{Symbol: symbol, Items: news},
		*p.cfg.Temperatures.News, p.finishNews(symbol, req.News), yield)
	if stop := stopCause(ctx, err); stop != nil {
		logger.Infof("analysis: run stopped run=%s symbol=%s stage=%s err=%v", runID, symbol, StageNews, stop)
		return nil, stop
	}

	filingType := strings.ToUpper(strings.TrimSpace(req.FilingType))
	if filingType == "" {
		filingType = p.cfg.FilingType
	}
	var filingOut Outcome
	if strings.TrimSpace(req.FilingText) == "" {
		filingOut = Outcome{Stage: StageFiling}
		serr := &StageError{Stage: StageFiling, Err: ErrNoFiling}
		logger.Infof("analysis: stage skipped run=%s symbol=%s stage=%s", runID, symbol, StageFiling)
		if !yield(stream.Error{Message: serr.Error()}) {
			return nil, ErrStopped
		}
	} else {
		data := FilingPromptData{
			Symbol:     symbol,
			ReportType: filingType,
			Text:       truncateRunes(req.FilingText, p.cfg.MaxFilingChars),
		}
		filingOut, err = p.runStage(ctx, runID, StageFiling, data,
			*p.cfg.Temperatures.Filing, p.finishFiling(symbol, filingType), yield)
		if stop := stopCause(ctx, err); stop != nil {
			logger.Infof("analysis: run stopped run=%s symbol=%s stage=%s err=%v", runID, symbol, StageFiling, stop)
			return nil, stop
		}
	}

	snapshot := indicators.Compute(req.Series)
	predictionData := PredictionPromptData{
		Symbol:         symbol,
		NewsAnalysis:   orPlaceholder(newsOut),
		FilingAnalysis: orPlaceholder(filingOut),
		Indicators:     snapshot,
	}
	predictionOut, err := p.runStage(ctx, runID, StagePrediction, predictionData,
		*p.cfg.Temperatures.Prediction, p.finishPrediction(symbol), yield)
	if stop := stopCause(ctx, err); stop != nil {
		logger.Infof("analysis: run stopped run=%s symbol=%s stage=%s err=%v", runID, symbol, StagePrediction, stop)
		return nil, stop
	}

	var confidence *float64
	if predictionOut.Data != nil {
		confidence = Confidence(predictionOut.Text)
	}
	rec := &Record{
		RunID:           runID,
		Symbol:          symbol,
		NewsAnalysis:    newsOut.Text,
		FilingAnalysis:  filingOut.Text,
		Prediction:      predictionOut.Text,
		ConfidenceScore: confidence,
		CreatedAt:       p.now().UTC(),
	}
	if p.store != nil {
		if err := p.store.Save(ctx, rec); err != nil {
			serr := &StorageError{Err: err}
			logger.Errorf("analysis: persist run=%s symbol=%s err=%v", runID, symbol, err)
			if !yield(stream.Error{Message: serr.Error()}) {
				return rec, nil
			}
		}
	}

	final, err := stream.NewComplete(FinalPayload{
		Symbol:          symbol,
		Prediction:      rec.Prediction,
		ConfidenceScore: rec.ConfidenceScore,
		Timestamp:       rec.CreatedAt,
	})
	if err != nil {
		return rec, err
	}
	logger.Infof("analysis: run done run=%s symbol=%s elapsed=%s", runID, symbol, p.now().Sub(started))
	yield(final)
	return rec, nil
}

func (p *Pipeline) runStage(ctx context.Context, runID string, stage Stage, data any, temperature float64,
	finish FinishFunc, yield func(stream.Event) bool) (Outcome, error) {
	logger := logx.WithContext(ctx)
	tmpl := p.prompts.template(stage)
	text, err := tmpl.Render(data)
	if err != nil {
		serr := &StageError{Stage: stage, Err: err}
		logger.Errorf("analysis: render prompt run=%s stage=%s template=%s err=%v", runID, stage, tmpl.Name(), err)
		if !yield(stream.Error{Message: serr.Error()}) {
			return Outcome{Stage: stage}, errors.Join(ErrStopped, serr)
		}
		return Outcome{Stage: stage}, serr
	}

	logger.Infof("analysis: stage start run=%s stage=%s template=%s digest=%s prompt_chars=%d",
		runID, stage, tmpl.Name(), tmpl.Digest(), utf8.RuneCountInString(text))
	begin := p.now()
	runner := NewRunner(stage, p.gen, temperature, finish, WithClock(p.now))
	out, err := runner.Run(ctx, text, yield)
	switch {
	case err == nil:
		logger.Infof("analysis: stage done run=%s stage=%s chars=%d elapsed=%s",
			runID, stage, utf8.RuneCountInString(out.Text), p.now().Sub(begin))
	case errors.Is(err, ErrStopped):
	default:
		logger.Errorf("analysis: stage failed run=%s stage=%s err=%v", runID, stage, err)
	}
	return out, err
}

func (p *Pipeline) finishNews(symbol string, items []datasource.NewsItem) FinishFunc {
	return func(text string) (any, error) {
		polarities := make([]float64, 0, len(items))
		for _, item := range items {
			polarities = append(polarities, p.scorer.Polarity(item.Content))
		}
		return NewsPayload{
			Analysis:             text,
			Timestamp:            p.now().UTC(),
			SourceCount:          len(items),
			Symbol:               symbol,
			SentimentConsistency: sentiment.Consistency(polarities),
		}, nil
	}
}

func (p *Pipeline) finishFiling(symbol, reportType string) FinishFunc {
	return func(text string) (any, error) {
		return FilingPayload{
			Analysis:   text,
			Timestamp:  p.now().UTC(),
			ReportType: reportType,
			Symbol:     symbol,
			KeyMetrics: ExtractMetrics(text),
		}, nil
	}
}

func (p *Pipeline) finishPrediction(symbol string) FinishFunc {
	return func(text string) (any, error) {
		return PredictionPayload{
			Prediction:      text,
			Timestamp:       p.now().UTC(),
			Symbol:          symbol,
			ConfidenceScore: Confidence(text),
		}, nil
	}
}

// stopCause reports why the run must end early, or nil to continue.
func stopCause(ctx context.Context, err error) error {
	if errors.Is(err, ErrStopped) {
		return ErrStopped
	}
	return ctx.Err()
}

func orPlaceholder(out Outcome) string {
	if out.Data == nil || strings.TrimSpace(out.Text) == "" {
		return NoAnalysis
	}
	return out.Text
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
