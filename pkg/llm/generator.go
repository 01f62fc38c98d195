package llm

import (
	"context"
	"time"

	"quant-api/pkg/analysis"
)

// Generator adapts a Streamer into the pipeline's text generator.
type Generator struct {
	streamer  Streamer
	model     string
	maxTokens *int
	timeout   time.Duration
	logger    Logger
}

// GeneratorOption customises a Generator.
type GeneratorOption func(*Generator)

// WithModel selects the model alias; empty uses the backend default.
func WithModel(model string) GeneratorOption {
	return func(g *Generator) { g.model = model }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.maxTokens = &n
		}
	}
}

// WithStreamTimeout bounds one whole generation. Zero disables the bound.
func WithStreamTimeout(d time.Duration) GeneratorOption {
	return func(g *Generator) { g.timeout = d }
}

// WithGeneratorLogger replaces the logger.
func WithGeneratorLogger(logger Logger) GeneratorOption {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGenerator wraps streamer.
func NewGenerator(streamer Streamer, opts ...GeneratorOption) *Generator {
	g := &Generator{streamer: streamer, logger: NewLogger(defaultLogLevel)}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewGeneratorFromConfig builds the configured backend and wraps it.
func NewGeneratorFromConfig(cfg *Config) (*Generator, error) {
	logger := NewLogger(cfg.LogLevel)
	streamer, err := NewStreamer(cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewGenerator(streamer,
		WithModel(cfg.DefaultModel),
		WithStreamTimeout(cfg.StreamTimeout),
		WithGeneratorLogger(logger),
	), nil
}

// Stream sends prompt as a single user message.
func (g *Generator) Stream(ctx context.Context, prompt string, temperature float64) (analysis.TextStream, error) {
	cancel := context.CancelFunc(func() {})
	if g.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
	}
	req := &ChatRequest{
		Model:       g.model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		Temperature: &temperature,
		MaxTokens:   g.maxTokens,
	}
	s, err := g.streamer.ChatStream(ctx, req)
	if err != nil {
		cancel()
		return nil, err
	}
	return &textStream{ctx: ctx, inner: s, cancel: cancel, logger: g.logger, start: time.Now()}, nil
}

type textStream struct {
	ctx    context.Context
	inner  ChunkStream
	cancel context.CancelFunc
	logger Logger
	start  time.Time
	usage  *Usage
	chars  int
}

func (t *textStream) Next() bool {
	if !t.inner.Next() {
		return false
	}
	chunk := t.inner.Current()
	if chunk.Usage != nil {
		t.usage = chunk.Usage
	}
	t.chars += len(chunk.Content)
	return true
}

func (t *textStream) Delta() string { return t.inner.Current().Content }

func (t *textStream) Err() error { return t.inner.Err() }

func (t *textStream) Close() error {
	defer t.cancel()
	fields := Fields{
		"duration_ms": time.Since(t.start).Milliseconds(),
		"bytes":       t.chars,
	}
	if t.usage != nil {
		fields["completion_tokens"] = t.usage.CompletionTokens
	}
	t.logger.Info(t.ctx, "llm stream closed", fields)
	return t.inner.Close()
}
