package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// ChunkStream is a pull iterator over streamed completion chunks.
type ChunkStream interface {
	Next() bool
	Current() Chunk
	Err() error
	Close() error
}

// Streamer opens streaming chat completions.
type Streamer interface {
	ChatStream(ctx context.Context, req *ChatRequest) (ChunkStream, error)
}

// BackendBuilder constructs a Streamer for a provider.
type BackendBuilder func(cfg *Config, logger Logger) (Streamer, error)

var (
	backendRegistry   = make(map[string]BackendBuilder)
	backendRegistryMu sync.RWMutex
)

// RegisterBackend makes a provider available to NewStreamer.
func RegisterBackend(provider string, builder BackendBuilder) {
	backendRegistryMu.Lock()
	defer backendRegistryMu.Unlock()
	backendRegistry[strings.ToLower(strings.TrimSpace(provider))] = builder
}

func init() {
	RegisterBackend(ProviderOpenAI, func(cfg *Config, logger Logger) (Streamer, error) {
		return NewClient(cfg, WithLogger(logger))
	})
}

// NewStreamer builds the backend selected by cfg.Provider. Backends other than
// openai register themselves when their package is imported.
func NewStreamer(cfg *Config, logger Logger) (Streamer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("llm: config cannot be nil")
	}
	if logger == nil {
		logger = NewLogger(cfg.LogLevel)
	}
	backendRegistryMu.RLock()
	builder, ok := backendRegistry[strings.ToLower(strings.TrimSpace(cfg.Provider))]
	backendRegistryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("llm: provider %q not registered", cfg.Provider)
	}
	return builder(cfg, logger)
}

// OpenWithRetry opens a stream and reads its first chunk under retry. Once a
// chunk has been read the stream is handed over and failures are no longer
// retried, so a caller never sees a delta twice.
func OpenWithRetry(ctx context.Context, retry *RetryHandler, open func() (ChunkStream, error)) (ChunkStream, error) {
	var primed ChunkStream
	err := retry.Do(ctx, func() error {
		s, err := open()
		if err != nil {
			return err
		}
		if s.Next() {
			primed = &primedStream{inner: s, first: s.Current(), pending: true}
			return nil
		}
		if err := s.Err(); err != nil {
			_ = s.Close()
			return err
		}
		primed = &primedStream{inner: s}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return primed, nil
}

type primedStream struct {
	inner   ChunkStream
	first   Chunk
	pending bool
	current Chunk
}

func (p *primedStream) Next() bool {
	if p.pending {
		p.pending = false
		p.current = p.first
		return true
	}
	if !p.inner.Next() {
		return false
	}
	p.current = p.inner.Current()
	return true
}

func (p *primedStream) Current() Chunk { return p.current }
func (p *primedStream) Err() error     { return p.inner.Err() }
func (p *primedStream) Close() error   { return p.inner.Close() }
