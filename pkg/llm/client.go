package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
)

// Client streams chat completions from any OpenAI-compatible endpoint:
// DeepSeek, ZenMux, OpenAI itself or a local gateway.
type Client struct {
	config       *Config
	completions  openai.ChatCompletionService
	logger       Logger
	retryHandler *RetryHandler
	httpClient   *http.Client
}

// ClientOption configures optional client behaviour.
type ClientOption func(*Client)

// WithLogger injects a custom logger implementation.
func WithLogger(logger Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithRetryHandler replaces the retry policy derived from max_retries.
func WithRetryHandler(handler *RetryHandler) ClientOption {
	return func(c *Client) { c.retryHandler = handler }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

// NewClient validates a copy of cfg and builds the SDK client from it.
func NewClient(cfg *Config, opts ...ClientOption) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("llm: config cannot be nil")
	}
	c := &Client{config: cfg.Clone()}
	if err := c.config.Validate(); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = NewLogger(c.config.LogLevel)
	}
	if c.retryHandler == nil {
		c.retryHandler = NewRetryHandler(RetryConfig{MaxRetries: c.config.MaxRetries})
	}

	// Retries go through RetryHandler so a half-read stream is never replayed.
	reqOpts := []option.RequestOption{
		option.WithAPIKey(c.config.APIKey),
		option.WithBaseURL(c.config.BaseURL),
		option.WithMaxRetries(0),
	}
	if c.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(c.httpClient))
	}
	c.completions = openai.NewClient(reqOpts...).Chat.Completions
	return c, nil
}

// ChatStream opens a streaming completion. Opening is retried until the first
// chunk arrives; later failures surface through the stream's Err.
func (c *Client) ChatStream(ctx context.Context, req *ChatRequest) (ChunkStream, error) {
	if req == nil {
		return nil, errors.New("llm: request cannot be nil")
	}
	params, modelID, err := c.buildChatParams(req)
	if err != nil {
		return nil, err
	}

	c.logger.Debug(ctx, "stream request", Fields{
		"model":    modelID,
		"messages": len(req.Messages),
	})
	s, err := OpenWithRetry(ctx, c.retryHandler, func() (ChunkStream, error) {
		return &openaiStream{raw: c.completions.NewStreaming(ctx, params)}, nil
	})
	if err != nil {
		c.logger.Error(ctx, fmt.Errorf("stream open failed: %w", err), Fields{"model": modelID})
		return nil, err
	}
	return s, nil
}

// Close drops idle connections of an injected HTTP client.
func (c *Client) Close() error {
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
	return nil
}

// buildChatParams applies per-alias defaults from llm.yaml; request values win.
func (c *Client) buildChatParams(req *ChatRequest) (openai.ChatCompletionNewParams, string, error) {
	if len(req.Messages) == 0 {
		return openai.ChatCompletionNewParams{}, "", errors.New("llm: request requires at least one message")
	}

	alias := strings.TrimSpace(req.Model)
	if alias == "" {
		alias = c.config.DefaultModel
	}
	mc, ok := c.config.Model(alias)
	if !ok {
		mc = ModelConfig{ModelName: alias}
	}
	modelID := ResolveModelID(alias, mc)

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(modelID),
		Messages: messageParams(req.Messages),
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}
	if v := firstFloat(req.Temperature, mc.Temperature); v != nil {
		params.Temperature = openai.Float(*v)
	}
	if v := firstInt(req.MaxTokens, mc.MaxTokens); v != nil {
		params.MaxTokens = openai.Int(int64(*v))
	}
	if v := firstFloat(req.TopP, mc.TopP); v != nil {
		params.TopP = openai.Float(*v)
	}
	return params, modelID, nil
}

func firstFloat(vs ...*float64) *float64 {
	for _, v := range vs {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstInt(vs ...*int) *int {
	for _, v := range vs {
		if v != nil {
			return v
		}
	}
	return nil
}

func messageParams(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.ChatCompletionMessageParamOfAssistant(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

type openaiStream struct {
	raw     *ssestream.Stream[openai.ChatCompletionChunk]
	current Chunk
}

func (s *openaiStream) Next() bool {
	if !s.raw.Next() {
		return false
	}
	s.current = convertChunk(s.raw.Current())
	return true
}

func (s *openaiStream) Current() Chunk { return s.current }
func (s *openaiStream) Err() error     { return s.raw.Err() }
func (s *openaiStream) Close() error   { return s.raw.Close() }

// convertChunk keeps the first choice only; n is never set above one.
func convertChunk(chunk openai.ChatCompletionChunk) Chunk {
	var out Chunk
	if chunk.Usage.TotalTokens > 0 {
		out.Usage = &Usage{
			PromptTokens:     int(chunk.Usage.PromptTokens),
			CompletionTokens: int(chunk.Usage.CompletionTokens),
			TotalTokens:      int(chunk.Usage.TotalTokens),
		}
	}
	if len(chunk.Choices) > 0 {
		out.Content = chunk.Choices[0].Delta.Content
		out.FinishReason = chunk.Choices[0].FinishReason
	}
	return out
}
