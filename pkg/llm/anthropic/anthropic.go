// Package anthropic streams completions from the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"quant-api/pkg/llm"
)

const defaultMaxTokens = 4096

func init() {
	llm.RegisterBackend(llm.ProviderAnthropic, func(cfg *llm.Config, logger llm.Logger) (llm.Streamer, error) {
		return New(cfg, logger)
	})
}

// Backend implements llm.Streamer over Claude models.
type Backend struct {
	cfg      *llm.Config
	messages sdk.MessageService
	retry    *llm.RetryHandler
	logger   llm.Logger
}

// New builds a backend from cfg. BaseURL is optional.
func New(cfg *llm.Config, logger llm.Logger, opts ...option.RequestOption) (*Backend, error) {
	if cfg == nil {
		return nil, errors.New("anthropic: config cannot be nil")
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	reqOpts = append(reqOpts, opts...)
	client := sdk.NewClient(reqOpts...)
	if logger == nil {
		logger = llm.NewLogger(cfg.LogLevel)
	}
	return &Backend{
		cfg:      cfg.Clone(),
		messages: client.Messages,
		retry: llm.NewRetryHandler(llm.RetryConfig{
			MaxRetries: cfg.MaxRetries,
			Retryable:  retryable,
			RetryAfter: retryAfter,
		}),
		logger: logger,
	}, nil
}

// ChatStream opens a streamed message. System messages become the system prompt.
func (b *Backend) ChatStream(ctx context.Context, req *llm.ChatRequest) (llm.ChunkStream, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, errors.New("anthropic: request requires at least one message")
	}
	model := llm.BareModelName(b.cfg, req.Model)
	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: defaultMaxTokens,
	}
	for _, m := range req.Messages {
		switch strings.ToLower(m.Role) {
		case "system":
			params.System = append(params.System, sdk.TextBlockParam{Text: m.Content})
		case "assistant":
			params.Messages = append(params.Messages, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		}
	}
	if req.MaxTokens != nil {
		params.MaxTokens = int64(*req.MaxTokens)
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = sdk.Float(*req.TopP)
	}

	b.logger.Debug(ctx, "anthropic stream request", llm.Fields{"model": model, "messages": len(req.Messages)})
	return llm.OpenWithRetry(ctx, b.retry, func() (llm.ChunkStream, error) {
		return &stream{raw: b.messages.NewStreaming(ctx, params)}, nil
	})
}

type stream struct {
	raw     *ssestream.Stream[sdk.MessageStreamEventUnion]
	current llm.Chunk
}

// Next skips events that carry no text so that callers only see deltas and the stop reason.
func (s *stream) Next() bool {
	for s.raw.Next() {
		switch ev := s.raw.Current().AsAny().(type) {
		case sdk.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(sdk.TextDelta); ok {
				s.current = llm.Chunk{Content: delta.Text}
				return true
			}
		case sdk.MessageDeltaEvent:
			s.current = llm.Chunk{
				FinishReason: string(ev.Delta.StopReason),
				Usage:        &llm.Usage{CompletionTokens: int(ev.Usage.OutputTokens)},
			}
			return true
		}
	}
	return false
}

func (s *stream) Current() llm.Chunk { return s.current }
func (s *stream) Err() error         { return s.raw.Err() }
func (s *stream) Close() error       { return s.raw.Close() }

func retryable(err error) bool {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return llm.RetryableStatus(apiErr.StatusCode) || apiErr.StatusCode == 529
	}
	return llm.RetryableTransport(err)
}

func retryAfter(err error) (time.Duration, bool) {
	var apiErr *sdk.Error
	if !errors.As(err, &apiErr) {
		return 0, false
	}
	return llm.RetryAfterHeader(apiErr.Response, time.Now())
}
