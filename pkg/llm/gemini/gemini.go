// Package gemini streams completions from the Gemini API.
package gemini

import (
	"context"
	"errors"
	"iter"
	"strings"

	"google.golang.org/genai"

	"quant-api/pkg/llm"
)

func init() {
	llm.RegisterBackend(llm.ProviderGemini, func(cfg *llm.Config, logger llm.Logger) (llm.Streamer, error) {
		return New(context.Background(), cfg, logger)
	})
}

// Backend implements llm.Streamer over Gemini models.
type Backend struct {
	cfg    *llm.Config
	client *genai.Client
	retry  *llm.RetryHandler
	logger llm.Logger
}

// New builds a backend from cfg. BaseURL is optional.
func New(ctx context.Context, cfg *llm.Config, logger llm.Logger) (*Backend, error) {
	if cfg == nil {
		return nil, errors.New("gemini: config cannot be nil")
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = llm.NewLogger(cfg.LogLevel)
	}
	return &Backend{
		cfg:    cfg.Clone(),
		client: client,
		retry: llm.NewRetryHandler(llm.RetryConfig{
			MaxRetries: cfg.MaxRetries,
			Retryable:  retryable,
		}),
		logger: logger,
	}, nil
}

// ChatStream opens a streamed generation. System messages become the system instruction.
func (b *Backend) ChatStream(ctx context.Context, req *llm.ChatRequest) (llm.ChunkStream, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, errors.New("gemini: request requires at least one message")
	}
	model := llm.BareModelName(b.cfg, req.Model)
	contents, config := buildRequest(req)

	b.logger.Debug(ctx, "gemini stream request", llm.Fields{"model": model, "messages": len(req.Messages)})
	return llm.OpenWithRetry(ctx, b.retry, func() (llm.ChunkStream, error) {
		next, stop := iter.Pull2(b.client.Models.GenerateContentStream(ctx, model, contents, config))
		return &stream{next: next, stop: stop}, nil
	})
}

func buildRequest(req *llm.ChatRequest) ([]*genai.Content, *genai.GenerateContentConfig) {
	config := &genai.GenerateContentConfig{}
	var system []string
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch strings.ToLower(m.Role) {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	if req.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.TopP != nil {
		config.TopP = genai.Ptr(float32(*req.TopP))
	}
	if req.MaxTokens != nil {
		config.MaxOutputTokens = int32(*req.MaxTokens)
	}
	return contents, config
}

type stream struct {
	next    func() (*genai.GenerateContentResponse, error, bool)
	stop    func()
	current llm.Chunk
	err     error
}

func (s *stream) Next() bool {
	if s.err != nil {
		return false
	}
	resp, err, ok := s.next()
	if !ok {
		return false
	}
	if err != nil {
		s.err = err
		return false
	}
	s.current = convert(resp)
	return true
}

func (s *stream) Current() llm.Chunk { return s.current }
func (s *stream) Err() error         { return s.err }

func (s *stream) Close() error {
	s.stop()
	return nil
}

func convert(resp *genai.GenerateContentResponse) llm.Chunk {
	var out llm.Chunk
	if resp == nil {
		return out
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		var text strings.Builder
		for _, part := range resp.Candidates[0].Content.Parts {
			if part != nil && !part.Thought {
				text.WriteString(part.Text)
			}
		}
		out.Content = text.String()
		out.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = &llm.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out
}

func retryable(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return llm.RetryableStatus(apiErr.Code)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return llm.RetryableStatus(apiErrPtr.Code)
	}
	return llm.RetryableTransport(err)
}
