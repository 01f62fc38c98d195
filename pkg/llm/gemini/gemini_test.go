package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"quant-api/pkg/llm"
)

func TestBuildRequest(t *testing.T) {
	temp := 0.2
	maxTokens := 1024
	contents, config := buildRequest(&llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: "You are a financial analyst."},
			{Role: "user", Content: "Summarise the 10-K."},
			{Role: "assistant", Content: "Revenue rose."},
		},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})

	require.Len(t, contents, 2)
	require.Equal(t, genai.RoleUser, contents[0].Role)
	require.Equal(t, "Summarise the 10-K.", contents[0].Parts[0].Text)
	require.Equal(t, genai.RoleModel, contents[1].Role)

	require.NotNil(t, config.SystemInstruction)
	require.Equal(t, "You are a financial analyst.", config.SystemInstruction.Parts[0].Text)
	require.InDelta(t, 0.2, *config.Temperature, 1e-6)
	require.Nil(t, config.TopP)
	require.Equal(t, int32(1024), config.MaxOutputTokens)
}

func TestConvertSkipsThoughts(t *testing.T) {
	chunk := convert(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "thinking...", Thought: true},
				{Text: "Trend is "},
				{Text: "up."},
			}},
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     10,
			CandidatesTokenCount: 3,
			TotalTokenCount:      13,
		},
	})
	require.Equal(t, "Trend is up.", chunk.Content)
	require.Equal(t, "STOP", chunk.FinishReason)
	require.Equal(t, 13, chunk.Usage.TotalTokens)

	require.Equal(t, llm.Chunk{}, convert(nil))
}

func TestStreamStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	stopped := false
	s := &stream{
		next: func() (*genai.GenerateContentResponse, error, bool) {
			calls++
			if calls == 1 {
				return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
					Content: genai.NewContentFromText("a", genai.RoleModel),
				}}}, nil, true
			}
			return nil, boom, true
		},
		stop: func() { stopped = true },
	}

	require.True(t, s.Next())
	require.Equal(t, "a", s.Current().Content)
	require.False(t, s.Next())
	require.False(t, s.Next())
	require.ErrorIs(t, s.Err(), boom)
	require.Equal(t, 2, calls)
	require.NoError(t, s.Close())
	require.True(t, stopped)
}

func TestRetryable(t *testing.T) {
	require.True(t, retryable(genai.APIError{Code: 503}))
	require.True(t, retryable(&genai.APIError{Code: 429}))
	require.False(t, retryable(genai.APIError{Code: 400}))
	require.False(t, retryable(context.DeadlineExceeded))
}
