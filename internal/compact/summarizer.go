package compact

import (
	"context"
	"fmt"
	"strings"

	"github.com/user/chatscribe/pkg/llm"
)

// Summarizer produces a new rolling summary from the prior summary (empty if
// none) and the rendered lines to fold in. Implementations may fail; callers
// must treat a failure as "no compaction happened".
type Summarizer interface {
	Summarize(ctx context.Context, existingSummary string, lines []string) (string, error)
}

// LLMSummarizer generates summaries through a chat-completion provider.
type LLMSummarizer struct {
	provider llm.Provider
	retry    *RetryPolicy
}

// NewLLMSummarizer creates a summarizer backed by the given provider. The
// provider's own Config controls model, temperature, and max tokens.
func NewLLMSummarizer(provider llm.Provider) *LLMSummarizer {
	return &LLMSummarizer{
		provider: provider,
		retry:    DefaultRetryPolicy(),
	}
}

// Summarize renders the prompt and calls the provider, retrying transient
// failures with backoff.
func (s *LLMSummarizer) Summarize(ctx context.Context, existingSummary string, lines []string) (string, error) {
	if len(lines) == 0 {
		return "", fmt.Errorf("nothing to summarize")
	}

	messages := []llm.Message{
		{Role: "system", Content: summarySystemPrompt},
		{Role: "user", Content: buildPrompt(existingSummary, lines)},
	}

	var summary string
	err := s.retry.Execute(ctx, func() error {
		resp, err := s.provider.Complete(ctx, messages)
		if err != nil {
			return err
		}
		summary = strings.TrimSpace(resp.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("generating summary: %w", err)
	}
	if summary == "" {
		return "", fmt.Errorf("summarizer returned empty text")
	}
	return summary, nil
}
