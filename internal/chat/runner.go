package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/user/chatscribe/internal/memory"
	"github.com/user/chatscribe/internal/types"
	"github.com/user/chatscribe/pkg/llm"
)

// Runner executes one conversation turn: load memory, build the prompt, call
// the model, store the exchange.
type Runner struct {
	factory  *memory.Factory
	provider llm.Provider
	prompts  *PromptBuilder
	logger   *slog.Logger
}

// NewRunner creates a turn runner.
func NewRunner(factory *memory.Factory, provider llm.Provider, prompts *PromptBuilder, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		factory:  factory,
		provider: provider,
		prompts:  prompts,
		logger:   logger,
	}
}

// Respond runs one turn for the session and returns the assistant's reply.
// The turn is stored (and possibly compacted) before returning.
func (r *Runner) Respond(ctx context.Context, sessionID types.SessionID, userText string) (string, error) {
	mem, err := r.factory.Open(memory.KindComposite, sessionID)
	if err != nil {
		return "", err
	}

	snap, err := mem.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("loading memory for session %s: %w", sessionID, err)
	}

	messages := r.prompts.Build(sessionID, snap, userText)
	resp, err := r.provider.Complete(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("completing turn for session %s: %w", sessionID, err)
	}

	r.logger.Debug("turn completed",
		"session_id", sessionID,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens)

	if err := mem.Save(ctx, userText, resp.Content); err != nil {
		return "", fmt.Errorf("saving turn for session %s: %w", sessionID, err)
	}
	return memory.NormalizeAssistantReply(resp.Content), nil
}
