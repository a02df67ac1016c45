package chat

import (
	"fmt"
	"time"

	"github.com/user/chatscribe/internal/memory"
	"github.com/user/chatscribe/internal/tokens"
	"github.com/user/chatscribe/internal/types"
	"github.com/user/chatscribe/pkg/llm"
)

// PromptBuilder assembles token-budgeted prompts from a memory snapshot.
type PromptBuilder struct {
	estimator tokens.Estimator
	maxTokens int
	reserve   int
}

// NewPromptBuilder creates a prompt builder. maxTokens is the model's context
// window; reserve is held back for the model's response.
func NewPromptBuilder(estimator tokens.Estimator, maxTokens, reserve int) *PromptBuilder {
	return &PromptBuilder{
		estimator: estimator,
		maxTokens: maxTokens,
		reserve:   reserve,
	}
}

// Build converts a snapshot plus the incoming user text into the message list
// for the completion call. The rolling summary rides in the system prompt so
// compacted history still shapes the reply. History is included oldest-first
// until the budget runs out.
func (b *PromptBuilder) Build(sessionID types.SessionID, snap memory.Snapshot, userText string) []llm.Message {
	inputBudget := b.maxTokens - b.reserve

	sysPrompt := buildSystemPrompt(sessionID, snap.Summary)
	remaining := inputBudget - b.estimator.Estimate(sysPrompt) - b.estimator.Estimate(userText)

	// 70% of what's left goes to history, the rest is safety margin.
	historyBudget := int(float64(remaining) * 0.7)

	var history []llm.Message
	used := 0
	for _, r := range snap.Recent {
		cost := b.estimator.Estimate(r.Content)
		if used+cost > historyBudget {
			break
		}
		history = append(history, llm.Message{Role: string(r.Role), Content: r.Content})
		used += cost
	}

	messages := make([]llm.Message, 0, 2+len(history))
	messages = append(messages, llm.Message{Role: "system", Content: sysPrompt})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: "user", Content: userText})
	return messages
}

func buildSystemPrompt(sessionID types.SessionID, summary string) string {
	prompt := fmt.Sprintf(
		"You are a helpful assistant. Current time: %s. Session: %s.",
		time.Now().Format(time.RFC3339),
		string(sessionID),
	)
	if summary != "" {
		prompt += "\n\nPrevious conversation summary: " + summary
	}
	return prompt
}
