package compact

import (
	"strings"

	"github.com/user/chatscribe/internal/types"
)

const summaryPromptTemplate = "Please provide a concise summary of the following conversation. Focus on the main topics discussed, key decisions made, and any important outcomes.\n\nConversation:\n{chat_history}\n\nSummary:"

const summarySystemPrompt = "You are a helpful assistant that creates concise summaries of conversations."

// RenderLines converts records to "role: content" lines, one per record.
// The same rendering feeds both the threshold estimate and the summarization
// prompt so the two always see identical text.
func RenderLines(records []types.ChatRecord) []string {
	lines := make([]string, 0, len(records))
	for _, r := range records {
		lines = append(lines, string(r.Role)+": "+r.Content)
	}
	return lines
}

// buildPrompt assembles the user-turn prompt for the summarizer. When a prior
// summary exists it is prepended so the model produces a rolling summary that
// folds in old context rather than starting from scratch.
func buildPrompt(existingSummary string, lines []string) string {
	chatHistory := strings.Join(lines, "\n")
	if existingSummary != "" {
		chatHistory = "Previous conversation summary: " + existingSummary + "\n\n" + chatHistory
	}
	return strings.Replace(summaryPromptTemplate, "{chat_history}", chatHistory, 1)
}
