package memory

import (
	"encoding/json"
	"strings"
)

// NormalizeAssistantReply unwraps assistant text that arrives as a JSON
// encoding instead of plain prose. Some completion backends return the reply
// as a JSON string literal or as an object carrying a "content" field; storing
// those verbatim pollutes the log and the summaries built from it.
func NormalizeAssistantReply(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return text
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal([]byte(trimmed), &s); err == nil {
			return s
		}
	case '{':
		var obj struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal([]byte(trimmed), &obj); err == nil && obj.Content != "" {
			return obj.Content
		}
	}
	return text
}
