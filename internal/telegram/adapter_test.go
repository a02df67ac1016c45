package telegram

import (
	"strings"
	"testing"

	"github.com/user/chatscribe/internal/types"
)

func TestSplitMessage(t *testing.T) {
	if parts := splitMessage("short"); len(parts) != 1 || parts[0] != "short" {
		t.Errorf("unexpected split for short message: %v", parts)
	}

	long := strings.Repeat("x", maxTelegramMessage*2+100)
	parts := splitMessage(long)
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(parts))
	}
	if len(parts[0]) != maxTelegramMessage || len(parts[1]) != maxTelegramMessage {
		t.Errorf("unexpected part lengths: %d, %d", len(parts[0]), len(parts[1]))
	}
	if len(parts[2]) != 100 {
		t.Errorf("unexpected tail length: %d", len(parts[2]))
	}
	if strings.Join(parts, "") != long {
		t.Error("split parts do not reassemble to the original")
	}
}

func TestSessionFor(t *testing.T) {
	if got := sessionFor(42, 1234); got != types.SessionID("tg-42-1234") {
		t.Errorf("unexpected session id: %s", got)
	}
	if sessionFor(1, 2) == sessionFor(2, 1) {
		t.Error("distinct user/chat pairs must map to distinct sessions")
	}
}

func TestFormatStats(t *testing.T) {
	text := formatStats(types.MemoryStats{
		SessionID:        "s1",
		RecordCount:      7,
		LogTokenEstimate: 120,
	})
	if !strings.Contains(text, "Messages: 7") || !strings.Contains(text, "Summary: no") {
		t.Errorf("unexpected stats text: %q", text)
	}

	text = formatStats(types.MemoryStats{
		SessionID:            "s1",
		RecordCount:          3,
		HasSummary:           true,
		SummaryTokenEstimate: 40,
		Checkpoint:           12,
	})
	if !strings.Contains(text, "Summary: yes (40 tokens, through message 12)") {
		t.Errorf("unexpected stats text: %q", text)
	}
}
