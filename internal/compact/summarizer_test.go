package compact

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/user/chatscribe/pkg/llm"
)

// fakeProvider returns a fixed response or error.
type fakeProvider struct {
	lastMessages []llm.Message
	content      string
	err          error
}

func (f *fakeProvider) Complete(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	f.lastMessages = messages
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.content}, nil
}

func TestLLMSummarizer(t *testing.T) {
	provider := &fakeProvider{content: "  a tidy summary  "}
	s := NewLLMSummarizer(provider)

	summary, err := s.Summarize(context.Background(), "old context", []string{"user: hi", "assistant: hello"})
	if err != nil {
		t.Fatal(err)
	}
	if summary != "a tidy summary" {
		t.Errorf("expected trimmed summary, got %q", summary)
	}

	if len(provider.lastMessages) != 2 {
		t.Fatalf("expected system + user messages, got %d", len(provider.lastMessages))
	}
	if provider.lastMessages[0].Role != "system" {
		t.Errorf("expected system message first, got %q", provider.lastMessages[0].Role)
	}
	if !strings.Contains(provider.lastMessages[1].Content, "Previous conversation summary: old context") {
		t.Error("user message missing prior summary context")
	}
	if !strings.Contains(provider.lastMessages[1].Content, "user: hi") {
		t.Error("user message missing rendered conversation")
	}
}

func TestLLMSummarizerErrors(t *testing.T) {
	s := NewLLMSummarizer(&fakeProvider{err: errors.New("unauthorized")})
	if _, err := s.Summarize(context.Background(), "", []string{"user: hi"}); err == nil {
		t.Fatal("expected provider error to propagate")
	}

	s = NewLLMSummarizer(&fakeProvider{content: "ignored"})
	if _, err := s.Summarize(context.Background(), "", nil); err == nil {
		t.Fatal("expected error for empty input")
	}

	s = NewLLMSummarizer(&fakeProvider{content: "   "})
	if _, err := s.Summarize(context.Background(), "", []string{"user: hi"}); err == nil {
		t.Fatal("expected error for empty summary text")
	}
}
