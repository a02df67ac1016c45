package compact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/chatscribe/internal/state"
	"github.com/user/chatscribe/internal/tokens"
	"github.com/user/chatscribe/internal/types"
)

// fakeSummarizer records its inputs and returns a canned summary or error.
type fakeSummarizer struct {
	mu       sync.Mutex
	calls    int
	lastPrev string
	lastText string
	summary  string
	err      error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, existingSummary string, lines []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastPrev = existingSummary
	f.lastText = strings.Join(lines, "\n")
	if f.err != nil {
		return "", f.err
	}
	return f.summary, nil
}

func openStores(t *testing.T, dir string, id types.SessionID) (*state.Log, *state.Summary) {
	t.Helper()
	log, err := state.OpenLog(dir, id)
	if err != nil {
		t.Fatal(err)
	}
	sum, err := state.OpenSummary(dir, id, tokens.Heuristic{})
	if err != nil {
		t.Fatal(err)
	}
	return log, sum
}

func appendN(t *testing.T, log *state.Log, role types.Role, texts ...string) {
	t.Helper()
	for _, text := range texts {
		if err := log.Append(context.Background(), &types.ChatRecord{Role: role, Content: text}); err != nil {
			t.Fatal(err)
		}
	}
}

func TestMaybeCompactBelowThresholdIsNoop(t *testing.T) {
	dir := t.TempDir()
	log, sum := openStores(t, dir, "s1")
	appendN(t, log, types.RoleUser, "hi", "how are you", "fine thanks")

	logPath := filepath.Join(dir, "s1_history.jsonl")
	before, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}

	fake := &fakeSummarizer{summary: "should not be called"}
	engine := NewEngine(fake, tokens.Heuristic{}, Options{Threshold: 50, RecentWindow: 2, Enabled: true}, nil)

	ran, err := engine.MaybeCompact(context.Background(), "s1", log, sum)
	if err != nil {
		t.Fatal(err)
	}
	if ran {
		t.Error("expected no compaction below threshold")
	}
	if fake.calls != 0 {
		t.Errorf("summarizer called %d times, expected 0", fake.calls)
	}

	after, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("log file changed during a no-op compaction")
	}
	data, err := sum.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if data.Checkpoint != 0 || data.Summary != "" {
		t.Errorf("summary mutated during a no-op compaction: %+v", data)
	}
}

func TestMaybeCompactOverThreshold(t *testing.T) {
	dir := t.TempDir()
	log, sum := openStores(t, dir, "s1")

	appendN(t, log, types.RoleUser, "short one", "short two", "short three")
	// Push the pending tail well over the 50-token threshold.
	appendN(t, log, types.RoleAssistant, strings.Repeat("a long stretch of text ", 20))

	fake := &fakeSummarizer{summary: "they discussed short things at length"}
	engine := NewEngine(fake, tokens.Heuristic{}, Options{Threshold: 50, RecentWindow: 2, Enabled: true}, nil)

	ran, err := engine.MaybeCompact(context.Background(), "s1", log, sum)
	if err != nil {
		t.Fatal(err)
	}
	if !ran {
		t.Fatal("expected compaction to run")
	}
	if fake.calls != 1 {
		t.Fatalf("summarizer called %d times, expected 1", fake.calls)
	}
	if fake.lastPrev != "" {
		t.Errorf("expected no prior summary on first compaction, got %q", fake.lastPrev)
	}
	if !strings.Contains(fake.lastText, "user: short one") {
		t.Errorf("rendered text missing record: %q", fake.lastText)
	}

	data, err := sum.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if data.Summary != "they discussed short things at length" {
		t.Errorf("unexpected summary: %q", data.Summary)
	}
	if data.Checkpoint != 4 {
		t.Errorf("expected checkpoint 4, got %d", data.Checkpoint)
	}
	if data.TokenEstimate == 0 {
		t.Error("expected non-zero summary token estimate")
	}

	records, err := log.Records(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 retained records, got %d", len(records))
	}
	if records[0].Sequence != 3 || records[1].Sequence != 4 {
		t.Errorf("retained wrong records: %d, %d", records[0].Sequence, records[1].Sequence)
	}
}

func TestMaybeCompactPassesPriorSummary(t *testing.T) {
	dir := t.TempDir()
	log, sum := openStores(t, dir, "s1")

	appendN(t, log, types.RoleUser, strings.Repeat("first wave of text ", 20))
	fake := &fakeSummarizer{summary: "first summary"}
	engine := NewEngine(fake, tokens.Heuristic{}, Options{Threshold: 50, RecentWindow: 1, Enabled: true}, nil)

	if _, err := engine.MaybeCompact(context.Background(), "s1", log, sum); err != nil {
		t.Fatal(err)
	}

	appendN(t, log, types.RoleUser, strings.Repeat("second wave of text ", 20))
	fake.summary = "second summary"
	if _, err := engine.MaybeCompact(context.Background(), "s1", log, sum); err != nil {
		t.Fatal(err)
	}

	if fake.lastPrev != "first summary" {
		t.Errorf("expected prior summary to be passed, got %q", fake.lastPrev)
	}
	data, err := sum.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if data.Summary != "second summary" {
		t.Errorf("unexpected summary: %q", data.Summary)
	}
}

func TestMaybeCompactSummarizerFailureLeavesStateUntouched(t *testing.T) {
	dir := t.TempDir()
	log, sum := openStores(t, dir, "s1")

	appendN(t, log, types.RoleUser, strings.Repeat("some long conversation text ", 20))
	recordsBefore, err := log.Records(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	fake := &fakeSummarizer{err: fmt.Errorf("invalid request")}
	engine := NewEngine(fake, tokens.Heuristic{}, Options{Threshold: 50, RecentWindow: 2, Enabled: true}, nil)

	ran, err := engine.MaybeCompact(context.Background(), "s1", log, sum)
	if err == nil {
		t.Fatal("expected error from failed summarization")
	}
	if ran {
		t.Error("compaction reported success despite failure")
	}

	recordsAfter, err := log.Records(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(recordsAfter) != len(recordsBefore) {
		t.Errorf("log truncated after failed summarization: %d != %d", len(recordsAfter), len(recordsBefore))
	}
	data, err := sum.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if data.Checkpoint != 0 || data.Summary != "" {
		t.Errorf("summary mutated after failed summarization: %+v", data)
	}
}

func TestMaybeCompactDisabled(t *testing.T) {
	dir := t.TempDir()
	log, sum := openStores(t, dir, "s1")
	appendN(t, log, types.RoleUser, strings.Repeat("plenty of text to exceed any threshold ", 20))

	fake := &fakeSummarizer{summary: "never"}
	engine := NewEngine(fake, tokens.Heuristic{}, Options{Threshold: 50, RecentWindow: 2, Enabled: false}, nil)

	ran, err := engine.MaybeCompact(context.Background(), "s1", log, sum)
	if err != nil {
		t.Fatal(err)
	}
	if ran {
		t.Error("expected no compaction when disabled")
	}
	if fake.calls != 0 {
		t.Errorf("summarizer called %d times while disabled", fake.calls)
	}
}

func TestMaybeCompactNoPendingTail(t *testing.T) {
	dir := t.TempDir()
	log, sum := openStores(t, dir, "s1")
	appendN(t, log, types.RoleUser, "hello")

	// Mark everything as already summarized.
	if err := sum.Update(context.Background(), "old summary", 1); err != nil {
		t.Fatal(err)
	}

	fake := &fakeSummarizer{summary: "never"}
	engine := NewEngine(fake, tokens.Heuristic{}, Options{Threshold: 1, RecentWindow: 2, Enabled: true}, nil)

	ran, err := engine.MaybeCompact(context.Background(), "s1", log, sum)
	if err != nil {
		t.Fatal(err)
	}
	if ran {
		t.Error("expected no compaction with an empty pending tail")
	}
}

func TestPendingTail(t *testing.T) {
	records := []types.ChatRecord{
		{Sequence: 1}, {Sequence: 2}, {Sequence: 3}, {Sequence: 4},
	}
	tail := pendingTail(records, 2)
	if len(tail) != 2 || tail[0].Sequence != 3 {
		t.Errorf("unexpected tail: %+v", tail)
	}
	if pendingTail(records, 4) != nil {
		t.Error("expected nil tail when checkpoint covers all records")
	}
	if got := pendingTail(records, 0); len(got) != 4 {
		t.Errorf("expected full tail for zero checkpoint, got %d", len(got))
	}
}

func TestRetryPolicyClassification(t *testing.T) {
	p := DefaultRetryPolicy()

	if !p.ShouldRetry(errors.New("connection refused"), 1) {
		t.Error("connection refused should be retryable")
	}
	if !p.ShouldRetry(errors.New("request timeout"), 1) {
		t.Error("timeout should be retryable")
	}
	if p.ShouldRetry(errors.New("unauthorized"), 1) {
		t.Error("unauthorized should not be retryable")
	}
	if p.ShouldRetry(errors.New("connection refused"), 4) {
		t.Error("should not retry past MaxAttempts")
	}
}

func TestRetryPolicyExecute(t *testing.T) {
	p := &RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 1.0, MaxDelay: time.Millisecond}

	attempts := 0
	err := p.Execute(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("timeout")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}

	attempts = 0
	err = p.Execute(context.Background(), func() error {
		attempts++
		return errors.New("invalid request")
	})
	if err == nil {
		t.Fatal("expected error for non-retryable failure")
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt for non-retryable error, got %d", attempts)
	}
}

func TestBuildPrompt(t *testing.T) {
	lines := []string{"user: hello", "assistant: hi"}

	prompt := buildPrompt("", lines)
	if !strings.Contains(prompt, "user: hello\nassistant: hi") {
		t.Errorf("prompt missing chat history: %q", prompt)
	}
	if strings.Contains(prompt, "Previous conversation summary") {
		t.Error("prompt should not mention a prior summary when there is none")
	}

	prompt = buildPrompt("earlier context", lines)
	if !strings.Contains(prompt, "Previous conversation summary: earlier context") {
		t.Errorf("prompt missing prior summary: %q", prompt)
	}
}

// blockingSummarizer parks inside Summarize until released, letting a test
// interleave appends with an in-flight compaction.
type blockingSummarizer struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSummarizer) Summarize(ctx context.Context, existingSummary string, lines []string) (string, error) {
	close(b.entered)
	<-b.release
	return "rolling summary", nil
}

func TestCompactionKeepsRecordsAppendedMidFlight(t *testing.T) {
	dir := t.TempDir()
	log, sum := openStores(t, dir, "s1")
	for i := 0; i < 5; i++ {
		appendN(t, log, types.RoleUser, strings.Repeat("early text ", 10))
	}

	block := &blockingSummarizer{entered: make(chan struct{}), release: make(chan struct{})}
	engine := NewEngine(block, tokens.Heuristic{}, Options{Threshold: 50, RecentWindow: 2, Enabled: true}, nil)

	done := make(chan error, 1)
	go func() {
		_, err := engine.MaybeCompact(context.Background(), "s1", log, sum)
		done <- err
	}()

	<-block.entered
	// Five more turns land while the summarizer is away. They are above the
	// checkpoint the compaction is about to commit and must not be truncated.
	appendN(t, log, types.RoleUser, "late 6", "late 7", "late 8", "late 9", "late 10")
	close(block.release)

	if err := <-done; err != nil {
		t.Fatal(err)
	}

	data, err := sum.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if data.Checkpoint != 5 {
		t.Fatalf("expected checkpoint 5, got %d", data.Checkpoint)
	}

	records, err := log.Records(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	got := make(map[uint64]bool, len(records))
	for _, r := range records {
		got[r.Sequence] = true
	}
	for seq := uint64(6); seq <= 10; seq++ {
		if !got[seq] {
			t.Errorf("record %d, appended during compaction, was dropped without being summarized", seq)
		}
	}
}
