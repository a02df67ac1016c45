package state

import (
	"context"
	"errors"
	"testing"

	"github.com/user/chatscribe/internal/tokens"
	"github.com/user/chatscribe/internal/types"
)

func mustOpenSummary(t *testing.T, dir string, id types.SessionID) *Summary {
	t.Helper()
	s, err := OpenSummary(dir, id, tokens.Heuristic{})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSummaryZeroValue(t *testing.T) {
	s := mustOpenSummary(t, t.TempDir(), "s1")

	sd, err := s.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sd.Checkpoint != 0 || sd.Summary != "" {
		t.Errorf("expected zero value, got %+v", sd)
	}
}

func TestSummaryUpdateAndReload(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s := mustOpenSummary(t, dir, "s1")

	if err := s.Update(ctx, "they discussed travel plans", 6); err != nil {
		t.Fatal(err)
	}

	reloaded := mustOpenSummary(t, dir, "s1")
	sd, err := reloaded.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sd.Checkpoint != 6 {
		t.Errorf("expected checkpoint 6, got %d", sd.Checkpoint)
	}
	if sd.Summary != "they discussed travel plans" {
		t.Errorf("unexpected summary: %q", sd.Summary)
	}
	if sd.TokenEstimate == 0 {
		t.Error("expected a non-zero token estimate")
	}
	if sd.UpdatedAt.IsZero() {
		t.Error("expected updated_at to be stamped")
	}
}

func TestSummaryRejectsCheckpointRegression(t *testing.T) {
	ctx := context.Background()
	s := mustOpenSummary(t, t.TempDir(), "s1")

	if err := s.Update(ctx, "first", 5); err != nil {
		t.Fatal(err)
	}
	if err := s.Update(ctx, "same", 5); !errors.Is(err, ErrCheckpointRegression) {
		t.Errorf("expected ErrCheckpointRegression for equal checkpoint, got %v", err)
	}
	if err := s.Update(ctx, "older", 3); !errors.Is(err, ErrCheckpointRegression) {
		t.Errorf("expected ErrCheckpointRegression for lower checkpoint, got %v", err)
	}

	// The stored value is untouched by rejected updates.
	sd, _ := s.Load(ctx)
	if sd.Checkpoint != 5 || sd.Summary != "first" {
		t.Errorf("rejected update mutated state: %+v", sd)
	}

	if err := s.Update(ctx, "newer", 9); err != nil {
		t.Fatal(err)
	}
}

func TestSummaryClear(t *testing.T) {
	ctx := context.Background()
	s := mustOpenSummary(t, t.TempDir(), "s1")

	if err := s.Update(ctx, "something", 2); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	sd, err := s.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sd.Checkpoint != 0 || sd.Summary != "" {
		t.Errorf("expected zero value after clear, got %+v", sd)
	}

	// Clearing an already-absent summary is not an error.
	if err := s.Clear(ctx); err != nil {
		t.Errorf("clear of absent summary failed: %v", err)
	}
}
