// Package memory is the conversation-memory entry point consumed by the chat
// loop. A Memory stores turns, serves the recent window plus the rolling
// summary for prompt assembly, and reports per-session statistics.
package memory

import (
	"context"

	"github.com/user/chatscribe/internal/types"
)

// Snapshot is what a caller needs to assemble the next prompt: the newest
// records verbatim, and the rolling summary of everything older (empty if no
// compaction has happened yet).
type Snapshot struct {
	Recent  []types.ChatRecord
	Summary string
}

// Memory is one session's conversation store. The backend variants are a
// closed set (Simple, File, Composite) created through New; callers hold the
// interface and never inspect the concrete type except through SummaryText.
//
// Load and Stats are read-only and never trigger compaction. Save is the only
// operation that may compact.
type Memory interface {
	// Load returns the recent window and the current summary.
	Load(ctx context.Context) (Snapshot, error)
	// Save appends the user and assistant halves of one turn (either may be
	// empty and is then skipped), then evaluates compaction once for the
	// whole turn.
	Save(ctx context.Context, userText, assistantText string) error
	// Clear discards all stored records and any summary.
	Clear(ctx context.Context) error
	// Stats reports a read-only snapshot of the session's memory state.
	Stats(ctx context.Context) (types.MemoryStats, error)
	// SessionID identifies the session this memory belongs to.
	SessionID() types.SessionID
}
