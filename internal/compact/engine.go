package compact

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/user/chatscribe/internal/tokens"
	"github.com/user/chatscribe/internal/types"
)

// Default compaction parameters. The threshold is in estimated tokens of
// un-summarized text; the window is how many records survive a compaction.
const (
	DefaultThreshold    = 3500
	DefaultRecentWindow = 10
)

// Options configures the compaction engine.
type Options struct {
	// Threshold is the estimated token count of the pending tail above which
	// compaction runs. Zero means DefaultThreshold.
	Threshold int
	// RecentWindow is how many of the newest records are kept verbatim after
	// a compaction. Zero means DefaultRecentWindow.
	RecentWindow int
	// Enabled gates compaction entirely. When false, MaybeCompact is always
	// a no-op and the log grows without bound.
	Enabled bool
}

// Engine decides when a session's log has accumulated enough un-summarized
// text to fold into the rolling summary, and performs the fold. At most one
// compaction runs per session at a time; concurrent callers share the result
// of the in-flight run.
type Engine struct {
	summarizer   Summarizer
	estimator    tokens.Estimator
	threshold    int
	recentWindow int
	enabled      bool
	inflight     singleflight.Group
	logger       *slog.Logger
}

// NewEngine creates a compaction engine.
func NewEngine(summarizer Summarizer, estimator tokens.Estimator, opts Options, logger *slog.Logger) *Engine {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.RecentWindow <= 0 {
		opts.RecentWindow = DefaultRecentWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		summarizer:   summarizer,
		estimator:    estimator,
		threshold:    opts.Threshold,
		recentWindow: opts.RecentWindow,
		enabled:      opts.Enabled,
		logger:       logger,
	}
}

// RecentWindow returns the configured post-compaction window size.
func (e *Engine) RecentWindow() int {
	return e.recentWindow
}

// Threshold returns the configured compaction threshold in estimated tokens.
func (e *Engine) Threshold() int {
	return e.threshold
}

// MaybeCompact checks whether the session's pending tail (records newer than
// the stored checkpoint) exceeds the threshold and, if so, summarizes it,
// advances the checkpoint, and truncates the log to the recent window.
// Returns true only when a compaction actually ran.
//
// The summary store is updated before the log is truncated, so a crash or
// failure between the two steps leaves extra records in the log but never
// loses content: records at or below the checkpoint are redundant, not
// required.
func (e *Engine) MaybeCompact(ctx context.Context, sessionID types.SessionID, log types.RecordLog, store types.SummaryStore) (bool, error) {
	if !e.enabled {
		return false, nil
	}

	v, err, _ := e.inflight.Do(string(sessionID), func() (any, error) {
		return e.compactOnce(ctx, sessionID, log, store)
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (e *Engine) compactOnce(ctx context.Context, sessionID types.SessionID, log types.RecordLog, store types.SummaryStore) (bool, error) {
	data, err := store.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("loading summary: %w", err)
	}

	records, err := log.Records(ctx)
	if err != nil {
		return false, fmt.Errorf("loading records: %w", err)
	}

	pending := pendingTail(records, data.Checkpoint)
	if len(pending) == 0 {
		return false, nil
	}

	lines := RenderLines(pending)
	estimate := e.estimator.Estimate(strings.Join(lines, "\n"))
	if estimate <= e.threshold {
		return false, nil
	}

	e.logger.Info("compacting session",
		"session_id", sessionID,
		"pending_records", len(pending),
		"estimated_tokens", estimate)

	// The summarizer call is the slow part; no session lock is held here, so
	// reads and appends on the same session proceed while it runs.
	summary, err := e.summarizer.Summarize(ctx, data.Summary, lines)
	if err != nil {
		return false, fmt.Errorf("summarizing session %s: %w", sessionID, err)
	}

	checkpoint := pending[len(pending)-1].Sequence
	if err := store.Update(ctx, summary, checkpoint); err != nil {
		return false, fmt.Errorf("storing summary for session %s: %w", sessionID, err)
	}

	// Records may have arrived while the summarizer ran; the checkpoint-aware
	// truncation keeps every record above the checkpoint however many there
	// are, so a turn saved mid-compaction is never lost.
	if err := log.RetainForCheckpoint(ctx, checkpoint, e.recentWindow); err != nil {
		// The checkpoint is already durable, so the un-truncated records are
		// redundant rather than lost; the next compaction retries the trim.
		return false, fmt.Errorf("truncating log for session %s: %w", sessionID, err)
	}

	e.logger.Info("compaction complete",
		"session_id", sessionID,
		"checkpoint", checkpoint)

	return true, nil
}

// pendingTail returns the records with sequence strictly greater than the
// checkpoint. Records are stored in sequence order, so this is the contiguous
// tail of the slice.
func pendingTail(records []types.ChatRecord, checkpoint uint64) []types.ChatRecord {
	for i, r := range records {
		if r.Sequence > checkpoint {
			return records[i:]
		}
	}
	return nil
}
