package memory

import (
	"context"
	"log/slog"
	"strings"

	"github.com/user/chatscribe/internal/compact"
	"github.com/user/chatscribe/internal/tokens"
	"github.com/user/chatscribe/internal/types"
)

// Composite is the full backend: a durable record log plus a rolling summary,
// compacted by the engine when the un-summarized tail grows past the
// threshold. This is what the chat loop uses in production.
type Composite struct {
	sessionID types.SessionID
	log       types.RecordLog
	store     types.SummaryStore
	engine    *compact.Engine
	estimator tokens.Estimator
	logger    *slog.Logger
}

// NewComposite wires a session's log and summary store to the shared
// compaction engine. The log and store must be the canonical instances for
// the session (from the same state.Manager) so that every writer serializes
// through the same locks.
func NewComposite(sessionID types.SessionID, log types.RecordLog, store types.SummaryStore, engine *compact.Engine, estimator tokens.Estimator, logger *slog.Logger) *Composite {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composite{
		sessionID: sessionID,
		log:       log,
		store:     store,
		engine:    engine,
		estimator: estimator,
		logger:    logger,
	}
}

func (c *Composite) SessionID() types.SessionID {
	return c.sessionID
}

// Load returns the recent window and the current summary. It never compacts.
func (c *Composite) Load(ctx context.Context) (Snapshot, error) {
	recent, err := c.log.Recent(ctx, c.engine.RecentWindow())
	if err != nil {
		return Snapshot{}, err
	}
	data, err := c.store.Load(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Recent: recent, Summary: data.Summary}, nil
}

// Save appends both halves of the turn, then evaluates compaction once. The
// appends are durable before compaction starts, so a compaction failure
// never loses the turn; it is logged and swallowed here because the caller
// cannot act on it and the next Save retries naturally.
func (c *Composite) Save(ctx context.Context, userText, assistantText string) error {
	if err := appendTurn(ctx, c.log, userText, assistantText); err != nil {
		return err
	}

	if _, err := c.engine.MaybeCompact(ctx, c.sessionID, c.log, c.store); err != nil {
		c.logger.Warn("compaction failed, conversation continues uncompacted",
			"session_id", c.sessionID,
			"error", err)
	}
	return nil
}

// Clear drops the summary before the log. If the log clear then fails, the
// leftover records sit above a zero checkpoint and simply get re-summarized;
// the reverse order would strand a high checkpoint over a reset sequence
// counter and block all future compaction.
func (c *Composite) Clear(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return err
	}
	return c.log.Clear(ctx)
}

func (c *Composite) Stats(ctx context.Context) (types.MemoryStats, error) {
	records, err := c.log.Records(ctx)
	if err != nil {
		return types.MemoryStats{}, err
	}
	data, err := c.store.Load(ctx)
	if err != nil {
		return types.MemoryStats{}, err
	}

	lines := compact.RenderLines(records)
	stats := types.MemoryStats{
		SessionID:            c.sessionID,
		RecordCount:          len(records),
		LogTokenEstimate:     c.estimator.Estimate(strings.Join(lines, "\n")),
		SummaryThreshold:     c.engine.Threshold(),
		RecentWindow:         c.engine.RecentWindow(),
		HasSummary:           data.Summary != "",
		SummaryTokenEstimate: data.TokenEstimate,
		Checkpoint:           data.Checkpoint,
		UpdatedAt:            data.UpdatedAt,
	}
	if len(records) > 0 && records[len(records)-1].Timestamp.After(stats.UpdatedAt) {
		stats.UpdatedAt = records[len(records)-1].Timestamp
	}
	return stats, nil
}

// Compact forces a compaction check outside the Save path, used by the
// periodic sweeper and the admin endpoint. Unlike Save it propagates the
// error so the caller can report it.
func (c *Composite) Compact(ctx context.Context) (bool, error) {
	return c.engine.MaybeCompact(ctx, c.sessionID, c.log, c.store)
}
