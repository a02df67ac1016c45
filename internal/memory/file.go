package memory

import (
	"context"
	"strings"
	"time"

	"github.com/user/chatscribe/internal/compact"
	"github.com/user/chatscribe/internal/state"
	"github.com/user/chatscribe/internal/tokens"
	"github.com/user/chatscribe/internal/types"
)

// File is a durable backend that persists every turn but never compacts.
// The log grows without bound; there is no summary.
type File struct {
	sessionID    types.SessionID
	log          *state.Log
	estimator    tokens.Estimator
	recentWindow int
}

// NewFile creates a file-backed session store over the given log.
func NewFile(sessionID types.SessionID, log *state.Log, estimator tokens.Estimator, recentWindow int) *File {
	if recentWindow <= 0 {
		recentWindow = compact.DefaultRecentWindow
	}
	return &File{
		sessionID:    sessionID,
		log:          log,
		estimator:    estimator,
		recentWindow: recentWindow,
	}
}

func (f *File) SessionID() types.SessionID {
	return f.sessionID
}

func (f *File) Load(ctx context.Context) (Snapshot, error) {
	recent, err := f.log.Recent(ctx, f.recentWindow)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Recent: recent}, nil
}

func (f *File) Save(ctx context.Context, userText, assistantText string) error {
	return appendTurn(ctx, f.log, userText, assistantText)
}

func (f *File) Clear(ctx context.Context) error {
	return f.log.Clear(ctx)
}

func (f *File) Stats(ctx context.Context) (types.MemoryStats, error) {
	records, err := f.log.Records(ctx)
	if err != nil {
		return types.MemoryStats{}, err
	}
	lines := compact.RenderLines(records)
	stats := types.MemoryStats{
		SessionID:        f.sessionID,
		RecordCount:      len(records),
		LogTokenEstimate: f.estimator.Estimate(strings.Join(lines, "\n")),
		RecentWindow:     f.recentWindow,
	}
	if len(records) > 0 {
		stats.UpdatedAt = records[len(records)-1].Timestamp
	}
	return stats, nil
}

// appendTurn appends the non-empty halves of one user/assistant exchange with
// fresh timestamps. The assistant half is normalized first.
func appendTurn(ctx context.Context, log types.RecordLog, userText, assistantText string) error {
	assistantText = NormalizeAssistantReply(assistantText)
	now := time.Now().UTC()

	if strings.TrimSpace(userText) != "" {
		err := log.Append(ctx, &types.ChatRecord{
			Role:      types.RoleUser,
			Content:   userText,
			Timestamp: now,
		})
		if err != nil {
			return err
		}
	}
	if strings.TrimSpace(assistantText) != "" {
		err := log.Append(ctx, &types.ChatRecord{
			Role:      types.RoleAssistant,
			Content:   assistantText,
			Timestamp: now,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
