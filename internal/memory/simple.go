package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/user/chatscribe/internal/compact"
	"github.com/user/chatscribe/internal/tokens"
	"github.com/user/chatscribe/internal/types"
)

// Simple is a volatile in-memory backend with no persistence and no
// compaction. Useful for tests and for callers that only need scratch
// context within one process lifetime.
type Simple struct {
	sessionID    types.SessionID
	estimator    tokens.Estimator
	recentWindow int

	mu      sync.RWMutex
	records []types.ChatRecord
	nextSeq uint64
	updated time.Time
}

// NewSimple creates an in-memory session store.
func NewSimple(sessionID types.SessionID, estimator tokens.Estimator, recentWindow int) *Simple {
	if recentWindow <= 0 {
		recentWindow = compact.DefaultRecentWindow
	}
	return &Simple{
		sessionID:    sessionID,
		estimator:    estimator,
		recentWindow: recentWindow,
		nextSeq:      1,
	}
}

func (s *Simple) SessionID() types.SessionID {
	return s.sessionID
}

func (s *Simple) Load(ctx context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.recentWindow
	if n > len(s.records) {
		n = len(s.records)
	}
	recent := make([]types.ChatRecord, n)
	copy(recent, s.records[len(s.records)-n:])
	return Snapshot{Recent: recent}, nil
}

func (s *Simple) Save(ctx context.Context, userText, assistantText string) error {
	assistantText = NormalizeAssistantReply(assistantText)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, turn := range []struct {
		role types.Role
		text string
	}{
		{types.RoleUser, userText},
		{types.RoleAssistant, assistantText},
	} {
		if strings.TrimSpace(turn.text) == "" {
			continue
		}
		s.records = append(s.records, types.ChatRecord{
			Role:      turn.role,
			Content:   turn.text,
			Timestamp: now,
			Sequence:  s.nextSeq,
		})
		s.nextSeq++
		s.updated = now
	}
	return nil
}

func (s *Simple) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.nextSeq = 1
	return nil
}

func (s *Simple) Stats(ctx context.Context) (types.MemoryStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines := compact.RenderLines(s.records)
	return types.MemoryStats{
		SessionID:        s.sessionID,
		RecordCount:      len(s.records),
		LogTokenEstimate: s.estimator.Estimate(strings.Join(lines, "\n")),
		RecentWindow:     s.recentWindow,
		UpdatedAt:        s.updated,
	}, nil
}
