package state

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/user/chatscribe/internal/tokens"
	"github.com/user/chatscribe/internal/types"
)

// Manager hands out the single canonical Log and Summary instance per
// session, creating them lazily on first access. Sharing one instance keeps
// sequence assignment and file ownership in one place: no two components
// ever hold independent copies of the same session's state.
type Manager struct {
	dir       string
	estimator tokens.Estimator

	mu        sync.Mutex
	logs      map[types.SessionID]*Log
	summaries map[types.SessionID]*Summary
}

// NewManager creates a Manager rooted at the given data directory.
func NewManager(dir string, estimator tokens.Estimator) *Manager {
	return &Manager{
		dir:       dir,
		estimator: estimator,
		logs:      make(map[types.SessionID]*Log),
		summaries: make(map[types.SessionID]*Summary),
	}
}

// Log returns the record log for the session, opening it on first use.
func (m *Manager) Log(id types.SessionID) (*Log, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.logs[id]; ok {
		return l, nil
	}
	l, err := OpenLog(m.dir, id)
	if err != nil {
		return nil, fmt.Errorf("open record log for %s: %w", id, err)
	}
	m.logs[id] = l
	return l, nil
}

// Summary returns the summary store for the session, opening it on first use.
func (m *Manager) Summary(id types.SessionID) (*Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.summaries[id]; ok {
		return s, nil
	}
	s, err := OpenSummary(m.dir, id, m.estimator)
	if err != nil {
		return nil, fmt.Errorf("open summary store for %s: %w", id, err)
	}
	m.summaries[id] = s
	return s, nil
}

// List returns the IDs of all sessions that have a log file on disk.
func (m *Manager) List() ([]types.SessionID, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	var ids []types.SessionID
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, "_history.jsonl") {
			continue
		}
		ids = append(ids, types.SessionID(strings.TrimSuffix(name, "_history.jsonl")))
	}
	return ids, nil
}
