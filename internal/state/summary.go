package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/chatscribe/internal/tokens"
	"github.com/user/chatscribe/internal/types"
)

// ErrCheckpointRegression is returned when an update's checkpoint is not
// strictly greater than the stored one. This is a programming-invariant
// violation, not a transient error: it would regress or duplicate compaction.
var ErrCheckpointRegression = errors.New("summary checkpoint must strictly increase")

// Summary is the file-backed store for one session's rolling summary and
// compaction checkpoint.
type Summary struct {
	sessionID types.SessionID
	path      string
	estimator tokens.Estimator
	mu        sync.Mutex
}

// summaryPath returns the summary file path for a session.
func summaryPath(dir string, id types.SessionID) string {
	return filepath.Join(dir, string(id)+"_summary.json")
}

// OpenSummary opens the summary store for the given session. The estimator
// is used to cache a token estimate alongside each stored summary.
func OpenSummary(dir string, id types.SessionID, estimator tokens.Estimator) (*Summary, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Summary{
		sessionID: id,
		path:      summaryPath(dir, id),
		estimator: estimator,
	}, nil
}

// Load returns the current summary data, or the zero value (checkpoint 0, no
// summary) if none has ever been persisted.
func (s *Summary) Load(_ context.Context) (types.SummaryData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Summary) loadLocked() (types.SummaryData, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.SummaryData{SessionID: s.sessionID}, nil
		}
		return types.SummaryData{}, fmt.Errorf("read summary: %w", err)
	}

	var sd types.SummaryData
	if err := json.Unmarshal(data, &sd); err != nil {
		return types.SummaryData{}, fmt.Errorf("unmarshal summary: %w", err)
	}
	return sd, nil
}

// Update stores a new summary with its checkpoint. The checkpoint must be
// strictly greater than the stored one; anything else is rejected with
// ErrCheckpointRegression.
func (s *Summary) Update(_ context.Context, summary string, checkpoint uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.loadLocked()
	if err != nil {
		return err
	}
	if checkpoint <= current.Checkpoint {
		return fmt.Errorf("%w: have %d, got %d", ErrCheckpointRegression, current.Checkpoint, checkpoint)
	}

	sd := types.SummaryData{
		SessionID:     s.sessionID,
		Checkpoint:    checkpoint,
		Summary:       summary,
		TokenEstimate: s.estimator.Estimate(summary),
		UpdatedAt:     time.Now().UTC(),
	}
	data, err := json.MarshalIndent(sd, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	return writeFileAtomic(s.path, data)
}

// Clear deletes the persisted summary, reverting Load to the zero value.
func (s *Summary) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove summary: %w", err)
	}
	return nil
}
