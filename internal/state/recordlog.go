package state

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/user/chatscribe/internal/types"
)

// ErrCorruptLog is returned when a non-empty log file parses as neither the
// current consolidated document nor the legacy line-per-record format. The
// session cannot be recovered automatically.
var ErrCorruptLog = errors.New("record log file is corrupt")

// maxLineSize bounds a single legacy record line.
const maxLineSize = 4 * 1024 * 1024

// Log is the file-backed record log for one session. It owns sequence-number
// assignment: every mutation runs under the log's exclusive lock, so no two
// records in a session ever receive the same sequence number.
type Log struct {
	sessionID types.SessionID
	path      string

	mu      sync.RWMutex
	doc     types.SessionLog
	nextSeq uint64
}

// historyPath returns the log file path for a session.
func historyPath(dir string, id types.SessionID) string {
	// The .jsonl extension is kept for compatibility with files written by
	// older deployments, even though the current format is one document.
	return filepath.Join(dir, string(id)+"_history.jsonl")
}

// OpenLog opens (or creates) the record log for the given session, migrating
// legacy-format files to the current consolidated document on first load.
func OpenLog(dir string, id types.SessionID) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	now := time.Now().UTC()
	l := &Log{
		sessionID: id,
		path:      historyPath(dir, id),
		doc: types.SessionLog{
			SessionID: id,
			CreatedAt: now,
			UpdatedAt: now,
		},
		nextSeq: 1,
	}
	if err := l.load(); err != nil {
		return nil, err
	}
	return l, nil
}

// load reads the log file, trying the current format first and falling back
// to legacy migration. A missing or empty file leaves the fresh state.
func (l *Log) load() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read record log: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}

	var doc types.SessionLog
	// A legacy single-line file also unmarshals into SessionLog (all fields
	// zero), so require the session id to accept the current format.
	if err := json.Unmarshal(data, &doc); err == nil && doc.SessionID != "" {
		l.doc = doc
		l.nextSeq = maxSequence(doc.Records) + 1
		return nil
	}

	records, err := parseLegacy(data)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptLog, l.path, err)
	}
	slog.Info("migrated legacy record log", "session_id", string(l.sessionID), "records", len(records))

	l.doc.Records = records
	l.doc.UpdatedAt = time.Now().UTC()
	l.nextSeq = maxSequence(records) + 1

	// Re-persist immediately so the legacy path is never taken again.
	if err := l.persistLocked(); err != nil {
		return fmt.Errorf("re-persist migrated log: %w", err)
	}
	return nil
}

// legacyRecord is one line of the old format: a bare record with no sequence
// number, written by a line-appending writer.
type legacyRecord struct {
	Role             string                     `json:"role"`
	Content          string                     `json:"content"`
	Name             string                     `json:"name"`
	AdditionalFields map[string]json.RawMessage `json:"additional_fields"`
	Timestamp        string                     `json:"timestamp"`
}

// parseLegacy reads one JSON object per line, assigning sequence numbers in
// line order starting at 1. Assistant lines that embed a full transcript
// (both a user-turn and an assistant-turn marker) are a known artifact of an
// older buggy writer and are skipped.
func parseLegacy(data []byte) ([]types.ChatRecord, error) {
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var records []types.ChatRecord
	parsed := false
	var seq uint64

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec legacyRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil || rec.Role == "" {
			slog.Warn("skipping unparseable legacy line", "error", err)
			continue
		}
		parsed = true

		if rec.Role == string(types.RoleAssistant) &&
			strings.Contains(rec.Content, "user:") && strings.Contains(rec.Content, "assistant:") {
			continue
		}

		ts := time.Now().UTC()
		if rec.Timestamp != "" {
			if t, err := time.Parse(time.RFC3339, rec.Timestamp); err == nil {
				ts = t
			}
		}

		seq++
		records = append(records, types.ChatRecord{
			Role:      types.Role(rec.Role),
			Content:   rec.Content,
			Name:      rec.Name,
			Extra:     rec.AdditionalFields,
			Timestamp: ts,
			Sequence:  seq,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan legacy log: %w", err)
	}
	if !parsed {
		return nil, errors.New("no line parsed as a legacy record")
	}
	return records, nil
}

func maxSequence(records []types.ChatRecord) uint64 {
	var max uint64
	for _, r := range records {
		if r.Sequence > max {
			max = r.Sequence
		}
	}
	return max
}

// persistLocked writes the whole document atomically. Caller must hold the
// write lock (or be the only holder during load).
func (l *Log) persistLocked() error {
	data, err := json.MarshalIndent(l.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record log: %w", err)
	}
	return writeFileAtomic(l.path, data)
}

// SessionID returns the session this log belongs to.
func (l *Log) SessionID() types.SessionID {
	return l.sessionID
}

// Append assigns the next sequence number to record and durably persists the
// log. Records whose trimmed content is empty are dropped without error.
// Returns only once the write is acknowledged; on error the log is unchanged
// and the sequence number is not consumed.
func (l *Log) Append(_ context.Context, record *types.ChatRecord) error {
	if strings.TrimSpace(record.Content) == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	record.Sequence = l.nextSeq

	prevLen := len(l.doc.Records)
	prevUpdated := l.doc.UpdatedAt
	l.doc.Records = append(l.doc.Records, *record)
	l.doc.UpdatedAt = time.Now().UTC()

	if err := l.persistLocked(); err != nil {
		l.doc.Records = l.doc.Records[:prevLen]
		l.doc.UpdatedAt = prevUpdated
		return err
	}
	l.nextSeq++
	return nil
}

// Records returns a copy of the full ordered record sequence.
func (l *Log) Records(_ context.Context) ([]types.ChatRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]types.ChatRecord, len(l.doc.Records))
	copy(out, l.doc.Records)
	return out, nil
}

// Recent returns the last min(n, len) records in original order.
func (l *Log) Recent(_ context.Context, n int) ([]types.ChatRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	records := l.doc.Records
	if n < len(records) {
		records = records[len(records)-n:]
	}
	out := make([]types.ChatRecord, len(records))
	copy(out, records)
	return out, nil
}

// RetainRecent replaces the stored sequence with its last n entries and
// persists. The sequence counter is unaffected: counters are monotonic for
// the life of the session, independent of what is physically retained.
func (l *Log) RetainRecent(_ context.Context, n int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.retainLocked(n)
}

// RetainForCheckpoint truncates to the last window entries, widened so that
// every record with sequence above checkpoint survives. The count is taken
// under the same write lock as the truncation, so records appended while a
// summarizer call was in flight can never be dropped unsummarized.
func (l *Log) RetainForCheckpoint(_ context.Context, checkpoint uint64, window int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	keep := window
	above := 0
	for _, r := range l.doc.Records {
		if r.Sequence > checkpoint {
			above++
		}
	}
	if above > keep {
		keep = above
	}
	return l.retainLocked(keep)
}

// retainLocked keeps the last n records and persists. Caller must hold the
// write lock.
func (l *Log) retainLocked(n int) error {
	if len(l.doc.Records) <= n {
		return nil
	}

	prev := l.doc.Records
	prevUpdated := l.doc.UpdatedAt
	kept := make([]types.ChatRecord, n)
	copy(kept, prev[len(prev)-n:])
	l.doc.Records = kept
	l.doc.UpdatedAt = time.Now().UTC()

	if err := l.persistLocked(); err != nil {
		l.doc.Records = prev
		l.doc.UpdatedAt = prevUpdated
		return err
	}
	return nil
}

// Clear empties the log, persists, and resets the sequence counter to 1.
func (l *Log) Clear(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.doc.Records
	prevUpdated := l.doc.UpdatedAt
	prevSeq := l.nextSeq
	l.doc.Records = nil
	l.doc.UpdatedAt = time.Now().UTC()
	l.nextSeq = 1

	if err := l.persistLocked(); err != nil {
		l.doc.Records = prev
		l.doc.UpdatedAt = prevUpdated
		l.nextSeq = prevSeq
		return err
	}
	return nil
}
