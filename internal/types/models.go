package types

import (
	"encoding/json"
	"time"
)

// Role identifies the speaker of a chat record.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// ChatRecord is one stored utterance. Sequence is assigned by the record log
// at append time and is strictly increasing within a session.
type ChatRecord struct {
	Role      Role                       `json:"role"`
	Content   string                     `json:"content"`
	Name      string                     `json:"name,omitempty"`
	Extra     map[string]json.RawMessage `json:"extra,omitempty"`
	Timestamp time.Time                  `json:"timestamp"`
	Sequence  uint64                     `json:"sequence"`
}

// SessionLog is the consolidated on-disk document for one session's records.
type SessionLog struct {
	SessionID SessionID    `json:"session_id"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Records   []ChatRecord `json:"records"`
}

// SummaryData is the per-session compaction state. Checkpoint is the highest
// record sequence already folded into Summary; it only ever increases.
type SummaryData struct {
	SessionID     SessionID `json:"session_id"`
	Checkpoint    uint64    `json:"checkpoint"`
	Summary       string    `json:"summary,omitempty"`
	TokenEstimate int       `json:"token_estimate"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MemoryStats is a read-only snapshot of one session's memory state.
// SummaryThreshold is 0 for backends that never compact.
type MemoryStats struct {
	SessionID            SessionID `json:"session_id"`
	RecordCount          int       `json:"record_count"`
	LogTokenEstimate     int       `json:"log_token_estimate"`
	SummaryThreshold     int       `json:"summary_threshold"`
	RecentWindow         int       `json:"recent_window"`
	HasSummary           bool      `json:"has_summary"`
	SummaryTokenEstimate int       `json:"summary_token_estimate"`
	Checkpoint           uint64    `json:"checkpoint"`
	UpdatedAt            time.Time `json:"updated_at"`
}
