package types

import "context"

// RecordLog is durable, ordered storage of ChatRecords for one session.
// Append assigns the sequence number and returns only after the write is
// durable on disk. RetainForCheckpoint is the compaction truncation: it keeps
// the last window records, widened so that no record with sequence above
// checkpoint is ever dropped.
type RecordLog interface {
	Append(ctx context.Context, record *ChatRecord) error
	Records(ctx context.Context) ([]ChatRecord, error)
	Recent(ctx context.Context, n int) ([]ChatRecord, error)
	RetainRecent(ctx context.Context, n int) error
	RetainForCheckpoint(ctx context.Context, checkpoint uint64, window int) error
	Clear(ctx context.Context) error
}

// SummaryStore holds the single rolling summary for one session. Update
// rejects any checkpoint that is not strictly greater than the stored one.
type SummaryStore interface {
	Load(ctx context.Context) (SummaryData, error)
	Update(ctx context.Context, summary string, checkpoint uint64) error
	Clear(ctx context.Context) error
}
