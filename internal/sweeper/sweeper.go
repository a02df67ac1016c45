package sweeper

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/user/chatscribe/internal/memory"
)

// Sweeper periodically walks every persisted session and gives each one a
// compaction check. Sessions whose pending tail is under the threshold are
// untouched; a sweep only matters for sessions that crossed the threshold
// while compaction was failing or the process was down.
type Sweeper struct {
	factory  *memory.Factory
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// New creates a sweeper that runs on the given cron schedule.
func New(factory *memory.Factory, schedule string, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		factory:  factory,
		schedule: schedule,
		cron:     cron.New(cron.WithParser(cronParser)),
		logger:   logger,
	}
}

// Start registers the sweep as a cron entry and starts the ticker.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		s.Sweep(ctx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("compaction sweeper started", "schedule", s.schedule)
	return nil
}

// Stop stops the cron ticker.
func (s *Sweeper) Stop() {
	s.cron.Stop()
}

// Sweep runs one compaction pass over all persisted sessions and returns how
// many sessions were actually compacted. Per-session failures are logged and
// do not stop the sweep.
func (s *Sweeper) Sweep(ctx context.Context) int {
	ids, err := s.factory.Sessions()
	if err != nil {
		s.logger.Error("listing sessions for sweep", "error", err)
		return 0
	}

	compacted := 0
	for _, id := range ids {
		mem, err := s.factory.Open(memory.KindComposite, id)
		if err != nil {
			s.logger.Error("opening session for sweep", "session_id", id, "error", err)
			continue
		}
		comp, ok := mem.(*memory.Composite)
		if !ok {
			continue
		}
		ran, err := comp.Compact(ctx)
		if err != nil {
			s.logger.Warn("sweep compaction failed", "session_id", id, "error", err)
			continue
		}
		if ran {
			compacted++
		}
	}

	if compacted > 0 {
		s.logger.Info("sweep complete", "sessions", len(ids), "compacted", compacted)
	}
	return compacted
}
