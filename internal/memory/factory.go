package memory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/user/chatscribe/internal/compact"
	"github.com/user/chatscribe/internal/state"
	"github.com/user/chatscribe/internal/tokens"
	"github.com/user/chatscribe/internal/types"
)

// Kind selects a memory backend variant.
type Kind string

const (
	KindSimple    Kind = "simple"
	KindFile      Kind = "file"
	KindComposite Kind = "composite"
)

// Factory creates per-session Memory instances over shared state. All
// file-backed variants for the same session share the canonical log and
// summary instances held by the state manager.
type Factory struct {
	manager      *state.Manager
	engine       *compact.Engine
	estimator    tokens.Estimator
	recentWindow int
	logger       *slog.Logger
}

// NewFactory creates a memory factory.
func NewFactory(manager *state.Manager, engine *compact.Engine, estimator tokens.Estimator, logger *slog.Logger) *Factory {
	return &Factory{
		manager:      manager,
		engine:       engine,
		estimator:    estimator,
		recentWindow: engine.RecentWindow(),
		logger:       logger,
	}
}

// Open returns a Memory of the given kind for the session. An empty session
// id gets a freshly generated one.
func (f *Factory) Open(kind Kind, sessionID types.SessionID) (Memory, error) {
	if sessionID == "" {
		sessionID = types.NewSessionID()
	}

	switch kind {
	case KindSimple:
		return NewSimple(sessionID, f.estimator, f.recentWindow), nil
	case KindFile:
		log, err := f.manager.Log(sessionID)
		if err != nil {
			return nil, fmt.Errorf("opening log for session %s: %w", sessionID, err)
		}
		return NewFile(sessionID, log, f.estimator, f.recentWindow), nil
	case KindComposite, "":
		log, err := f.manager.Log(sessionID)
		if err != nil {
			return nil, fmt.Errorf("opening log for session %s: %w", sessionID, err)
		}
		store, err := f.manager.Summary(sessionID)
		if err != nil {
			return nil, fmt.Errorf("opening summary for session %s: %w", sessionID, err)
		}
		return NewComposite(sessionID, log, store, f.engine, f.estimator, f.logger), nil
	default:
		return nil, fmt.Errorf("unknown memory kind %q", kind)
	}
}

// Sessions lists the session ids with persisted state.
func (f *Factory) Sessions() ([]types.SessionID, error) {
	return f.manager.List()
}

// SummaryText returns the current summary for backends that keep one. The
// boolean reports whether the variant supports summaries at all, not whether
// a summary currently exists.
func SummaryText(ctx context.Context, m Memory) (string, bool, error) {
	c, ok := m.(*Composite)
	if !ok {
		return "", false, nil
	}
	data, err := c.store.Load(ctx)
	if err != nil {
		return "", true, err
	}
	return data.Summary, true, nil
}
