package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/chatscribe/internal/types"
)

// laneBuffer is the per-session backlog before Enqueue starts rejecting.
const laneBuffer = 100

const fallbackReply = "Sorry, something went wrong processing your message."

// Turn is one queued user message awaiting a reply.
type Turn struct {
	SessionID  types.SessionID
	Text       string
	Ctx        context.Context
	OnComplete func(reply string)
}

// Queue serialises turns per session while capping total concurrency.
// Each session's turns run in FIFO order on a dedicated lane goroutine;
// a weighted semaphore bounds how many lanes may process at once.
type Queue struct {
	mu        sync.Mutex
	lanes     map[types.SessionID]chan *Turn
	slots     *semaphore.Weighted
	processor func(*Turn) error
	active    atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewQueue(maxConcurrent int64) *Queue {
	return &Queue{
		lanes: make(map[types.SessionID]chan *Turn),
		slots: semaphore.NewWeighted(maxConcurrent),
	}
}

// SetProcessor sets the function invoked for each dequeued turn. Must be
// called before Start.
func (q *Queue) SetProcessor(fn func(*Turn) error) {
	q.processor = fn
}

// Start derives the queue's run context. Must be called before Enqueue.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop cancels the run context, closes every lane, and waits for in-flight
// turns to finish.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Lock()
	for _, lane := range q.lanes {
		close(lane)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

// Enqueue places a turn on its session's lane, starting the lane on first
// use. Fails when the lane's backlog is full.
func (q *Queue) Enqueue(turn *Turn) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	lane, ok := q.lanes[turn.SessionID]
	if !ok {
		lane = make(chan *Turn, laneBuffer)
		q.lanes[turn.SessionID] = lane
		q.wg.Add(1)
		go q.runLane(lane)
	}

	select {
	case lane <- turn:
		return nil
	default:
		return fmt.Errorf("queue full for session %s", turn.SessionID)
	}
}

// runLane drains one session's lane. A semaphore slot is held for the whole
// turn, so FIFO order within the session is preserved while the semaphore
// limits cross-session parallelism.
func (q *Queue) runLane(lane chan *Turn) {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case turn, ok := <-lane:
			if !ok {
				return
			}
			if err := q.slots.Acquire(q.ctx, 1); err != nil {
				return
			}
			q.process(turn)
			q.slots.Release(1)
		}
	}
}

func (q *Queue) process(turn *Turn) {
	if q.processor == nil {
		return
	}
	q.active.Add(1)
	defer q.active.Add(-1)

	turn.Ctx = q.ctx
	if err := q.processor(turn); err != nil {
		slog.Error("turn processing failed", "session_id", string(turn.SessionID), "error", err)
		if turn.OnComplete != nil {
			turn.OnComplete(fallbackReply)
		}
	}
}

// WaitIdle blocks until no turn is being processed or the timeout expires.
// Reports whether the queue went idle.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		if q.active.Load() == 0 {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		<-tick.C
	}
}
