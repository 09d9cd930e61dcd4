package game

import (
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog/log"
)

var queueLogger = log.With().Str("logger_name", "game::queue").Logger()

// CommandQueue serializes mutating work per session. Actions enqueued for the
// same session run one at a time in enqueue order; different sessions never
// wait on each other. A session's chain entry is dropped as soon as its
// backlog drains, so idle sessions hold no queue resources.
type CommandQueue struct {
	mu     sync.Mutex
	chains map[string]*commandChain
}

type commandChain struct {
	pending []func()
}

func NewCommandQueue() *CommandQueue {
	return &CommandQueue{
		chains: make(map[string]*commandChain),
	}
}

// Enqueue appends the action to the session's chain and returns immediately.
// If the session has no chain, one is created and a drainer goroutine is
// started for it.
func (q *CommandQueue) Enqueue(sessionCode string, action func()) {
	q.mu.Lock()
	chain, ok := q.chains[sessionCode]
	if ok {
		chain.pending = append(chain.pending, action)
		q.mu.Unlock()
		return
	}
	chain = &commandChain{pending: []func(){action}}
	q.chains[sessionCode] = chain
	q.mu.Unlock()

	go q.drain(sessionCode, chain)
}

// PendingCount reports the backlog for a session. Zero means no chain exists.
func (q *CommandQueue) PendingCount(sessionCode string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	chain, ok := q.chains[sessionCode]
	if !ok {
		return 0
	}
	return len(chain.pending)
}

func (q *CommandQueue) drain(sessionCode string, chain *commandChain) {
	for {
		q.mu.Lock()
		if len(chain.pending) == 0 {
			delete(q.chains, sessionCode)
			q.mu.Unlock()
			return
		}
		action := chain.pending[0]
		chain.pending = chain.pending[1:]
		q.mu.Unlock()

		q.runOne(sessionCode, action)
	}
}

// runOne executes a single queued action. A panic is logged and swallowed so
// one bad command cannot poison the rest of the session's chain.
func (q *CommandQueue) runOne(sessionCode string, action func()) {
	defer func() {
		if err := recover(); err != nil {
			queueLogger.Error().
				Str("sessionCode", sessionCode).
				Msgf("Queued action panicked: %v\nStack Trace:\n%s", err, string(debug.Stack()))
		}
	}()
	action()
}
