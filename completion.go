package imap

import "sync"

// CommandCompletion represents one issued, not-yet-resolved command. The
// session core never knows concrete command types; the caller that issued the
// command supplies an implementation that recognizes its own completion
// line(s).
type CommandCompletion interface {
	// TryComplete is handed each candidate line in arrival order and returns
	// true once the line resolves this command. It may be called several
	// times for a multi-line response.
	TryComplete(line string) bool

	// OnError is invoked when processing faulted while this command was the
	// pending head, with the offending line and the underlying cause.
	OnError(line string, cause error)
}

// completionQueue is the FIFO of pending command completions. Enqueue happens
// from arbitrary caller goroutines; peek and pop happen only inside the
// serialized completion-processing path.
type completionQueue struct {
	mu      sync.Mutex
	pending []CommandCompletion
}

func (q *completionQueue) enqueue(c CommandCompletion) {
	q.mu.Lock()
	q.pending = append(q.pending, c)
	q.mu.Unlock()
}

// peek returns the head completion without removing it, or nil.
func (q *completionQueue) peek() CommandCompletion {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	return q.pending[0]
}

// pop removes and returns the head completion, or nil.
func (q *completionQueue) pop() CommandCompletion {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	c := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	return c
}

func (q *completionQueue) empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) == 0
}
