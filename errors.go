package imap

import (
	"fmt"
	"sync"

	humanize "github.com/dustin/go-humanize"
)

// wireTraceSize is how many recent raw lines each error record snapshots.
const wireTraceSize = 25

// WireError is one recorded fault, with the wire context needed to diagnose
// it after the fact.
type WireError struct {
	completion CommandCompletion
	message    string
	trace      []string
}

// Message returns the recorded failure message.
func (e *WireError) Message() string { return e.message }

// Trace returns the raw server lines leading up to the fault, oldest first.
// The snapshot was taken when the record was created and never mutates.
func (e *WireError) Trace() []string { return e.trace }

// Expected describes the command completion the fault was associated with,
// or "" when there was none (logins, unsolicited lines).
func (e *WireError) Expected() string {
	if e.completion == nil {
		return ""
	}
	return fmt.Sprint(e.completion)
}

func (e *WireError) Error() string { return e.message }

func (e *WireError) String() string {
	var n int
	for _, l := range e.trace {
		n += len(l)
	}
	return fmt.Sprintf("%s (%d trace lines, %s)", e.message, len(e.trace), humanize.Bytes(uint64(n)))
}

// errorTrail is the LIFO stack of recorded faults. Pushed only by the
// delivery path, popped from arbitrary caller goroutines.
type errorTrail struct {
	mu    sync.Mutex
	stack []*WireError
}

func (t *errorTrail) push(rec *WireError) {
	t.mu.Lock()
	t.stack = append(t.stack, rec)
	t.mu.Unlock()
}

// pollLast pops the most recently pushed record, or nil.
func (t *errorTrail) pollLast() *WireError {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.stack) == 0 {
		return nil
	}
	rec := t.stack[len(t.stack)-1]
	t.stack[len(t.stack)-1] = nil
	t.stack = t.stack[:len(t.stack)-1]
	return rec
}

// wireTrace is a bounded ring of the most recent raw lines, FIFO eviction.
// Written only by the delivery path; snapshots are defensive copies.
type wireTrace struct {
	mu    sync.Mutex
	lines []string
}

func (w *wireTrace) add(line string) {
	w.mu.Lock()
	if len(w.lines) == wireTraceSize {
		copy(w.lines, w.lines[1:])
		w.lines[len(w.lines)-1] = line
	} else {
		w.lines = append(w.lines, line)
	}
	w.mu.Unlock()
}

func (w *wireTrace) snapshot() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.lines))
	copy(out, w.lines)
	return out
}
