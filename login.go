package imap

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// loginGate blocks AwaitLogin callers until both login permits have been
// released: one for the server's capability announcement, one for the
// authentication result. It is consumed once per connection lifetime; a
// reconnect needs a fresh Session and with it a fresh gate.
type loginGate struct {
	remaining atomic.Int32
	once      sync.Once
	released  chan struct{}
}

func newLoginGate() *loginGate {
	g := &loginGate{released: make(chan struct{})}
	g.remaining.Store(2)
	return g
}

// countDown releases one permit. Extra releases beyond the initial two are
// harmless, matching a countdown latch.
func (g *loginGate) countDown() {
	if g.remaining.Add(-1) <= 0 {
		g.once.Do(func() { close(g.released) })
	}
}

// AwaitLogin blocks until the server has announced its capabilities and
// answered the login attempt, then reports whether authentication succeeded.
// A non-positive timeout means DefaultLoginTimeout.
//
// On timeout or context cancellation the connection must be treated as
// unusable: an error is recorded on the trail and returned.
func (s *Session) AwaitLogin(ctx context.Context, timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		timeout = DefaultLoginTimeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.gate.released:
		return s.loggedIn.Load(), nil
	case <-timer.C:
		s.recordError(nil, "Timed out waiting for login response")
		return false, errors.New("imap: timed out waiting for login response")
	case <-ctx.Done():
		s.recordError(nil, ctx.Err().Error())
		return false, ctx.Err()
	}
}

// IsLoggedIn reports whether the server has confirmed authentication.
func (s *Session) IsLoggedIn() bool {
	return s.loggedIn.Load()
}

// Capabilities returns the tokens from the server's capability announcement,
// or nil if none has arrived yet.
func (s *Session) Capabilities() []string {
	p := s.caps.Load()
	if p == nil {
		return nil
	}
	out := make([]string, len(*p))
	copy(out, *p)
	return out
}
