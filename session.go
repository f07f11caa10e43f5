package imap

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/davecgh/go-spew/spew"
	"github.com/rs/xid"
)

// capabilityPrefix marks the server's capability announcement.
const capabilityPrefix = "* CAPABILITY"

var (
	commandFailedRE = regexp.MustCompile(`(?i)^\. (NO|BAD) (.*)`)
	systemErrorRE   = regexp.MustCompile(`(?i)^\*\s*bye\s*system\s*error\s*$`)
	authSuccessRE   = regexp.MustCompile(`(?i)^\. OK .*@.* \(Success\)$`)
	idleEndedRE     = regexp.MustCompile(`(?i)^.* OK IDLE terminated \(success\)\s*$`)
	idleExistsRE    = regexp.MustCompile(`(?i)^\* (\d+) exists\s*$`)
	idleExpungeRE   = regexp.MustCompile(`(?i)^\* (\d+) expunge\s*$`)
)

const (
	// bandwidthLimitLine is the server's throttling rejection, treated the
	// same as a fatal system error.
	bandwidthLimitLine = ". NO [ALERT] Account exceeded command or bandwidth limits. (Failure)"

	// invalidTagLine is a spurious complaint some servers emit while a
	// connection is idling. It belongs to no command.
	invalidTagLine = "* BAD [CLIENTBUG] Invalid tag"

	// idleAckLine is the continuation acknowledging IDLE entry.
	idleAckLine = "+ idling"
)

// Session is the response-processing core for one IMAP connection. The
// transport feeds it server lines via OnMessage, strictly in arrival order;
// callers issue commands by enqueueing completions and poll login state,
// capabilities and the error trail from their own goroutines.
//
// A Session is single-use. Once halted it must be discarded and the
// connection re-established with a fresh one.
type Session struct {
	idler  Idler
	config Config
	log    Logger

	gate     *loginGate
	loggedIn atomic.Bool
	caps     atomic.Pointer[[]string]

	idling  atomic.Bool
	idleAck atomic.Bool
	halted  atomic.Bool

	completions completionQueue
	completeMu  sync.Mutex

	trail errorTrail
	trace wireTrace

	observeMu sync.Mutex
	observer  MailboxObserver
	pushed    *pushDiff
}

// NewSession creates the handler for one connection. The idler collaborator
// drives IDLE entry/exit and transport teardown; it must not be nil.
func NewSession(idler Idler, config Config) *Session {
	return &Session{
		idler:  idler,
		config: config,
		log:    sessionLogger(xid.New().String(), config.Username),
		gate:   newLoginGate(),
	}
}

// Enqueue registers an issued command for FIFO completion matching. Safe to
// call from any goroutine; never blocks against line processing.
func (s *Session) Enqueue(c CommandCompletion) {
	s.completions.enqueue(c)
}

// Observe registers the observer that receives mailbox-change diffs, arming
// a fresh diff tracker for the next IDLE cycle. Calling it again replaces
// the observer and discards anything accumulated so far.
func (s *Session) Observe(observer MailboxObserver) {
	s.observeMu.Lock()
	s.observer = observer
	s.pushed = newPushDiff()
	s.observeMu.Unlock()
	s.idleAck.Store(false)
}

// StartIdling marks the session as entering IDLE. The idle driver calls this
// when it writes the IDLE command; the flag is cleared again when the server
// confirms termination. Returns false if already idling.
func (s *Session) StartIdling() bool {
	return s.idling.CompareAndSwap(false, true)
}

// IsIdling reports whether an IDLE cycle is in progress.
func (s *Session) IsIdling() bool {
	return s.idling.Load()
}

// IdleAcknowledged reports whether the server has confirmed IDLE entry for
// the current cycle.
func (s *Session) IdleAcknowledged() bool {
	return s.idleAck.Load()
}

// Halt irreversibly stops this session from processing further lines.
func (s *Session) Halt() {
	s.halted.Store(true)
}

// IsHalted reports whether the session has been halted. A halted session
// must not be reused.
func (s *Session) IsHalted() bool {
	return s.halted.Load()
}

// LastError pops the most recently recorded fault, or nil. Callers should
// drain this after every command round-trip: a completed command may still
// have left a warning behind.
func (s *Session) LastError() *WireError {
	return s.trail.pollLast()
}

// OnMessage processes one server line. It must be called exactly once per
// line, in arrival order, by a single logical caller (the transport's
// delivery path). The returned error is non-nil only for faults that had no
// pending completion to receive them; the transport should treat the
// connection as unhealthy.
func (s *Session) OnMessage(raw string) error {
	line := trimCRLF(raw)

	s.trace.add(line)
	if Verbose && !SkipResponses {
		s.log.Debug("line received", "line", line)
	}

	if systemErrorRE.MatchString(line) || strings.EqualFold(strings.TrimSpace(line), bandwidthLimitLine) {
		s.log.Warn("disconnected by server due to system error", "line", line)
		s.disconnectAbnormally(line)
		return nil
	}

	err := s.dispatch(line)
	if err == nil {
		return nil
	}
	if completion := s.completions.pop(); completion != nil {
		completion.OnError(line, err)
		return nil
	}
	s.log.Error("fault during line processing with no completion available", "line", line, "error", err)
	s.recordError(nil, "no completions available: "+err.Error())
	return err
}

// dispatch classifies a line and routes it. Panics out of caller-supplied
// collaborators are converted to faults so a misbehaving completion or
// observer cannot kill the delivery path.
func (s *Session) dispatch(line string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("imap: panic processing line: %v", r)
		}
	}()

	if s.halted.Load() {
		s.log.Error("session is halted but still receiving lines, ignoring", "line", line)
		return nil
	}

	if strings.HasPrefix(line, capabilityPrefix) {
		caps := strings.Fields(line[len(capabilityPrefix):])
		s.caps.Store(&caps)
		s.gate.countDown()
		return nil
	}

	if !s.loggedIn.Load() {
		s.preLogin(line)
		return nil
	}

	if s.idling.Load() {
		s.log.Info("line received while idling", "line", line)
		line = strings.ToLower(line)
		consumed, err := s.idleLine(line)
		if consumed || err != nil {
			return err
		}
	}

	s.complete(line)
	return nil
}

// preLogin handles lines arriving before authentication has been confirmed.
// Greetings and untagged status lines are ignored.
func (s *Session) preLogin(line string) {
	if authSuccessRE.MatchString(line) {
		s.log.Info("authentication success")
		s.loggedIn.Store(true)
		s.gate.countDown()
		return
	}
	if m := commandFailedRE.FindStringSubmatch(line); m != nil {
		s.log.Warn("authentication failed", "line", line)
		s.gate.countDown()
		s.recordError(nil, extractFailure(m)) // logins have no completion
		s.disconnectAbnormally(line)
	}
}

func extractFailure(m []string) string {
	if len(m) > 2 {
		return m[2]
	}
	return m[0]
}

// idleLine handles a lowercased line received while idling. It reports
// whether the line was consumed; unconsumed lines fall through to
// completion processing.
func (s *Session) idleLine(line string) (bool, error) {
	if idleEndedRE.MatchString(line) {
		s.idling.CompareAndSwap(true, false)
		s.idleAck.Store(false)

		s.observeMu.Lock()
		observer := s.observer
		diff := s.pushed
		s.pushed = nil
		s.observeMu.Unlock()

		s.idler.IdleEnd()
		if diff == nil {
			return true, fmt.Errorf("imap: idle terminated but no observer was armed")
		}
		if observer != nil {
			observer.Changed(diff.net())
		}
		return true, nil
	}

	s.observeMu.Lock()
	diff := s.pushed
	matched := false
	if m := idleExistsRE.FindStringSubmatch(line); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || diff == nil {
			s.observeMu.Unlock()
			return false, fmt.Errorf("imap: unusable exists notification %q", line)
		}
		diff.noteExists(n)
		matched = true
	} else if m := idleExpungeRE.FindStringSubmatch(line); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || diff == nil {
			s.observeMu.Unlock()
			return false, fmt.Errorf("imap: unusable expunge notification %q", line)
		}
		diff.noteExpunge(n)
		matched = true
	}
	signalExit := matched && diff != nil && !diff.exitSignaled
	if signalExit {
		diff.exitSignaled = true
	}
	s.observeMu.Unlock()

	// Ask the driver to end the long poll on the first change; the server
	// keeps pushing until it acknowledges the exit.
	if signalExit {
		s.idler.Done()
		return true, nil
	}
	return false, nil
}

// complete runs the serialized completion-processing path.
func (s *Session) complete(line string) {
	s.completeMu.Lock()
	defer s.completeMu.Unlock()

	// Known server quirk: an invalid-tag complaint that belongs to no
	// command. Recorded, but the head completion stays queued.
	if strings.EqualFold(line, invalidTagLine) {
		s.log.Warn("invalid tag warning, ignored", "line", line)
		s.recordError(s.completions.peek(), line)
		return
	}

	completion := s.completions.peek()
	if completion == nil {
		if strings.EqualFold(line, idleAckLine) {
			s.idler.IdleStart()
			s.idleAck.Store(true)
			if Verbose {
				s.log.Debug("idle entered")
			}
			return
		}
		s.log.Error("no completion found for line (was the command ever issued?)", "line", line)
		s.recordError(nil, "no completion found for line: "+line)
		return
	}

	if completion.TryComplete(line) {
		s.completions.pop()
	}
}

// disconnectAbnormally abandons the session: halt, record the fault against
// whatever command was at the head of the queue, and tell the idler to
// release any blocked long poll and tear the transport down. The caller is
// expected to reconnect with a fresh session.
func (s *Session) disconnectAbnormally(reason string) {
	s.Halt()
	s.recordError(s.completions.pop(), reason)
	s.idler.Disconnect()
}

func (s *Session) recordError(completion CommandCompletion, message string) {
	rec := &WireError{
		completion: completion,
		message:    message,
		trace:      s.trace.snapshot(),
	}
	s.trail.push(rec)
	if Verbose {
		s.log.Debug("error recorded", "record", spew.Sdump(rec))
	}
}
