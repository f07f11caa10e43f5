// Package imap implements the response-processing core of an IMAP client
// session: everything that happens between the transport handing us a server
// line and the caller learning what became of it.
//
// A Session consumes the ordered line stream of one logged-in connection and
// turns it into:
//
//   - Resolved command completions, matched FIFO against the lines that
//     terminate them
//   - A live push-notification stream for a watched mailbox while the
//     connection sits in IMAP IDLE
//   - A diagnosable error trail, each record carrying a snapshot of the most
//     recent raw protocol lines
//
// The package deliberately does not dial, build commands, or parse message
// bodies. The transport, the objects representing issued commands, the idle
// driver, and the mailbox observer are all collaborators supplied by the
// caller; see Session.OnMessage and the Idler, MailboxObserver and
// CommandCompletion interfaces.
package imap
