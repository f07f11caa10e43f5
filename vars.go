package imap

import "time"

// Verbose outputs every line received from the IMAP server
var Verbose = false

// SkipResponses skips printing server lines in verbose mode
var SkipResponses = false

// DefaultLoginTimeout is how long AwaitLogin waits for the server's
// capability announcement and authentication result when the caller
// passes no timeout.
var DefaultLoginTimeout = 10 * time.Second
