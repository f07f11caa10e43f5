package imap

// Config carries the static identity of one connection. The session core
// never dials or authenticates itself; these fields exist so that log output
// and error records can say whose connection misbehaved.
type Config struct {
	Username string
	Host     string
	Port     int
}
