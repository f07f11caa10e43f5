package imap

// trimCRLF removes a trailing newline, with or without carriage return,
// from a line as delivered by the transport.
func trimCRLF(s string) string {
	if len(s) >= 1 && s[len(s)-1] == '\n' {
		if len(s) >= 2 && s[len(s)-2] == '\r' {
			return s[:len(s)-2]
		}
		return s[:len(s)-1]
	}
	return s
}
