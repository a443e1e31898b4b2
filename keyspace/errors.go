package keyspace

// CommandError carries a protocol-level error reply. Message is the
// server's text, verbatim.
type CommandError struct {
	Message string
}

func (e *CommandError) Error() string {
	return e.Message
}

// ProtocolError reports a decoded reply whose shape does not match what
// the issued command is defined to return. It is a contract violation
// between client and transport, never retryable.
type ProtocolError struct {
	Cmd string
	Got string
}

func (e *ProtocolError) Error() string {
	return "unexpected reply for " + e.Cmd + ": " + e.Got
}
