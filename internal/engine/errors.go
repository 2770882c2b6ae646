package engine

// ProtocolError reports a violation of the turn/confirmation protocol:
// resuming when nothing is pending, a second pending action arising while
// one exists, or malformed turn input. It indicates a caller or state bug,
// not a runtime failure, and is never converted to a chat message.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Reason
}
