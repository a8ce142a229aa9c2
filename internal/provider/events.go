package provider

// Event is a notification emitted by a session. The concrete types in this
// file form the complete set a driver may send; consumers switch on the
// concrete type.
type Event interface {
	isEvent()
}

// QRCodeEvent carries a fresh pairing code. Drivers may emit it repeatedly
// while the code rotates.
type QRCodeEvent struct {
	Code string
}

// ReadyEvent signals that the session is fully connected and can send.
type ReadyEvent struct {
	Account AccountIdentity
}

// AuthenticatedEvent signals that credentials were accepted. The session is
// not yet usable for sending until ReadyEvent follows.
type AuthenticatedEvent struct{}

// MessageEvent carries an inbound message.
type MessageEvent struct {
	Message IncomingMessage
}

// DisconnectedEvent signals that the backend connection dropped.
type DisconnectedEvent struct {
	Reason string
}

// AuthFailureEvent signals that the backend rejected the stored credentials.
type AuthFailureEvent struct {
	Reason string
}

// LoadingEvent reports pairing or restore progress.
type LoadingEvent struct {
	Percent int
	Label   string
}

// StateChangeEvent reports a raw driver state transition, useful for
// diagnostics.
type StateChangeEvent struct {
	State string
}

func (QRCodeEvent) isEvent()        {}
func (ReadyEvent) isEvent()         {}
func (AuthenticatedEvent) isEvent() {}
func (MessageEvent) isEvent()       {}
func (DisconnectedEvent) isEvent()  {}
func (AuthFailureEvent) isEvent()   {}
func (LoadingEvent) isEvent()       {}
func (StateChangeEvent) isEvent()   {}
