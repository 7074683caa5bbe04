package domain

// Session is the authenticated context of a terminal: who is signed in and
// for which shop. Token is presented as a bearer credential to the service.
type Session struct {
	BusinessID string
	UserID     string
	Role       Role
	Token      string
}

// SessionEvent signals that the session boundary changed. Current is nil on
// logout.
type SessionEvent struct {
	Current *Session
}

// SessionProvider supplies the current session and announces changes to it.
type SessionProvider interface {
	Current() (Session, bool)
	// Subscribe returns a channel of session changes and a func that stops
	// delivery and releases the channel.
	Subscribe() (<-chan SessionEvent, func())
}
