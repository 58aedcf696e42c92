package session

import (
	"grinrelay.dev/broker"
	"grinrelay.dev/directory"
)

// mailbox is the slice of broker.Client a session needs. Narrowed to an
// interface so session logic can be tested against a fake broker instead of
// a live STOMP connection.
type mailbox interface {
	Subscribe(subject string, deliver chan<- broker.Message) string
	Unsubscribe(id string)
	PostMessage(subject, payload, replyTo string, ttl *uint32)
}

// addressBook is the slice of directory.Directory a session needs.
type addressBook interface {
	Has(addr string) bool
	Lookup(suffix string) []string
}

// transport is the slice of ws.Listener a session needs.
type transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	Write(p []byte) (int, error)
	Close() error
}

var (
	_ mailbox     = (*broker.Client)(nil)
	_ addressBook = (*directory.Directory)(nil)
)
