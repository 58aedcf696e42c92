package broker

// Message is a single mailbox delivery handed back to the subscriber that
// owns Subject, carrying the reply-to address the sender expects a Slate
// response to be posted back to.
type Message struct {
	Subject string
	Payload string
	ReplyTo string
}
