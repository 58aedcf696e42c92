// Package session implements the per-connection protocol state machine of
// spec.md §4.2: Greeting -> Awaiting-subscribe -> Bound -> Closed. Grounded
// on the teacher's (orly.dev) socketapi dispatch loop for the overall
// "read loop dispatches by envelope type, state guards decide what's legal"
// shape, adapted from its per-message goroutine spawn to strictly
// sequential processing, since spec.md §4.1/§9 require per-connection FIFO
// ordering of both inbound frames and outbound responses.
//
// A Session runs three goroutines: the caller's own goroutine drives
// readLoop (blocking on the WebSocket), a deliverLoop drains broker pushes,
// and a writerLoop drains a single outbox channel that both feed — the
// "single-producer send path" spec.md §9 calls for. Bound/address/challenge
// state is touched only by readLoop, so no lock guards it.
package session

import (
	"encoding/hex"
	"fmt"
	"io"

	"grinrelay.dev/address"
	"grinrelay.dev/broker"
	"grinrelay.dev/chk"
	"grinrelay.dev/envelope"
	"grinrelay.dev/grinlog"
	"grinrelay.dev/metrics"
	"grinrelay.dev/sig"
)

// State is one of the four connection lifecycle states of spec.md §4.2.
type State int

const (
	Greeting State = iota
	AwaitingSubscribe
	Bound
	Closed
)

func (s State) String() string {
	switch s {
	case Greeting:
		return "Greeting"
	case AwaitingSubscribe:
		return "Awaiting-subscribe"
	case Bound:
		return "Bound"
	case Closed:
		return "Closed"
	default:
		return "unknown"
	}
}

const outboxDepth = 64

// response is any envelope value with a Write(io.Writer) method — every
// type in package envelope satisfies it.
type response interface {
	Write(w io.Writer) error
}

// Session is one connection's protocol state machine.
type Session struct {
	id     string
	conn   transport
	broker mailbox
	dir    addressBook

	challenge string // hex token, immutable for the session's lifetime

	state      State  // touched only by readLoop
	boundAddr  string // bech32 key of the subscribed queue, "" if none
	consumerID string // broker.Client consumer id for boundAddr

	outbox  chan []byte
	deliver chan broker.Message
	quit    chan struct{}
}

// New constructs a Session around an already-upgraded WebSocket connection.
// It does not start any goroutines; call Run for that.
func New(id string, conn transport, brokerClient mailbox, dir addressBook) (*Session, error) {
	c, err := sig.NewChallenge()
	if err != nil {
		return nil, fmt.Errorf("session: generating challenge: %w", err)
	}
	return &Session{
		id:        id,
		conn:      conn,
		broker:    brokerClient,
		dir:       dir,
		challenge: c,
		state:     Greeting,
		outbox:    make(chan []byte, outboxDepth),
		deliver:   make(chan broker.Message, outboxDepth),
		quit:      make(chan struct{}),
	}, nil
}

// Run drives the session to completion: sends the initial Challenge,
// starts the writer and deliver loops, then blocks in the read loop until
// the connection closes or a fatal transport error occurs. Always cleans
// up the broker subscription before returning.
func (s *Session) Run() {
	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()
	defer s.cleanup()

	go s.writerLoop()
	go s.deliverLoop()

	s.sendEnvelope(envelope.Challenge(s.challenge))
	s.state = AwaitingSubscribe

	s.readLoop()
}

func (s *Session) cleanup() {
	s.state = Closed
	if s.boundAddr != "" {
		s.broker.Unsubscribe(s.consumerID)
	}
	close(s.quit)
	chk.D(s.conn.Close())
}

func (s *Session) readLoop() {
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			grinlog.D.F("session %s: read: %v", s.id, err)
			return
		}
		s.handle(raw)
	}
}

// deliverLoop forwards broker mailbox deliveries for the life of the
// session. Signature is left empty: per spec.md §4.2, a Slate delivery
// carries no per-message signature of its own — the recipient re-derives
// trust from the sender's address and the relay's own challenge.
func (s *Session) deliverLoop() {
	for {
		select {
		case msg := <-s.deliver:
			s.sendEnvelope(envelope.Slate(msg.ReplyTo, msg.Payload, "", s.challenge))
		case <-s.quit:
			return
		}
	}
}

func (s *Session) writerLoop() {
	for {
		select {
		case frame := <-s.outbox:
			if _, err := s.conn.Write(frame); chk.D(err) {
				return
			}
		case <-s.quit:
			return
		}
	}
}

// outboxWriter adapts the outbox channel to io.Writer so envelope types can
// Write directly into it.
type outboxWriter struct{ ch chan<- []byte }

func (w outboxWriter) Write(p []byte) (int, error) {
	cp := make([]byte, len(p))
	copy(cp, p)
	w.ch <- cp
	return len(p), nil
}

// sendEnvelope marshals and enqueues v onto the outbox. Called only from
// readLoop/deliverLoop, both of which only ever append — the channel itself
// is what serializes the actual wire write.
func (s *Session) sendEnvelope(v response) {
	chk.D(v.Write(outboxWriter{ch: s.outbox}))
}

func (s *Session) sendError(kind envelope.ErrorKind, description string) {
	metrics.ErrorsByKind.WithLabelValues(string(kind)).Inc()
	s.sendEnvelope(envelope.Error(kind, description))
}

func (s *Session) handle(raw []byte) {
	typ, err := envelope.Identify(raw)
	if err != nil {
		s.sendError(envelope.InvalidRequest, err.Error())
		return
	}
	metrics.RequestsByKind.WithLabelValues(string(typ)).Inc()

	switch typ {
	case envelope.TypeChallenge:
		s.sendEnvelope(envelope.Challenge(s.challenge))

	case envelope.TypeSubscribe:
		s.handleSubscribe(raw)

	case envelope.TypeUnsubscribe:
		s.handleUnsubscribe(raw)

	case envelope.TypePostSlate:
		s.handlePostSlate(raw)

	case envelope.TypeRetrieveRelayAddr:
		s.handleRetrieveRelayAddr(raw)

	default:
		s.sendError(envelope.InvalidRequest, fmt.Sprintf("unknown request type %q", typ))
	}
}

func (s *Session) handleSubscribe(raw []byte) {
	if s.state == Bound {
		s.sendError(envelope.TooManySubscriptions, "connection already subscribed; unsubscribe first")
		return
	}

	req, err := envelope.UnmarshalSubscribeRequest(raw)
	if err != nil {
		s.sendError(envelope.InvalidRequest, err.Error())
		return
	}

	a, err := address.Parse(req.Address, "")
	if err != nil {
		s.sendError(envelope.InvalidRequest, err.Error())
		return
	}

	sigBytes, err := decodeSig(req.Signature)
	if err != nil {
		s.sendError(envelope.InvalidSignature, err.Error())
		return
	}
	ok, err := sig.Verify(a.PubKey, []byte(s.challenge), sigBytes)
	if err != nil || !ok {
		s.sendError(envelope.InvalidSignature, "signature did not verify")
		return
	}

	key := a.Key()
	s.consumerID = s.broker.Subscribe(key, s.deliver)
	s.boundAddr = key
	s.state = Bound
	s.sendEnvelope(envelope.Ok())
}

func (s *Session) handleUnsubscribe(raw []byte) {
	req, err := envelope.UnmarshalUnsubscribeRequest(raw)
	if err != nil {
		s.sendError(envelope.InvalidRequest, err.Error())
		return
	}
	a, err := address.Parse(req.Address, "")
	if err != nil {
		s.sendError(envelope.InvalidRequest, err.Error())
		return
	}
	if s.state != Bound || a.Key() != s.boundAddr {
		s.sendError(envelope.InvalidRequest, "address does not match the subscribed mailbox")
		return
	}

	s.broker.Unsubscribe(s.consumerID)
	s.boundAddr = ""
	s.consumerID = ""
	s.state = AwaitingSubscribe
	s.sendEnvelope(envelope.Ok())
}

func (s *Session) handlePostSlate(raw []byte) {
	if s.state != Bound {
		s.sendError(envelope.InvalidRequest, "not subscribed")
		return
	}
	req, err := envelope.UnmarshalPostSlateRequest(raw)
	if err != nil {
		s.sendError(envelope.InvalidRequest, err.Error())
		return
	}

	from, err := address.Parse(req.From, "")
	if err != nil {
		s.sendError(envelope.InvalidRequest, fmt.Sprintf("from: %v", err))
		return
	}
	to, err := address.Parse(req.To, "")
	if err != nil {
		s.sendError(envelope.InvalidRequest, fmt.Sprintf("to: %v", err))
		return
	}

	sigBytes, err := decodeSig(req.Signature)
	if err != nil {
		s.sendError(envelope.InvalidSignature, err.Error())
		return
	}
	// Signed payload is str||challenge, the session's own challenge — since
	// this session never regenerates C, a mismatched challenge always shows
	// up as a plain signature failure rather than a separate InvalidChallenge
	// (see DESIGN.md).
	signed := req.Str + s.challenge
	ok, err := sig.Verify(from.PubKey, []byte(signed), sigBytes)
	if err != nil || !ok {
		s.sendError(envelope.InvalidSignature, "signature did not verify")
		return
	}

	destKey := to.Key()
	if !s.dir.Has(destKey) {
		s.sendError(envelope.Offline, "destination has no active consumer")
		return
	}

	s.broker.PostMessage(destKey, req.Str, from.Key(), req.MessageExpirationInSeconds)
	metrics.SlatesRelayed.Inc()
	s.sendEnvelope(envelope.Ok())
}

func (s *Session) handleRetrieveRelayAddr(raw []byte) {
	if s.state != Bound {
		s.sendError(envelope.InvalidRequest, "not subscribed")
		return
	}
	req, err := envelope.UnmarshalRetrieveRelayAddrRequest(raw)
	if err != nil {
		s.sendError(envelope.InvalidRequest, err.Error())
		return
	}
	if !address.ValidSuffix(req.Abbr) {
		s.sendError(envelope.InvalidRelayAbbr, "abbr must be 6 bech32-alphabet characters")
		return
	}
	matches := s.dir.Lookup(req.Abbr)
	for i, m := range matches {
		matches[i] = address.Prefix + m
	}
	s.sendEnvelope(envelope.RelayAddr(req.Abbr, matches))
}

func decodeSig(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("signature is not valid hex: %w", err)
	}
	return b, nil
}
