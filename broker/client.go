// Package broker is the relay's STOMP client: it owns the single session to
// the message broker and hands out per-subject mailboxes. Grounded on the
// original grinbox's rabbit_broker.rs, translated from its futures/mpsc
// actor into a goroutine reading a request channel — the Go idiom the
// teacher (orly.dev) uses everywhere a single goroutine must own mutable
// state (see its socketapi dispatch loop).
//
// All mutable bookkeeping lives in registry, touched only from the actor
// goroutine spawned by Dial; everything else talks to the broker purely
// through the exported request methods, which is how GrinRelay keeps the
// single-writer-per-resource discipline spec.md §9 asks for.
package broker

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-stomp/stomp/v3"

	"grinrelay.dev/grinlog"
	"grinrelay.dev/metrics"
)

const (
	queueExpirationMillis   = "86400000"
	defaultMessageExpirySec = 86400
	maxMessageExpirySec     = 86400
	replyToHeader           = "grinrelay-reply-to"
)

// Client is the relay's handle onto the broker session. Safe for concurrent
// use by any number of goroutines; every operation is serialized onto the
// actor goroutine internally.
type Client struct {
	conn     *stomp.Conn
	requests chan any
	nextID   atomic.Uint64
	closed   chan struct{}
}

type subscribeReq struct {
	subject string
	deliver chan<- Message
	result  chan<- string
}

type unsubscribeReq struct {
	id string
}

type postReq struct {
	subject           string
	payload           string
	replyTo           string
	expirationSeconds *uint32
}

type inboundFrame struct {
	subID string
	msg   *stomp.Message
}

// Dial connects to the STOMP broker at addr and starts the actor goroutine.
// A lost connection is treated as fatal to the whole process, exactly as
// rabbit_broker.rs does on SessionEvent::Disconnected — GrinRelay never
// attempts reconnection, since a relay with a dead mailbox backend cannot
// usefully keep serving connections.
func Dial(addr, username, password string) (*Client, error) {
	conn, err := stomp.Dial("tcp", addr,
		stomp.ConnOpt.Login(username, password),
		stomp.ConnOpt.HeartBeat(10*time.Second, 10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("broker: dial %s: %w", addr, err)
	}

	c := &Client{
		conn:     conn,
		requests: make(chan any, 64),
		closed:   make(chan struct{}),
	}
	go c.run()
	return c, nil
}

// Subscribe binds subject to a mailbox; any prior subscriber of subject is
// evicted first (spec.md §8 invariant 4). Deliveries are pushed to deliver
// until Unsubscribe(id) is called. Returns the consumer id to unsubscribe
// with.
func (c *Client) Subscribe(subject string, deliver chan<- Message) string {
	result := make(chan string, 1)
	c.requests <- subscribeReq{subject: subject, deliver: deliver, result: result}
	return <-result
}

// Unsubscribe tears down the mailbox registered under id.
func (c *Client) Unsubscribe(id string) {
	c.requests <- unsubscribeReq{id: id}
}

// PostMessage relays payload to subject's mailbox, tagging it with replyTo
// so the eventual recipient knows where to send a Slate response back. ttl
// is clamped to [1, 86400] seconds, per spec.md §5; nil or out-of-range
// falls back to the 24h default, matching DEFAULT_MESSAGE_EXPIRATION in the
// original Rust source.
func (c *Client) PostMessage(subject, payload, replyTo string, ttl *uint32) {
	c.requests <- postReq{subject: subject, payload: payload, replyTo: replyTo, expirationSeconds: ttl}
}

// Close disconnects the broker session.
func (c *Client) Close() error {
	close(c.closed)
	return c.conn.Disconnect()
}

func clampExpirySeconds(ttl *uint32) uint32 {
	if ttl == nil || *ttl < 1 || *ttl > maxMessageExpirySec {
		return defaultMessageExpirySec
	}
	return *ttl
}

// run is the broker actor: the only goroutine that touches reg or issues
// STOMP subscribe/unsubscribe/send calls.
func (c *Client) run() {
	reg := newRegistry()
	deliveries := make(chan inboundFrame, 64)
	subs := make(map[string]*stomp.Subscription) // STOMP subscription id -> Subscription

	for {
		select {
		case req := <-c.requests:
			switch r := req.(type) {
			case subscribeReq:
				id := c.subscribeSubject(reg, subs, deliveries, r.subject, r.deliver)
				r.result <- id

			case unsubscribeReq:
				subID, ok := reg.removeByID(r.id)
				if !ok {
					continue
				}
				if sub, found := subs[subID]; found {
					fatalIfErr(sub.Unsubscribe())
					delete(subs, subID)
				}

			case postReq:
				c.publish(r)
			}

		case f := <-deliveries:
			if f.msg.Err != nil {
				grinlog.W.F("broker: message frame error: %v", f.msg.Err)
				continue
			}
			con, found := reg.byStompSubID(f.subID)
			if !found {
				grinlog.W.F("broker: message for unknown subscription %s", f.subID)
				continue
			}
			replyTo, found := f.msg.Header.Get(replyToHeader)
			if !found {
				grinlog.E.F("broker: message missing %s header, dropping", replyToHeader)
				continue
			}
			con.deliver <- Message{
				Subject: con.subject,
				Payload: string(f.msg.Body),
				ReplyTo: replyTo,
			}

		case <-c.closed:
			return
		}
	}
}

func (c *Client) subscribeSubject(
	reg *registry, subs map[string]*stomp.Subscription, deliveries chan<- inboundFrame,
	subject string, deliver chan<- Message,
) (id string) {
	if evictedSubID, ok := reg.evict(subject); ok {
		if sub, found := subs[evictedSubID]; found {
			fatalIfErr(sub.Unsubscribe())
			delete(subs, evictedSubID)
		}
	}

	sub, err := c.conn.Subscribe(queueDestination(subject), stomp.AckAuto,
		stomp.SubscribeOpt.Header("x-expires", queueExpirationMillis),
	)
	if fatalIfErr(err) {
		return ""
	}

	id = strconv.FormatUint(c.nextID.Add(1), 10)
	reg.add(id, subject, sub.Id, deliver)
	subs[sub.Id] = sub

	go func(subID string, s *stomp.Subscription) {
		for msg := range s.C {
			deliveries <- inboundFrame{subID: subID, msg: msg}
		}
	}(sub.Id, sub)

	return id
}

func (c *Client) publish(r postReq) {
	expiry := clampExpirySeconds(r.expirationSeconds)
	err := c.conn.Send(
		queueDestination(r.subject), "text/plain", []byte(r.payload),
		stomp.SendOpt.Header("x-expires", queueExpirationMillis),
		stomp.SendOpt.Header("expiration", strconv.FormatUint(uint64(expiry)*1000, 10)),
		stomp.SendOpt.Header(replyToHeader, r.replyTo),
		stomp.SendOpt.Receipt,
	)
	fatalIfErr(err)
}

func queueDestination(subject string) string {
	return "/queue/" + subject
}

// fatalIfErr logs a fatal broker error and aborts the process: a lost broker
// connection leaves the relay unable to do its job, so GrinRelay exits
// rather than limping along with a half-dead session, matching
// rabbit_broker.rs's std::process::exit(1) on session loss.
func fatalIfErr(err error) bool {
	if err == nil {
		return false
	}
	metrics.BrokerErrors.Inc()
	grinlog.F.F("broker: %v", err)
	return true
}
