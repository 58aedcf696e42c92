// Package directory maintains the fleet-wide mapping from short address
// suffix to the set of full addresses currently subscribed, by observing
// the broker's consumer-lifecycle events over a dedicated AMQP connection
// (spec.md §4.4). Grounded on the teacher's pattern of a long-lived
// background task owning one piece of shared state, touched by everyone
// else only through its exported methods (see ratel's event store).
//
// The suffix table is a lock-striped xsync.Map rather than a plain mutex,
// per SPEC_FULL.md's "read-optimized variant" note: RetrieveRelayAddr reads
// happen on every Bound session far more often than the directory task
// writes.
package directory

import (
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/puzpuzpuz/xsync/v3"

	"grinrelay.dev/chk"
	"grinrelay.dev/grinctx"
	"grinrelay.dev/grinlog"
	"grinrelay.dev/metrics"
)

const (
	eventExchange  = "amq.rabbitmq.event"
	eventQueueName = "test_queue"
	routingPattern = "queue.*"

	routingKeyCreated = "consumer.created"
	routingKeyDeleted = "consumer.deleted"

	suffixLen = 6
)

var recognizedPrefixes = [...]string{"gn1", "tn1"}

// snapshot is the slice of mailstate.Store a Directory persists best-effort
// reads through — narrowed to an interface so this package never imports
// badger directly.
type snapshot interface {
	Remember(suffix, addr string) error
	Forget(suffix string) error
}

// Directory is the shared, concurrently-readable suffix table. The zero
// value is not usable; construct with New.
type Directory struct {
	suffixes *xsync.MapOf[string, map[string]struct{}]
	snapshot snapshot
}

// New returns an empty Directory.
func New() *Directory {
	return &Directory{suffixes: xsync.NewMapOf[string, map[string]struct{}]()}
}

// SetSnapshot wires a best-effort persistence layer (mailstate.Store): every
// insert/remove is mirrored to it so a future restart can warm from its
// contents (see Warm) instead of starting fully cold. Optional — a nil snapshot (the default)
// means no persistence, matching plain spec.md §4.4 behavior.
func (d *Directory) SetSnapshot(s snapshot) { d.snapshot = s }

// Warm seeds the live suffix table from a prior mailstate snapshot, without
// re-persisting what it just read back. Call once at startup before Run.
func (d *Directory) Warm(pairs map[string]string) {
	for suffix, addr := range pairs {
		d.suffixes.Compute(suffix, func(set map[string]struct{}, loaded bool) (map[string]struct{}, bool) {
			if !loaded {
				set = make(map[string]struct{}, 1)
			}
			set[addr] = struct{}{}
			return set, false
		})
	}
}

// Lookup returns every full address currently known for a 6-char suffix.
// An empty, non-nil slice means "unknown, try later" per spec.md §4.4 — the
// directory is only eventually consistent.
func (d *Directory) Lookup(suffix string) []string {
	set, ok := d.suffixes.Load(suffix)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(set))
	for addr := range set {
		out = append(out, addr)
	}
	return out
}

// Has reports whether at least one address is currently subscribed under
// queue name addr — used for the Offline check before relaying a PostSlate.
func (d *Directory) Has(addr string) bool {
	suffix := suffixOf(addr)
	set, ok := d.suffixes.Load(suffix)
	if !ok {
		return false
	}
	_, present := set[addr]
	return present
}

func (d *Directory) insert(addr string) {
	suffix := suffixOf(addr)
	d.suffixes.Compute(suffix, func(set map[string]struct{}, loaded bool) (map[string]struct{}, bool) {
		if !loaded {
			set = make(map[string]struct{}, 1)
		}
		set[addr] = struct{}{}
		return set, false
	})
	if d.snapshot != nil {
		chk.D(d.snapshot.Remember(suffix, addr))
	}
}

func (d *Directory) remove(addr string) {
	suffix := suffixOf(addr)
	d.suffixes.Compute(suffix, func(set map[string]struct{}, loaded bool) (map[string]struct{}, bool) {
		if !loaded {
			return nil, true
		}
		delete(set, addr)
		return set, len(set) == 0
	})
	if d.snapshot != nil {
		chk.D(d.snapshot.Forget(suffix))
	}
}

func suffixOf(queue string) string {
	if len(queue) < suffixLen {
		return queue
	}
	return queue[len(queue)-suffixLen:]
}

func recognizedQueue(queue string) bool {
	for _, p := range recognizedPrefixes {
		if strings.HasPrefix(queue, p) {
			return true
		}
	}
	return false
}

// Run dials addr over AMQP, binds the consumer-lifecycle exchange, and
// processes events until ctx is done or the connection drops. It blocks, so
// callers run it in its own goroutine — the directory task of spec.md §4.4.
func (d *Directory) Run(ctx grinctx.T, addr string) error {
	conn, err := amqp.Dial(addr)
	if err != nil {
		return fmt.Errorf("directory: dial %s: %w", addr, err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("directory: open channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(eventQueueName, false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("directory: declare queue: %w", err)
	}
	if err = ch.QueueBind(q.Name, routingPattern, eventExchange, false, nil); err != nil {
		return fmt.Errorf("directory: bind queue: %w", err)
	}

	deliveries, err := ch.Consume(q.Name, "grinrelay-directory", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("directory: consume: %w", err)
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case reason := <-closed:
			return fmt.Errorf("directory: amqp connection closed: %v", reason)

		case d2, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("directory: delivery channel closed")
			}
			d.handleEvent(d2)
		}
	}
}

func (d *Directory) handleEvent(delivery amqp.Delivery) {
	queue, ok := delivery.Headers["queue"].(string)
	if !ok {
		grinlog.D.Ln("directory: event without queue header, ignoring")
		return
	}
	if !recognizedQueue(queue) {
		return
	}

	switch delivery.RoutingKey {
	case routingKeyCreated:
		d.insert(queue)
		metrics.DirectoryEvents.WithLabelValues("created").Inc()
		grinlog.D.F("directory: +%s", queue)
	case routingKeyDeleted:
		d.remove(queue)
		metrics.DirectoryEvents.WithLabelValues("deleted").Inc()
		grinlog.D.F("directory: -%s", queue)
	default:
		chk.D(fmt.Errorf("directory: unexpected routing key %q", delivery.RoutingKey))
	}
}
