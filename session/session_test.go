package session

import (
	"encoding/hex"
	"encoding/json"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"

	"grinrelay.dev/address"
	"grinrelay.dev/broker"
)

// fakeTransport is an in-memory transport: test code feeds inbound frames
// via in and reads what the session wrote via Sent().
type fakeTransport struct {
	mu     sync.Mutex
	in     chan []byte
	sent   [][]byte
	closed bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{in: make(chan []byte, 16)}
}

func (f *fakeTransport) push(frame []byte) { f.in <- frame }

func (f *fakeTransport) ReadMessage() (int, []byte, error) {
	b, ok := <-f.in
	if !ok {
		return 0, nil, errClosed
	}
	return 1, b, nil
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(p))
	copy(cp, p)
	f.sent = append(f.sent, cp)
	return len(p), nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.in)
	}
	return nil
}

func (f *fakeTransport) Sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sent))
	copy(out, f.sent)
	return out
}

type errString string

func (e errString) Error() string { return string(e) }

const errClosed = errString("fake transport closed")

// fakeBroker records Subscribe/Unsubscribe/PostMessage calls without any
// real STOMP session.
type fakeBroker struct {
	mu            sync.Mutex
	subscriptions map[string]chan<- broker.Message
	posted        []broker.Message
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{subscriptions: make(map[string]chan<- broker.Message)}
}

func (b *fakeBroker) Subscribe(subject string, deliver chan<- broker.Message) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions[subject] = deliver
	return subject
}

func (b *fakeBroker) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscriptions, id)
}

func (b *fakeBroker) PostMessage(subject, payload, replyTo string, ttl *uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.posted = append(b.posted, broker.Message{Subject: subject, Payload: payload, ReplyTo: replyTo})
}

// fakeDirectory is a directory.Directory stand-in backed by a plain map.
type fakeDirectory struct {
	mu      sync.Mutex
	present map[string]bool
}

func newFakeDirectory() *fakeDirectory { return &fakeDirectory{present: make(map[string]bool)} }

func (d *fakeDirectory) markOnline(addr string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.present[addr] = true
}

func (d *fakeDirectory) Has(addr string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.present[addr]
}

func (d *fakeDirectory) Lookup(suffix string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for a := range d.present {
		if len(a) >= 6 && a[len(a)-6:] == suffix {
			out = append(out, a)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}

func decodeFrames(raw [][]byte) []map[string]any {
	out := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		var m map[string]any
		if err := json.Unmarshal(r, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

func newTestAddress() (*address.Address, *btcec.PrivateKey) {
	priv, _ := btcec.NewPrivateKey()
	return address.New(priv.PubKey(), address.HRPMainnet, "", 0), priv
}

func hexSig(b []byte) string { return hex.EncodeToString(b) }
