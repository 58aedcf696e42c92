// Package ws is GrinRelay's WebSocket transport: a thin, single-writer
// wrapper around fasthttp/websocket, grounded directly on the teacher's
// (orly.dev) protocol/ws.Listener. Authentication/subscription state lives
// in the session package, not here — this package only owns the wire.
package ws

import (
	"net/http"
	"strings"
	"sync"

	"github.com/fasthttp/websocket"

	"grinrelay.dev/grinutil/atomic"
)

// Upgrader is the preconfigured upgrader used by the frontend's WebSocket
// route. Origin checking is permissive: GrinRelay is a public relay, not a
// browser-embedded API, so there is no cookie-carrying origin to protect.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Listener wraps one upgraded WebSocket connection. Write serializes on an
// internal mutex, the same one-writer-per-socket discipline
// the teacher's Listener uses.
type Listener struct {
	mutex   sync.Mutex
	Conn    *websocket.Conn
	Request *http.Request
	remote  atomic.String
}

// NewListener wraps an upgraded connection.
func NewListener(conn *websocket.Conn, req *http.Request) *Listener {
	l := &Listener{Conn: conn, Request: req}
	l.setRemoteFromReq(req)
	return l
}

func (l *Listener) setRemoteFromReq(r *http.Request) {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		l.remote.Store(strings.TrimSpace(strings.Split(xff, ",")[0]))
		return
	}
	l.remote.Store(l.Conn.NetConn().RemoteAddr().String())
}

// RealRemote returns the client address recorded at upgrade time.
func (l *Listener) RealRemote() string { return l.remote.Load() }

// Req returns the original upgrade request.
func (l *Listener) Req() *http.Request { return l.Request }

// Write sends p as a single text frame. A "close sent" error means a
// concurrent Close already tore the connection down — not a real failure.
func (l *Listener) Write(p []byte) (n int, err error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if err = l.Conn.WriteMessage(websocket.TextMessage, p); err != nil {
		if strings.Contains(err.Error(), "close sent") {
			return len(p), nil
		}
		return 0, err
	}
	return len(p), nil
}

// ReadMessage blocks for the next inbound frame.
func (l *Listener) ReadMessage() (messageType int, p []byte, err error) {
	return l.Conn.ReadMessage()
}

// Close tears the connection down from this side.
func (l *Listener) Close() error { return l.Conn.Close() }
