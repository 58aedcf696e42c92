// Package frontend is the relay's server front-end (spec.md §4.5): it binds
// the WebSocket listen address, optionally negotiates TLS, instantiates one
// session per accepted upgrade, and binds the plain-TCP liveness probe on
// port 3419. Grounded on the teacher's (orly.dev) app/relay.Server, adapted
// from its nostr-over-HTTP mux to GrinRelay's WebSocket-only surface plus a
// Prometheus metrics route.
package frontend

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"grinrelay.dev/broker"
	"grinrelay.dev/config"
	"grinrelay.dev/directory"
	"grinrelay.dev/grinctx"
	"grinrelay.dev/grinlog"
	"grinrelay.dev/session"
	"grinrelay.dev/transport/ws"
)

// Server wires the WebSocket upgrade route, the informational/metrics HTTP
// routes, and the standalone health-probe listener to a shared broker
// client and address directory.
type Server struct {
	cfg    *config.C
	broker *broker.Client
	dir    *directory.Directory

	httpServer *http.Server
	healthLn   net.Listener

	nextConnID atomic.Uint64
}

// New constructs a Server. It does not bind any socket yet; call Start.
func New(cfg *config.C, brokerClient *broker.Client, dir *directory.Directory) *Server {
	return &Server{cfg: cfg, broker: brokerClient, dir: dir}
}

// Start binds both the WebSocket listener and the TCP 3419 health probe,
// then blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.BindAddress)
	if err != nil {
		return fmt.Errorf("frontend: listen %s: %w", s.cfg.BindAddress, err)
	}
	if !s.cfg.ProtocolUnsecure {
		cert, tlsErr := tls.LoadX509KeyPair(s.cfg.Cert, s.cfg.Key)
		if tlsErr != nil {
			return fmt.Errorf("frontend: load TLS material: %w", tlsErr)
		}
		ln = tls.NewListener(ln, &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12})
	}

	healthLn, err := net.Listen("tcp", s.cfg.HealthAddr)
	if err != nil {
		return fmt.Errorf("frontend: listen (health) %s: %w", s.cfg.HealthAddr, err)
	}
	s.healthLn = healthLn
	go s.serveHealthProbe()

	router := s.router()
	s.httpServer = &http.Server{
		Handler:           cors.Default().Handler(router),
		ReadHeaderTimeout: 7 * time.Second,
		IdleTimeout:       28 * time.Second,
	}

	grinlog.I.F("grinrelay listening for websockets on %s (tls=%v)", s.cfg.BindAddress, !s.cfg.ProtocolUnsecure)
	if err = s.httpServer.Serve(ln); errors.Is(err, http.ErrServerClosed) {
		return nil
	} else if err != nil {
		return fmt.Errorf("frontend: serve: %w", err)
	}
	return nil
}

// Shutdown gracefully stops both listeners.
func (s *Server) Shutdown(ctx grinctx.T) {
	if s.healthLn != nil {
		chkClose(s.healthLn)
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			grinlog.W.F("frontend: shutdown: %v", err)
		}
	}
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Get("/", s.handleUpgrade)
	r.Get("/info", s.handleInfo)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Upgrade") != "websocket" {
		s.handleInfo(w, r)
		return
	}
	conn, err := ws.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		grinlog.D.F("frontend: upgrade failed: %v", err)
		return
	}
	l := ws.NewListener(conn, r)

	id := fmt.Sprintf("conn-%d", s.nextConnID.Add(1))
	sess, err := session.New(id, l, s.broker, s.dir)
	if err != nil {
		grinlog.E.F("frontend: session init: %v", err)
		chkClose(l)
		return
	}
	grinlog.D.F("frontend: accepted %s from %s", id, l.RealRemote())
	go sess.Run()
}

// handleInfo reports the relay's advertised address, matching the teacher's
// nostr relay-info endpoint but carrying GrinRelay's own fields instead.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	hrp := "tn"
	if s.cfg.IsMainnet {
		hrp = "gn"
	}
	_, _ = fmt.Fprintf(w, `{"name":%q,"domain":%q,"port":%d,"hrp":%q,"version":%q}`,
		s.cfg.AppName, s.cfg.Domain, s.cfg.Port, hrp, config.Version)
}

// serveHealthProbe accepts and immediately closes every connection on the
// health port (spec.md §4.5/§6) — a pure liveness signal for upstream
// server-selection, no payload exchanged.
func (s *Server) serveHealthProbe() {
	for {
		conn, err := s.healthLn.Accept()
		if err != nil {
			return
		}
		chkClose(conn)
	}
}

func chkClose(c interface{ Close() error }) {
	if err := c.Close(); err != nil {
		grinlog.D.F("frontend: close: %v", err)
	}
}
