// Package interrupt registers shutdown hooks that run once on SIGINT/SIGTERM.
package interrupt

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"grinrelay.dev/grinlog"
)

var (
	mx       sync.Mutex
	handlers []func()
	once     sync.Once
)

// AddHandler registers fn to run when the process receives SIGINT or
// SIGTERM. The first signal received runs every registered handler, in
// registration order, then the process exits.
func AddHandler(fn func()) {
	mx.Lock()
	handlers = append(handlers, fn)
	mx.Unlock()
	once.Do(start)
}

func start() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-c
		grinlog.W.F("received %v, shutting down", sig)
		mx.Lock()
		hs := make([]func(), len(handlers))
		copy(hs, handlers)
		mx.Unlock()
		for _, h := range hs {
			h()
		}
		os.Exit(0)
	}()
}
