// Command grinrelayd runs the GrinRelay relay server: a WebSocket front-end
// over a STOMP broker client and an AMQP-fed address directory.
// Configuration is via environment variables or an optional .env file,
// matching the teacher's (orly.dev) entrypoint shape.
package main

import (
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"grinrelay.dev/address"
	"grinrelay.dev/broker"
	"grinrelay.dev/chk"
	"grinrelay.dev/config"
	"grinrelay.dev/directory"
	"grinrelay.dev/frontend"
	"grinrelay.dev/grinctx"
	"grinrelay.dev/grinlog"
	"grinrelay.dev/grinutil/interrupt"
	"grinrelay.dev/mailstate"
)

func main() {
	cfg, err := config.New()
	if chk.T(err) {
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s\n\n", err)
		}
		config.PrintHelp(cfg, os.Stderr)
		os.Exit(0)
	}
	grinlog.I.F("starting %s %s", cfg.AppName, config.Version)
	address.DefaultDomain, address.DefaultPort = cfg.Domain, cfg.Port
	if config.GetEnv() {
		config.PrintEnv(cfg, os.Stdout)
		os.Exit(0)
	}
	if config.HelpRequested() {
		config.PrintHelp(cfg, os.Stderr)
		os.Exit(0)
	}

	brokerClient, err := broker.Dial(cfg.BrokerURI, cfg.BrokerUsername, cfg.BrokerPassword)
	if chk.E(err) {
		grinlog.F.F("broker dial: %v", err)
	}
	defer func() { chk.D(brokerClient.Close()) }()

	dir := directory.New()
	if store, mErr := mailstate.Open(cfg.Config); mErr == nil {
		warmDirectoryFrom(store, dir)
		dir.SetSnapshot(store)
		defer func() { chk.D(store.Close()) }()
	} else {
		grinlog.W.F("mailstate: running without a warm-start snapshot: %v", mErr)
	}

	ctx, cancel := grinctx.Cancel(grinctx.Bg())
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return dir.Run(gctx, cfg.AMQPURI)
	})

	srv := frontend.New(cfg, brokerClient, dir)
	interrupt.AddHandler(func() {
		srv.Shutdown(grinctx.Bg())
		cancel()
	})

	group.Go(srv.Start)

	if err = group.Wait(); chk.E(err) {
		grinlog.F.F("grinrelay terminated: %v", err)
	}
}

func warmDirectoryFrom(store *mailstate.Store, dir *directory.Directory) {
	pairs := make(map[string]string)
	if err := store.All(func(suffix, addr string) error {
		pairs[suffix] = addr
		return nil
	}); chk.W(err) {
		return
	}
	if len(pairs) > 0 {
		dir.Warm(pairs)
		grinlog.I.F("mailstate: warmed %d suffix entries", len(pairs))
	}
}
