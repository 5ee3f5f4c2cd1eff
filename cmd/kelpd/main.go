// Command kelpd runs a kelp broker: it binds one listen locator, dials
// zero or more peer locators, and routes DECLARE/DATA/QUERY traffic
// between whatever faces come and go over those links until a shutdown
// signal arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/kelp-mesh/kelp"
	"github.com/kelp-mesh/kelp/debughttp"
	"github.com/kelp-mesh/kelp/internal/slogpretty"
	"github.com/kelp-mesh/kelp/locator"
	"github.com/kelp-mesh/kelp/signalutil"
	"github.com/kelp-mesh/kelp/transport"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("kelpd", flag.ContinueOnError)
	debugAddr := fs.String("debug-addr", "", "if set, serve a read-only /debug/tables dump on this address")
	jsonLogs := fs.Bool("json-logs", false, "emit JSON logs to stderr instead of the colorized console format")
	lease := fs.Uint64("lease", 10000, "keep-alive lease in milliseconds advertised in OPEN/ACCEPT")
	if err := fs.Parse(args); err != nil {
		return 255
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: kelpd <listen-locator> [peer-locator ...]")
		return 255
	}

	var handler slog.Handler = slogpretty.DefaultHandler
	if *jsonLogs {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(handler)

	listenLoc, err := locator.Parse(fs.Arg(0))
	if err != nil {
		logger.Error("invalid listen locator", "locator", fs.Arg(0), "error", err)
		return 255
	}
	if listenLoc.Proto != "tcp" {
		logger.Error("unsupported listen locator protocol", "proto", listenLoc.Proto)
		return 255
	}

	peerLocs := make([]locator.Locator, 0, fs.NArg()-1)
	for _, s := range fs.Args()[1:] {
		loc, err := locator.Parse(s)
		if err != nil {
			logger.Error("invalid peer locator", "locator", s, "error", err)
			return 255
		}
		if loc.Proto != "tcp" {
			logger.Error("unsupported peer locator protocol", "proto", loc.Proto)
			return 255
		}
		peerLocs = append(peerLocs, loc)
	}

	b := &broker{
		id:     newPeerID(),
		lease:  *lease,
		tables: kelp.NewTables(kelp.WithLogger(logger)),
		logger: logger,
	}
	b.sessions = &kelp.TablesSessionHandler{Tables: b.tables}

	ln, err := transport.Listen(listenLoc.Address)
	if err != nil {
		logger.Error("failed to bind listen locator", "locator", listenLoc, "error", err)
		return 255
	}
	logger.Info("listening", "locator", listenLoc)

	for _, loc := range peerLocs {
		if err := b.dialPeer(loc); err != nil {
			logger.Error("failed to connect to peer", "locator", loc, "error", err)
			_ = ln.Close()
			return 255
		}
	}

	var debugSrv *http.Server
	if *debugAddr != "" {
		debugSrv = &http.Server{Addr: *debugAddr, Handler: debughttp.Handler(b.tables)}
		go func() {
			if err := debugSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("debug server stopped", "error", err)
			}
		}()
		logger.Info("debug server listening", "addr", *debugAddr)
	}

	ctx, stop := signalutil.SetupHandler()
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.acceptLoop(ln)
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	_ = ln.Close()
	if debugSrv != nil {
		_ = debugSrv.Shutdown(context.Background())
	}
	b.closeAllLinks()
	wg.Wait()

	return 0
}

// broker owns the listener-accept loop and the set of live links so a
// shutdown can close every link it opened or accepted.
type broker struct {
	id     []byte
	lease  uint64
	tables *kelp.Tables
	logger *slog.Logger

	sessions *kelp.TablesSessionHandler

	mu    sync.Mutex
	links []io.Closer
}

func (b *broker) acceptLoop(ln *transport.Listener) {
	for {
		link, err := ln.Accept()
		if err != nil {
			return // listener closed during shutdown
		}
		b.trackLink(link)
		go b.serveAccepted(link)
	}
}

// serveAccepted completes the inbound handshake and registers the
// session. TablesSessionHandler.NewSession starts its own read-loop
// goroutine and tears the face down itself once the link errors or
// closes, so nothing further is owed here.
func (b *broker) serveAccepted(link *transport.Link) {
	what, peerID, err := acceptHandshake(link, b.id, b.lease)
	if err != nil {
		b.logger.Warn("handshake with inbound link failed", "error", err)
		_ = link.Close()
		return
	}
	b.logger.Info("accepted session", "whatami", what, "peer", uuidHex(peerID))
	b.sessions.NewSession(what, link)
}

func (b *broker) dialPeer(loc locator.Locator) error {
	link, err := transport.Dial(loc.Address)
	if err != nil {
		return err
	}
	b.trackLink(link)
	accepterID, err := openHandshake(link, b.id, b.lease)
	if err != nil {
		_ = link.Close()
		return err
	}
	b.logger.Info("connected to peer", "locator", loc, "peer", uuidHex(accepterID))
	b.sessions.NewSession(kelp.WhatAmIPeer, link)
	return nil
}

func (b *broker) trackLink(l io.Closer) {
	b.mu.Lock()
	b.links = append(b.links, l)
	b.mu.Unlock()
}

func (b *broker) closeAllLinks() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, l := range b.links {
		_ = l.Close()
	}
}

func newPeerID() []byte {
	id := uuid.New()
	return id[:]
}

func uuidHex(id []byte) string {
	if len(id) != 16 {
		return fmt.Sprintf("%x", id)
	}
	u, err := uuid.FromBytes(id)
	if err != nil {
		return fmt.Sprintf("%x", id)
	}
	return u.String()
}
