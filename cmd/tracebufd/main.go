// tracebufd runs a single trace buffer instance and serves its
// debug/introspection surface over HTTP and, optionally, a Unix domain
// socket. /append is a debug ingestion endpoint for driving the buffer
// without a real producer; it does not implement any producer-facing
// ingestion transport, same as the shared-memory ABI it stands in for.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/oklog/run"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/peterbourgon/unixtransport/unixproxy"

	"github.com/etsangsplk/tracebuf/internal/tbuflog"
	"github.com/etsangsplk/tracebuf/tracebufhttp"
)

func main() {
	ctx := context.Background()
	if err := exec(ctx, os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func exec(ctx context.Context, args []string, stderr *os.File) error {
	fs := ff.NewFlagSet("tracebufd")
	cfg := newDaemonConfig(fs)

	if err := ff.Parse(fs, args); err != nil {
		fmt.Fprintf(stderr, "%s\n", ffhelp.Flags(fs, usage))
		if errors.Is(err, ff.ErrHelp) {
			return nil
		}
		return err
	}

	level, err := parseLogLevel(cfg.logLevel)
	if err != nil {
		return err
	}
	log := tbuflog.Get("tracebufd")
	tbuflog.SetLevel(level)

	srv, err := newServer(cfg.bufferConfig(), cfg.historyPerSequence)
	if err != nil {
		return fmt.Errorf("construct buffer: %w", err)
	}

	mux := newMux(srv)

	var g run.Group

	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return srv.run(ctx)
		}, func(error) {
			cancel()
		})
	}

	{
		ln, err := unixproxy.ListenURI(ctx, cfg.listenAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.listenAddr, err)
		}
		httpServer := &http.Server{Handler: mux}
		log.Infof("listening on %s", cfg.listenAddr)
		g.Add(func() error {
			return httpServer.Serve(ln)
		}, func(error) {
			httpServer.Close()
		})
	}

	if cfg.listenUnix != "" {
		ln, err := net.Listen("unix", cfg.listenUnix)
		if err != nil {
			return fmt.Errorf("listen unix %s: %w", cfg.listenUnix, err)
		}
		httpServer := &http.Server{Handler: mux}
		log.Infof("listening on unix:%s", cfg.listenUnix)
		g.Add(func() error {
			return httpServer.Serve(ln)
		}, func(error) {
			httpServer.Close()
			os.Remove(cfg.listenUnix)
		})
	}

	{
		g.Add(run.SignalHandler(ctx, os.Interrupt, os.Kill))
	}

	return g.Run()
}

// newMux builds the debug/introspection surface srv exposes over HTTP.
// /append is a debug ingestion endpoint, not a producer transport: it
// exists so the dispatch loop, history and broker can be driven without
// the shared-memory ABI this daemon stands in for.
func newMux(srv *server) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/stats", tracebufhttp.NewStatsHandler(srv.Stats))
	mux.Handle("/stream", tracebufhttp.NewStreamHandler(srv.broker))
	mux.Handle("/history", tracebufhttp.NewHistoryHandler(srv.history.Recent))
	mux.Handle("/append", tracebufhttp.NewAppendHandler(srv.Append))
	mux.Handle("/patch", tracebufhttp.NewPatchHandler(srv.ApplyPatch))
	return mux
}

const usage = "Run a trace buffer instance and serve its debug/introspection surface."
