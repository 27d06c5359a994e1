// Command devhost serves the simulated host over a WebSocket so a mini app
// running in any browser can call it.
package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/toqueteos/webbrowser"

	"github.com/arko-chat/protect/internal/config"
	"github.com/arko-chat/protect/internal/hostserver"
	"github.com/arko-chat/protect/internal/logger"
	"github.com/arko-chat/protect/internal/sdk"
	"github.com/arko-chat/protect/internal/session"
	"github.com/arko-chat/protect/internal/simulator"
	"github.com/arko-chat/protect/internal/vite"
)

func main() {
	noBrowser := flag.Bool("no-browser", false, "do not open the status page")
	addr := flag.String("addr", "", "listen address, overrides PROTECT_HOST_ADDR")
	appURL := flag.String("app", "", "mini app dev server to serve from the same origin, e.g. http://localhost:5173")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{}).Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slogger := logger.New(logger.Options{Format: cfg.LogFormat, Debug: cfg.DebugMode || cfg.IsDevelopment()})

	if *addr != "" {
		cfg.HostAddr = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	simOpts := cfg.SimulatorOptions()
	simOpts.Logger = slogger
	sim := simulator.New(simOpts)
	defer sim.Close()

	var app http.Handler
	if *appURL != "" {
		if app, err = vite.NewProxy(*appURL, slogger); err != nil {
			slogger.Error("invalid mini app url", "err", err)
			os.Exit(1)
		}
	}

	srv, err := hostserver.New(hostserver.Options{
		Addr:   cfg.HostAddr,
		Host:   sim,
		Events: sim,
		Tokens: session.NewTokens([]byte(cfg.TokenSecret), 24*time.Hour),
		Mode:   string(sdk.ModeSimulated),
		App:    app,
		Logger: slogger,
	})
	if err != nil {
		slogger.Error("failed to create host server", "err", err)
		os.Exit(1)
	}
	defer srv.Close()

	ln, err := net.Listen("tcp", cfg.HostAddr)
	if err != nil {
		slogger.Error("failed to listen", "addr", cfg.HostAddr, "err", err)
		os.Exit(1)
	}

	connect, err := srv.ConnectURL(ln.Addr().String())
	if err != nil {
		slogger.Error("failed to issue connect token", "err", err)
		os.Exit(1)
	}
	status := "http://" + ln.Addr().String() + "/"
	if app != nil {
		status += "status"
	}
	slogger.Info("dev host ready", "status", status, "connect", connect)

	if !*noBrowser {
		if err := webbrowser.Open(status); err != nil {
			slogger.Warn("could not open browser", "url", status, "err", err)
		}
	}

	if err := srv.Serve(ctx, ln); err != nil {
		slogger.Error("host server stopped", "err", err)
		os.Exit(1)
	}
	slogger.Info("dev host shut down")
}
