// Command shell opens a mini app in a desktop WebView window backed by the
// simulated host.
package main

import (
	"flag"
	"os"

	webview "github.com/webview/webview_go"

	"github.com/arko-chat/protect/internal/config"
	"github.com/arko-chat/protect/internal/logger"
	"github.com/arko-chat/protect/internal/shell"
	"github.com/arko-chat/protect/internal/simulator"
)

func main() {
	url := flag.String("url", "http://127.0.0.1:5173/", "mini app URL")
	flag.Parse()

	os.Setenv("WEBKIT_DISABLE_COMPOSITING_MODE", "0")
	os.Setenv("WEBVIEW2_ADDITIONAL_BROWSER_ARGUMENTS", "--enable-gpu")

	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{}).Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slogger := logger.New(logger.Options{Format: cfg.LogFormat, Debug: cfg.DebugMode || cfg.IsDevelopment()})

	simOpts := cfg.SimulatorOptions()
	simOpts.Logger = slogger
	sim := simulator.New(simOpts)
	defer sim.Close()

	w := webview.New(true)
	defer w.Destroy()
	w.SetSize(420, 860, webview.HintNone)

	s := shell.New(w, shell.Options{Host: sim, Events: sim, Logger: slogger})
	if err := s.Install(); err != nil {
		slogger.Error("failed to install host shim", "err", err)
		os.Exit(1)
	}

	slogger.Info("opening mini app", "url", *url)
	s.Open(*url)
	slogger.Info("window closed, shutting down")
}
