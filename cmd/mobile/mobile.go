// Package mobile is the gomobile entry point. Native code registers its
// bridge, then Start exposes the native host over a local WebSocket so a
// page without flutter_inappwebview can still reach it.
package mobile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/arko-chat/protect/internal/bridge"
	"github.com/arko-chat/protect/internal/hostserver"
	"github.com/arko-chat/protect/internal/sdk"
	"github.com/arko-chat/protect/internal/session"
)

var (
	mu       sync.Mutex
	stopFunc func()
)

func RegisterBridge(b bridge.NativeBridge) {
	bridge.Register(b)
}

// DispatchEvent raises a host event from native code. It returns how many
// listeners received it.
func DispatchEvent(event string, detailJSON string) int {
	t, err := bridge.Safe()
	if err != nil {
		return 0
	}
	return t.DispatchEvent(event, detailJSON)
}

// Start serves the registered host and returns the URL a page dials.
func Start() (string, error) {
	mu.Lock()
	defer mu.Unlock()

	if stopFunc != nil {
		return "", fmt.Errorf("server already running")
	}

	transport, err := bridge.Safe()
	if err != nil {
		return "", fmt.Errorf("call RegisterBridge before Start: %w", err)
	}

	slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	sw := sdk.New(sdk.Options{Logger: slogger})
	srv, err := hostserver.New(hostserver.Options{
		Host:   sw.Host(),
		Events: transport,
		Tokens: session.NewTokens(nil, 24*time.Hour),
		Mode:   string(sw.Mode()),
		Logger: slogger,
	})
	if err != nil {
		sw.Close()
		return "", err
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		sw.Close()
		return "", err
	}

	connect, err := srv.ConnectURL(listener.Addr().String())
	if err != nil {
		listener.Close()
		sw.Close()
		return "", err
	}
	slogger.Info("mobile host server starting", "addr", listener.Addr().String())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ctx, listener); err != nil && !errors.Is(err, context.Canceled) {
			slogger.Error("server error", "err", err)
		}
	}()

	stopFunc = func() {
		cancel()
		<-done
		srv.Close()
		sw.Close()
	}

	return connect, nil
}

func Stop() {
	mu.Lock()
	defer mu.Unlock()

	if stopFunc != nil {
		stopFunc()
		stopFunc = nil
	}
}
