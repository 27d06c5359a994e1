// Package shell hosts a mini app in a desktop WebView window and answers
// its flutter_inappwebview.callHandler calls from a bridge.Host.
package shell

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/toqueteos/webbrowser"

	"github.com/arko-chat/protect/internal/bridge"
	"github.com/arko-chat/protect/internal/dispatch"
)

const BaseTitle = "beep"

// Window is the part of a webview_go window the shell drives.
type Window interface {
	Run()
	Terminate()
	Dispatch(f func())
	SetTitle(title string)
	Navigate(url string)
	Init(js string)
	Eval(js string)
	Bind(name string, f interface{}) error
}

type Options struct {
	Host   bridge.Host
	Events bridge.Events
	// OpenURL opens links the page hands to openExternal. Defaults to the
	// system browser.
	OpenURL func(url string) error
	Logger  *slog.Logger
}

type Shell struct {
	w          Window
	dispatcher *dispatch.Dispatcher
	openURL    func(url string) error
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	title   string
	removes []func()
}

func New(w Window, opts Options) *Shell {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "shell")

	openURL := opts.OpenURL
	if openURL == nil {
		openURL = webbrowser.Open
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Shell{
		w:          w,
		dispatcher: dispatch.New(opts.Host, logger),
		openURL:    openURL,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		title:      BaseTitle,
	}

	if opts.Events != nil {
		for _, name := range []string{bridge.EventResumed, bridge.EventPaused, bridge.EventStopped} {
			event := name
			s.removes = append(s.removes, opts.Events.AddEventListener(event, func(detail json.RawMessage) {
				s.emit(event, detail)
			}))
		}
	}
	return s
}

// Install injects the host shim into every page and binds the Go side.
func (s *Shell) Install() error {
	s.w.Init(hostShim)

	if err := s.w.Bind("__protectCall", s.call); err != nil {
		return fmt.Errorf("shell: bind call: %w", err)
	}
	if err := s.w.Bind("openExternal", func(url string) error {
		if err := s.openURL(url); err != nil {
			return fmt.Errorf("shell: open %s: %w", url, err)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("shell: bind openExternal: %w", err)
	}
	return nil
}

// Open loads url and runs the window until it is closed.
func (s *Shell) Open(url string) {
	s.w.SetTitle(s.Title())
	s.w.Navigate(url)
	s.w.Run()
	s.Close()
}

// call is bound into the page. It returns at once and settles the page's
// promise later through __protectResolve, so slow host operations never
// block the UI thread.
func (s *Shell) call(id, handler string, args []json.RawMessage) error {
	if id == "" {
		return fmt.Errorf("shell: call without id")
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		emit := func(event string, detail any) { s.emit(event, detail) }
		result, err := s.dispatcher.Call(s.ctx, handler, args, emit)
		if err == nil {
			s.afterCall(handler, args)
		}
		s.resolve(id, result, err)
	}()
	return nil
}

// afterCall applies the window side of calls that change the shell itself.
func (s *Shell) afterCall(handler string, args []json.RawMessage) {
	switch handler {
	case bridge.HandlerAppBarTitle:
		var title string
		if len(args) > 0 {
			_ = json.Unmarshal(args[0], &title)
		}
		s.SetTitle(title)
	case bridge.HandlerCloseMiniApp:
		s.w.Dispatch(s.w.Terminate)
	}
}

func (s *Shell) resolve(id string, result any, callErr error) {
	idJSON, _ := json.Marshal(id)

	var js string
	if callErr != nil {
		msg, _ := json.Marshal(callErr.Error())
		js = fmt.Sprintf("window.__protectResolve(%s, null, %s)", idJSON, msg)
	} else {
		res, err := json.Marshal(result)
		if err != nil {
			msg, _ := json.Marshal(err.Error())
			js = fmt.Sprintf("window.__protectResolve(%s, null, %s)", idJSON, msg)
		} else {
			js = fmt.Sprintf("window.__protectResolve(%s, %s, null)", idJSON, res)
		}
	}
	s.eval(js)
}

// emit raises a host event in the page as a window CustomEvent.
func (s *Shell) emit(event string, detail any) {
	var raw []byte
	if r, ok := detail.(json.RawMessage); ok && len(r) > 0 {
		raw = r
	} else {
		var err error
		if raw, err = json.Marshal(detail); err != nil {
			s.logger.Error("encode event detail", "event", event, "err", err)
			return
		}
	}
	name, _ := json.Marshal(event)
	s.eval(fmt.Sprintf("window.dispatchEvent(new CustomEvent(%s, {detail: %s}))", name, raw))
}

func (s *Shell) eval(js string) {
	s.w.Dispatch(func() {
		s.w.Eval(js)
	})
}

func (s *Shell) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

func (s *Shell) SetTitle(title string) {
	s.mu.Lock()
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		s.title = BaseTitle
	} else {
		s.title = fmt.Sprintf("%s | %s", BaseTitle, trimmed)
	}
	newTitle := s.title
	s.mu.Unlock()

	s.w.Dispatch(func() {
		s.w.SetTitle(newTitle)
	})
}

// Close stops forwarding events and waits for in-flight calls.
func (s *Shell) Close() {
	s.mu.Lock()
	removes := s.removes
	s.removes = nil
	s.mu.Unlock()

	for _, remove := range removes {
		remove()
	}
	s.cancel()
	s.wg.Wait()
}
