package shell

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arko-chat/protect/internal/bridge"
	"github.com/arko-chat/protect/internal/simulator"
)

type fakeWindow struct {
	mu         sync.Mutex
	evals      []string
	titles     []string
	inits      []string
	bound      map[string]interface{}
	navigated  string
	terminated bool
}

func newFakeWindow() *fakeWindow {
	return &fakeWindow{bound: make(map[string]interface{})}
}

func (f *fakeWindow) Run() {}
func (f *fakeWindow) Dispatch(fn func()) { fn() }

func (f *fakeWindow) Terminate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = true
}

func (f *fakeWindow) SetTitle(title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.titles = append(f.titles, title)
}

func (f *fakeWindow) Navigate(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigated = url
}

func (f *fakeWindow) Init(js string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits = append(f.inits, js)
}

func (f *fakeWindow) Eval(js string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evals = append(f.evals, js)
}

func (f *fakeWindow) Bind(name string, fn interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bound[name] = fn
	return nil
}

func (f *fakeWindow) evalContaining(sub string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.evals {
		if strings.Contains(e, sub) {
			return true
		}
	}
	return false
}

func (f *fakeWindow) lastTitle() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.titles) == 0 {
		return ""
	}
	return f.titles[len(f.titles)-1]
}

func (f *fakeWindow) isTerminated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.terminated
}

func newTestShell(t *testing.T) (*Shell, *fakeWindow, *simulator.Simulator) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sim := simulator.New(simulator.Options{Seed: 1, Logger: logger})
	w := newFakeWindow()
	s := New(w, Options{Host: sim, Events: sim, Logger: logger})
	require.NoError(t, s.Install())
	t.Cleanup(func() {
		s.Close()
		sim.Close()
	})
	return s, w, sim
}

func raw(t *testing.T, vals ...any) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, 0, len(vals))
	for _, v := range vals {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		out = append(out, b)
	}
	return out
}

func TestShell_InstallInjectsShim(t *testing.T) {
	_, w, _ := newTestShell(t)

	require.Len(t, w.inits, 1)
	assert.Contains(t, w.inits[0], "flutter_inappwebview")
	assert.Contains(t, w.inits[0], bridge.EventReady)
	assert.Contains(t, w.bound, "__protectCall")
	assert.Contains(t, w.bound, "openExternal")
}

func TestShell_OpenExternal(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sim := simulator.New(simulator.Options{Seed: 1, Logger: logger})
	defer sim.Close()

	var opened []string
	noBrowser := errors.New("no browser")
	w := newFakeWindow()
	s := New(w, Options{Host: sim, Logger: logger, OpenURL: func(url string) error {
		opened = append(opened, url)
		if strings.HasPrefix(url, "bad:") {
			return noBrowser
		}
		return nil
	}})
	defer s.Close()
	require.NoError(t, s.Install())

	open, ok := w.bound["openExternal"].(func(string) error)
	require.True(t, ok)

	require.NoError(t, open("https://beep.example/terms"))
	err := open("bad:link")
	assert.ErrorIs(t, err, noBrowser)
	assert.Equal(t, []string{"https://beep.example/terms", "bad:link"}, opened)
}

func TestShell_CallResolvesPromise(t *testing.T) {
	s, w, _ := newTestShell(t)

	require.NoError(t, s.call("c1", bridge.HandlerGetUser, nil))
	assert.Eventually(t, func() bool {
		return w.evalContaining(`window.__protectResolve("c1", {"id":1403`)
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.call("c2", "nonsense", nil))
	assert.Eventually(t, func() bool {
		return w.evalContaining(`window.__protectResolve("c2", null, "dispatch: unknown handler`)
	}, time.Second, 5*time.Millisecond)

	assert.Error(t, s.call("", bridge.HandlerGetUser, nil))
}

func TestShell_AppBarTitleRenamesWindow(t *testing.T) {
	s, w, sim := newTestShell(t)

	require.NoError(t, s.call("c1", bridge.HandlerAppBarTitle, raw(t, "Protect")))
	assert.Eventually(t, func() bool {
		return w.lastTitle() == "beep | Protect"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Protect", sim.Title())
	assert.Equal(t, "beep | Protect", s.Title())

	s.SetTitle("  ")
	assert.Equal(t, BaseTitle, s.Title())
}

func TestShell_CloseMiniAppTerminates(t *testing.T) {
	s, w, _ := newTestShell(t)

	require.NoError(t, s.call("c1", bridge.HandlerCloseMiniApp, nil))
	assert.Eventually(t, w.isTerminated, time.Second, 5*time.Millisecond)
}

func TestShell_HostEventsBecomeCustomEvents(t *testing.T) {
	_, w, sim := newTestShell(t)

	sim.SimulateResume()
	assert.True(t, w.evalContaining(`new CustomEvent("onResumed", {detail: null})`))
}

func TestShell_DatePickerEvent(t *testing.T) {
	s, w, _ := newTestShell(t)

	require.NoError(t, s.call("c1", bridge.HandlerDatePicker, raw(t, "yyyy-MM-dd", "1930-01-01", "1950-01-01")))
	assert.Eventually(t, func() bool {
		return w.evalContaining(`new CustomEvent("onDatePicked", {detail: {"date":"1950-01-01"}})`)
	}, time.Second, 5*time.Millisecond)
}

func TestShell_OpenNavigates(t *testing.T) {
	s, w, _ := newTestShell(t)
	s.Open("http://127.0.0.1:5173/")
	assert.Equal(t, "http://127.0.0.1:5173/", w.navigated)
	assert.Equal(t, BaseTitle, w.lastTitle())
}
