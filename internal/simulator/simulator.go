package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/arko-chat/protect/internal/bridge"
)

var ErrClosed = errors.New("simulator: closed")

var (
	_ bridge.Host   = (*Simulator)(nil)
	_ bridge.Events = (*Simulator)(nil)
)

// Simulator stands in for the native host. It answers every host
// operation with fabricated data after a realistic delay and raises host
// events on its own bus.
type Simulator struct {
	*bridge.Bus

	opts    Options
	logger  *slog.Logger
	session *Session
	slots   *bridge.Slots
	client  *http.Client

	done      chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	title  string
	closed bool
}

func New(opts Options) *Simulator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PaymentStatus == "" {
		opts.PaymentStatus = bridge.PaymentSuccess
	}
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	bus := bridge.NewBus()
	s := &Simulator{
		Bus:     bus,
		opts:    opts,
		logger:  logger.With("component", "simulator"),
		session: newSession(opts.Seed),
		slots:   bridge.NewSlots(bus),
		client:  client,
		done:    make(chan struct{}),
		timers:  make(map[*time.Timer]struct{}),
	}
	return s
}

func (s *Simulator) Session() *Session {
	return s.session
}

// wait sleeps for the latency configured for handler.
func (s *Simulator) wait(ctx context.Context, handler string, args ...any) error {
	s.logger.Debug("simulated host call", append([]any{"op", handler}, args...)...)

	select {
	case <-s.done:
		return ErrClosed
	default:
	}

	d := s.opts.delay(handler)
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}
}

func (s *Simulator) GetUser(ctx context.Context) (bridge.User, error) {
	if err := s.wait(ctx, bridge.HandlerGetUser); err != nil {
		return bridge.User{}, err
	}
	return s.session.User(), nil
}

func (s *Simulator) GetCards(ctx context.Context) (bridge.CardList, error) {
	if err := s.wait(ctx, bridge.HandlerGetCards); err != nil {
		return bridge.CardList{}, err
	}
	return s.session.Cards(), nil
}

func (s *Simulator) RequestReferenceNumber(
	ctx context.Context,
	req bridge.ReferenceRequest,
) (bridge.ReferenceNumber, error) {
	if err := s.wait(ctx, bridge.HandlerRequestReferenceNumber,
		"merchant", req.MerchantCode, "product", req.Product, "amount", req.Amount); err != nil {
		return bridge.ReferenceNumber{}, err
	}
	if s.opts.FailReferenceNumber {
		return bridge.ReferenceNumber{}, &bridge.HostError{
			Op:      bridge.HandlerRequestReferenceNumber,
			Message: "reference number request declined",
		}
	}
	return s.session.issueReference(req.Amount), nil
}

func (s *Simulator) RequestPayment(ctx context.Context, req bridge.PaymentRequest) bridge.PaymentResult {
	if req.Type == "" {
		req.Type = bridge.PaymentTypeCheckout
	}
	if err := s.wait(ctx, bridge.HandlerRequestPayment,
		"type", req.Type, "amount", req.Amount, "reference", req.ReferenceNumber); err != nil {
		return bridge.PaymentResult{Status: bridge.PaymentError, Message: err.Error()}
	}

	res := bridge.PaymentResult{
		Status:          s.opts.PaymentStatus,
		Amount:          req.Amount,
		ReferenceNumber: req.ReferenceNumber,
	}
	if res.Succeeded() {
		res.Balance, res.TransactionID = s.session.charge(req.Amount, req.ProcessingFee)
		res.Message = "Payment successful"
	} else {
		res.Message = "Payment " + strings.ToLower(res.Status)
	}
	return res
}

func (s *Simulator) ShowDialog(ctx context.Context, d bridge.Dialog) bool {
	if err := s.wait(ctx, bridge.HandlerShowDialog, "title", d.Title); err != nil {
		return false
	}

	var confirmed bool
	switch s.opts.Dialog {
	case DialogConfirm:
		confirmed = true
	case DialogDismiss:
		confirmed = false
	default:
		confirmed = s.session.coin()
	}
	s.logger.Debug("simulated dialog answered", "title", d.Title, "confirmed", confirmed)
	return confirmed
}

func (s *Simulator) ChooseImageFromFile(ctx context.Context, allowMultiple bool) ([]string, error) {
	if err := s.wait(ctx, bridge.HandlerChooseImageFromFile, "multiple", allowMultiple); err != nil {
		return nil, err
	}
	if allowMultiple {
		return []string{
			"data:image/png;base64,mockImageData1",
			"data:image/png;base64,mockImageData2",
		}, nil
	}
	return []string{"data:image/png;base64,mockImageData"}, nil
}

func (s *Simulator) SaveImage(ctx context.Context, url string) error {
	return s.wait(ctx, bridge.HandlerSaveImage, "url", url)
}

func (s *Simulator) ShowLoading(ctx context.Context) error {
	return s.wait(ctx, bridge.HandlerShowLoading)
}

func (s *Simulator) HideLoading(ctx context.Context) error {
	return s.wait(ctx, bridge.HandlerHideLoading)
}

// HTTPRequest performs the request for real; only the latency before it is
// simulated.
func (s *Simulator) HTTPRequest(ctx context.Context, req bridge.HTTPRequest) (bridge.HTTPResponse, error) {
	target, err := req.URL()
	if err != nil {
		return bridge.HTTPResponse{}, &bridge.HostError{Op: bridge.HandlerHTTPRequest, Message: err.Error()}
	}
	if err := s.wait(ctx, bridge.HandlerHTTPRequest, "method", req.EffectiveMethod(), "url", target); err != nil {
		return bridge.HTTPResponse{}, err
	}

	method := req.EffectiveMethod()
	var body io.Reader
	switch {
	case method == http.MethodGet || method == http.MethodHead:
		if req.Body != nil {
			s.logger.Warn("request body dropped", "method", method, "url", target)
		}
	default:
		payload, err := json.Marshal(req.EffectiveBody())
		if err != nil {
			return bridge.HTTPResponse{}, fmt.Errorf("simulator: encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return bridge.HTTPResponse{}, &bridge.HostError{Op: bridge.HandlerHTTPRequest, Message: err.Error()}
	}
	for k, v := range req.EffectiveHeaders() {
		httpReq.Header.Set(k, v)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return bridge.HTTPResponse{}, &bridge.TransportError{Op: bridge.HandlerHTTPRequest, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return bridge.HTTPResponse{}, &bridge.TransportError{Op: bridge.HandlerHTTPRequest, Err: err}
	}

	out := bridge.HTTPResponse{
		StatusCode: resp.StatusCode,
		Body:       string(raw),
		Headers:    make(map[string]string, len(resp.Header)),
	}
	for k := range resp.Header {
		out.Headers[strings.ToLower(k)] = resp.Header.Get(k)
	}

	s.logger.Debug("simulated http response", "url", target, "status", resp.StatusCode)
	if !out.OK() {
		return out, &bridge.HTTPStatusError{StatusCode: out.StatusCode, Response: out}
	}
	return out, nil
}

func (s *Simulator) ChoosePhoneFromContact(ctx context.Context) (bridge.Contact, error) {
	if err := s.wait(ctx, bridge.HandlerChoosePhoneFromContact); err != nil {
		return bridge.Contact{}, err
	}
	return bridge.Contact{PhoneNumber: "09123456789", Name: "John Doe"}, nil
}

// DatePicker picks today, clamped into the requested range.
func (s *Simulator) DatePicker(ctx context.Context, req bridge.DatePickerRequest) (bridge.PickedDate, error) {
	if err := s.wait(ctx, bridge.HandlerDatePicker, "format", req.Format); err != nil {
		return bridge.PickedDate{}, err
	}

	layout := goLayout(req.Format)
	day := time.Now()
	if lo, err := time.Parse(layout, req.MinimumDate); err == nil && day.Before(lo) {
		day = lo
	}
	if hi, err := time.Parse(layout, req.MaximumDate); err == nil && day.After(hi) {
		day = hi
	}
	return bridge.PickedDate{Date: day.Format(layout)}, nil
}

func (s *Simulator) ActionButton(_ context.Context, title string, onTap func()) {
	s.logger.Debug("simulated host call", "op", bridge.HandlerAppBarAction, "title", title)
	s.slots.Set(bridge.EventActionButtonTapped, func(json.RawMessage) {
		if onTap != nil {
			onTap()
		}
	})
}

func (s *Simulator) OnBackPressed(_ context.Context, onTap func()) {
	s.logger.Debug("simulated host call", "op", bridge.HandlerOnBackPressed)
	s.slots.Set(bridge.EventBackButtonPressed, func(json.RawMessage) {
		if onTap != nil {
			onTap()
		}
	})
}

func (s *Simulator) CloseMiniApp(context.Context) {
	s.logger.Info("mini app would close now")
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Simulator) AppBarTitle(_ context.Context, title string) {
	s.logger.Debug("simulated host call", "op", bridge.HandlerAppBarTitle, "title", title)
	s.mu.Lock()
	s.title = title
	s.mu.Unlock()
}

// Title returns the last app bar title set.
func (s *Simulator) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// MiniAppClosed reports whether the page asked the host to close it.
func (s *Simulator) MiniAppClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// TriggerActionButton taps the app bar action button.
func (s *Simulator) TriggerActionButton() int {
	return s.Dispatch(bridge.EventActionButtonTapped, nil)
}

// TriggerBackPressed presses the hardware back button.
func (s *Simulator) TriggerBackPressed() int {
	return s.Dispatch(bridge.EventBackButtonPressed, nil)
}

func (s *Simulator) SimulateResume() int { return s.Dispatch(bridge.EventResumed, nil) }
func (s *Simulator) SimulatePause() int  { return s.Dispatch(bridge.EventPaused, nil) }
func (s *Simulator) SimulateStop() int   { return s.Dispatch(bridge.EventStopped, nil) }

// Close cancels pending timers and fails in-flight calls with ErrClosed.
func (s *Simulator) Close() {
	s.closeOnce.Do(func() {
		close(s.done)

		s.mu.Lock()
		timers := s.timers
		s.timers = make(map[*time.Timer]struct{})
		s.mu.Unlock()

		for t := range timers {
			t.Stop()
		}
		s.slots.Clear()
	})
}

// goLayout converts a host date format such as yyyy-MM-dd to a Go layout.
func goLayout(format string) string {
	if format == "" {
		return time.DateOnly
	}
	r := strings.NewReplacer("yyyy", "2006", "yy", "06", "MM", "01", "dd", "02")
	return r.Replace(format)
}
