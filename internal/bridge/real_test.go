package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCall struct {
	handler string
	args    []any
}

type fakeTransport struct {
	*Bus

	mu       sync.Mutex
	calls    []fakeCall
	handlers map[string]func(args []any) (json.RawMessage, error)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		Bus:      NewBus(),
		handlers: make(map[string]func([]any) (json.RawMessage, error)),
	}
}

func (f *fakeTransport) on(handler string, fn func(args []any) (json.RawMessage, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[handler] = fn
}

func (f *fakeTransport) reply(handler string, raw string) {
	f.on(handler, func([]any) (json.RawMessage, error) {
		return json.RawMessage(raw), nil
	})
}

func (f *fakeTransport) CallHandler(_ context.Context, handler string, args ...any) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{handler: handler, args: args})
	fn := f.handlers[handler]
	f.mu.Unlock()

	if fn == nil {
		return json.RawMessage("null"), nil
	}
	return fn(args)
}

func (f *fakeTransport) lastCall(handler string) (fakeCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].handler == handler {
			return f.calls[i], true
		}
	}
	return fakeCall{}, false
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRealHost_WithoutTransport_EveryOperationCompletes(t *testing.T) {
	h := NewRealHost(nil, discardLogger())
	ctx := context.Background()

	_, err := h.GetUser(ctx)
	assert.ErrorIs(t, err, ErrTransportUnavailable)

	_, err = h.GetCards(ctx)
	assert.ErrorIs(t, err, ErrTransportUnavailable)

	_, err = h.RequestReferenceNumber(ctx, ReferenceRequest{MerchantCode: "M1"})
	assert.ErrorIs(t, err, ErrTransportUnavailable)

	res := h.RequestPayment(ctx, PaymentRequest{Amount: 10})
	assert.Equal(t, PaymentError, res.Status)
	assert.Equal(t, "WebView API not available", res.Message)

	assert.False(t, h.ShowDialog(ctx, Dialog{Title: "t"}))

	_, err = h.ChooseImageFromFile(ctx, true)
	assert.ErrorIs(t, err, ErrTransportUnavailable)
	assert.ErrorIs(t, h.SaveImage(ctx, "https://x/y.png"), ErrTransportUnavailable)
	assert.ErrorIs(t, h.ShowLoading(ctx), ErrTransportUnavailable)
	assert.ErrorIs(t, h.HideLoading(ctx), ErrTransportUnavailable)

	_, err = h.HTTPRequest(ctx, HTTPRequest{BaseURL: "example.com"})
	assert.ErrorIs(t, err, ErrTransportUnavailable)

	_, err = h.ChoosePhoneFromContact(ctx)
	assert.ErrorIs(t, err, ErrTransportUnavailable)

	_, err = h.DatePicker(ctx, DatePickerRequest{Format: "yyyy-MM-dd"})
	assert.ErrorIs(t, err, ErrTransportUnavailable)

	assert.NotPanics(t, func() {
		h.ActionButton(ctx, "Help", func() {})
		h.OnBackPressed(ctx, func() {})
		h.CloseMiniApp(ctx)
		h.AppBarTitle(ctx, "Protect")
	})
}

func TestRealHost_GetUser(t *testing.T) {
	ft := newFakeTransport()
	h := NewRealHost(ft, discardLogger())

	ft.reply(HandlerGetUser, `{"id":1403,"firstName":"Test","lastName":"User","phoneNumber":"09123456789","email":"user@test.com"}`)
	u, err := h.GetUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ID("1403"), u.ID)
	assert.Equal(t, "user@test.com", u.Email)

	ft.reply(HandlerGetUser, `{"errorMessage":"not logged in"}`)
	_, err = h.GetUser(context.Background())
	var hostErr *HostError
	require.ErrorAs(t, err, &hostErr)
	assert.Equal(t, "not logged in", hostErr.Message)
	assert.JSONEq(t, `{"errorMessage":"not logged in"}`, string(hostErr.Payload))
}

func TestRealHost_GetCards(t *testing.T) {
	ft := newFakeTransport()
	h := NewRealHost(ft, discardLogger())

	ft.reply(HandlerGetCards, `{"cards":[{"can":"6378059900462120","expiry":"2024-12-31","status":"ACTIVE","balance":6197.49}]}`)
	cards, err := h.GetCards(context.Background())
	require.NoError(t, err)
	require.Len(t, cards.Cards, 1)
	assert.Equal(t, CardActive, cards.Cards[0].Status)
	assert.InDelta(t, 6197.49, cards.Cards[0].Balance, 0.001)

	ft.reply(HandlerGetCards, `{"cards":[]}`)
	cards, err = h.GetCards(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cards.Cards)

	ft.reply(HandlerGetCards, `{"cards":null}`)
	_, err = h.GetCards(context.Background())
	var hostErr *HostError
	assert.ErrorAs(t, err, &hostErr)
}

func TestRealHost_TransportFailuresAreNormalized(t *testing.T) {
	ft := newFakeTransport()
	h := NewRealHost(ft, discardLogger())
	boom := errors.New("channel closed")

	ft.on(HandlerRequestReferenceNumber, func([]any) (json.RawMessage, error) { return nil, boom })
	_, err := h.RequestReferenceNumber(context.Background(), ReferenceRequest{})
	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
	assert.ErrorIs(t, err, boom)

	ft.on(HandlerGetUser, func([]any) (json.RawMessage, error) { panic("host crashed") })
	_, err = h.GetUser(context.Background())
	assert.ErrorAs(t, err, &tErr)

	ft.on(HandlerRequestPayment, func([]any) (json.RawMessage, error) { return nil, boom })
	res := h.RequestPayment(context.Background(), PaymentRequest{})
	assert.Equal(t, PaymentError, res.Status)
	assert.Contains(t, res.Message, "channel closed")

	ft.on(HandlerShowDialog, func([]any) (json.RawMessage, error) { return nil, boom })
	assert.False(t, h.ShowDialog(context.Background(), Dialog{}))
}

func TestRealHost_RequestPaymentArgumentOrder(t *testing.T) {
	ft := newFakeTransport()
	h := NewRealHost(ft, discardLogger())

	ft.reply(HandlerRequestPayment, `{"status":"success","amount":150,"reference_number":"REF-1","balance":10}`)
	res := h.RequestPayment(context.Background(), PaymentRequest{
		Amount:          150,
		ProcessingFee:   5,
		ReferenceNumber: "REF-1",
	})
	assert.True(t, res.Succeeded())
	assert.Equal(t, "REF-1", res.ReferenceNumber)

	call, ok := ft.lastCall(HandlerRequestPayment)
	require.True(t, ok)
	assert.Equal(t, []any{150.0, 5.0, "REF-1", PaymentTypeCheckout}, call.args)
}

func TestRealHost_ShowDialog(t *testing.T) {
	ft := newFakeTransport()
	h := NewRealHost(ft, discardLogger())

	ft.reply(HandlerShowDialog, `true`)
	assert.True(t, h.ShowDialog(context.Background(), Dialog{Title: "Pay?"}))

	ft.reply(HandlerShowDialog, `false`)
	assert.False(t, h.ShowDialog(context.Background(), Dialog{Title: "Pay?"}))
}

func TestRealHost_ChooseImageFromFile(t *testing.T) {
	ft := newFakeTransport()
	h := NewRealHost(ft, discardLogger())

	ft.reply(HandlerChooseImageFromFile, `"data:image/png;base64,AAA"`)
	imgs, err := h.ChooseImageFromFile(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"data:image/png;base64,AAA"}, imgs)

	ft.reply(HandlerChooseImageFromFile, `["a","b"]`)
	imgs, err = h.ChooseImageFromFile(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, imgs, 2)

	ft.reply(HandlerChooseImageFromFile, `null`)
	_, err = h.ChooseImageFromFile(context.Background(), true)
	assert.Error(t, err)
}

func TestRealHost_SaveImageAndLoading(t *testing.T) {
	ft := newFakeTransport()
	h := NewRealHost(ft, discardLogger())

	ft.reply(HandlerSaveImage, `true`)
	assert.NoError(t, h.SaveImage(context.Background(), "u"))
	ft.reply(HandlerSaveImage, `0`)
	assert.Error(t, h.SaveImage(context.Background(), "u"))

	ft.reply(HandlerShowLoading, `true`)
	assert.NoError(t, h.ShowLoading(context.Background()))
	ft.reply(HandlerHideLoading, `"yes"`)
	assert.Error(t, h.HideLoading(context.Background()))
}

func TestRealHost_HTTPRequest(t *testing.T) {
	ft := newFakeTransport()
	h := NewRealHost(ft, discardLogger())

	ft.reply(HandlerHTTPRequest, `{"statusCode":201,"body":"{\"id\":\"app-1\"}","headers":{"content-type":"application/json"}}`)
	resp, err := h.HTTPRequest(context.Background(), HTTPRequest{BaseURL: "api.example.com", Path: "/applications"})
	require.NoError(t, err)

	var body struct {
		ID string `json:"id"`
	}
	require.NoError(t, resp.DecodeBody(&body))
	assert.Equal(t, "app-1", body.ID)

	call, ok := ft.lastCall(HandlerHTTPRequest)
	require.True(t, ok)
	require.Len(t, call.args, 6)
	assert.Equal(t, "GET", call.args[0])
	assert.Equal(t, map[string]string{"content-type": "application/json"}, call.args[4])
	assert.Equal(t, map[string]any{}, call.args[5])

	ft.reply(HandlerHTTPRequest, `{"statusCode":404,"body":"not found"}`)
	_, err = h.HTTPRequest(context.Background(), HTTPRequest{BaseURL: "api.example.com"})
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 404, statusErr.StatusCode)
}

func TestRealHost_ChoosePhoneFromContact(t *testing.T) {
	ft := newFakeTransport()
	h := NewRealHost(ft, discardLogger())

	ft.reply(HandlerChoosePhoneFromContact, `{"phoneNumber":"0917","name":"Ana"}`)
	c, err := h.ChoosePhoneFromContact(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ana", c.Name)

	ft.reply(HandlerChoosePhoneFromContact, `{"errorMessage":"permission denied"}`)
	_, err = h.ChoosePhoneFromContact(context.Background())
	var hostErr *HostError
	require.ErrorAs(t, err, &hostErr)
	assert.Equal(t, "permission denied", hostErr.Message)
}

func TestRealHost_DatePickerDeliversThroughEvent(t *testing.T) {
	ft := newFakeTransport()
	h := NewRealHost(ft, discardLogger())

	ft.on(HandlerDatePicker, func([]any) (json.RawMessage, error) {
		go func() {
			time.Sleep(10 * time.Millisecond)
			ft.Dispatch(EventDatePicked, json.RawMessage(`{"date":"1990-05-01"}`))
		}()
		return json.RawMessage("null"), nil
	})

	picked, err := h.DatePicker(context.Background(), DatePickerRequest{Format: "yyyy-MM-dd"})
	require.NoError(t, err)
	assert.Equal(t, "1990-05-01", picked.Date)

	assert.Eventually(t, func() bool {
		return ft.Count(EventDatePicked) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestRealHost_DatePickerFailsOnEmptyDate(t *testing.T) {
	ft := newFakeTransport()
	h := NewRealHost(ft, discardLogger())

	ft.on(HandlerDatePicker, func([]any) (json.RawMessage, error) {
		go ft.Dispatch(EventDatePicked, json.RawMessage(`{"cancelled":true}`))
		return json.RawMessage("null"), nil
	})

	_, err := h.DatePicker(context.Background(), DatePickerRequest{})
	var hostErr *HostError
	assert.ErrorAs(t, err, &hostErr)
}

func TestRealHost_DatePickerEvictedByNewerCall(t *testing.T) {
	ft := newFakeTransport()
	h := NewRealHost(ft, discardLogger())

	first := make(chan error, 1)
	go func() {
		_, err := h.DatePicker(context.Background(), DatePickerRequest{})
		first <- err
	}()

	require.Eventually(t, func() bool {
		return ft.Count(EventDatePicked) == 1
	}, time.Second, 5*time.Millisecond)

	second := make(chan PickedDate, 1)
	go func() {
		d, _ := h.DatePicker(context.Background(), DatePickerRequest{})
		second <- d
	}()

	select {
	case err := <-first:
		assert.ErrorIs(t, err, ErrListenerRemoved)
	case <-time.After(time.Second):
		t.Fatal("first date picker never completed")
	}

	require.Eventually(t, func() bool {
		return ft.Count(EventDatePicked) == 1
	}, time.Second, 5*time.Millisecond)
	ft.Dispatch(EventDatePicked, json.RawMessage(`{"date":"2000-01-01"}`))

	select {
	case d := <-second:
		assert.Equal(t, "2000-01-01", d.Date)
	case <-time.After(time.Second):
		t.Fatal("second date picker never completed")
	}
}

func TestRealHost_DatePickerHonoursContext(t *testing.T) {
	ft := newFakeTransport()
	h := NewRealHost(ft, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := h.DatePicker(ctx, DatePickerRequest{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, h.Slots().Active(EventDatePicked))
}

func TestRealHost_ActionButtonReplacesPreviousHandler(t *testing.T) {
	ft := newFakeTransport()
	h := NewRealHost(ft, discardLogger())

	var first, second atomic.Int32
	h.ActionButton(context.Background(), "Help", func() { first.Add(1) })
	h.ActionButton(context.Background(), "Help", func() { second.Add(1) })

	assert.Equal(t, 1, ft.Count(EventActionButtonTapped))
	ft.Dispatch(EventActionButtonTapped, nil)

	assert.Equal(t, int32(0), first.Load())
	assert.Equal(t, int32(1), second.Load())

	assert.Eventually(t, func() bool {
		call, ok := ft.lastCall(HandlerAppBarAction)
		return ok && call.args[0] == "Help"
	}, time.Second, 5*time.Millisecond)
}

func TestRealHost_OnBackPressedReplacesPreviousHandler(t *testing.T) {
	ft := newFakeTransport()
	h := NewRealHost(ft, discardLogger())

	var fired []string
	var mu sync.Mutex
	record := func(name string) func() {
		return func() {
			mu.Lock()
			fired = append(fired, name)
			mu.Unlock()
		}
	}

	h.OnBackPressed(context.Background(), record("a"))
	h.OnBackPressed(context.Background(), record("b"))
	h.OnBackPressed(context.Background(), record("c"))
	ft.Dispatch(EventBackButtonPressed, nil)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"c"}, fired)
}

func TestRealHost_FireAndForgetCalls(t *testing.T) {
	ft := newFakeTransport()
	h := NewRealHost(ft, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h.AppBarTitle(ctx, "beep Protect")
	h.CloseMiniApp(ctx)

	assert.Eventually(t, func() bool {
		_, titled := ft.lastCall(HandlerAppBarTitle)
		_, closed := ft.lastCall(HandlerCloseMiniApp)
		return titled && closed
	}, time.Second, 5*time.Millisecond)
}
