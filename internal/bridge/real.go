package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
)

var _ Host = (*RealHost)(nil)

// RealHost implements Host on top of a native Transport. A RealHost built
// with a nil transport routes every operation to its failure path.
type RealHost struct {
	transport Transport
	slots     *Slots
	logger    *slog.Logger
}

func NewRealHost(t Transport, logger *slog.Logger) *RealHost {
	if logger == nil {
		logger = slog.Default()
	}
	h := &RealHost{transport: t, logger: logger}
	if t != nil {
		h.slots = NewSlots(t)
	}
	return h
}

// Slots exposes the single-slot listeners owned by this host.
func (h *RealHost) Slots() *Slots {
	return h.slots
}

func (h *RealHost) available(op string) bool {
	if h.transport == nil {
		h.logger.Error("host transport not available", "op", op)
		return false
	}
	return true
}

func (h *RealHost) call(ctx context.Context, op string, args ...any) (raw json.RawMessage, err error) {
	if !h.available(op) {
		return nil, ErrTransportUnavailable
	}

	h.logger.Debug("host call", "op", op)

	defer func() {
		if r := recover(); r != nil {
			err = &TransportError{Op: op, Err: fmt.Errorf("panic: %v", r)}
		}
		if err != nil {
			h.logger.Error("host call failed", "op", op, "err", err)
		}
	}()

	raw, err = h.transport.CallHandler(ctx, op, args...)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	h.logger.Debug("host result", "op", op, "result", string(raw))
	return raw, nil
}

// fire runs a call whose result nobody waits for.
func (h *RealHost) fire(ctx context.Context, op string, args ...any) {
	if !h.available(op) {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		_, _ = h.call(ctx, op, args...)
	}()
}

func (h *RealHost) GetUser(ctx context.Context) (User, error) {
	raw, err := h.call(ctx, HandlerGetUser)
	if err != nil {
		return User{}, err
	}
	if !hasField(raw, "id") {
		return User{}, newHostError(HandlerGetUser, raw, "missing user id")
	}

	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return User{}, newHostError(HandlerGetUser, raw, err.Error())
	}
	return u, nil
}

func (h *RealHost) GetCards(ctx context.Context) (CardList, error) {
	raw, err := h.call(ctx, HandlerGetCards)
	if err != nil {
		return CardList{}, err
	}
	if !hasField(raw, "cards") {
		return CardList{}, newHostError(HandlerGetCards, raw, "missing cards")
	}

	var cards CardList
	if err := json.Unmarshal(raw, &cards); err != nil {
		return CardList{}, newHostError(HandlerGetCards, raw, err.Error())
	}
	return cards, nil
}

func (h *RealHost) RequestReferenceNumber(ctx context.Context, req ReferenceRequest) (ReferenceNumber, error) {
	raw, err := h.call(ctx, HandlerRequestReferenceNumber,
		req.MerchantCode, req.Product, req.Amount, req.NotifyURL)
	if err != nil {
		return ReferenceNumber{}, err
	}
	if !hasField(raw, "referenceNumber") {
		return ReferenceNumber{}, newHostError(HandlerRequestReferenceNumber, raw, "missing reference number")
	}

	var ref ReferenceNumber
	if err := json.Unmarshal(raw, &ref); err != nil {
		return ReferenceNumber{}, newHostError(HandlerRequestReferenceNumber, raw, err.Error())
	}
	return ref, nil
}

func (h *RealHost) RequestPayment(ctx context.Context, req PaymentRequest) PaymentResult {
	if req.Type == "" {
		req.Type = PaymentTypeCheckout
	}

	raw, err := h.call(ctx, HandlerRequestPayment,
		req.Amount, req.ProcessingFee, req.ReferenceNumber, req.Type)
	if err != nil {
		if errors.Is(err, ErrTransportUnavailable) {
			return PaymentResult{Status: PaymentError, Message: "WebView API not available"}
		}
		return PaymentResult{Status: PaymentError, Message: err.Error()}
	}

	var res PaymentResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return PaymentResult{Status: PaymentError, Message: fmt.Sprintf("decode payment result: %v", err)}
	}
	return res
}

func (h *RealHost) ShowDialog(ctx context.Context, d Dialog) bool {
	raw, err := h.call(ctx, HandlerShowDialog,
		d.Title, d.Description, d.ConfirmButtonTitle, d.DismissButtonTitle)
	if err != nil {
		return false
	}
	var confirmed bool
	_ = json.Unmarshal(raw, &confirmed)
	return confirmed
}

func (h *RealHost) ChooseImageFromFile(ctx context.Context, allowMultiple bool) ([]string, error) {
	raw, err := h.call(ctx, HandlerChooseImageFromFile, allowMultiple)
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, newHostError(HandlerChooseImageFromFile, raw, "no image selected")
	}

	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many, nil
	}
	var one string
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, newHostError(HandlerChooseImageFromFile, raw, "unexpected image payload")
	}
	return []string{one}, nil
}

func (h *RealHost) SaveImage(ctx context.Context, url string) error {
	raw, err := h.call(ctx, HandlerSaveImage, url)
	if err != nil {
		return err
	}
	if !truthy(raw) {
		return newHostError(HandlerSaveImage, raw, "image not saved")
	}
	return nil
}

func (h *RealHost) ShowLoading(ctx context.Context) error {
	return h.expectTrue(ctx, HandlerShowLoading)
}

func (h *RealHost) HideLoading(ctx context.Context) error {
	return h.expectTrue(ctx, HandlerHideLoading)
}

func (h *RealHost) expectTrue(ctx context.Context, op string) error {
	raw, err := h.call(ctx, op)
	if err != nil {
		return err
	}
	var ok bool
	if err := json.Unmarshal(raw, &ok); err != nil || !ok {
		return newHostError(op, raw, "host returned false")
	}
	return nil
}

func (h *RealHost) HTTPRequest(ctx context.Context, req HTTPRequest) (HTTPResponse, error) {
	raw, err := h.call(ctx, HandlerHTTPRequest,
		req.EffectiveMethod(), req.BaseURL, req.Path, queryOrEmpty(req.Query),
		req.EffectiveHeaders(), req.EffectiveBody())
	if err != nil {
		return HTTPResponse{}, err
	}

	var resp HTTPResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return HTTPResponse{}, newHostError(HandlerHTTPRequest, raw, err.Error())
	}
	if !resp.OK() {
		return resp, &HTTPStatusError{StatusCode: resp.StatusCode, Response: resp}
	}
	return resp, nil
}

func (h *RealHost) ChoosePhoneFromContact(ctx context.Context) (Contact, error) {
	raw, err := h.call(ctx, HandlerChoosePhoneFromContact)
	if err != nil {
		return Contact{}, err
	}

	var c Contact
	if err := json.Unmarshal(raw, &c); err != nil {
		return Contact{}, newHostError(HandlerChoosePhoneFromContact, raw, err.Error())
	}
	if c.ErrorMessage != "" {
		return Contact{}, newHostError(HandlerChoosePhoneFromContact, raw, c.ErrorMessage)
	}
	return c, nil
}

func (h *RealHost) DatePicker(ctx context.Context, req DatePickerRequest) (PickedDate, error) {
	if !h.available(HandlerDatePicker) {
		return PickedDate{}, ErrTransportUnavailable
	}

	type outcome struct {
		date PickedDate
		err  error
	}
	done := make(chan outcome, 1)
	deliver := func(o outcome) {
		select {
		case done <- o:
		default:
		}
	}

	var gen atomic.Uint64
	gen.Store(h.slots.Replace(EventDatePicked, func(detail json.RawMessage) {
		h.logger.Debug("date picked", "detail", string(detail))
		h.slots.Release(EventDatePicked, gen.Load())

		var picked PickedDate
		if err := json.Unmarshal(detail, &picked); err != nil || picked.Date == "" {
			deliver(outcome{err: newHostError(HandlerDatePicker, detail, "no date picked")})
			return
		}
		deliver(outcome{date: picked})
	}, func() {
		deliver(outcome{err: ErrListenerRemoved})
	}))

	go func() {
		if _, err := h.call(ctx, HandlerDatePicker, req.Format, req.MinimumDate, req.MaximumDate); err != nil {
			h.slots.Release(EventDatePicked, gen.Load())
			deliver(outcome{err: err})
		}
	}()

	select {
	case o := <-done:
		return o.date, o.err
	case <-ctx.Done():
		h.slots.Release(EventDatePicked, gen.Load())
		return PickedDate{}, ctx.Err()
	}
}

func (h *RealHost) ActionButton(ctx context.Context, title string, onTap func()) {
	if !h.available(HandlerAppBarAction) {
		return
	}
	h.fire(ctx, HandlerAppBarAction, title)
	h.slots.Set(EventActionButtonTapped, tapHandler(onTap))
}

func (h *RealHost) OnBackPressed(ctx context.Context, onTap func()) {
	if !h.available(HandlerOnBackPressed) {
		return
	}
	h.fire(ctx, HandlerOnBackPressed)
	h.slots.Set(EventBackButtonPressed, tapHandler(onTap))
}

func (h *RealHost) CloseMiniApp(ctx context.Context) {
	h.fire(ctx, HandlerCloseMiniApp)
}

func (h *RealHost) AppBarTitle(ctx context.Context, title string) {
	h.fire(ctx, HandlerAppBarTitle, title)
}

func tapHandler(onTap func()) EventFunc {
	return func(json.RawMessage) {
		if onTap != nil {
			onTap()
		}
	}
}

func queryOrEmpty(q map[string]string) map[string]string {
	if q == nil {
		return map[string]string{}
	}
	return q
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// hasField reports whether raw is an object carrying a non-null key.
func hasField(raw json.RawMessage, key string) bool {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return false
	}
	v, ok := obj[key]
	return ok && !isNull(v)
}

func truthy(raw json.RawMessage) bool {
	if isNull(raw) {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	default:
		return true
	}
}
