// Package dispatch serves host handler calls arriving as a handler name and
// JSON arguments, the way a page invokes them, from any bridge.Host.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arko-chat/protect/internal/bridge"
	"github.com/arko-chat/protect/internal/metrics"
)

var ErrUnknownHandler = errors.New("dispatch: unknown handler")

// ArgError reports an argument that could not be decoded.
type ArgError struct {
	Handler string
	Index   int
	Err     error
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("dispatch: %s argument %d: %v", e.Handler, e.Index, e.Err)
}

func (e *ArgError) Unwrap() error {
	return e.Err
}

// EmitFunc raises a host event towards the page that made the call.
type EmitFunc func(event string, detail any)

type Dispatcher struct {
	host   bridge.Host
	logger *slog.Logger
}

func New(h bridge.Host, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{host: h, logger: logger}
}

// Call runs handler against the host and returns the value the page
// receives. Host failures are encoded in that value the way a native host
// reports them; the returned error is reserved for calls that could not be
// made at all.
func (d *Dispatcher) Call(
	ctx context.Context,
	handler string,
	args []json.RawMessage,
	emit EmitFunc,
) (result any, err error) {
	start := time.Now()
	outcome := metrics.OutcomeOK
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch: %s panicked: %v", handler, r)
		}
		if err != nil {
			outcome = metrics.OutcomeError
		}
		metrics.ObserveHostCall(handler, outcome, time.Since(start))
	}()

	if emit == nil {
		emit = func(string, any) {}
	}
	a := argList{handler: handler, raw: args}

	d.logger.Debug("dispatch call", "handler", handler, "args", len(args))

	switch handler {
	case bridge.HandlerGetUser:
		u, err := d.host.GetUser(ctx)
		if err != nil {
			outcome = metrics.OutcomeHostError
			return errorPayload(err), nil
		}
		return u, nil

	case bridge.HandlerGetCards:
		cards, err := d.host.GetCards(ctx)
		if err != nil {
			outcome = metrics.OutcomeHostError
			return errorPayload(err), nil
		}
		if cards.Cards == nil {
			cards.Cards = []bridge.Card{}
		}
		return cards, nil

	case bridge.HandlerRequestReferenceNumber:
		var req bridge.ReferenceRequest
		if err := a.decode(&req.MerchantCode, &req.Product, &req.Amount, &req.NotifyURL); err != nil {
			return nil, err
		}
		ref, err := d.host.RequestReferenceNumber(ctx, req)
		if err != nil {
			outcome = metrics.OutcomeHostError
			return errorPayload(err), nil
		}
		return ref, nil

	case bridge.HandlerRequestPayment:
		var req bridge.PaymentRequest
		if err := a.decode(&req.Amount, &req.ProcessingFee, &req.ReferenceNumber, &req.Type); err != nil {
			return nil, err
		}
		res := d.host.RequestPayment(ctx, req)
		if !res.Succeeded() {
			outcome = metrics.OutcomeHostError
		}
		return res, nil

	case bridge.HandlerShowDialog:
		var dlg bridge.Dialog
		if err := a.decode(&dlg.Title, &dlg.Description, &dlg.ConfirmButtonTitle, &dlg.DismissButtonTitle); err != nil {
			return nil, err
		}
		return d.host.ShowDialog(ctx, dlg), nil

	case bridge.HandlerChooseImageFromFile:
		var multiple bool
		if err := a.decode(&multiple); err != nil {
			return nil, err
		}
		images, err := d.host.ChooseImageFromFile(ctx, multiple)
		if err != nil || len(images) == 0 {
			outcome = metrics.OutcomeHostError
			return nil, nil
		}
		if !multiple {
			return images[0], nil
		}
		return images, nil

	case bridge.HandlerSaveImage:
		var url string
		if err := a.decode(&url); err != nil {
			return nil, err
		}
		return d.succeeded(d.host.SaveImage(ctx, url), &outcome), nil

	case bridge.HandlerShowLoading:
		return d.succeeded(d.host.ShowLoading(ctx), &outcome), nil

	case bridge.HandlerHideLoading:
		return d.succeeded(d.host.HideLoading(ctx), &outcome), nil

	case bridge.HandlerHTTPRequest:
		var req bridge.HTTPRequest
		var body json.RawMessage
		if err := a.decode(&req.Method, &req.BaseURL, &req.Path, &req.Query, &req.Headers, &body); err != nil {
			return nil, err
		}
		if len(body) > 0 {
			req.Body = body
		}
		resp, err := d.host.HTTPRequest(ctx, req)
		var statusErr *bridge.HTTPStatusError
		switch {
		case errors.As(err, &statusErr):
			outcome = metrics.OutcomeHostError
			return statusErr.Response, nil
		case err != nil:
			return nil, err
		}
		return resp, nil

	case bridge.HandlerChoosePhoneFromContact:
		c, err := d.host.ChoosePhoneFromContact(ctx)
		if err != nil {
			outcome = metrics.OutcomeHostError
			return errorPayload(err), nil
		}
		return c, nil

	case bridge.HandlerDatePicker:
		var req bridge.DatePickerRequest
		if err := a.decode(&req.Format, &req.MinimumDate, &req.MaximumDate); err != nil {
			return nil, err
		}
		picked, err := d.host.DatePicker(ctx, req)
		if err != nil {
			outcome = metrics.OutcomeHostError
			emit(bridge.EventDatePicked, errorPayload(err))
			return nil, nil
		}
		emit(bridge.EventDatePicked, picked)
		return nil, nil

	case bridge.HandlerAppBarAction:
		var title string
		if err := a.decode(&title); err != nil {
			return nil, err
		}
		d.host.ActionButton(ctx, title, func() {
			emit(bridge.EventActionButtonTapped, nil)
		})
		return nil, nil

	case bridge.HandlerOnBackPressed:
		d.host.OnBackPressed(ctx, func() {
			emit(bridge.EventBackButtonPressed, nil)
		})
		return nil, nil

	case bridge.HandlerCloseMiniApp:
		d.host.CloseMiniApp(ctx)
		return nil, nil

	case bridge.HandlerAppBarTitle:
		var title string
		if err := a.decode(&title); err != nil {
			return nil, err
		}
		d.host.AppBarTitle(ctx, title)
		return nil, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownHandler, handler)
}

func (d *Dispatcher) succeeded(err error, outcome *string) bool {
	if err != nil {
		*outcome = metrics.OutcomeHostError
		d.logger.Debug("host operation failed", "err", err)
		return false
	}
	return true
}

// errorPayload shapes err the way a native host reports failures.
func errorPayload(err error) map[string]any {
	out := map[string]any{"errorMessage": err.Error()}
	var hostErr *bridge.HostError
	if errors.As(err, &hostErr) {
		out["errorMessage"] = hostErr.Message
	}
	return out
}

type argList struct {
	handler string
	raw     []json.RawMessage
}

// decode fills dst positionally. Missing and null arguments leave the
// destination untouched.
func (a argList) decode(dst ...any) error {
	for i, d := range dst {
		if i >= len(a.raw) {
			return nil
		}
		raw := a.raw[i]
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		if err := json.Unmarshal(raw, d); err != nil {
			return &ArgError{Handler: a.handler, Index: i, Err: err}
		}
	}
	return nil
}
