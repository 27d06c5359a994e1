package simulator

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/arko-chat/protect/internal/bridge"
)

// DialogMode decides how simulated dialogs are answered.
type DialogMode string

const (
	DialogRandom  DialogMode = ""
	DialogConfirm DialogMode = "confirm"
	DialogDismiss DialogMode = "dismiss"
)

type Options struct {
	// Delay is the simulated latency per host handler. Handlers missing
	// from the map answer immediately.
	Delay map[string]time.Duration

	// Seed drives the random parts of the session. Zero picks a time based
	// seed.
	Seed uint64

	Dialog DialogMode

	FailReferenceNumber bool

	// PaymentStatus is echoed by RequestPayment. Empty means "success".
	PaymentStatus string

	HTTPClient *http.Client

	ReadyDelay time.Duration

	// AutoResumeAfter fires a resume on every mini app after the delay.
	// Zero disables it.
	AutoResumeAfter time.Duration

	Logger *slog.Logger
}

// DefaultDelays returns the latency table of a typical host.
func DefaultDelays() map[string]time.Duration {
	return map[string]time.Duration{
		bridge.HandlerGetUser:                500 * time.Millisecond,
		bridge.HandlerGetCards:               500 * time.Millisecond,
		bridge.HandlerRequestReferenceNumber: 500 * time.Millisecond,
		bridge.HandlerRequestPayment:         1000 * time.Millisecond,
		bridge.HandlerShowDialog:             1000 * time.Millisecond,
		bridge.HandlerChooseImageFromFile:    1000 * time.Millisecond,
		bridge.HandlerSaveImage:              500 * time.Millisecond,
		bridge.HandlerShowLoading:            200 * time.Millisecond,
		bridge.HandlerHideLoading:            200 * time.Millisecond,
		bridge.HandlerHTTPRequest:            800 * time.Millisecond,
		bridge.HandlerChoosePhoneFromContact: 1000 * time.Millisecond,
		bridge.HandlerDatePicker:             800 * time.Millisecond,
	}
}

func DefaultOptions() Options {
	return Options{
		Delay:           DefaultDelays(),
		Dialog:          DialogRandom,
		PaymentStatus:   bridge.PaymentSuccess,
		HTTPClient:      &http.Client{Timeout: 30 * time.Second},
		ReadyDelay:      500 * time.Millisecond,
		AutoResumeAfter: 30 * time.Second,
	}
}

func (o Options) delay(handler string) time.Duration {
	if o.Delay == nil {
		return 0
	}
	return o.Delay[handler]
}
