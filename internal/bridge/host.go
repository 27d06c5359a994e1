package bridge

import "context"

// Handler names understood by the native host.
const (
	HandlerGetUser                = "getUser"
	HandlerGetCards               = "getCards"
	HandlerRequestReferenceNumber = "requestReferenceNumber"
	HandlerRequestPayment         = "requestPayment"
	HandlerShowDialog             = "showDialog"
	HandlerChooseImageFromFile    = "chooseImageFromFile"
	HandlerSaveImage              = "saveImage"
	HandlerShowLoading            = "showLoading"
	HandlerHideLoading            = "hideLoading"
	HandlerHTTPRequest            = "httpRequest"
	HandlerChoosePhoneFromContact = "choosePhoneFromContact"
	HandlerDatePicker             = "datePicker"
	HandlerAppBarAction           = "appBarAction"
	HandlerOnBackPressed          = "onBackPressed"
	HandlerCloseMiniApp           = "closeMiniApp"
	HandlerAppBarTitle            = "appBarTitle"
)

// Events raised by the native host.
const (
	EventReady              = "flutterInAppWebViewPlatformReady"
	EventResumed            = "onResumed"
	EventPaused             = "onPaused"
	EventStopped            = "onWebViewClosed"
	EventDatePicked         = "onDatePicked"
	EventActionButtonTapped = "onActionButtonTapped"
	EventBackButtonPressed  = "onBackButtonPressed"
)

// Host is the operation catalogue a mini-app may invoke on its native host.
//
// Every method completes exactly once. Methods returning an error deliver
// either a value or an error, never both. RequestPayment and ShowDialog
// never fail: payment failures are reported through PaymentResult.Status
// and a dialog that cannot be shown counts as dismissed. ActionButton,
// OnBackPressed, CloseMiniApp and AppBarTitle are fire-and-forget and are
// silent no-ops without a host.
//
// Cancelling ctx only stops the caller from waiting; a request already
// handed to the host is not aborted.
type Host interface {
	GetUser(ctx context.Context) (User, error)
	GetCards(ctx context.Context) (CardList, error)
	RequestReferenceNumber(ctx context.Context, req ReferenceRequest) (ReferenceNumber, error)
	RequestPayment(ctx context.Context, req PaymentRequest) PaymentResult
	ShowDialog(ctx context.Context, d Dialog) bool
	ChooseImageFromFile(ctx context.Context, allowMultiple bool) ([]string, error)
	SaveImage(ctx context.Context, url string) error
	ShowLoading(ctx context.Context) error
	HideLoading(ctx context.Context) error
	HTTPRequest(ctx context.Context, req HTTPRequest) (HTTPResponse, error)
	ChoosePhoneFromContact(ctx context.Context) (Contact, error)

	// DatePicker opens the host date picker. The picked date arrives through
	// the onDatePicked event, not the call's own response.
	DatePicker(ctx context.Context, req DatePickerRequest) (PickedDate, error)

	// ActionButton shows an app bar action and routes its taps to onTap.
	// Only the most recently registered onTap fires.
	ActionButton(ctx context.Context, title string, onTap func())

	// OnBackPressed routes the host back button to onTap.
	// Only the most recently registered onTap fires.
	OnBackPressed(ctx context.Context, onTap func())

	CloseMiniApp(ctx context.Context)
	AppBarTitle(ctx context.Context, title string)
}
