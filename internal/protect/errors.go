package protect

import (
	"errors"
	"fmt"
)

// Messages shown to the user when a flow fails.
const (
	MsgUserEmail        = "Failed to get user email. Please try again."
	MsgUserData         = "Failed to fetch user data. Please try again."
	MsgCards            = "Failed to fetch your beep cards. Please try again."
	MsgNoCards          = "No beep cards found in your account"
	MsgQuoteUnavailable = "Quote information is not available. Please try again."
	MsgReference        = "Failed to generate payment reference. Please try again."
	MsgPaymentFailed    = "Payment processing failed. Please try again."
	MsgPaymentDeclined  = "Payment was not successful. Please try again."
	MsgActivation       = "Payment was successful, but there was an issue with policy activation. Please contact support."
	MsgDashboardUser    = "Failed to load user information. Please try again."
	MsgPolicies         = "Failed to load your policies. Please try again."
	MsgUnexpected       = "An unexpected error occurred. Please try again."
)

var (
	ErrNoCards     = errors.New("protect: no beep cards")
	ErrNoQuote     = errors.New("protect: no generated quote")
	ErrNotPaid     = errors.New("protect: quote was not marked as paid")
	ErrNotBound    = errors.New("protect: quote was not bound")
	ErrUnknownCard = errors.New("protect: unknown beep card")
)

// UserError carries the message a page shows for a failed step.
type UserError struct {
	Step    string
	Message string
	Err     error
}

func (e *UserError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("protect: %s: %s", e.Step, e.Message)
	}
	return fmt.Sprintf("protect: %s: %v", e.Step, e.Err)
}

func (e *UserError) Unwrap() error {
	return e.Err
}

func userError(step, msg string, err error) *UserError {
	return &UserError{Step: step, Message: msg, Err: err}
}

// UserMessage returns the message to show for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Message
	}
	return MsgUnexpected
}
