package bridge

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// ID is a host identifier that may be sent as a JSON number or string.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

type User struct {
	ID          ID     `json:"id"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber"`
	Email       string `json:"email"`
}

type CardStatus string

const (
	CardActive   CardStatus = "ACTIVE"
	CardInactive CardStatus = "INACTIVE"
)

type Card struct {
	CAN     string     `json:"can"`
	Expiry  string     `json:"expiry"`
	Status  CardStatus `json:"status"`
	Balance float64    `json:"balance"`
}

type CardList struct {
	Cards []Card `json:"cards"`
}

type ReferenceRequest struct {
	MerchantCode string
	Product      string
	Amount       float64
	NotifyURL    string
}

type ReferenceNumber struct {
	ReferenceNumber string  `json:"referenceNumber"`
	ProcessingFee   float64 `json:"processingFee"`
	TotalAmount     float64 `json:"totalAmount"`
	PaymentID       string  `json:"paymentId"`
	Message         string  `json:"message,omitempty"`
}

// PaymentTypeCheckout is the payment type used when none is given.
const PaymentTypeCheckout = "CHECKOUT"

type PaymentRequest struct {
	Type            string
	Amount          float64
	ProcessingFee   float64
	ReferenceNumber string
}

const (
	PaymentSuccess = "success"
	PaymentError   = "ERROR"
)

type PaymentResult struct {
	Status          string  `json:"status"`
	Amount          float64 `json:"amount,omitempty"`
	ReferenceNumber string  `json:"reference_number,omitempty"`
	Balance         float64 `json:"balance,omitempty"`
	Message         string  `json:"message,omitempty"`
	TransactionID   string  `json:"transactionId,omitempty"`
}

// Succeeded reports whether the host charged the payment.
func (p PaymentResult) Succeeded() bool {
	return p.Status == PaymentSuccess
}

type Dialog struct {
	Title              string
	Description        string
	ConfirmButtonTitle string
	DismissButtonTitle string
}

type Contact struct {
	PhoneNumber  string `json:"phoneNumber"`
	Name         string `json:"name"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

type DatePickerRequest struct {
	Format      string
	MinimumDate string
	MaximumDate string
}

type PickedDate struct {
	Date string `json:"date"`
}
