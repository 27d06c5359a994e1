package protect

import "github.com/arko-chat/protect/internal/bridge"

// Product and payment constants the insurance backend expects.
const (
	ProductCode     = "PA-AIG-BEEP"
	Country         = "philippines"
	Currency        = "PHP"
	PaymentProvider = "beep"
	PaymentMode     = "monthly"

	QuoteGenerated = "generated"
	QuotePaid      = "paid"
	QuoteBound     = "bound"
)

// Applicant is the insured person behind one beep card.
type Applicant struct {
	CardNumber string `json:"beep_card_number"`
	FirstName  string `json:"applicant_first_name"`
	LastName   string `json:"applicant_last_name"`
	Mobile     string `json:"applicant_mobile"`
	Email      string `json:"applicant_email_address"`
	BirthDate  string `json:"applicant_dob"`
}

func (a Applicant) Complete() bool {
	return a.FirstName != "" && a.LastName != "" && a.Mobile != "" &&
		a.Email != "" && a.BirthDate != ""
}

type Application struct {
	ID     bridge.ID `json:"id"`
	Status string    `json:"status,omitempty"`
}

type Submission struct {
	ID bridge.ID `json:"id"`
}

type Premium struct {
	TotalPremium float64 `json:"total_premium"`
	Tax          float64 `json:"tax"`
	Breakdown    struct {
		Premium float64 `json:"premium"`
	} `json:"premium_breakdown"`
}

type QuoteData struct {
	BeepCards []Applicant `json:"beep_cards"`
}

type Quote struct {
	ID      bridge.ID `json:"id"`
	Status  string    `json:"status"`
	Premium *Premium  `json:"premium,omitempty"`
	Data    QuoteData `json:"data"`
}

// Quotes is what generating quotes for a submission returns.
type Quotes struct {
	ID     bridge.ID `json:"id,omitempty"`
	Quotes []Quote   `json:"quotes"`
}

// First returns the quote the checkout works with.
func (q Quotes) First() (Quote, bool) {
	if len(q.Quotes) == 0 {
		return Quote{}, false
	}
	return q.Quotes[0], true
}

type Payment struct {
	Amount float64
	// ReferenceNumber is the host's payment reference.
	ReferenceNumber string
	// TransactionID is the reference the payment itself reported.
	TransactionID string
}

// QuoteStatus answers marking a quote paid or binding it.
type QuoteStatus struct {
	ID     bridge.ID `json:"id,omitempty"`
	Status string    `json:"status"`
}

type Document struct {
	DownloadURL string `json:"download_url"`
}

// PolicyCard is a beep card as stored on an issued policy. The card number
// may come back as a JSON number.
type PolicyCard struct {
	CardNumber bridge.ID `json:"beep_card_number"`
	FirstName  string    `json:"applicant_first_name"`
	LastName   string    `json:"applicant_last_name"`
}

type Policy struct {
	ID           bridge.ID  `json:"id"`
	PolicyNumber string     `json:"policy_number"`
	StartDate    string     `json:"start_date"`
	EndDate      string     `json:"end_date"`
	Documents    []Document `json:"documents"`
	QuoteData    struct {
		Data struct {
			BeepCards []PolicyCard `json:"beep_cards"`
		} `json:"data"`
	} `json:"quote_data"`
}

type Policies struct {
	Data []Policy `json:"data"`
}
